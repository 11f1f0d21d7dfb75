package aggregation

import (
	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

// Aggregator is the contract every measure implementation satisfies.
// prevState is the private state blob this aggregator itself wrote last
// time (nil on a group's first contributing row); tx is scoped to this
// aggregator's own sticky prefix within the shared agg_db, so distinct
// measures and distinct groups never collide. Update must be equivalent to
// Delete(old) composed with Insert(new) but may use prevState to avoid
// redoing that work (a running SUM just adds the delta; MIN/MAX still must
// touch the bag since the removed value might have been the extremum).
type Aggregator interface {
	Insert(tx *storage.PrefixTxn, prevState []byte, value flowrecord.Field) (newValue flowrecord.Field, newState []byte, err error)
	Delete(tx *storage.PrefixTxn, prevState []byte, value flowrecord.Field) (newValue flowrecord.Field, newState []byte, err error)
	Update(tx *storage.PrefixTxn, prevState []byte, oldValue, newValue flowrecord.Field) (nextValue flowrecord.Field, nextState []byte, err error)
}
