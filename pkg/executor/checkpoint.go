package executor

import (
	"encoding/binary"

	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowrecord"
	"github.com/cuemby/flowdb/pkg/storage"
)

const checkpointDBName = "checkpoint"

// openCheckpointDB opens the bucket holding the last-committed SeqNo per
// source node.
func openCheckpointDB(env *storage.Env) (storage.DbHandle, error) {
	return env.OpenDatabase(checkpointDBName, false)
}

// saveCheckpoint persists source's last-committed SeqNo inside the epoch's
// SharedTransaction so it becomes durable atomically with the epoch commit.
func saveCheckpoint(tx *storage.SharedTransaction, db storage.DbHandle, source dag.NodeHandle, seq flowrecord.SeqNo) error {
	return tx.Put(db, []byte(source), encodeSeqNo(seq))
}

// loadCheckpoint returns the last-committed SeqNo for source, if any, read
// outside any writer transaction so it can run before the pipeline starts.
func loadCheckpoint(env *storage.Env, db storage.DbHandle, source dag.NodeHandle) (flowrecord.SeqNo, bool, error) {
	var seq flowrecord.SeqNo
	var found bool
	err := env.View(func(tx *storage.SharedTransaction) error {
		v, ok, err := tx.Get(db, []byte(source))
		if err != nil || !ok {
			return err
		}
		seq = decodeSeqNo(v)
		found = true
		return nil
	})
	return seq, found, err
}

// LoadCheckpoint opens env's checkpoint database and returns source's
// last-committed SeqNo, for the CLI's "checkpoint show" command to inspect
// a pipeline's restart position without starting the executor.
func LoadCheckpoint(env *storage.Env, source dag.NodeHandle) (flowrecord.SeqNo, bool, error) {
	db, err := openCheckpointDB(env)
	if err != nil {
		return flowrecord.SeqNo{}, false, err
	}
	return loadCheckpoint(env, db, source)
}

func encodeSeqNo(s flowrecord.SeqNo) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], s.LSN)
	binary.BigEndian.PutUint64(buf[8:], s.Seq)
	return buf
}

func decodeSeqNo(b []byte) flowrecord.SeqNo {
	if len(b) < 16 {
		return flowrecord.SeqNo{}
	}
	return flowrecord.SeqNo{
		LSN: binary.BigEndian.Uint64(b[:8]),
		Seq: binary.BigEndian.Uint64(b[8:]),
	}
}
