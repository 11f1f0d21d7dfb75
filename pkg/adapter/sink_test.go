package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowrecord"
)

func newCacheSinkForUsers(t *testing.T) *CacheSink {
	t.Helper()
	s := NewCacheSink()
	require.NoError(t, s.UpdateSchema(map[dag.PortHandle]flowrecord.Schema{0: usersSchema()}))
	return s
}

func TestCacheSinkInsertThenGet(t *testing.T) {
	s := newCacheSinkForUsers(t)
	rec := flowrecord.NewRecord(flowrecord.NewInt(1), flowrecord.NewString("alice"))

	require.NoError(t, s.Process(0, flowrecord.SeqNo{}, flowrecord.Insert(rec), nil, nil))

	key := flowrecord.PrimaryKey(usersSchema(), rec)
	got, ok, err := s.Get(0, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Values[1].String)
	assert.Equal(t, 1, s.Len())
}

func TestCacheSinkDeleteRemoves(t *testing.T) {
	s := newCacheSinkForUsers(t)
	rec := flowrecord.NewRecord(flowrecord.NewInt(1), flowrecord.NewString("alice"))
	require.NoError(t, s.Process(0, flowrecord.SeqNo{}, flowrecord.Insert(rec), nil, nil))

	require.NoError(t, s.Process(0, flowrecord.SeqNo{}, flowrecord.Delete(rec), nil, nil))

	assert.Equal(t, 0, s.Len())
}

func TestCacheSinkUpdateSameKeyOverwrites(t *testing.T) {
	s := newCacheSinkForUsers(t)
	old := flowrecord.NewRecord(flowrecord.NewInt(1), flowrecord.NewString("alice"))
	newRec := flowrecord.NewRecord(flowrecord.NewInt(1), flowrecord.NewString("alicia"))
	require.NoError(t, s.Process(0, flowrecord.SeqNo{}, flowrecord.Insert(old), nil, nil))

	require.NoError(t, s.Process(0, flowrecord.SeqNo{}, flowrecord.Update(old, newRec), nil, nil))

	require.Equal(t, 1, s.Len())
	got, ok, err := s.Get(0, flowrecord.PrimaryKey(usersSchema(), newRec))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alicia", got.Values[1].String)
}

func TestCacheSinkUpdateChangingKeyMovesRow(t *testing.T) {
	s := newCacheSinkForUsers(t)
	old := flowrecord.NewRecord(flowrecord.NewInt(1), flowrecord.NewString("alice"))
	newRec := flowrecord.NewRecord(flowrecord.NewInt(2), flowrecord.NewString("alice"))
	require.NoError(t, s.Process(0, flowrecord.SeqNo{}, flowrecord.Insert(old), nil, nil))

	require.NoError(t, s.Process(0, flowrecord.SeqNo{}, flowrecord.Update(old, newRec), nil, nil))

	require.Equal(t, 1, s.Len())
	_, ok, err := s.Get(0, flowrecord.PrimaryKey(usersSchema(), old))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.Get(0, flowrecord.PrimaryKey(usersSchema(), newRec))
	require.NoError(t, err)
	assert.True(t, ok)
}
