package adapter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowrecord"
)

func usersSchema() flowrecord.Schema {
	return flowrecord.NewSchema([]flowrecord.FieldDefinition{
		{Name: "id", Type: flowrecord.TypeInt},
		{Name: "name", Type: flowrecord.TypeString, Nullable: true},
	}, 0)
}

type recordingSourceForwarder struct {
	sent       []recorded
	terminated bool
}

type recorded struct {
	seq flowrecord.SeqNo
	op  flowrecord.Operation
}

func (f *recordingSourceForwarder) Send(seq flowrecord.SeqNo, op flowrecord.Operation, _ dag.PortHandle) error {
	f.sent = append(f.sent, recorded{seq: seq, op: op})
	return nil
}

func (f *recordingSourceForwarder) Terminate() { f.terminated = true }

func writeReplayFile(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "changes.ndjson")
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReplaySourceSendsInsertsInOrder(t *testing.T) {
	path := writeReplayFile(t,
		`{"lsn":1,"seq":1,"op":"insert","new":{"id":1,"name":"alice"}}`,
		`{"lsn":1,"seq":2,"op":"insert","new":{"id":2,"name":"bob"}}`,
	)
	src := &ReplaySource{Path: path, Schema: usersSchema()}
	fwd := &recordingSourceForwarder{}

	require.NoError(t, src.Start(fwd, nil))

	require.Len(t, fwd.sent, 2)
	assert.Equal(t, flowrecord.OpInsert, fwd.sent[0].op.Kind)
	assert.Equal(t, "alice", fwd.sent[0].op.New.Values[1].String)
	assert.Equal(t, int64(2), fwd.sent[1].op.New.Values[0].Int)
	assert.True(t, fwd.terminated)
}

func TestReplaySourceSkipsUpToFromSeq(t *testing.T) {
	path := writeReplayFile(t,
		`{"lsn":1,"seq":1,"op":"insert","new":{"id":1,"name":"alice"}}`,
		`{"lsn":1,"seq":2,"op":"insert","new":{"id":2,"name":"bob"}}`,
		`{"lsn":1,"seq":3,"op":"insert","new":{"id":3,"name":"carol"}}`,
	)
	src := &ReplaySource{Path: path, Schema: usersSchema()}
	fwd := &recordingSourceForwarder{}
	from := flowrecord.SeqNo{LSN: 1, Seq: 2}

	require.NoError(t, src.Start(fwd, &from))

	require.Len(t, fwd.sent, 1)
	assert.Equal(t, int64(3), fwd.sent[0].op.New.Values[0].Int)
}

func TestReplaySourceDecodesUpdateAndDelete(t *testing.T) {
	path := writeReplayFile(t,
		`{"lsn":1,"seq":1,"op":"update","old":{"id":1,"name":"alice"},"new":{"id":1,"name":"alicia"}}`,
		`{"lsn":1,"seq":2,"op":"delete","old":{"id":1,"name":"alicia"}}`,
	)
	src := &ReplaySource{Path: path, Schema: usersSchema()}
	fwd := &recordingSourceForwarder{}

	require.NoError(t, src.Start(fwd, nil))

	require.Len(t, fwd.sent, 2)
	assert.Equal(t, flowrecord.OpUpdate, fwd.sent[0].op.Kind)
	assert.Equal(t, "alice", fwd.sent[0].op.Old.Values[1].String)
	assert.Equal(t, "alicia", fwd.sent[0].op.New.Values[1].String)
	assert.Equal(t, flowrecord.OpDelete, fwd.sent[1].op.Kind)
}

func TestReplaySourceNullColumnBecomesNullField(t *testing.T) {
	path := writeReplayFile(t,
		`{"lsn":1,"seq":1,"op":"insert","new":{"id":1}}`,
	)
	src := &ReplaySource{Path: path, Schema: usersSchema()}
	fwd := &recordingSourceForwarder{}

	require.NoError(t, src.Start(fwd, nil))

	require.Len(t, fwd.sent, 1)
	assert.True(t, fwd.sent[0].op.New.Values[1].IsNull())
}
