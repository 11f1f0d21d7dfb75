package flowconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/flowdb/pkg/flowrecord"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeManifest(t, `
storage_path: ./data
source:
  type: replay
  path: ./changes.ndjson
  schema:
    - name: id
      type: int
    - name: name
      type: string
      nullable: true
sink:
  type: cache
`)
	m, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./data", m.StoragePath)
	assert.Equal(t, 64, m.ChannelCapacity)
	assert.Equal(t, 100*time.Millisecond, m.Epoch.Interval)
	assert.Equal(t, 1000, m.Epoch.MaxMessages)
	assert.Equal(t, "info", m.Logging.Level)
}

func TestLoadMissingStoragePathFails(t *testing.T) {
	path := writeManifest(t, `
source:
  type: replay
  path: ./changes.ndjson
  schema:
    - name: id
      type: int
sink:
  type: cache
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingSchemaFails(t *testing.T) {
	path := writeManifest(t, `
storage_path: ./data
source:
  type: replay
  path: ./changes.ndjson
sink:
  type: cache
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSourceConfigToSchema(t *testing.T) {
	sc := SourceConfig{
		Schema: []ColumnConfig{
			{Name: "id", Type: "int"},
			{Name: "name", Type: "string", Nullable: true},
		},
		PrimaryKey: []int{0},
	}
	schema, err := sc.ToSchema()
	require.NoError(t, err)
	assert.Equal(t, 2, schema.Width())
	assert.Equal(t, flowrecord.TypeInt, schema.Fields[0].Type)
	assert.Equal(t, []int{0}, schema.PrimaryKey)
}

func TestSourceConfigToSchemaRejectsUnknownType(t *testing.T) {
	sc := SourceConfig{Schema: []ColumnConfig{{Name: "x", Type: "blob"}}}
	_, err := sc.ToSchema()
	assert.Error(t, err)
}
