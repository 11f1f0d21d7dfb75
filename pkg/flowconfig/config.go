// Package flowconfig loads a pipeline manifest — storage location, channel
// capacity, epoch cadence, and adapter settings — from YAML, the way
// cmd/warren/apply.go reads a resource file: os.ReadFile followed by
// yaml.Unmarshal into a tagged struct. This is runtime/adapter
// configuration (component H), not the SQL-planner/connector configuration
// spec.md explicitly excludes.
package flowconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/flowdb/pkg/flowlog"
	"github.com/cuemby/flowdb/pkg/flowrecord"
)

// Manifest is the top-level pipeline configuration document.
type Manifest struct {
	StoragePath     string        `yaml:"storage_path"`
	ChannelCapacity int           `yaml:"channel_capacity"`
	Epoch           EpochConfig   `yaml:"epoch"`
	Source          SourceConfig  `yaml:"source"`
	Sink            SinkConfig    `yaml:"sink"`
	Logging         LoggingConfig `yaml:"logging"`
}

// EpochConfig controls how often the executor's ticker cuts a new epoch.
// Only Interval reaches the executor; MaxMessages is parsed and defaulted
// but the run command does not pass it on, so epochs are cut by time alone.
type EpochConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxMessages int           `yaml:"max_messages"`
}

// ColumnConfig describes one schema column in the manifest's source
// section.
type ColumnConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

// SourceConfig configures the adapter.ReplaySource.
type SourceConfig struct {
	Type       string         `yaml:"type"`
	Path       string         `yaml:"path"`
	Schema     []ColumnConfig `yaml:"schema"`
	PrimaryKey []int          `yaml:"primary_key"`
}

// SinkConfig configures the adapter.CacheSink.
type SinkConfig struct {
	Type string `yaml:"type"`
}

// LoggingConfig configures pkg/flowlog.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"json_output"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flowconfig: failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("flowconfig: failed to parse manifest: %w", err)
	}
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.ChannelCapacity <= 0 {
		m.ChannelCapacity = 64
	}
	if m.Epoch.Interval <= 0 {
		m.Epoch.Interval = 100 * time.Millisecond
	}
	if m.Epoch.MaxMessages <= 0 {
		m.Epoch.MaxMessages = 1000
	}
	if m.Logging.Level == "" {
		m.Logging.Level = "info"
	}
}

// Validate checks the manifest carries enough information to build a
// pipeline from.
func (m *Manifest) Validate() error {
	if m.StoragePath == "" {
		return fmt.Errorf("flowconfig: storage_path is required")
	}
	if m.Source.Type == "" {
		return fmt.Errorf("flowconfig: source.type is required")
	}
	if m.Source.Type == "replay" && m.Source.Path == "" {
		return fmt.Errorf("flowconfig: source.path is required for a replay source")
	}
	if len(m.Source.Schema) == 0 {
		return fmt.Errorf("flowconfig: source.schema must declare at least one column")
	}
	if m.Sink.Type == "" {
		return fmt.Errorf("flowconfig: sink.type is required")
	}
	return nil
}

// ToSchema converts the manifest's column list into a flowrecord.Schema.
func (s SourceConfig) ToSchema() (flowrecord.Schema, error) {
	fields := make([]flowrecord.FieldDefinition, len(s.Schema))
	for i, col := range s.Schema {
		t, err := parseFieldType(col.Type)
		if err != nil {
			return flowrecord.Schema{}, fmt.Errorf("flowconfig: column %q: %w", col.Name, err)
		}
		fields[i] = flowrecord.FieldDefinition{Name: col.Name, Type: t, Nullable: col.Nullable}
	}
	return flowrecord.NewSchema(fields, s.PrimaryKey...), nil
}

func parseFieldType(s string) (flowrecord.FieldType, error) {
	switch s {
	case "bool":
		return flowrecord.TypeBool, nil
	case "int":
		return flowrecord.TypeInt, nil
	case "uint":
		return flowrecord.TypeUInt, nil
	case "float":
		return flowrecord.TypeFloat, nil
	case "string":
		return flowrecord.TypeString, nil
	case "binary":
		return flowrecord.TypeBinary, nil
	case "timestamp":
		return flowrecord.TypeTimestamp, nil
	case "decimal":
		return flowrecord.TypeDecimal, nil
	case "date":
		return flowrecord.TypeDate, nil
	case "json":
		return flowrecord.TypeJSON, nil
	default:
		return 0, fmt.Errorf("unknown column type %q", s)
	}
}

// LoggingConfig converts to a flowlog.Config and initializes the global
// logger, matching cmd/warren's cobra.OnInitialize(initLogging) wiring.
func (l LoggingConfig) Init() {
	flowlog.Init(flowlog.Config{
		Level:      flowlog.Level(l.Level),
		JSONOutput: l.JSONOutput,
	})
}
