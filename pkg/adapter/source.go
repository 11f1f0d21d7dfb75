package adapter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuemby/flowdb/pkg/dag"
	"github.com/cuemby/flowdb/pkg/flowerr"
	"github.com/cuemby/flowdb/pkg/flowlog"
	"github.com/cuemby/flowdb/pkg/flowrecord"
)

// replayPort is the single output port a ReplaySource exposes.
const replayPort dag.PortHandle = 0

// changeLine is one newline-delimited JSON record in a replay file: an
// operation tag plus the old and/or new row, each row a column-name-keyed
// map of JSON-native values (string/float64/bool/null).
type changeLine struct {
	LSN uint64                 `json:"lsn"`
	Seq uint64                 `json:"seq"`
	Op  string                 `json:"op"`
	Old map[string]interface{} `json:"old,omitempty"`
	New map[string]interface{} `json:"new,omitempty"`
}

// ReplaySource replays a newline-delimited JSON change log as the initial
// stream of operations for a pipeline. The real upstream connector (CDC,
// message bus, blockchain indexer) a production flowdb deployment would use
// in ReplaySource's place is out of scope; this adapter only has to satisfy
// dag.Source.
type ReplaySource struct {
	Path   string
	Schema flowrecord.Schema
}

func (s *ReplaySource) OutputPorts() []dag.PortHandle { return []dag.PortHandle{replayPort} }

func (s *ReplaySource) OutputSchema(port dag.PortHandle) (flowrecord.Schema, error) {
	if port != replayPort {
		return flowrecord.Schema{}, flowerr.Newf(flowerr.InvalidPortHandle, "adapter: replay source has no output port %d", port)
	}
	return s.Schema, nil
}

// Start scans the replay file line by line, skipping every line whose SeqNo
// is not strictly after fromSeq (a restart resuming from a checkpoint), and
// sends the rest in file order. It terminates the source once the file is
// exhausted, matching a finite batch replay rather than a live tail.
func (s *ReplaySource) Start(fwd dag.SourceForwarder, fromSeq *flowrecord.SeqNo) error {
	log := flowlog.WithComponent("adapter.replay")

	f, err := os.Open(s.Path)
	if err != nil {
		return flowerr.Wrap(flowerr.InternalError, "adapter: open replay file", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cl changeLine
		if err := json.Unmarshal(line, &cl); err != nil {
			return flowerr.Wrap(flowerr.InternalError, fmt.Sprintf("adapter: decode replay line %d", lineNo), err)
		}

		seq := flowrecord.SeqNo{LSN: cl.LSN, Seq: cl.Seq}
		if fromSeq != nil && !fromSeq.Less(seq) {
			continue
		}

		op, err := s.toOperation(cl)
		if err != nil {
			return err
		}
		if err := fwd.Send(seq, op, replayPort); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return flowerr.Wrap(flowerr.InternalError, "adapter: scan replay file", err)
	}

	log.Info().Int("lines", lineNo).Msg("replay exhausted")
	fwd.Terminate()
	return nil
}

func (s *ReplaySource) toOperation(cl changeLine) (flowrecord.Operation, error) {
	switch cl.Op {
	case "insert":
		rec, err := s.decodeRow(cl.New)
		if err != nil {
			return flowrecord.Operation{}, err
		}
		return flowrecord.Insert(rec), nil
	case "delete":
		rec, err := s.decodeRow(cl.Old)
		if err != nil {
			return flowrecord.Operation{}, err
		}
		return flowrecord.Delete(rec), nil
	case "update":
		oldRec, err := s.decodeRow(cl.Old)
		if err != nil {
			return flowrecord.Operation{}, err
		}
		newRec, err := s.decodeRow(cl.New)
		if err != nil {
			return flowrecord.Operation{}, err
		}
		return flowrecord.Update(oldRec, newRec), nil
	default:
		return flowrecord.Operation{}, flowerr.Newf(flowerr.InternalError, "adapter: unknown replay op %q", cl.Op)
	}
}

// decodeRow converts one JSON row into a Record matching the source's
// schema column order and declared types.
func (s *ReplaySource) decodeRow(row map[string]interface{}) (flowrecord.Record, error) {
	values := make([]flowrecord.Field, len(s.Schema.Fields))
	for i, def := range s.Schema.Fields {
		raw, ok := row[def.Name]
		if !ok || raw == nil {
			values[i] = flowrecord.Null()
			continue
		}
		f, err := jsonToField(def, raw)
		if err != nil {
			return flowrecord.Record{}, err
		}
		values[i] = f
	}
	return flowrecord.NewRecord(values...), nil
}

func jsonToField(def flowrecord.FieldDefinition, raw interface{}) (flowrecord.Field, error) {
	switch def.Type {
	case flowrecord.TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return flowrecord.Field{}, fmt.Errorf("adapter: column %q expects bool, got %T", def.Name, raw)
		}
		return flowrecord.NewBool(b), nil
	case flowrecord.TypeInt:
		n, ok := raw.(float64)
		if !ok {
			return flowrecord.Field{}, fmt.Errorf("adapter: column %q expects int, got %T", def.Name, raw)
		}
		return flowrecord.NewInt(int64(n)), nil
	case flowrecord.TypeUInt:
		n, ok := raw.(float64)
		if !ok {
			return flowrecord.Field{}, fmt.Errorf("adapter: column %q expects uint, got %T", def.Name, raw)
		}
		return flowrecord.NewUInt(uint64(n)), nil
	case flowrecord.TypeFloat, flowrecord.TypeDecimal:
		n, ok := raw.(float64)
		if !ok {
			return flowrecord.Field{}, fmt.Errorf("adapter: column %q expects float, got %T", def.Name, raw)
		}
		if def.Type == flowrecord.TypeDecimal {
			return flowrecord.NewDecimal(n), nil
		}
		return flowrecord.NewFloat(n), nil
	case flowrecord.TypeString, flowrecord.TypeJSON:
		str, ok := raw.(string)
		if !ok {
			return flowrecord.Field{}, fmt.Errorf("adapter: column %q expects string, got %T", def.Name, raw)
		}
		if def.Type == flowrecord.TypeJSON {
			return flowrecord.NewJSON(str), nil
		}
		return flowrecord.NewString(str), nil
	default:
		return flowrecord.Field{}, fmt.Errorf("adapter: column %q has unsupported replay type %s", def.Name, def.Type)
	}
}
