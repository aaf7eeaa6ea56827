// Package events provides the optional chain event log.
// Events are stored in append-only JSONL files, one state transition per line.
package events

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/NielsdaWheelz/vchain/internal/chain"
	"github.com/NielsdaWheelz/vchain/internal/layer"
)

// SchemaVersion is the version of the event line format.
const SchemaVersion = "1.0"

// Event names.
const (
	EventTransition    = "transition"
	EventLayerRecorded = "layer_recorded"
	EventChainFinished = "chain_finished"
)

// Event represents a single event in an events file.
// This is the public contract for the events file format.
type Event struct {
	SchemaVersion string         `json:"schema_version"`
	Timestamp     string         `json:"timestamp"` // RFC3339Nano
	RunID         string         `json:"run_id"`
	Root          string         `json:"root"`
	Event         string         `json:"event"`
	Layer         string         `json:"layer,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
}

// AppendEvent appends a single event to the events file.
// The file is created lazily if it doesn't exist.
// Each event is written as a single JSON line followed by newline.
//
// Best-effort: errors are returned but callers should typically ignore them
// and continue with the main operation.
func AppendEvent(path string, e Event) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}

// TransitionData returns the data map for a transition event.
func TransitionData(from, to chain.State) map[string]any {
	return map[string]any{
		"from": string(from),
		"to":   string(to),
	}
}

// LayerRecordedData returns the data map for a layer_recorded event.
func LayerRecordedData(r layer.Result) map[string]any {
	data := map[string]any{
		"status":         string(r.Status),
		"exit_code":      r.ExitCode,
		"tool_exit_code": r.ToolExitCode,
		"duration_ms":    r.Duration.Milliseconds(),
		"timed_out":      r.TimedOut,
	}
	if r.Tech != "" {
		data["tech"] = r.Tech
	}
	if len(r.Command) > 0 {
		data["command"] = r.Command
	}
	return data
}

// ChainFinishedData returns the data map for a chain_finished event.
// firstFailure is "" when nothing failed.
func ChainFinishedData(exitCode int, firstFailure string, halted bool) map[string]any {
	data := map[string]any{
		"exit_code": exitCode,
		"halted":    halted,
	}
	if firstFailure != "" {
		data["first_failure"] = firstFailure
	}
	return data
}

// Recorder appends the events of one or more concurrent runs to one file.
// Append failures never affect a run; they are collected for the caller.
type Recorder struct {
	Path string
	Now  func() time.Time

	mu   sync.Mutex
	errs []error
}

// NewRecorder returns a Recorder writing to path.
func NewRecorder(path string) *Recorder {
	return &Recorder{Path: path, Now: time.Now}
}

// Append writes e, filling in the schema version and timestamp.
func (r *Recorder) Append(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.SchemaVersion = SchemaVersion
	if e.Timestamp == "" {
		e.Timestamp = r.Now().UTC().Format(time.RFC3339Nano)
	}
	if err := AppendEvent(r.Path, e); err != nil {
		r.errs = append(r.errs, err)
	}
}

// Observer returns a chain observer that logs every transition of one run,
// plus a layer_recorded event for each recorded result.
func (r *Recorder) Observer(runID, root string) chain.Observer {
	return func(t chain.Transition) {
		base := Event{
			RunID:     runID,
			Root:      root,
			Layer:     string(t.Layer),
			Timestamp: t.At.UTC().Format(time.RFC3339Nano),
		}

		tr := base
		tr.Event = EventTransition
		tr.Data = TransitionData(t.From, t.To)
		r.Append(tr)

		if t.To == chain.StateRecorded && t.Result != nil {
			rec := base
			rec.Event = EventLayerRecorded
			rec.Data = LayerRecordedData(*t.Result)
			r.Append(rec)
		}
	}
}

// Finished appends the chain_finished event of one run.
func (r *Recorder) Finished(runID, root string, exitCode int, firstFailure string, halted bool) {
	r.Append(Event{
		RunID: runID,
		Root:  root,
		Event: EventChainFinished,
		Data:  ChainFinishedData(exitCode, firstFailure, halted),
	})
}

// Errors returns the append failures seen so far.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
