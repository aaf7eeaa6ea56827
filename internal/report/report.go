// Package report summarizes a chain run into its consolidated result and
// renders it for humans or as JSON.
package report

import (
	"github.com/NielsdaWheelz/vchain/internal/errors"
	"github.com/NielsdaWheelz/vchain/internal/fs"
	"github.com/NielsdaWheelz/vchain/internal/layer"
)

// SchemaVersion is the version of the JSON report format.
const SchemaVersion = "1.0"

// ChainReport is the consolidated result of one chain run.
// This is the public contract for `vchain run --json` and --record files.
type ChainReport struct {
	SchemaVersion string `json:"schema_version"`
	RunID         string `json:"run_id"`
	Root          string `json:"root"`

	// Order is the configured layer order.
	Order []layer.Layer `json:"order"`

	// Results are in execution order and may be shorter than Order.
	Results []layer.Result `json:"results"`

	ExitCode     int          `json:"exit_code"`
	FirstFailure *layer.Layer `json:"first_failure,omitempty"`
	Halted       bool         `json:"halted"`

	// Empty is true when every configured layer was skipped.
	Empty bool `json:"empty"`
}

// Summarize derives the chain exit code from results.
//
//   - 0 when every result is PASS or SKIPPED
//   - the ExitCode of the first FAIL in execution order otherwise
//   - 11 when every configured layer was SKIPPED, unless allowEmpty
func Summarize(runID, root string, order []layer.Layer, results []layer.Result, allowEmpty bool) ChainReport {
	rep := ChainReport{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		Root:          root,
		Order:         append([]layer.Layer{}, order...),
		Results:       append([]layer.Result{}, results...),
		ExitCode:      errors.ExitOK,
		Halted:        len(results) < len(order),
	}

	for i := range rep.Results {
		if rep.Results[i].Failed() {
			l := rep.Results[i].Layer
			rep.FirstFailure = &l
			rep.ExitCode = rep.Results[i].ExitCode
			return rep
		}
	}

	rep.Empty = len(order) > 0 && len(results) == len(order) && allSkipped(results)
	if rep.Empty && !allowEmpty {
		rep.ExitCode = errors.ExitNoArtifacts
	}
	return rep
}

func allSkipped(results []layer.Result) bool {
	for _, r := range results {
		if r.Status != layer.StatusSkipped {
			return false
		}
	}
	return true
}

// Passed reports whether the chain succeeded.
func (r ChainReport) Passed() bool {
	return r.ExitCode == errors.ExitOK
}

// Result returns the recorded result for l, if l ran.
func (r ChainReport) Result(l layer.Layer) (layer.Result, bool) {
	for _, res := range r.Results {
		if res.Layer == l {
			return res, true
		}
	}
	return layer.Result{}, false
}

// WriteJSON writes the report atomically to path.
func WriteJSON(fsys fs.FS, path string, r ChainReport) error {
	if err := fs.WriteJSONAtomic(fsys, path, r, 0o644); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to write report", err,
			map[string]string{"path": path})
	}
	return nil
}
