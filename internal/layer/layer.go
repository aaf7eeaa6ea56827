// Package layer defines the verification layers of a chain and the result
// record produced when one of them runs.
package layer

import (
	"fmt"
	"strings"
	"time"
)

// Layer is one stage of the verification chain.
type Layer string

// Known layers, in canonical order.
const (
	Proof    Layer = "proof"
	Spec     Layer = "spec"
	Type     Layer = "type"
	Contract Layer = "contract"
	Tests    Layer = "tests"
)

var canonical = []Layer{Proof, Spec, Type, Contract, Tests}

// Canonical returns the default chain order. The returned slice is a copy.
func Canonical() []Layer {
	out := make([]Layer, len(canonical))
	copy(out, canonical)
	return out
}

// Known reports whether l is one of the five known layers.
func (l Layer) Known() bool {
	for _, c := range canonical {
		if c == l {
			return true
		}
	}
	return false
}

func (l Layer) String() string {
	return string(l)
}

// UnknownLayerError is returned by Parse for a name that is not a known layer.
type UnknownLayerError struct {
	Name string
}

func (e *UnknownLayerError) Error() string {
	return fmt.Sprintf("unknown layer %q (known: %s)", e.Name, strings.Join(Names(), ", "))
}

// Parse converts a layer name to a Layer. Matching is case-insensitive and
// ignores surrounding whitespace.
func Parse(name string) (Layer, error) {
	l := Layer(strings.ToLower(strings.TrimSpace(name)))
	if !l.Known() {
		return "", &UnknownLayerError{Name: strings.TrimSpace(name)}
	}
	return l, nil
}

// ParseList parses a comma-separated order such as "type,tests".
// Empty elements (e.g. "type,,tests") are rejected as malformed.
func ParseList(s string) ([]Layer, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty layer list")
	}
	parts := strings.Split(s, ",")
	out := make([]Layer, 0, len(parts))
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("malformed layer list %q: empty element at position %d", s, i+1)
		}
		l, err := Parse(p)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// Names returns the canonical layer names.
func Names() []string {
	names := make([]string, len(canonical))
	for i, l := range canonical {
		names[i] = string(l)
	}
	return names
}

// Status is the outcome of running one layer.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusSkipped Status = "SKIPPED"
)

// Result is the immutable outcome of running one layer in one chain run.
type Result struct {
	Layer  Layer  `json:"layer"`
	Status Status `json:"status"`

	// ExitCode is the chain-level exit code this layer contributes:
	// 0 for PASS and SKIPPED, 1/2/3 for contract violations, 13 otherwise.
	ExitCode int `json:"exit_code"`

	// ToolExitCode is the raw exit code reported by the external tool.
	// -1 when the tool never produced one (not started, timed out, skipped).
	ToolExitCode int `json:"tool_exit_code"`

	// Message is the combined tool output, or the skip/failure reason.
	Message string `json:"message"`

	Duration time.Duration `json:"-"`
	// DurationMS mirrors Duration for the JSON record.
	DurationMS int64 `json:"duration_ms"`

	Tech     string   `json:"tech,omitempty"`
	Command  []string `json:"command,omitempty"`
	TimedOut bool     `json:"timed_out,omitempty"`
}

// Failed reports whether the result is a FAIL.
func (r Result) Failed() bool {
	return r.Status == StatusFail
}
