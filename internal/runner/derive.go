package runner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/NielsdaWheelz/vchain/internal/errors"
	"github.com/NielsdaWheelz/vchain/internal/layer"
)

// IncompleteProofMarkers are words proof tools print for obligations that were
// admitted rather than proved (Lean sorry, Coq admit/Admitted/Abort,
// Isabelle oops, Agda postulate).
var IncompleteProofMarkers = []string{"sorry", "admit", "Admitted", "Abort", "oops", "postulate"}

// IncompleteProofRe matches any of IncompleteProofMarkers as a whole word.
var IncompleteProofRe = markerRegexp(IncompleteProofMarkers)

func markerRegexp(markers []string) *regexp.Regexp {
	quoted := make([]string, len(markers))
	for i, m := range markers {
		quoted[i] = regexp.QuoteMeta(m)
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}

// FindIncompleteMarker returns the first incomplete-obligation marker in
// output, or "" if there is none.
func FindIncompleteMarker(output []byte) string {
	return string(IncompleteProofRe.Find(output))
}

// incompleteMarker returns the marker seen while the tool was streaming its
// output, falling back to a scan of the captured output.
func incompleteMarker(res ExecResult) string {
	if res.Marker != "" {
		return res.Marker
	}
	return FindIncompleteMarker(res.Output)
}

// DeriveStatus computes the layer status using these precedence rules:
//  1. did not start, timed out or cancelled => FAIL
//  2. non-zero exit or killed by signal => FAIL
//  3. proof layer with an incomplete-obligation marker => FAIL (may downgrade
//     success, never upgrades failure)
//  4. else => PASS
func DeriveStatus(l layer.Layer, res ExecResult) layer.Status {
	if res.StartErr != nil || res.TimedOut || res.Cancelled {
		return layer.StatusFail
	}
	if res.ExitCode != 0 || res.Signal != "" {
		return layer.StatusFail
	}
	if l == layer.Proof && incompleteMarker(res) != "" {
		return layer.StatusFail
	}
	return layer.StatusPass
}

// ChainExitCode normalises a layer outcome to the chain's exit code contract.
// Contract tools signal the violated clause through exit codes 1, 2 and 3;
// every other failure is a generic layer failure.
func ChainExitCode(l layer.Layer, status layer.Status, toolExit int) int {
	if status != layer.StatusFail {
		return errors.ExitOK
	}
	if l == layer.Contract {
		switch toolExit {
		case errors.ExitContractPre, errors.ExitContractPost, errors.ExitContractInvariant:
			return toolExit
		}
	}
	return errors.ExitLayerFailed
}

// DeriveSummary returns the one-line reason placed ahead of the tool output.
func DeriveSummary(l layer.Layer, res ExecResult, timeoutDesc string) string {
	switch {
	case res.StartErr != nil:
		return fmt.Sprintf("failed to start: %v", res.StartErr)
	case res.TimedOut:
		return "timed out after " + timeoutDesc
	case res.Cancelled:
		return "cancelled"
	case res.Signal != "":
		return "terminated by " + res.Signal
	case res.ExitCode != 0:
		return fmt.Sprintf("exit %d", res.ExitCode)
	}
	if l == layer.Proof {
		if m := incompleteMarker(res); m != "" {
			return fmt.Sprintf("incomplete proof: found %q in output", m)
		}
	}
	return "ok"
}
