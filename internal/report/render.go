package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/NielsdaWheelz/vchain/internal/layer"
)

// DefaultTailLines is the number of output lines shown under a failed layer.
const DefaultTailLines = 20

// Status labels, padded to equal width.
const (
	labelPass    = "PASS"
	labelFail    = "FAIL"
	labelSkip    = "SKIP"
	labelNotRun  = "----"
	notRunReason = "(not run: halted upstream)"
	skipReason   = "(no artifacts)"
)

// RenderOptions controls human output.
type RenderOptions struct {
	// Color enables ANSI styling. Callers enable it only for terminals.
	Color bool

	// TailLines is the number of output lines shown for a failed layer.
	// 0 means DefaultTailLines; negative shows the full captured output.
	TailLines int
}

type styleFunc func(strs ...string) string

type styles struct {
	pass, fail, skip, dim, bold styleFunc
}

// newStyles returns lipgloss styles bound to w, or pass-through functions
// that leave text (tabs included) untouched when color is off.
func newStyles(w io.Writer, color bool) styles {
	if !color {
		plain := func(strs ...string) string { return strings.Join(strs, " ") }
		return styles{pass: plain, fail: plain, skip: plain, dim: plain, bold: plain}
	}
	r := lipgloss.NewRenderer(w)
	return styles{
		pass: r.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true).Render,
		fail: r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true).Render,
		skip: r.NewStyle().Foreground(lipgloss.Color("#999999")).Render,
		dim:  r.NewStyle().Foreground(lipgloss.Color("#A0AEC0")).Render,
		bold: r.NewStyle().Bold(true).Render,
	}
}

// Render writes the human-readable report: one line per configured layer,
// the output tail of failed layers, then the final status line.
//
// Output format:
//
//	proof     SKIP  (no artifacts)
//	type      FAIL  go  1.2s  exit 2
//	          ./main.go:3:1: undefined: x
//	tests     ----  (not run: halted upstream)
//	chain failed at type (exit 13)
func Render(w io.Writer, rep ChainReport, opts RenderOptions) error {
	st := newStyles(w, opts.Color)
	tail := opts.TailLines
	if tail == 0 {
		tail = DefaultTailLines
	}

	nameW := 0
	for _, l := range rep.Order {
		if len(l) > nameW {
			nameW = len(l)
		}
	}
	indent := strings.Repeat(" ", nameW+2)

	var b strings.Builder
	for _, l := range rep.Order {
		name := fmt.Sprintf("%-*s", nameW, l)
		res, ran := rep.Result(l)
		switch {
		case !ran:
			fmt.Fprintf(&b, "%s  %s  %s\n", name, st.dim(labelNotRun), st.dim(notRunReason))
		case res.Status == layer.StatusSkipped:
			fmt.Fprintf(&b, "%s  %s  %s\n", name, st.skip(labelSkip), st.skip(skipReason))
		case res.Status == layer.StatusPass:
			fmt.Fprintf(&b, "%s  %s  %s\n", name, st.pass(labelPass), detail(res))
		default:
			summary, output := splitMessage(res.Message)
			line := detail(res)
			if summary != "" {
				line += "  " + summary
			}
			fmt.Fprintf(&b, "%s  %s  %s\n", name, st.fail(labelFail), line)
			for _, o := range tailLines(output, tail) {
				fmt.Fprintf(&b, "%s%s\n", indent, st.dim(o))
			}
		}
	}
	b.WriteString(st.bold(FinalLine(rep)))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// FinalLine is the one-line verdict of a report.
func FinalLine(rep ChainReport) string {
	switch {
	case rep.FirstFailure != nil:
		return fmt.Sprintf("chain failed at %s (exit %d)", *rep.FirstFailure, rep.ExitCode)
	case rep.Empty:
		return "no verification artifacts found"
	default:
		return "chain passed"
	}
}

func detail(res layer.Result) string {
	parts := make([]string, 0, 2)
	if res.Tech != "" {
		parts = append(parts, res.Tech)
	}
	parts = append(parts, formatDuration(res.Duration))
	return strings.Join(parts, "  ")
}

// formatDuration rounds to a precision that reads well at a glance.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

// splitMessage separates the one-line summary from captured tool output.
func splitMessage(msg string) (string, string) {
	summary, output, _ := strings.Cut(msg, "\n")
	return summary, output
}

func tailLines(s string, n int) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
