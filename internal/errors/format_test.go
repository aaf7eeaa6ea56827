package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

// TestPrintWithOptionsSignature is a compile-time contract test.
func TestPrintWithOptionsSignature(t *testing.T) {
	var fn = (func(io.Writer, error, PrintOptions))(PrintWithOptions)
	_ = fn
}

func TestFormatFirstLinesAreCodeAndMessage(t *testing.T) {
	tests := []struct {
		name string
		code Code
		msg  string
	}{
		{"usage error", EUsage, "bad args"},
		{"layer failed", ELayerFailed, "chain failed at type"},
		{"config", EConfig, "unknown layer \"lint\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := strings.Split(Format(New(tt.code, tt.msg), PrintOptions{}), "\n")
			if len(lines) < 2 {
				t.Fatalf("expected at least two lines, got %q", lines)
			}
			if lines[0] != "error_code: "+string(tt.code) {
				t.Errorf("first line = %q", lines[0])
			}
			if lines[1] != tt.msg {
				t.Errorf("second line = %q, want %q", lines[1], tt.msg)
			}
		})
	}
}

func TestFormatContextKeysInOrder(t *testing.T) {
	err := NewWithDetails(ELayerFailed, "chain failed", map[string]string{
		"exit_code": "13",
		"layer":     "type",
		"root":      "/repo",
	})

	output := Format(err, PrintOptions{})

	rootIdx := strings.Index(output, "root:")
	layerIdx := strings.Index(output, "layer:")
	exitIdx := strings.Index(output, "exit_code:")
	if rootIdx < 0 || layerIdx < 0 || exitIdx < 0 {
		t.Fatalf("missing context keys in output:\n%s", output)
	}
	if !(rootIdx < layerIdx && layerIdx < exitIdx) {
		t.Errorf("context keys out of order:\n%s", output)
	}
}

func TestFormatVerboseRevealsExtras(t *testing.T) {
	err := WrapWithDetails(EConfig, "bad config", errors.New("yaml: line 3"), map[string]string{
		"root":        "/repo",
		"unknown_key": "visible in verbose",
	})

	quiet := Format(err, PrintOptions{})
	if strings.Contains(quiet, "unknown_key") || strings.Contains(quiet, "cause:") {
		t.Errorf("default mode leaked verbose content:\n%s", quiet)
	}

	loud := Format(err, PrintOptions{Verbose: true})
	if !strings.Contains(loud, "extra:\n  unknown_key: visible in verbose") {
		t.Errorf("verbose mode missing extras:\n%s", loud)
	}
	if !strings.Contains(loud, "cause: yaml: line 3") {
		t.Errorf("verbose mode missing cause:\n%s", loud)
	}
}

func TestFormatMultilineValueEscaped(t *testing.T) {
	err := NewWithDetails(EConfig, "x", map[string]string{"order": "a\r\nb\n"})
	output := Format(err, PrintOptions{})
	if !strings.Contains(output, `order: a\nb`) {
		t.Errorf("expected escaped newline, got:\n%s", output)
	}
}

func TestFormatOutputTail(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 30; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	err := NewWithDetails(ELayerFailed, "failed", map[string]string{
		"layer":  "tests",
		"output": sb.String(),
	})

	output := Format(err, PrintOptions{})
	if !strings.Contains(output, "output (last 20 lines):") {
		t.Errorf("expected truncated tail header:\n%s", output)
	}
	if strings.Contains(output, "  line 10\n") {
		t.Error("line 10 should have been dropped from the tail")
	}
	if !strings.Contains(output, "  line 30\n") {
		t.Error("last line missing from tail")
	}

	short := Format(NewWithDetails(ELayerFailed, "failed", map[string]string{"output": "one\ntwo\n"}), PrintOptions{})
	if !strings.Contains(short, "output (2 lines):\n  one\n  two\n") {
		t.Errorf("unexpected short tail:\n%s", short)
	}
}

func TestFormatHintAndTryLines(t *testing.T) {
	err := NewWithDetails(ENoArtifacts, "no verification artifacts found", map[string]string{
		"root": "/repo",
		"hint": "add tests or proofs",
	})
	output := Format(err, PrintOptions{})

	hintIdx := strings.Index(output, "\nhint: add tests or proofs\n")
	tryIdx := strings.Index(output, "try: vchain layers /repo\n")
	if hintIdx < 0 || tryIdx < 0 {
		t.Fatalf("missing hint or try line:\n%s", output)
	}
	if hintIdx > tryIdx {
		t.Error("hint should precede try lines")
	}
	if GetHint(err) != "add tests or proofs" {
		t.Errorf("GetHint() = %q", GetHint(err))
	}
}

func TestFormatPlainError(t *testing.T) {
	if got := Format(errors.New("boom"), PrintOptions{}); got != "boom\n" {
		t.Errorf("Format() = %q", got)
	}
	if got := Format(nil, PrintOptions{}); got != "" {
		t.Errorf("Format(nil) = %q", got)
	}
}

func TestSanitizeValue(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"simple", 256, "simple"},
		{"trailing  \n", 256, "trailing"},
		{"a\nb", 256, `a\nb`},
		{"abcdef", 3, "abc…"},
	}
	for _, tt := range tests {
		if got := sanitizeValue(tt.in, tt.max); got != tt.want {
			t.Errorf("sanitizeValue(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
