// Package errors provides error formatting for vchain CLI output.
package errors

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// PrintOptions controls error output formatting.
type PrintOptions struct {
	// Verbose enables detailed error output with more context keys and longer tails.
	Verbose bool
}

// Context key whitelist (default mode, in order).
var defaultContextKeys = []string{
	"op",
	"root",
	"config",
	"layer",
	"order",
	"exit_code",
	"duration",
	"record",
}

// Additional context keys for verbose mode.
var verboseContextKeys = []string{
	"op",
	"root",
	"config",
	"layer",
	"tech",
	"order",
	"command",
	"exit_code",
	"tool_exit_code",
	"duration",
	"duration_ms",
	"timed_out",
	"record",
	"events",
	"run_id",
}

// Truncation limits.
const (
	defaultMaxLines = 20
	verboseMaxLines = 100

	maxValueLen      = 256
	maxExtraValueLen = 128
	maxOutputLineLen = 512
)

// Format formats an error for display without I/O.
func Format(err error, opts PrintOptions) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	ve, ok := AsVChainError(err)
	if !ok {
		sb.WriteString(err.Error())
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString("error_code: ")
	sb.WriteString(string(ve.Code))
	sb.WriteString("\n")
	sb.WriteString(ve.Msg)
	sb.WriteString("\n")

	contextKeys := defaultContextKeys
	if opts.Verbose {
		contextKeys = verboseContextKeys
	}

	printedKeys := make(map[string]bool)
	var ctx strings.Builder
	for _, key := range contextKeys {
		val, ok := ve.Details[key]
		if !ok || val == "" {
			continue
		}
		printedKeys[key] = true
		ctx.WriteString(key)
		ctx.WriteString(": ")
		ctx.WriteString(sanitizeValue(val, maxValueLen))
		ctx.WriteString("\n")
	}

	if opts.Verbose && ve.Cause != nil {
		ctx.WriteString("cause: ")
		ctx.WriteString(sanitizeValue(ve.Cause.Error(), maxValueLen))
		ctx.WriteString("\n")
	}

	if ctx.Len() > 0 {
		sb.WriteString("\n")
		sb.WriteString(ctx.String())
	}

	// In verbose mode, print extra keys under extra: section
	if opts.Verbose {
		var extraKeys []string
		for key, val := range ve.Details {
			if printedKeys[key] || key == "hint" || key == "output" || val == "" {
				continue
			}
			extraKeys = append(extraKeys, key)
		}
		if len(extraKeys) > 0 {
			sort.Strings(extraKeys)
			sb.WriteString("\nextra:\n")
			for _, key := range extraKeys {
				sb.WriteString("  ")
				sb.WriteString(key)
				sb.WriteString(": ")
				sb.WriteString(sanitizeValue(ve.Details[key], maxExtraValueLen))
				sb.WriteString("\n")
			}
		}
	}

	if out := ve.Details["output"]; out != "" {
		maxLines := defaultMaxLines
		if opts.Verbose {
			maxLines = verboseMaxLines
		}
		sb.WriteString(outputBlock(tailLines(out, maxLines), maxLines))
	}

	if hint := ve.Details["hint"]; hint != "" {
		sb.WriteString("\nhint: ")
		sb.WriteString(hint)
		sb.WriteString("\n")
	}

	for _, try := range deriveTryLines(ve) {
		sb.WriteString("try: ")
		sb.WriteString(try)
		sb.WriteString("\n")
	}

	return sb.String()
}

// PrintWithOptions writes a formatted error to w with the given options.
func PrintWithOptions(w io.Writer, err error, opts PrintOptions) {
	if err == nil {
		return
	}
	_, _ = io.WriteString(w, Format(err, opts))
}

// sanitizeValue flattens a value onto a single line:
// trailing whitespace trimmed, CRLF normalised, newlines escaped, truncated to maxLen.
func sanitizeValue(val string, maxLen int) string {
	val = strings.TrimRight(val, " \t\r\n")
	val = strings.ReplaceAll(val, "\r\n", "\n")
	val = strings.ReplaceAll(val, "\n", "\\n")
	if len(val) > maxLen {
		return val[:maxLen] + "…"
	}
	return val
}

// tailLines returns the last maxLines lines of s, each truncated to maxOutputLineLen.
func tailLines(s string, maxLines int) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	for i, line := range lines {
		if len(line) > maxOutputLineLen {
			line = line[:maxOutputLineLen] + "…"
		}
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return lines
}

func outputBlock(lines []string, maxLines int) string {
	if len(lines) == 0 {
		return ""
	}
	var block strings.Builder
	if len(lines) >= maxLines {
		block.WriteString(fmt.Sprintf("\noutput (last %d lines):\n", len(lines)))
	} else {
		block.WriteString(fmt.Sprintf("\noutput (%d lines):\n", len(lines)))
	}
	for _, line := range lines {
		block.WriteString("  ")
		block.WriteString(line)
		block.WriteString("\n")
	}
	return block.String()
}

// deriveTryLines returns actionable suggestions based on error code.
func deriveTryLines(ve *VChainError) []string {
	if ve == nil {
		return nil
	}

	var lines []string
	root := ve.Details["root"]
	if root == "" {
		root = "."
	}

	switch ve.Code {
	case EConfig:
		lines = append(lines, "vchain layers "+root)
	case ENoArtifacts:
		lines = append(lines, "vchain layers "+root)
		lines = append(lines, "vchain run --allow-empty "+root)
	case ELayerFailed, EContractPre, EContractPost, EContractInvariant:
		if l := ve.Details["layer"]; l != "" {
			lines = append(lines, fmt.Sprintf("vchain run --order %s %s", l, root))
		}
	case EToolNotRegistered, EToolNotFound:
		lines = append(lines, "vchain doctor "+root)
	}

	return lines
}

// GetHint extracts the hint from an error's details, if present.
func GetHint(err error) string {
	ve, ok := AsVChainError(err)
	if !ok {
		return ""
	}
	return ve.Details["hint"]
}
