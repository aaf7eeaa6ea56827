package runner

import "regexp"

// ansiRe matches terminal escape sequences: CSI (ESC [ ... final), OSC
// terminated by BEL or ESC \, DCS/PM/APC strings, two-byte escapes and a
// dangling ESC at the end of the input.
var ansiRe = regexp.MustCompile(
	`\x1b\[[0-9;:<=>?]*[ -/]*[@-~]` +
		`|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)?` +
		`|\x1b[PX^_][^\x1b]*\x1b\\` +
		`|\x1b.` +
		`|\x1b\[?$`,
)

// StripANSI removes terminal escape sequences from captured tool output so
// that reports stay readable when a tool colors its output regardless of
// whether stdout is a terminal.
func StripANSI(s string) string {
	if s == "" {
		return s
	}
	return ansiRe.ReplaceAllString(s, "")
}
