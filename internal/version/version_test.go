package version

import "testing"

func TestFullVersion(t *testing.T) {
	origVersion, origCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = origVersion, origCommit })

	tests := []struct {
		version, commit, want string
	}{
		{"dev", "", "dev"},
		{"v0.3.1", "", "v0.3.1"},
		{"v0.3.1", "abc1234", "v0.3.1 (commit abc1234)"},
	}
	for _, tt := range tests {
		Version, Commit = tt.version, tt.commit
		if got := FullVersion(); got != tt.want {
			t.Errorf("FullVersion() with (%q, %q) = %q, want %q", tt.version, tt.commit, got, tt.want)
		}
	}
}
