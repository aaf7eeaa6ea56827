package cobra

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NielsdaWheelz/vchain/internal/errors"
)

// executeCmd runs the root command with the given args and returns stdout, stderr, and error.
func executeCmd(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	rootCmd := NewRootCmd()
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeProject creates a temp dir containing files.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRoot_Help(t *testing.T) {
	tests := []string{"--help", "-h"}
	for _, arg := range tests {
		t.Run(arg, func(t *testing.T) {
			stdout, _, err := executeCmd(arg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(stdout, "vchain") {
				t.Error("expected 'vchain' in help output")
			}
			for _, cmd := range []string{"run", "layers", "doctor", "version"} {
				if !strings.Contains(stdout, cmd) {
					t.Errorf("expected '%s' command in help output", cmd)
				}
			}
		})
	}
}

func TestRoot_Version(t *testing.T) {
	tests := []string{"--version", "-v", "version"}
	for _, arg := range tests {
		t.Run(arg, func(t *testing.T) {
			stdout, _, err := executeCmd(arg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(stdout, "vchain") {
				t.Error("expected 'vchain' in version output")
			}
		})
	}
}

func TestRoot_UnknownCommand(t *testing.T) {
	_, _, err := executeCmd("nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected 'unknown command' in error, got: %v", err)
	}
}

func TestUsageError(t *testing.T) {
	tests := [][]string{
		{"nonexistent"},
		{"run", "--no-such-flag"},
		{"layers", "a", "b"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, _, err := executeCmd(args...)
			err = usageError(err)
			if errors.GetCode(err) != errors.EUsage {
				t.Errorf("code = %q, want %q (err=%v)", errors.GetCode(err), errors.EUsage, err)
			}
			if errors.ExitCode(err) != errors.ExitUsage {
				t.Errorf("exit code = %d, want %d", errors.ExitCode(err), errors.ExitUsage)
			}
		})
	}

	// Errors produced by commands keep their own code.
	dir := writeProject(t, map[string]string{"README.md": "hello\n"})
	_, _, err := executeCmd("run", dir)
	if got := errors.GetCode(usageError(err)); got != errors.ENoArtifacts {
		t.Errorf("code = %q, want %q", got, errors.ENoArtifacts)
	}
}

func TestRunCmd_Help(t *testing.T) {
	stdout, _, err := executeCmd("run", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, flag := range []string{"--order", "--stop-on-fail", "--all-errors", "--timeout", "--allow-empty", "--config", "--json", "--record", "--events", "--watch"} {
		if !strings.Contains(stdout, flag) {
			t.Errorf("expected '%s' in run help output", flag)
		}
	}
}

func TestRunCmd_NoArtifacts(t *testing.T) {
	dir := writeProject(t, map[string]string{"README.md": "hello\n"})

	stdout, _, err := executeCmd("run", dir)
	if got := errors.ExitCode(err); got != errors.ExitNoArtifacts {
		t.Fatalf("exit code = %d, want %d (err=%v)", got, errors.ExitNoArtifacts, err)
	}
	if !strings.Contains(stdout, "no verification artifacts found") {
		t.Errorf("stdout = %q", stdout)
	}

	_, _, err = executeCmd("run", "--allow-empty", dir)
	if err != nil {
		t.Fatalf("--allow-empty: unexpected error: %v", err)
	}
}

func TestRunCmd_ConflictingGating(t *testing.T) {
	dir := writeProject(t, map[string]string{"README.md": "hello\n"})

	_, _, err := executeCmd("run", "--stop-on-fail", "--all-errors", dir)
	if errors.GetCode(err) != errors.EConfig {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.EConfig)
	}
	if errors.ExitCode(err) != errors.ExitConfig {
		t.Errorf("exit code = %d, want %d", errors.ExitCode(err), errors.ExitConfig)
	}
}

func TestRunCmd_InvalidTimeout(t *testing.T) {
	dir := writeProject(t, map[string]string{"README.md": "hello\n"})

	_, _, err := executeCmd("run", "--timeout", "tests=soon", dir)
	if errors.GetCode(err) != errors.EConfig {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.EConfig)
	}
}

func TestRunCmd_InvalidTarget(t *testing.T) {
	_, _, err := executeCmd("run", filepath.Join(t.TempDir(), "missing"))
	if errors.GetCode(err) != errors.EInvalidTarget {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.EInvalidTarget)
	}
}

func TestRunCmd_ExecutesRegisteredTool(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"a_test.go":   "package a\n",
		"vchain.yaml": "tools:\n  - layer: tests\n    tech: go\n    command: [sh, -c, \"echo boom; exit 1\"]\n",
	})

	stdout, _, err := executeCmd("run", "--verbose", dir)
	if got := errors.ExitCode(err); got != errors.ExitLayerFailed {
		t.Fatalf("exit code = %d, want %d (err=%v)", got, errors.ExitLayerFailed, err)
	}
	if !strings.Contains(stdout, "boom") {
		t.Errorf("expected tool output in report, got %q", stdout)
	}
	if !strings.Contains(stdout, "chain failed at tests (exit 13)") {
		t.Errorf("expected final line, got %q", stdout)
	}
}

func TestLayersCmd_JSON(t *testing.T) {
	dir := writeProject(t, map[string]string{"go.mod": "module x\n"})

	stdout, _, err := executeCmd("layers", "--json", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var infos []struct {
		Layer   string `json:"layer"`
		Present bool   `json:"present"`
	}
	if err := json.Unmarshal([]byte(stdout), &infos); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if len(infos) != 5 {
		t.Fatalf("got %d layers, want 5", len(infos))
	}
	if infos[2].Layer != "type" || !infos[2].Present {
		t.Errorf("type layer = %+v, want present", infos[2])
	}
}

func TestLayersCmd_TooManyArgs(t *testing.T) {
	_, _, err := executeCmd("layers", "a", "b")
	if err == nil {
		t.Fatal("expected error for two paths")
	}
	if !strings.Contains(err.Error(), "accepts at most 1 arg") {
		t.Errorf("expected arg count error, got: %v", err)
	}
}

func TestDoctorCmd_Help(t *testing.T) {
	stdout, _, err := executeCmd("doctor", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "doctor") {
		t.Error("expected 'doctor' in help output")
	}
	if !strings.Contains(stdout, "--config") {
		t.Error("expected '--config' flag in help output")
	}
}

// TestDoctorCmd_DefaultsToCwd tests that doctor with no argument inspects the working directory.
func TestDoctorCmd_DefaultsToCwd(t *testing.T) {
	// Save and restore cwd
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get cwd: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(originalWd); err != nil {
			t.Errorf("failed to restore cwd: %v", err)
		}
	})

	dir := writeProject(t, map[string]string{"README.md": "hello\n"})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}

	stdout, _, err := executeCmd("doctor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "status: ok") {
		t.Errorf("stdout = %q", stdout)
	}
}
