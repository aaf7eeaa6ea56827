package events

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/NielsdaWheelz/vchain/internal/chain"
	"github.com/NielsdaWheelz/vchain/internal/config"
	"github.com/NielsdaWheelz/vchain/internal/layer"
	"github.com/NielsdaWheelz/vchain/internal/locate"
	"github.com/NielsdaWheelz/vchain/internal/runner"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	out := make([]Event, 0, len(lines))
	for i, line := range lines {
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("failed to parse line %d: %v", i+1, err)
		}
		out = append(out, e)
	}
	return out
}

func TestAppendEvent(t *testing.T) {
	t.Run("creates file lazily", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "events.jsonl")

		event := Event{
			SchemaVersion: "1.0",
			Timestamp:     "2026-01-10T12:00:00Z",
			RunID:         "run-1",
			Root:          "/repo",
			Event:         EventTransition,
			Layer:         "type",
			Data:          TransitionData(chain.StateLocating, chain.StateRunning),
		}
		if err := AppendEvent(path, event); err != nil {
			t.Fatalf("AppendEvent() error = %v", err)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if !strings.HasSuffix(string(content), "\n") {
			t.Error("expected line to end with newline")
		}
		if strings.Count(string(content), "\n") != 1 {
			t.Error("JSON should be compact (one line)")
		}

		got := readEvents(t, path)[0]
		if got.Layer != "type" {
			t.Errorf("Layer = %q, want %q", got.Layer, "type")
		}
		if got.Data["to"] != "RUNNING" {
			t.Errorf("data.to = %v, want RUNNING", got.Data["to"])
		}
	})

	t.Run("appends and creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "events.jsonl")

		for _, name := range []string{EventTransition, EventChainFinished} {
			if err := AppendEvent(path, Event{SchemaVersion: "1.0", RunID: "r", Event: name}); err != nil {
				t.Fatalf("AppendEvent(%s) error = %v", name, err)
			}
		}

		got := readEvents(t, path)
		if len(got) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(got))
		}
		if got[1].Event != EventChainFinished {
			t.Errorf("event2.Event = %q, want %q", got[1].Event, EventChainFinished)
		}
	})
}

func TestLayerRecordedData(t *testing.T) {
	data := LayerRecordedData(layer.Result{
		Layer:        layer.Contract,
		Status:       layer.StatusFail,
		ExitCode:     2,
		ToolExitCode: 2,
		Duration:     1500 * time.Millisecond,
		Tech:         "python",
		Command:      []string{"pytest", "contracts"},
	})

	if data["status"] != "FAIL" {
		t.Errorf("status = %v, want FAIL", data["status"])
	}
	if data["exit_code"] != 2 {
		t.Errorf("exit_code = %v, want 2", data["exit_code"])
	}
	if data["duration_ms"] != int64(1500) {
		t.Errorf("duration_ms = %v, want 1500", data["duration_ms"])
	}
	if data["tech"] != "python" {
		t.Errorf("tech = %v, want python", data["tech"])
	}
}

func TestChainFinishedData(t *testing.T) {
	t.Run("passed", func(t *testing.T) {
		data := ChainFinishedData(0, "", false)
		if _, ok := data["first_failure"]; ok {
			t.Error("first_failure should not be present")
		}
	})

	t.Run("failed", func(t *testing.T) {
		data := ChainFinishedData(13, "type", true)
		if data["first_failure"] != "type" {
			t.Errorf("first_failure = %v, want type", data["first_failure"])
		}
		if data["halted"] != true {
			t.Errorf("halted = %v, want true", data["halted"])
		}
	})
}

type okExecutor struct{}

func (okExecutor) Exec(context.Context, runner.Command) runner.ExecResult {
	return runner.ExecResult{ExitCode: 0}
}

func TestRecorderObserver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	rec := NewRecorder(path)

	reg := runner.NewRegistry()
	reg.Register(layer.Tests, runner.AnyTech, "true")
	e := &chain.Executor{
		Locator:  locate.NewFS(fstest.MapFS{"a_test.go": &fstest.MapFile{}}),
		Runner:   runner.New("/repo", reg, okExecutor{}),
		Observer: rec.Observer("run-7", "/repo"),
	}
	cfg := config.Default()
	cfg.Order = []layer.Layer{layer.Tests}
	e.Run(context.Background(), "/repo", cfg)
	rec.Finished("run-7", "/repo", 0, "", false)

	if errs := rec.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected append errors: %v", errs)
	}

	got := readEvents(t, path)
	var names []string
	for _, e := range got {
		if e.RunID != "run-7" || e.SchemaVersion != SchemaVersion {
			t.Errorf("bad envelope: %+v", e)
		}
		names = append(names, e.Event)
	}
	want := []string{
		EventTransition,    // PENDING>LOCATING
		EventTransition,    // LOCATING>RUNNING
		EventTransition,    // RUNNING>RECORDED
		EventLayerRecorded, // tests PASS
		EventTransition,    // RECORDED>DONE
		EventChainFinished,
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", names, want)
	}
	if got[3].Data["status"] != "PASS" {
		t.Errorf("layer_recorded status = %v, want PASS", got[3].Data["status"])
	}
}

func TestRecorderConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	rec := NewRecorder(path)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				rec.Append(Event{RunID: "r", Event: EventTransition})
			}
		}()
	}
	wg.Wait()

	if got := len(readEvents(t, path)); got != 80 {
		t.Errorf("lines = %d, want 80", got)
	}
}

func TestRecorderCollectsErrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := NewRecorder(filepath.Join(blocker, "events.jsonl"))
	rec.Append(Event{RunID: "r", Event: EventTransition})

	if len(rec.Errors()) != 1 {
		t.Errorf("expected 1 collected error, got %d", len(rec.Errors()))
	}
}
