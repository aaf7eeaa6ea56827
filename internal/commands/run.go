package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NielsdaWheelz/vchain/internal/chain"
	"github.com/NielsdaWheelz/vchain/internal/config"
	"github.com/NielsdaWheelz/vchain/internal/errors"
	"github.com/NielsdaWheelz/vchain/internal/events"
	"github.com/NielsdaWheelz/vchain/internal/fs"
	"github.com/NielsdaWheelz/vchain/internal/report"
	"github.com/NielsdaWheelz/vchain/internal/runner"
	"github.com/NielsdaWheelz/vchain/internal/watch"
)

// RunOpts holds options for the run command.
type RunOpts struct {
	// Paths are the target roots (empty = current directory).
	Paths []string

	// ConfigPath is an explicit vchain.yaml applied to every target.
	ConfigPath string

	Overrides config.Overrides

	// JSON writes the report(s) as JSON to stdout instead of text.
	JSON bool

	// RecordPath, if set, receives the report(s) as a JSON file.
	RecordPath string

	// EventsPath, if set, receives every state transition as JSONL.
	EventsPath string

	// Watch re-runs the chain whenever files under the target change.
	Watch bool

	// Verbose shows full captured output for failed layers.
	Verbose bool
}

// Run executes the verification chain for every target and writes the
// consolidated report(s).
//
// Targets run concurrently; output is written in argument order. The returned
// error carries the exit code of the first target (in argument order) whose
// chain did not pass.
func Run(ctx context.Context, d Deps, opts RunOpts, stdout, stderr io.Writer) error {
	d = d.withDefaults()
	paths := opts.Paths
	if len(paths) == 0 {
		paths = []string{"."}
	}

	if opts.Watch {
		if len(paths) != 1 {
			return errors.New(errors.EUsage, "--watch takes exactly one target")
		}
		return runWatch(ctx, d, paths[0], opts, stdout, stderr)
	}

	reports, err := runOnce(ctx, d, paths, opts, stdout, stderr)
	if err != nil {
		return err
	}
	return chainError(reports, opts)
}

// runOnce resolves every target, runs them and writes the output. Only
// configuration and persistence problems are returned as errors.
func runOnce(ctx context.Context, d Deps, paths []string, opts RunOpts, stdout, stderr io.Writer) ([]report.ChainReport, error) {
	// Configuration errors are fatal before anything runs.
	targets := make([]*target, len(paths))
	for i, p := range paths {
		t, err := resolveTarget(d, p, opts.ConfigPath, opts.Overrides)
		if err != nil {
			return nil, err
		}
		targets[i] = t
	}

	var rec *events.Recorder
	if opts.EventsPath != "" {
		rec = events.NewRecorder(opts.EventsPath)
	}

	reports := make([]report.ChainReport, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			reports[i] = runTarget(ctx, d, t, rec)
			return nil
		})
	}
	_ = g.Wait()

	if rec != nil {
		for _, err := range rec.Errors() {
			d.Logger.Warn("failed to append event", zap.String("events", opts.EventsPath), zap.Error(err))
		}
	}

	if err := writeReports(reports, d, opts, stdout); err != nil {
		return nil, err
	}
	if opts.RecordPath != "" {
		if err := recordReports(d.FS, opts.RecordPath, reports); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

func runTarget(ctx context.Context, d Deps, t *target, rec *events.Recorder) report.ChainReport {
	runID := d.NewRunID()
	log := d.Logger.With(zap.String("run_id", runID))

	ex := &chain.Executor{
		Locator: t.Locator,
		Runner:  runner.New(t.Root, t.Registry, d.Executor, runner.WithLogger(log)),
		Logger:  log,
	}
	if rec != nil {
		ex.Observer = rec.Observer(runID, t.Root)
	}

	out := ex.Run(ctx, t.Root, t.Config)
	rep := report.Summarize(runID, t.Root, out.Order, out.Results, t.Config.AllowEmpty)

	if rec != nil {
		first := ""
		if rep.FirstFailure != nil {
			first = string(*rep.FirstFailure)
		}
		rec.Finished(runID, t.Root, rep.ExitCode, first, rep.Halted)
	}
	return rep
}

func writeReports(reports []report.ChainReport, d Deps, opts RunOpts, stdout io.Writer) error {
	if opts.JSON {
		var v any = reports
		if len(reports) == 1 {
			v = reports[0]
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(errors.EInternal, "failed to write JSON report", err)
		}
		return nil
	}

	ropts := report.RenderOptions{Color: d.Color}
	if opts.Verbose {
		ropts.TailLines = -1
	}
	for i, rep := range reports {
		if len(reports) > 1 {
			if i > 0 {
				_, _ = fmt.Fprintln(stdout)
			}
			_, _ = fmt.Fprintf(stdout, "%s\n", rep.Root)
		}
		if err := report.Render(stdout, rep, ropts); err != nil {
			return errors.Wrap(errors.EInternal, "failed to write report", err)
		}
	}
	return nil
}

func recordReports(fsys fs.FS, path string, reports []report.ChainReport) error {
	if len(reports) == 1 {
		return report.WriteJSON(fsys, path, reports[0])
	}
	if err := fs.WriteJSONAtomic(fsys, path, reports, 0o644); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to write report", err,
			map[string]string{"record": path})
	}
	return nil
}

// chainError converts the first non-passing report into an error carrying
// the chain exit code.
func chainError(reports []report.ChainReport, opts RunOpts) error {
	for _, rep := range reports {
		if rep.Passed() {
			continue
		}
		details := map[string]string{
			"root":      rep.Root,
			"run_id":    rep.RunID,
			"exit_code": fmt.Sprintf("%d", rep.ExitCode),
		}
		if opts.RecordPath != "" {
			details["record"] = opts.RecordPath
		}
		if opts.EventsPath != "" {
			details["events"] = opts.EventsPath
		}
		msg := report.FinalLine(rep)
		if rep.FirstFailure != nil {
			details["layer"] = string(*rep.FirstFailure)
			if res, ok := rep.Result(*rep.FirstFailure); ok {
				if len(res.Command) > 0 {
					details["command"] = strings.Join(res.Command, " ")
				}
				details["tech"] = res.Tech
			}
		}
		return errors.WithExitCode(
			errors.NewWithDetails(errors.CodeForExit(rep.ExitCode), msg, details),
			rep.ExitCode,
		)
	}
	return nil
}

// runWatch runs the chain for one target and again after every change
// until ctx is done. Configuration errors are reported and the watch goes on.
func runWatch(ctx context.Context, d Deps, path string, opts RunOpts, stdout, stderr io.Writer) error {
	root, err := resolveRoot(path)
	if err != nil {
		return err
	}

	ignored := map[string]bool{}
	for _, p := range []string{opts.RecordPath, opts.EventsPath} {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			ignored[abs] = true
		}
	}

	w, err := watch.New(root,
		watch.WithLogger(d.Logger),
		watch.WithIgnore(func(p string) bool { return ignored[p] }),
	)
	if err != nil {
		return errors.WrapWithDetails(errors.EInternal, "failed to watch target", err,
			map[string]string{"root": root})
	}

	var last error
	err = w.Run(ctx, func(ctx context.Context) {
		reports, err := runOnce(ctx, d, []string{root}, opts, stdout, stderr)
		if err != nil {
			errors.PrintWithOptions(stderr, err, errors.PrintOptions{Verbose: opts.Verbose})
			last = err
			return
		}
		last = chainError(reports, opts)
		_, _ = fmt.Fprintf(stderr, "watching %s for changes (ctrl-c to stop)\n", root)
	})
	if err != nil {
		return errors.Wrap(errors.EInternal, "watch failed", err)
	}
	return last
}
