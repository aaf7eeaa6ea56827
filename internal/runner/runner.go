// Package runner invokes the external verification tool registered for a
// layer and turns what it observed into a layer.Result.
package runner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NielsdaWheelz/vchain/internal/layer"
	"github.com/NielsdaWheelz/vchain/internal/locate"
)

// Runner runs layers for one target root.
type Runner struct {
	root     string
	registry *Registry
	exec     Executor
	logger   *zap.Logger
	env      []string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithEnv sets the environment passed to tools. nil inherits the parent's.
func WithEnv(env []string) Option {
	return func(r *Runner) { r.env = env }
}

// New returns a Runner executing tools in root.
func New(root string, registry *Registry, executor Executor, opts ...Option) *Runner {
	r := &Runner{
		root:     root,
		registry: registry,
		exec:     executor,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes layer l against artifacts, bounded by timeout.
// Verification failures are reported in the Result, never as an error.
func (r *Runner) Run(ctx context.Context, l layer.Layer, artifacts locate.ArtifactSet, timeout time.Duration) layer.Result {
	if !artifacts.Present {
		return layer.Result{
			Layer:        l,
			Status:       layer.StatusSkipped,
			ToolExitCode: -1,
			Message:      "no artifacts",
		}
	}

	tmpl, ok := r.registry.Lookup(l, artifacts.Tech)
	if !ok {
		return layer.Result{
			Layer:        l,
			Status:       layer.StatusFail,
			ExitCode:     ChainExitCode(l, layer.StatusFail, -1),
			ToolExitCode: -1,
			Tech:         artifacts.Tech,
			Message:      fmt.Sprintf("no command registered for %s/%s", l, artifacts.Tech),
		}
	}

	argv := tmpl.Expand(r.root, artifacts.Paths)
	log := r.logger.With(
		zap.String("layer", string(l)),
		zap.String("tech", artifacts.Tech),
		zap.Strings("argv", argv),
	)
	log.Debug("layer command starting", zap.Duration("timeout", timeout))

	cmd := Command{
		Argv:    argv,
		Dir:     r.root,
		Env:     r.env,
		Timeout: timeout,
	}
	if l == layer.Proof {
		cmd.Scan = IncompleteProofRe
	}
	res := r.exec.Exec(ctx, cmd)

	status := DeriveStatus(l, res)
	summary := DeriveSummary(l, res, timeout.String())

	switch {
	case res.TimedOut:
		log.Warn("layer command timed out", zap.Duration("timeout", timeout))
	case res.StartErr != nil:
		log.Warn("layer command failed to start", zap.Error(res.StartErr))
	default:
		log.Debug("layer command finished",
			zap.Int("exit_code", res.ExitCode),
			zap.String("status", string(status)),
			zap.Duration("duration", res.Duration))
	}

	return layer.Result{
		Layer:        l,
		Status:       status,
		ExitCode:     ChainExitCode(l, status, res.ExitCode),
		ToolExitCode: res.ExitCode,
		Message:      composeMessage(summary, res.Output),
		Duration:     res.Duration,
		DurationMS:   res.Duration.Milliseconds(),
		Tech:         artifacts.Tech,
		Command:      argv,
		TimedOut:     res.TimedOut,
	}
}

func composeMessage(summary string, output []byte) string {
	out := strings.TrimRight(StripANSI(string(output)), "\n")
	if out == "" {
		return summary
	}
	return summary + "\n" + out
}

// ToolStatus describes whether a registered command resolves on this host.
type ToolStatus struct {
	Layer   layer.Layer
	Tech    string
	Command string
	Path    string
	Err     error
	Missing bool // no registration for the detected technology
}

// CheckTool reports whether the command for (l, tech) is registered and its
// executable can be found on PATH.
func (r *Registry) CheckTool(l layer.Layer, tech string) ToolStatus {
	st := ToolStatus{Layer: l, Tech: tech}
	tmpl, ok := r.Lookup(l, tech)
	if !ok || len(tmpl.Argv) == 0 {
		st.Missing = true
		return st
	}
	st.Command = tmpl.String()
	st.Path, st.Err = exec.LookPath(tmpl.Argv[0])
	return st
}
