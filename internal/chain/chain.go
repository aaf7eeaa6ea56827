// Package chain runs the configured verification layers in order, gating each
// on the outcome of the ones before it.
package chain

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NielsdaWheelz/vchain/internal/config"
	"github.com/NielsdaWheelz/vchain/internal/layer"
	"github.com/NielsdaWheelz/vchain/internal/locate"
	"github.com/NielsdaWheelz/vchain/internal/runner"
)

// State is a step of the orchestrator state machine.
type State string

const (
	StatePending   State = "PENDING"
	StateLocating  State = "LOCATING"
	StateRunning   State = "RUNNING"
	StateRecorded  State = "RECORDED"
	StateAdvancing State = "ADVANCING"
	StateHalted    State = "HALTED"
	StateDone      State = "DONE"
)

// Transition is one state change, delivered to the Observer.
type Transition struct {
	From  State
	To    State
	Layer layer.Layer // empty for PENDING and DONE transitions
	At    time.Time

	// Result is set on RECORDED transitions.
	Result *layer.Result
}

// Observer receives every transition of a run, synchronously and in order.
type Observer func(Transition)

// Locator finds a layer's artifacts. *locate.Locator implements it.
type Locator interface {
	Locate(l layer.Layer) (locate.ArtifactSet, error)
}

// LayerRunner runs one layer. *runner.Runner implements it.
type LayerRunner interface {
	Run(ctx context.Context, l layer.Layer, artifacts locate.ArtifactSet, timeout time.Duration) layer.Result
}

var (
	_ Locator     = (*locate.Locator)(nil)
	_ LayerRunner = (*runner.Runner)(nil)
)

// Executor drives one chain run. It holds no per-run state and may be reused.
type Executor struct {
	Locator  Locator
	Runner   LayerRunner
	Logger   *zap.Logger
	Observer Observer
	Now      func() time.Time
}

// Outcome is what a run produced.
type Outcome struct {
	Root string

	// Order is the configured order.
	Order []layer.Layer

	// Results are in execution order. Under stop-on-fail they end at the
	// first failing layer.
	Results []layer.Result

	// Halted is true when layers were left unrun because of a failure or
	// cancellation.
	Halted bool

	Final State
}

// Run executes cfg.Order against root. It never returns an error: every
// verification or execution problem is recorded as a FAIL result.
func (e *Executor) Run(ctx context.Context, root string, cfg config.ChainConfig) Outcome {
	log := e.logger().With(zap.String("root", root))
	out := Outcome{
		Root:    root,
		Order:   append([]layer.Layer(nil), cfg.Order...),
		Results: make([]layer.Result, 0, len(cfg.Order)),
	}

	state := StatePending
	move := func(to State, l layer.Layer, res *layer.Result) {
		e.observe(Transition{From: state, To: to, Layer: l, At: e.now(), Result: res})
		state = to
	}

	log.Debug("chain starting",
		zap.Strings("order", cfg.OrderNames()),
		zap.Bool("stop_on_fail", cfg.StopOnFail))

	for i, l := range cfg.Order {
		move(StateLocating, l, nil)
		set, result, ok := e.locate(l)
		if ok {
			if set.Present {
				move(StateRunning, l, nil)
			}
			result = e.run(ctx, l, set, cfg.Timeout(l))
		}
		out.Results = append(out.Results, result)
		move(StateRecorded, l, &result)

		log.Debug("layer recorded",
			zap.String("layer", string(l)),
			zap.String("status", string(result.Status)),
			zap.Int("exit_code", result.ExitCode))

		last := i == len(cfg.Order)-1
		cancelled := ctx.Err() != nil
		if (result.Failed() && cfg.StopOnFail) || (cancelled && !last) {
			out.Halted = true
			move(StateHalted, l, nil)
			if cancelled {
				log.Warn("chain cancelled", zap.String("layer", string(l)))
			} else {
				log.Info("chain halted", zap.String("layer", string(l)))
			}
			break
		}
		if !last {
			move(StateAdvancing, l, nil)
		}
	}

	move(StateDone, "", nil)
	out.Final = StateDone
	return out
}

// locate returns ok=false with a FAIL result when the layer's artifacts
// could not be determined.
func (e *Executor) locate(l layer.Layer) (locate.ArtifactSet, layer.Result, bool) {
	set, err := e.Locator.Locate(l)
	if err != nil {
		e.logger().Warn("artifact scan failed", zap.String("layer", string(l)), zap.Error(err))
		return set, layer.Result{
			Layer:        l,
			Status:       layer.StatusFail,
			ExitCode:     runner.ChainExitCode(l, layer.StatusFail, -1),
			ToolExitCode: -1,
			Message:      fmt.Sprintf("artifact scan failed: %v", err),
		}, false
	}
	return set, layer.Result{}, true
}

func (e *Executor) run(ctx context.Context, l layer.Layer, set locate.ArtifactSet, timeout time.Duration) layer.Result {
	if ctx.Err() != nil && set.Present {
		// Never start a tool for a run that is already cancelled.
		return layer.Result{
			Layer:        l,
			Status:       layer.StatusFail,
			ExitCode:     runner.ChainExitCode(l, layer.StatusFail, -1),
			ToolExitCode: -1,
			Tech:         set.Tech,
			Message:      "cancelled",
		}
	}
	return e.Runner.Run(ctx, l, set, timeout)
}

func (e *Executor) observe(t Transition) {
	if e.Observer != nil {
		e.Observer(t)
	}
}

func (e *Executor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Executor) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
