// Package commands implements vchain CLI commands.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NielsdaWheelz/vchain/internal/config"
	"github.com/NielsdaWheelz/vchain/internal/errors"
	"github.com/NielsdaWheelz/vchain/internal/fs"
	"github.com/NielsdaWheelz/vchain/internal/locate"
	"github.com/NielsdaWheelz/vchain/internal/runner"
)

// Deps are the collaborators shared by all commands. Zero values are
// replaced with real implementations by withDefaults.
type Deps struct {
	FS       fs.FS
	Env      config.Env
	Executor runner.Executor
	Logger   *zap.Logger
	NewRunID func() string

	// Color enables styled human output.
	Color bool
}

func (d Deps) withDefaults() Deps {
	if d.FS == nil {
		d.FS = fs.NewRealFS()
	}
	if d.Env == nil {
		d.Env = config.OSEnv{}
	}
	if d.Executor == nil {
		d.Executor = runner.NewProcessExecutor()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.NewRunID == nil {
		d.NewRunID = uuid.NewString
	}
	return d
}

// target is one resolved verification target.
type target struct {
	Root     string
	Config   config.ChainConfig
	Locator  *locate.Locator
	Registry *runner.Registry
}

// resolveTarget validates path and resolves its configuration.
func resolveTarget(d Deps, path, configPath string, o config.Overrides) (*target, error) {
	root, err := resolveRoot(path)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Resolve(config.Sources{
		Root:       root,
		ConfigPath: configPath,
		FS:         d.FS,
		Env:        d.Env,
		Overrides:  o,
	})
	if err != nil {
		return nil, withRoot(err, root)
	}

	loc, err := locate.New(root)
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EInvalidTarget, err.Error(), err,
			map[string]string{"root": root})
	}

	return &target{
		Root:     root,
		Config:   cfg,
		Locator:  loc,
		Registry: buildRegistry(cfg),
	}, nil
}

// resolveRoot returns the absolute, existing directory for path ("" means ".").
func resolveRoot(path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(errors.EInternal, "failed to resolve path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewWithDetails(errors.EInvalidTarget,
				fmt.Sprintf("target does not exist: %s", path),
				map[string]string{"root": abs})
		}
		return "", errors.WrapWithDetails(errors.EInvalidTarget, "failed to stat target", err,
			map[string]string{"root": abs})
	}
	if !info.IsDir() {
		return "", errors.NewWithDetails(errors.EInvalidTarget,
			fmt.Sprintf("target is not a directory: %s", path),
			map[string]string{"root": abs})
	}
	return abs, nil
}

// buildRegistry layers the vchain.yaml tools over the built-in commands.
func buildRegistry(cfg config.ChainConfig) *runner.Registry {
	reg := runner.DefaultRegistry()
	for _, t := range cfg.Tools {
		reg.Register(t.Layer, t.Tech, t.Command...)
	}
	return reg
}

func withRoot(err error, root string) error {
	ve, ok := errors.AsVChainError(err)
	if !ok || ve.Details["root"] != "" {
		return err
	}
	details := map[string]string{"root": root}
	for k, v := range ve.Details {
		details[k] = v
	}
	return errors.WrapWithDetails(ve.Code, ve.Msg, ve.Cause, details)
}
