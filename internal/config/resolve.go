package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/NielsdaWheelz/vchain/internal/errors"
	"github.com/NielsdaWheelz/vchain/internal/fs"
	"github.com/NielsdaWheelz/vchain/internal/layer"
)

// Environment variables consulted by Resolve.
const (
	EnvOrder         = "VCHAIN_ORDER"
	EnvStopOnFail    = "VCHAIN_STOP_ON_FAIL"
	EnvAllowEmpty    = "VCHAIN_ALLOW_EMPTY"
	EnvTimeoutPrefix = "VCHAIN_TIMEOUT_" // + upper-case layer name, e.g. VCHAIN_TIMEOUT_TESTS
)

// Env looks up environment variables. Resolve never reads the process
// environment directly.
type Env interface {
	Get(key string) string
}

// OSEnv reads the process environment.
type OSEnv struct{}

func (OSEnv) Get(key string) string { return os.Getenv(key) }

// MapEnv is a fixed environment, used by tests and embedding callers.
type MapEnv map[string]string

func (m MapEnv) Get(key string) string { return m[key] }

// Overrides are explicit run-time settings (CLI flags). Nil/empty means unset.
type Overrides struct {
	// Order is a comma-separated layer list, e.g. "type,tests".
	Order string

	StopOnFail *bool
	AllErrors  *bool
	AllowEmpty *bool

	// Timeouts are "layer=duration" pairs, e.g. "tests=5m".
	Timeouts []string
}

// Sources are the inputs to Resolve.
type Sources struct {
	// Root is the target directory; vchain.yaml is looked up there when
	// ConfigPath is empty.
	Root string

	// ConfigPath is an explicit vchain.yaml; it must exist when set.
	ConfigPath string

	FS        fs.FS
	Env       Env
	Overrides Overrides
}

// Resolve builds the ChainConfig. Precedence, highest first: Overrides,
// environment, vchain.yaml, built-in defaults. Any invalid value anywhere is
// an E_CONFIG error and no partial config is returned.
func Resolve(src Sources) (ChainConfig, error) {
	cfg := Default()
	fsys := src.FS
	if fsys == nil {
		fsys = fs.NewRealFS()
	}
	env := src.Env
	if env == nil {
		env = MapEnv{}
	}

	path := src.ConfigPath
	explicit := path != ""
	if !explicit {
		path = filepath.Join(src.Root, FileName)
	}
	fc, found, err := LoadFile(fsys, path)
	if err != nil {
		return ChainConfig{}, err
	}
	if explicit && !found {
		return ChainConfig{}, errors.NewWithDetails(errors.EConfig, "config file not found: "+path,
			map[string]string{"config": path})
	}
	if found {
		cfg.ConfigPath = path
		if err := applyFile(&cfg, fc); err != nil {
			return ChainConfig{}, withConfigDetail(err, "config", path)
		}
	}

	if err := applyEnv(&cfg, env); err != nil {
		return ChainConfig{}, err
	}
	if err := applyOverrides(&cfg, src.Overrides); err != nil {
		return ChainConfig{}, err
	}
	return cfg, nil
}

func applyFile(cfg *ChainConfig, fc FileConfig) error {
	if fc.Order != nil {
		order, err := validateOrder(fc.Order)
		if err != nil {
			return configErr("order", err)
		}
		cfg.Order = order
	}
	if fc.StopOnFail != nil {
		cfg.StopOnFail = *fc.StopOnFail
	}
	if fc.AllowEmpty != nil {
		cfg.AllowEmpty = *fc.AllowEmpty
	}
	for name, raw := range fc.Timeouts {
		if err := setTimeout(cfg, name, raw); err != nil {
			return configErr("timeouts."+name, err)
		}
	}
	for i, t := range fc.Tools {
		tool, err := validateTool(t)
		if err != nil {
			return configErr(fmt.Sprintf("tools[%d]", i), err)
		}
		cfg.Tools = append(cfg.Tools, tool)
	}
	return nil
}

func applyEnv(cfg *ChainConfig, env Env) error {
	if v := env.Get(EnvOrder); v != "" {
		order, err := parseOrder(v)
		if err != nil {
			return configErr(EnvOrder, err)
		}
		cfg.Order = order
	}
	if v := env.Get(EnvStopOnFail); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return configErr(EnvStopOnFail, fmt.Errorf("invalid boolean %q", v))
		}
		cfg.StopOnFail = b
	}
	if v := env.Get(EnvAllowEmpty); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return configErr(EnvAllowEmpty, fmt.Errorf("invalid boolean %q", v))
		}
		cfg.AllowEmpty = b
	}
	for _, l := range layer.Canonical() {
		key := EnvTimeoutPrefix + strings.ToUpper(string(l))
		if v := env.Get(key); v != "" {
			if err := setTimeout(cfg, string(l), v); err != nil {
				return configErr(key, err)
			}
		}
	}
	return nil
}

func applyOverrides(cfg *ChainConfig, o Overrides) error {
	if o.StopOnFail != nil && o.AllErrors != nil && *o.StopOnFail == *o.AllErrors {
		return configErr("flags", fmt.Errorf("conflicting overrides: stop-on-fail=%t and all-errors=%t", *o.StopOnFail, *o.AllErrors))
	}
	if o.Order != "" {
		order, err := parseOrder(o.Order)
		if err != nil {
			return configErr("--order", err)
		}
		cfg.Order = order
	}
	if o.StopOnFail != nil {
		cfg.StopOnFail = *o.StopOnFail
	}
	if o.AllErrors != nil {
		cfg.StopOnFail = !*o.AllErrors
	}
	if o.AllowEmpty != nil {
		cfg.AllowEmpty = *o.AllowEmpty
	}
	for _, pair := range o.Timeouts {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return configErr("--timeout", fmt.Errorf("expected layer=duration, got %q", pair))
		}
		if err := setTimeout(cfg, name, raw); err != nil {
			return configErr("--timeout", err)
		}
	}
	return nil
}

// parseOrder parses a comma-separated order and validates it.
func parseOrder(s string) ([]layer.Layer, error) {
	layers, err := layer.ParseList(s)
	if err != nil {
		return nil, err
	}
	return checkDuplicates(layers)
}

// validateOrder validates a list of layer names.
func validateOrder(names []string) ([]layer.Layer, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("order must not be empty")
	}
	layers := make([]layer.Layer, 0, len(names))
	for _, n := range names {
		l, err := layer.Parse(n)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return checkDuplicates(layers)
}

func checkDuplicates(layers []layer.Layer) ([]layer.Layer, error) {
	seen := make(map[layer.Layer]bool, len(layers))
	for _, l := range layers {
		if seen[l] {
			return nil, fmt.Errorf("duplicate layer %q in order", l)
		}
		seen[l] = true
	}
	return layers, nil
}

func setTimeout(cfg *ChainConfig, name, raw string) error {
	l, err := layer.Parse(name)
	if err != nil {
		return err
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q for %s", raw, l)
	}
	if d <= 0 {
		return fmt.Errorf("timeout for %s must be positive", l)
	}
	if d > MaxTimeout {
		return fmt.Errorf("timeout for %s must be at most %s", l, MaxTimeout)
	}
	// Copy on write so Default()'s map is never shared between configs.
	next := make(map[layer.Layer]time.Duration, len(cfg.Timeouts))
	for k, v := range cfg.Timeouts {
		next[k] = v
	}
	next[l] = d
	cfg.Timeouts = next
	return nil
}

func validateTool(t FileTool) (Tool, error) {
	l, err := layer.Parse(t.Layer)
	if err != nil {
		return Tool{}, err
	}
	if len(t.Command) == 0 || strings.TrimSpace(t.Command[0]) == "" {
		return Tool{}, fmt.Errorf("command must not be empty")
	}
	tech := strings.TrimSpace(t.Tech)
	if tech == "" {
		tech = "*"
	}
	cmd := make([]string, len(t.Command))
	copy(cmd, t.Command)
	return Tool{Layer: l, Tech: tech, Command: cmd}, nil
}

// configErr wraps a validation failure as E_CONFIG naming the offending field.
func configErr(field string, err error) error {
	return errors.WrapWithDetails(errors.EConfig, field+": "+err.Error(), err, nil)
}

func withConfigDetail(err error, key, val string) error {
	ve, ok := errors.AsVChainError(err)
	if !ok {
		return err
	}
	details := map[string]string{key: val}
	for k, v := range ve.Details {
		details[k] = v
	}
	return errors.WrapWithDetails(ve.Code, ve.Msg, ve.Cause, details)
}
