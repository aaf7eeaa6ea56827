// Package config resolves the chain configuration for one run from built-in
// defaults, the project's vchain.yaml, the environment and run-time overrides.
package config

import (
	"time"

	"github.com/NielsdaWheelz/vchain/internal/layer"
)

// FileName is the project configuration file looked up at the target root.
const FileName = "vchain.yaml"

// Default per-layer timeouts.
const (
	DefaultProofTimeout    = 30 * time.Minute
	DefaultSpecTimeout     = 30 * time.Minute
	DefaultTypeTimeout     = 10 * time.Minute
	DefaultContractTimeout = 15 * time.Minute
	DefaultTestsTimeout    = 30 * time.Minute
	MaxTimeout             = 24 * time.Hour
)

// DefaultTimeouts returns a fresh map of the built-in per-layer timeouts.
func DefaultTimeouts() map[layer.Layer]time.Duration {
	return map[layer.Layer]time.Duration{
		layer.Proof:    DefaultProofTimeout,
		layer.Spec:     DefaultSpecTimeout,
		layer.Type:     DefaultTypeTimeout,
		layer.Contract: DefaultContractTimeout,
		layer.Tests:    DefaultTestsTimeout,
	}
}

// Tool registers an extra or replacement command for (Layer, Tech).
type Tool struct {
	Layer   layer.Layer
	Tech    string // "*" for the layer's fallback
	Command []string
}

// ChainConfig is the resolved, validated configuration of one run.
// It is built once by Resolve and must not be modified afterwards.
type ChainConfig struct {
	// Order is the layer sequence to run: non-empty, no duplicates, known layers only.
	Order []layer.Layer

	// StopOnFail halts the chain at the first failing layer. When false the
	// chain runs in all-errors mode.
	StopOnFail bool

	// AllowEmpty makes a run in which every layer was skipped succeed.
	AllowEmpty bool

	// Timeouts holds one entry per known layer.
	Timeouts map[layer.Layer]time.Duration

	// Tools are command registrations from vchain.yaml, in file order.
	Tools []Tool

	// ConfigPath is the vchain.yaml that was applied, or "" if none.
	ConfigPath string
}

// Default returns the built-in configuration.
func Default() ChainConfig {
	return ChainConfig{
		Order:      layer.Canonical(),
		StopOnFail: true,
		Timeouts:   DefaultTimeouts(),
	}
}

// Timeout returns the timeout for l, falling back to the built-in default.
func (c ChainConfig) Timeout(l layer.Layer) time.Duration {
	if d, ok := c.Timeouts[l]; ok && d > 0 {
		return d
	}
	return DefaultTimeouts()[l]
}

// OrderNames returns Order as strings.
func (c ChainConfig) OrderNames() []string {
	names := make([]string, len(c.Order))
	for i, l := range c.Order {
		names[i] = string(l)
	}
	return names
}
