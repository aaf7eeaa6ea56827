package runner

import (
	"sort"
	"strings"

	"github.com/NielsdaWheelz/vchain/internal/layer"
)

// AnyTech is the wildcard technology used for a layer's fallback command.
const AnyTech = "*"

// Placeholders expanded by Template.Expand.
const (
	PlaceholderFiles = "{files}" // replaced by every artifact path, one argument each
	PlaceholderRoot  = "{root}"  // replaced by the target root
)

// Template is an argv with placeholders.
type Template struct {
	Argv []string
}

// Expand substitutes placeholders. {files} must be a whole argument; {root}
// may appear inside one.
func (t Template) Expand(root string, files []string) []string {
	out := make([]string, 0, len(t.Argv)+len(files))
	for _, arg := range t.Argv {
		if arg == PlaceholderFiles {
			out = append(out, files...)
			continue
		}
		out = append(out, strings.ReplaceAll(arg, PlaceholderRoot, root))
	}
	return out
}

func (t Template) String() string {
	return strings.Join(t.Argv, " ")
}

// Key identifies a registration.
type Key struct {
	Layer layer.Layer
	Tech  string
}

// Registry maps (layer, technology) to the command that verifies it.
// Adding a tool is a Register call; lookups never branch on tool names.
// A Registry is not safe for concurrent mutation; populate it before use.
type Registry struct {
	entries map[Key]Template
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Key]Template)}
}

// Register adds or replaces the command for (l, tech). Use AnyTech for the
// layer's fallback.
func (r *Registry) Register(l layer.Layer, tech string, argv ...string) {
	cp := make([]string, len(argv))
	copy(cp, argv)
	r.entries[Key{Layer: l, Tech: tech}] = Template{Argv: cp}
}

// Lookup returns the command for (l, tech), falling back to (l, AnyTech).
func (r *Registry) Lookup(l layer.Layer, tech string) (Template, bool) {
	if t, ok := r.entries[Key{Layer: l, Tech: tech}]; ok {
		return t, true
	}
	t, ok := r.entries[Key{Layer: l, Tech: AnyTech}]
	return t, ok
}

// Keys returns the registered keys sorted by layer then tech.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Layer != keys[j].Layer {
			return keys[i].Layer < keys[j].Layer
		}
		return keys[i].Tech < keys[j].Tech
	})
	return keys
}

// DefaultRegistry returns the built-in tool registrations.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(layer.Proof, "lean", "lake", "build")
	r.Register(layer.Proof, "coq", "coqc", PlaceholderFiles)
	r.Register(layer.Proof, "isabelle", "isabelle", "build", "-D", ".")
	r.Register(layer.Proof, "agda", "agda", PlaceholderFiles)
	r.Register(layer.Proof, "dafny", "dafny", "verify", PlaceholderFiles)

	r.Register(layer.Spec, "tla", "tlc", PlaceholderFiles)
	r.Register(layer.Spec, "alloy", "alloy", "exec", PlaceholderFiles)
	r.Register(layer.Spec, "quint", "quint", "verify", PlaceholderFiles)

	r.Register(layer.Type, "go", "go", "vet", "./...")
	r.Register(layer.Type, "typescript", "tsc", "--noEmit")
	r.Register(layer.Type, "python", "mypy", ".")
	r.Register(layer.Type, "rust", "cargo", "check")

	r.Register(layer.Contract, "go", "go", "test", "-tags", "contracts", "./contracts/...")
	r.Register(layer.Contract, "python", "pytest", "contracts")
	r.Register(layer.Contract, AnyTech, "sh", "contracts/run.sh")

	r.Register(layer.Tests, "go", "go", "test", "./...")
	r.Register(layer.Tests, "python", "pytest")
	r.Register(layer.Tests, "js", "npm", "test")

	return r
}
