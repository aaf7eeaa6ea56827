// Package locate discovers which verification artifacts exist under a target
// root, per layer. It only reads the filesystem.
package locate

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/NielsdaWheelz/vchain/internal/layer"
)

// ArtifactSet is the set of paths found for one layer under one root.
type ArtifactSet struct {
	Layer layer.Layer

	// Paths are slash-separated and relative to the root, in lexical walk order.
	Paths []string

	// Present is true iff at least one path matched.
	Present bool

	// Tech is the detected sub-technology (e.g. "lean", "go"). Empty when absent.
	Tech string
}

// ContractsDir is the top-level directory holding contract declarations.
const ContractsDir = "contracts"

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"target":       true,
	"_build":       true,
	".lake":        true,
}

// suffixRule maps a filename suffix to a technology.
type suffixRule struct {
	suffix string
	tech   string
}

var proofRules = []suffixRule{
	{".lean", "lean"},
	{".v", "coq"},
	{".thy", "isabelle"},
	{".agda", "agda"},
	{".dfy", "dafny"},
}

var specRules = []suffixRule{
	{".tla", "tla"},
	{".als", "alloy"},
	{".qnt", "quint"},
}

var testRules = []suffixRule{
	{"_test.go", "go"},
	{"_test.py", "python"},
	{".test.ts", "js"},
	{".test.js", "js"},
	{".spec.ts", "js"},
	{".spec.js", "js"},
}

// descriptors are root-level project files, in detection priority order.
var descriptors = []suffixRule{
	{"go.mod", "go"},
	{"tsconfig.json", "typescript"},
	{"pyproject.toml", "python"},
	{"mypy.ini", "python"},
	{"Cargo.toml", "rust"},
}

// Locator scans one root directory.
type Locator struct {
	fsys fs.FS
}

// New returns a Locator over the directory at root.
// It fails if root does not exist or is not a directory.
func New(root string) (*Locator, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "locate", Path: root, Err: errors.New("not a directory")}
	}
	return &Locator{fsys: os.DirFS(root)}, nil
}

// NewFS returns a Locator over an arbitrary filesystem (used with fstest.MapFS in tests).
func NewFS(fsys fs.FS) *Locator {
	return &Locator{fsys: fsys}
}

// Locate returns the artifacts for l. Absence is reported as Present=false,
// never as an error; an error means the tree could not be read.
func (lc *Locator) Locate(l layer.Layer) (ArtifactSet, error) {
	return Locate(lc.fsys, l)
}

// Locate scans fsys for the artifacts of layer l.
func Locate(fsys fs.FS, l layer.Layer) (ArtifactSet, error) {
	set := ArtifactSet{Layer: l}
	var err error

	switch l {
	case layer.Proof:
		set.Paths, set.Tech, err = walkSuffixes(fsys, ".", proofRules, nil)
	case layer.Spec:
		set.Paths, set.Tech, err = walkSuffixes(fsys, ".", specRules, nil)
	case layer.Type:
		set.Paths, set.Tech, err = findDescriptors(fsys)
	case layer.Contract:
		set.Paths, set.Tech, err = locateContracts(fsys)
	case layer.Tests:
		set.Paths, set.Tech, err = walkSuffixes(fsys, ".", testRules, isPythonTestPrefix)
	default:
		return set, &layer.UnknownLayerError{Name: string(l)}
	}
	if err != nil {
		return ArtifactSet{Layer: l}, err
	}

	set.Present = len(set.Paths) > 0
	if !set.Present {
		set.Tech = ""
	}
	return set, nil
}

// walkSuffixes collects files whose base name matches one of rules (or extra),
// returning them in walk order with the tech of the first match.
func walkSuffixes(fsys fs.FS, dir string, rules []suffixRule, extra func(base string) (string, bool)) ([]string, string, error) {
	var paths []string
	var tech string

	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && SkipDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		base := d.Name()
		if t, ok := matchSuffix(base, rules); ok {
			paths = append(paths, p)
			if tech == "" {
				tech = t
			}
			return nil
		}
		if extra != nil {
			if t, ok := extra(base); ok {
				paths = append(paths, p)
				if tech == "" {
					tech = t
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return paths, tech, nil
}

// SkipDir reports whether a directory named name is excluded from artifact scans.
func SkipDir(name string) bool {
	return skipDirs[name] || strings.HasPrefix(name, ".")
}

func matchSuffix(base string, rules []suffixRule) (string, bool) {
	for _, r := range rules {
		if strings.HasSuffix(base, r.suffix) && base != r.suffix {
			return r.tech, true
		}
	}
	return "", false
}

func isPythonTestPrefix(base string) (string, bool) {
	if strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py") {
		return "python", true
	}
	return "", false
}

// findDescriptors returns the root-level project descriptors in priority order.
// Tech is taken from the highest-priority descriptor.
func findDescriptors(fsys fs.FS) ([]string, string, error) {
	var paths []string
	var tech string
	for _, d := range descriptors {
		info, err := fs.Stat(fsys, d.suffix)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, "", err
		}
		if info.IsDir() {
			continue
		}
		paths = append(paths, d.suffix)
		if tech == "" {
			tech = d.tech
		}
	}
	return paths, tech, nil
}

// locateContracts returns every file under contracts/. The tech follows the
// project descriptor so the contract runner matches the project's toolchain.
func locateContracts(fsys fs.FS) ([]string, string, error) {
	info, err := fs.Stat(fsys, ContractsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if !info.IsDir() {
		return nil, "", nil
	}

	var paths []string
	err = fs.WalkDir(fsys, ContractsDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != ContractsDir && SkipDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		paths = append(paths, path.Clean(p))
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	if len(paths) == 0 {
		return nil, "", nil
	}

	_, tech, err := findDescriptors(fsys)
	if err != nil {
		return nil, "", err
	}
	if tech == "" {
		tech = "generic"
	}
	return paths, tech, nil
}
