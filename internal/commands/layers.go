package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/NielsdaWheelz/vchain/internal/config"
	"github.com/NielsdaWheelz/vchain/internal/errors"
	"github.com/NielsdaWheelz/vchain/internal/layer"
)

// maxListedPaths is how many artifact paths the human output shows per layer.
const maxListedPaths = 3

// LayersOpts holds options for the layers command.
type LayersOpts struct {
	Path       string
	ConfigPath string
	JSON       bool
}

// LayerInfo describes one configured layer of a target, without running it.
// This is the public contract for `vchain layers --json`.
type LayerInfo struct {
	Layer   layer.Layer `json:"layer"`
	Present bool        `json:"present"`
	Tech    string      `json:"tech,omitempty"`
	Paths   []string    `json:"paths"`
	Command []string    `json:"command,omitempty"`
	Timeout string      `json:"timeout"`
}

// Layers prints the artifacts detected for each configured layer and the
// command that `vchain run` would execute for it.
func Layers(d Deps, opts LayersOpts, stdout io.Writer) error {
	d = d.withDefaults()
	t, err := resolveTarget(d, opts.Path, opts.ConfigPath, config.Overrides{})
	if err != nil {
		return err
	}

	infos := make([]LayerInfo, 0, len(t.Config.Order))
	for _, l := range t.Config.Order {
		set, err := t.Locator.Locate(l)
		if err != nil {
			return errors.WrapWithDetails(errors.EInvalidTarget, "artifact scan failed", err,
				map[string]string{"root": t.Root, "layer": string(l)})
		}
		info := LayerInfo{
			Layer:   l,
			Present: set.Present,
			Tech:    set.Tech,
			Paths:   append([]string{}, set.Paths...),
			Timeout: t.Config.Timeout(l).String(),
		}
		if set.Present {
			if tmpl, ok := t.Registry.Lookup(l, set.Tech); ok {
				info.Command = tmpl.Expand(t.Root, set.Paths)
			}
		}
		infos = append(infos, info)
	}

	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(infos); err != nil {
			return errors.Wrap(errors.EInternal, "failed to write JSON", err)
		}
		return nil
	}
	writeLayersHuman(stdout, t.Root, infos)
	return nil
}

// writeLayersHuman writes one block per layer:
//
//	root: /path/to/project
//
//	type      go      1 file   go vet ./...
//	          go.mod
//	tests     absent
func writeLayersHuman(w io.Writer, root string, infos []LayerInfo) {
	_, _ = fmt.Fprintf(w, "root: %s\n\n", root)

	nameW := 0
	techW := 0
	for _, info := range infos {
		nameW = max(nameW, len(info.Layer))
		techW = max(techW, len(info.Tech))
	}
	indent := strings.Repeat(" ", nameW+2)

	for _, info := range infos {
		if !info.Present {
			_, _ = fmt.Fprintf(w, "%-*s  absent\n", nameW, info.Layer)
			continue
		}
		cmd := "<no command registered>"
		if len(info.Command) > 0 {
			cmd = strings.Join(info.Command, " ")
		}
		_, _ = fmt.Fprintf(w, "%-*s  %-*s  %-8s  %s\n", nameW, info.Layer, techW, info.Tech, countFiles(len(info.Paths)), cmd)
		for i, p := range info.Paths {
			if i == maxListedPaths {
				_, _ = fmt.Fprintf(w, "%s… %d more\n", indent, len(info.Paths)-maxListedPaths)
				break
			}
			_, _ = fmt.Fprintf(w, "%s%s\n", indent, p)
		}
	}
}

func countFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d files", n)
}
