package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/NielsdaWheelz/vchain/internal/config"
	"github.com/NielsdaWheelz/vchain/internal/errors"
	"github.com/NielsdaWheelz/vchain/internal/layer"
	"github.com/NielsdaWheelz/vchain/internal/runner"
)

// DoctorOpts holds options for the doctor command.
type DoctorOpts struct {
	Path       string
	ConfigPath string
}

// DoctorReport holds all the data for doctor output.
type DoctorReport struct {
	Root       string
	ConfigPath string
	Order      []string
	StopOnFail bool
	AllowEmpty bool

	// Tools has one entry per configured layer that has artifacts.
	Tools []runner.ToolStatus

	// Absent lists configured layers without artifacts.
	Absent []layer.Layer
}

// Doctor implements `vchain doctor`: resolves the configuration, detects each
// layer's technology and checks that its tool is registered and on PATH.
// Returns E_TOOL_NOT_REGISTERED or E_TOOL_NOT_FOUND when a detected layer
// could not run.
func Doctor(d Deps, opts DoctorOpts, stdout io.Writer) error {
	d = d.withDefaults()
	t, err := resolveTarget(d, opts.Path, opts.ConfigPath, config.Overrides{})
	if err != nil {
		return err
	}

	r := DoctorReport{
		Root:       t.Root,
		ConfigPath: t.Config.ConfigPath,
		Order:      t.Config.OrderNames(),
		StopOnFail: t.Config.StopOnFail,
		AllowEmpty: t.Config.AllowEmpty,
	}
	for _, l := range t.Config.Order {
		set, err := t.Locator.Locate(l)
		if err != nil {
			return errors.WrapWithDetails(errors.EInvalidTarget, "artifact scan failed", err,
				map[string]string{"root": t.Root, "layer": string(l)})
		}
		if !set.Present {
			r.Absent = append(r.Absent, l)
			continue
		}
		r.Tools = append(r.Tools, t.Registry.CheckTool(l, set.Tech))
	}

	writeDoctorOutput(stdout, r)
	return doctorError(r)
}

func doctorError(r DoctorReport) error {
	for _, st := range r.Tools {
		details := map[string]string{"root": r.Root, "layer": string(st.Layer), "tech": st.Tech}
		if st.Missing {
			details["hint"] = "add a tools entry for this layer to " + config.FileName
			return errors.NewWithDetails(errors.EToolNotRegistered,
				fmt.Sprintf("no command registered for %s/%s", st.Layer, st.Tech), details)
		}
		if st.Err != nil {
			details["command"] = st.Command
			return errors.WrapWithDetails(errors.EToolNotFound,
				fmt.Sprintf("%s tool not found on PATH: %s", st.Layer, firstWord(st.Command)), st.Err, details)
		}
	}
	return nil
}

// writeDoctorOutput writes the stable key: value output.
// All writes use explicit error ignoring since this is informational output
// where write failures cannot be meaningfully handled.
func writeDoctorOutput(w io.Writer, r DoctorReport) {
	_, _ = fmt.Fprintf(w, "root: %s\n", r.Root)
	_, _ = fmt.Fprintf(w, "config: %s\n", valueOr(r.ConfigPath, "<defaults>"))
	_, _ = fmt.Fprintf(w, "order: %s\n", strings.Join(r.Order, ","))
	_, _ = fmt.Fprintf(w, "stop_on_fail: %s\n", boolStr(r.StopOnFail))
	_, _ = fmt.Fprintf(w, "allow_empty: %s\n", boolStr(r.AllowEmpty))

	ok := true
	for _, st := range r.Tools {
		prefix := fmt.Sprintf("tool.%s", st.Layer)
		_, _ = fmt.Fprintf(w, "%s.tech: %s\n", prefix, st.Tech)
		switch {
		case st.Missing:
			ok = false
			_, _ = fmt.Fprintf(w, "%s.status: not_registered\n", prefix)
		case st.Err != nil:
			ok = false
			_, _ = fmt.Fprintf(w, "%s.command: %s\n", prefix, st.Command)
			_, _ = fmt.Fprintf(w, "%s.status: not_found\n", prefix)
		default:
			_, _ = fmt.Fprintf(w, "%s.command: %s\n", prefix, st.Command)
			_, _ = fmt.Fprintf(w, "%s.path: %s\n", prefix, st.Path)
			_, _ = fmt.Fprintf(w, "%s.status: ok\n", prefix)
		}
	}
	for _, l := range r.Absent {
		_, _ = fmt.Fprintf(w, "tool.%s.status: no_artifacts\n", l)
	}

	if ok {
		_, _ = fmt.Fprintln(w, "status: ok")
	} else {
		_, _ = fmt.Fprintln(w, "status: missing_tools")
	}
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
