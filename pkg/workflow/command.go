package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/redo/pkg/param"
	"github.com/aretw0/redo/pkg/task"
)

// ParamEnvPrefix prefixes the environment variables that carry params.
const ParamEnvPrefix = "REDO_PARAM_"

// Report is what a Command action returns.
type Report struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	// Err is set when the process could not be started or did not exit normally.
	Err string
}

// Command is a task definition that runs an external process.
//
// Its inputs are the declared files, the params and the command line itself,
// so editing any of them triggers a rerun. The run succeeds when the process
// exits with status 0 and, with RequireChangedOutputs, touched every output.
type Command struct {
	Step    Step
	BaseDir string

	// Stdout and Stderr receive a live copy of the process output when set.
	Stdout io.Writer
	Stderr io.Writer
}

// Label is the step name.
func (c *Command) Label() string { return c.Step.Name }

func (c *Command) path(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.BaseDir, p)
}

func (c *Command) Input(*task.Task) ([]param.Parameter, error) {
	var params []param.Parameter
	for _, in := range c.Step.Inputs {
		f, err := param.NewFile(in, c.path(in))
		if err != nil {
			return nil, err
		}
		params = append(params, f)
	}
	for _, name := range sortedKeys(c.Step.Params) {
		params = append(params, param.New(name, c.Step.Params[name]))
	}
	self, err := c.definition()
	if err != nil {
		return nil, err
	}
	return append(params, self), nil
}

// definition tracks the parts of the step that change what the process does.
func (c *Command) definition() (param.Parameter, error) {
	spec := struct {
		Command string            `json:"command"`
		Args    []string          `json:"args"`
		Dir     string            `json:"dir"`
		Env     map[string]string `json:"env"`
	}{c.Step.Command, c.Step.Args, c.Step.Dir, c.Step.Env}
	text, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}
	return param.NewSourceText(param.SelfName, string(text)), nil
}

func (c *Command) Output(*task.Task) ([]param.Parameter, error) {
	var params []param.Parameter
	for _, out := range c.Step.Outputs {
		f, err := param.NewFile(out, c.path(out), param.AutoCreate())
		if err != nil {
			return nil, err
		}
		params = append(params, f)
	}
	return params, nil
}

// Action runs the process. A non-zero exit or a missing executable is a
// failed run, not an error; only cancellation aborts.
func (c *Command) Action(ctx context.Context, _ *task.Task) (any, error) {
	cmd := exec.CommandContext(ctx, c.Step.Command, c.Step.Args...)
	cmd.Dir = c.BaseDir
	if c.Step.Dir != "" {
		cmd.Dir = c.path(c.Step.Dir)
	}
	cmd.Env = append(cmd.Environ(), c.environment()...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, c.Stdout)
	cmd.Stderr = tee(&stderr, c.Stderr)

	start := time.Now()
	err := cmd.Run()
	report := &Report{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return report, ctxErr
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		report.ExitCode = exitErr.ExitCode()
		if report.ExitCode < 0 {
			report.Err = err.Error()
		}
	default:
		report.ExitCode = -1
		report.Err = err.Error()
	}
	return report, nil
}

func (c *Command) environment() []string {
	env := make([]string, 0, len(c.Step.Env)+len(c.Step.Params))
	for _, k := range sortedKeys(c.Step.Env) {
		env = append(env, k+"="+c.Step.Env[k])
	}
	for _, k := range sortedKeys(c.Step.Params) {
		env = append(env, ParamEnvPrefix+strings.ToUpper(k)+"="+envValue(c.Step.Params[k]))
	}
	return env
}

// envValue renders scalars as text and everything else as JSON.
func envValue(v any) string {
	switch v.(type) {
	case string, int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	case nil:
		return ""
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

func (c *Command) Success(_ context.Context, t *task.Task) ([]bool, error) {
	report, _ := t.Report().(*Report)
	results := []bool{report != nil && report.ExitCode == 0}
	if c.Step.RequireChangedOutputs {
		for _, out := range t.Outputs().All() {
			changed, err := param.Modified(out)
			if err != nil {
				return nil, err
			}
			results = append(results, changed)
		}
	}
	return results, nil
}

// After records the exit code and the duration in the log.
func (c *Command) After(_ context.Context, t *task.Task) ([]param.Parameter, error) {
	report, ok := t.Report().(*Report)
	if !ok {
		return nil, nil
	}
	return []param.Parameter{
		param.New("exit_code", report.ExitCode),
		param.New("duration_ms", report.Duration.Milliseconds()),
	}, nil
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
