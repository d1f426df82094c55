package task

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/aretw0/redo/internal/logging"
	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/param"
)

// Reserved provenance parameter names, merged into every input set.
const (
	ParamName   = "name_"
	ParamArgs   = "args_"
	ParamKwargs = "kwargs_"
)

// Definition is the behavior of a task type.
//
// Input and Output run once, during construction. Action and Success only run
// when the task needs a rerun. Errors returned by Action and Success are
// handed to the caller untouched.
type Definition interface {
	Input(t *Task) ([]param.Parameter, error)
	Output(t *Task) ([]param.Parameter, error)
	Action(ctx context.Context, t *Task) (any, error)
	// Success returns boolean-like results; the run succeeded when all are true.
	Success(ctx context.Context, t *Task) ([]bool, error)
}

// BeforeHook is implemented by definitions that need setup during construction.
type BeforeHook interface {
	Before(t *Task) error
}

// AfterHook is implemented by definitions that report extra information.
// The snapshots of the returned parameters are stored in the record's info.
type AfterHook interface {
	After(ctx context.Context, t *Task) ([]param.Parameter, error)
}

// Labeler overrides the identity label, which defaults to the Go type name.
type Labeler interface {
	Label() string
}

// Task is one unit of work, instantiated once per run.
type Task struct {
	def    Definition
	label  string
	args   []any
	kwargs map[string]any

	inputs  *param.Set
	outputs *param.Set
	report  any

	logger *slog.Logger
}

// Option configures a Task.
type Option func(*Task)

// WithArgs sets the positional arguments tracked by the args_ parameter.
func WithArgs(args ...any) Option {
	return func(t *Task) {
		t.args = args
	}
}

// WithKwargs sets the keyword arguments tracked by the kwargs_ parameter.
func WithKwargs(kwargs map[string]any) Option {
	return func(t *Task) {
		t.kwargs = kwargs
	}
}

// WithLogger configures a logger for the task.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Task) {
		t.logger = logger
	}
}

// New constructs a task: it runs the before hook and computes the input and
// output sets. A name collision in either set, including with a reserved
// provenance parameter, fails with domain.ErrConfiguration.
func New(def Definition, opts ...Option) (*Task, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil task definition", domain.ErrConfiguration)
	}
	t := &Task{
		def:    def,
		label:  labelOf(def),
		args:   []any{},
		kwargs: map[string]any{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.args == nil {
		t.args = []any{}
	}
	if t.kwargs == nil {
		t.kwargs = map[string]any{}
	}

	if h, ok := def.(BeforeHook); ok {
		if err := h.Before(t); err != nil {
			return nil, fmt.Errorf("task %s: before: %w", t.label, err)
		}
	}

	declared, err := def.Input(t)
	if err != nil {
		return nil, fmt.Errorf("task %s: input: %w", t.label, err)
	}
	provenance := []param.Parameter{
		param.New(ParamName, t.label),
		param.New(ParamArgs, t.args),
		param.New(ParamKwargs, t.kwargs),
	}
	if t.inputs, err = param.NewSet(append(declared, provenance...)...); err != nil {
		return nil, fmt.Errorf("task %s: inputs: %w", t.label, err)
	}

	declared, err = def.Output(t)
	if err != nil {
		return nil, fmt.Errorf("task %s: output: %w", t.label, err)
	}
	if t.outputs, err = param.NewSet(declared...); err != nil {
		return nil, fmt.Errorf("task %s: outputs: %w", t.label, err)
	}
	return t, nil
}

// MustNew is like New but panics on error. Intended for static task trees.
func MustNew(def Definition, opts ...Option) *Task {
	t, err := New(def, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func labelOf(def Definition) string {
	if l, ok := def.(Labeler); ok {
		if label := l.Label(); label != "" {
			return label
		}
	}
	t := reflect.TypeOf(def)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// Label is the task identity stored in the record's task_class.
func (t *Task) Label() string { return t.label }

// Definition returns the task type behind t.
func (t *Task) Definition() Definition { return t.def }

// Args returns the positional arguments.
func (t *Task) Args() []any { return t.args }

// Kwargs returns the keyword arguments.
func (t *Task) Kwargs() map[string]any { return t.kwargs }

// Inputs returns the input set, including the provenance parameters.
// It is nil while the before hook runs.
func (t *Task) Inputs() *param.Set { return t.inputs }

// Outputs returns the output set. It is nil until the input set is built.
func (t *Task) Outputs() *param.Set { return t.outputs }

// Report returns what the last Action returned.
func (t *Task) Report() any { return t.report }

func (t *Task) node() {}
