package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/redo/internal/logging"
	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/task"
)

// Runner executes a task tree against the log of the previous run and
// produces a log with the same shape as the tree.
type Runner struct {
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	workflow string
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.hooks = hooks
	}
}

// WithWorkflowName labels emitted events.
func WithWorkflowName(name string) Option {
	return func(r *Runner) {
		r.workflow = name
	}
}

// NewRunner creates a runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every leaf of tree in declaration order and returns the
// aggregate success together with the new log.
//
// Reconciliation is purely positional: a prior entry is reused at a position
// only when its shape (leaf or group) matches the current node; anything else,
// including prior entries past the end of a group, is discarded. A failing
// leaf never prevents its siblings from running.
//
// A leaf at the root is handled as a one-element group. Errors from task hooks
// abort the run and are returned as is.
func (r *Runner) Run(ctx context.Context, tree task.Node, prior domain.Log) (bool, domain.Log, error) {
	var root task.Group
	switch n := tree.(type) {
	case nil:
		return true, domain.Log{}, nil
	case task.Group:
		root = n
	default:
		root = task.Group{n}
	}

	r.logger.DebugContext(ctx, "run started", "workflow", r.workflow, "leaves", task.Count(root))
	ok, log, err := r.runGroup(ctx, root, prior, nil)
	if err != nil {
		return false, nil, err
	}
	r.logger.DebugContext(ctx, "run finished", "workflow", r.workflow, "success", ok)
	return ok, log, nil
}

func (r *Runner) runGroup(ctx context.Context, group task.Group, prior domain.Log, index domain.Index) (bool, domain.Log, error) {
	success := true
	log := make(domain.Log, 0, len(group))

	for i, n := range group {
		if err := ctx.Err(); err != nil {
			return false, nil, err
		}
		idx := index.Child(i)

		var prev *domain.Entry
		if i < len(prior) {
			prev = &prior[i]
		}

		switch node := n.(type) {
		case task.Group:
			var sub domain.Log
			if prev != nil && prev.IsGroup() {
				sub = prev.Group
			}
			ok, entries, err := r.runGroup(ctx, node, sub, idx)
			if err != nil {
				return false, nil, err
			}
			log = append(log, domain.Nest(entries...))
			success = success && ok

		case *task.Task:
			if node == nil {
				return false, nil, fmt.Errorf("%w: nil task at %s", domain.ErrConfiguration, idx)
			}
			var rec *domain.Record
			if prev != nil && !prev.IsGroup() {
				rec = prev.Record
			}
			out, err := r.runTask(ctx, node, rec, idx)
			if err != nil {
				return false, nil, err
			}
			log = append(log, domain.Leaf(out))
			success = success && out.Succeeded()

		default:
			return false, nil, fmt.Errorf("%w: unsupported node %T at %s", domain.ErrConfiguration, n, idx)
		}
	}
	return success, log, nil
}

func (r *Runner) runTask(ctx context.Context, t *task.Task, prior *domain.Record, idx domain.Index) (*domain.Record, error) {
	d, err := t.Plan(ctx, prior)
	if err != nil {
		return nil, err
	}
	event := &domain.TaskEvent{
		Workflow:       r.workflow,
		Index:          idx,
		Task:           t.Label(),
		InputsChanged:  d.InputsChanged,
		OutputsChanged: d.OutputsChanged,
	}

	if !d.Rerun() {
		event.Timestamp = r.now()
		event.Type = domain.EventTaskSkip
		event.Success = true
		r.logger.DebugContext(ctx, "task up to date", "task", t.Label(), "index", idx.String())
		if r.hooks.OnTaskSkip != nil {
			r.hooks.OnTaskSkip(ctx, event)
		}
		return prior, nil
	}

	start := r.now()
	event.Timestamp = start
	event.Type = domain.EventTaskStart
	if r.hooks.OnTaskStart != nil {
		r.hooks.OnTaskStart(ctx, event)
	}

	rec, err := t.Rerun(ctx, prior)
	if err != nil {
		r.logger.ErrorContext(ctx, "task aborted", "task", t.Label(), "index", idx.String(), "error", err)
		return nil, err
	}
	rec.Index = idx

	if !rec.Succeeded() {
		r.logger.WarnContext(ctx, "task failed", "task", t.Label(), "index", idx.String())
	}
	if r.hooks.OnTaskFinish != nil {
		end := r.now()
		finish := *event
		finish.Timestamp = end
		finish.Type = domain.EventTaskFinish
		finish.Success = rec.Succeeded()
		finish.Duration = end.Sub(start)
		r.hooks.OnTaskFinish(ctx, &finish)
	}
	return rec, nil
}
