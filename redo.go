package redo

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/redo/internal/logging"
	"github.com/aretw0/redo/internal/runtime"
	"github.com/aretw0/redo/pkg/adapters/file"
	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/flat"
	"github.com/aretw0/redo/pkg/lease"
	"github.com/aretw0/redo/pkg/ports"
	"github.com/aretw0/redo/pkg/task"
)

// Workflow is the high-level entry point of the library: it loads the log of
// the previous run, runs a task tree against it and saves the new log.
type Workflow struct {
	Name string

	dir      string
	store    ports.LogStore
	locker   ports.Locker
	lockTTL  time.Duration
	lockWait time.Duration
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	manager *lease.Manager
}

// Option defines a functional option for configuring the Workflow.
type Option func(*Workflow)

// WithDir sets the working directory whose ".redo" subdirectory holds the
// default file store. It is ignored when WithStore is given.
func WithDir(dir string) Option {
	return func(w *Workflow) {
		w.dir = dir
	}
}

// WithStore injects a custom LogStore, bypassing the default file store.
func WithStore(store ports.LogStore) Option {
	return func(w *Workflow) {
		w.store = store
	}
}

// WithLocker sets the cross-process lock used around each run.
// The default file store comes with a file locker.
func WithLocker(locker ports.Locker) Option {
	return func(w *Workflow) {
		w.locker = locker
	}
}

// WithLockTTL bounds how long a crashed run may keep a distributed lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(w *Workflow) {
		w.lockTTL = ttl
	}
}

// WithLockTimeout bounds the wait for the cross-process lock of a run.
func WithLockTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		w.lockWait = d
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(w *Workflow) {
		w.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the workflow.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// New initializes a workflow. By default its log lives in
// "<working directory>/.redo/<name>.json".
func New(name string, opts ...Option) (*Workflow, error) {
	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}
	w := &Workflow{Name: name, dir: "."}
	for _, opt := range opts {
		opt(w)
	}

	if w.store == nil {
		base := filepath.Join(w.dir, file.DefaultDir)
		w.store = file.New(base)
		if w.locker == nil {
			w.locker = file.NewLocker(base)
		}
	}
	if w.logger == nil {
		w.logger = logging.NewNop()
	}
	w.logger = w.logger.With("workflow", name)

	managerOpts := []lease.Option{
		lease.WithLogger(w.logger),
		lease.WithLockTTL(w.lockTTL),
		lease.WithLockTimeout(w.lockWait),
	}
	if w.locker != nil {
		managerOpts = append(managerOpts, lease.WithLocker(w.locker))
	}
	w.manager = lease.NewManager(w.store, managerOpts...)
	return w, nil
}

// Result summarizes one run.
type Result struct {
	Workflow string
	Success  bool
	Log      domain.Log
	// Events holds one skip or finish event per leaf, in run order.
	Events   []domain.TaskEvent
	Duration time.Duration
}

// Reran returns the number of leaves that executed.
func (r *Result) Reran() int {
	n := 0
	for _, e := range r.Events {
		if e.Type == domain.EventTaskFinish {
			n++
		}
	}
	return n
}

// Skipped returns the number of leaves that were up to date.
func (r *Result) Skipped() int {
	return len(r.Events) - r.Reran()
}

// Run executes tree against the stored log and saves the new one. The whole
// load, run, save cycle holds the workflow lock.
//
// A failing leaf is not an error: it shows up as Result.Success == false. An
// error means the run was aborted and nothing was saved.
func (w *Workflow) Run(ctx context.Context, tree task.Node) (*Result, error) {
	res := &Result{Workflow: w.Name}
	var mu sync.Mutex
	collect := func(_ context.Context, e *domain.TaskEvent) {
		mu.Lock()
		defer mu.Unlock()
		res.Events = append(res.Events, *e)
	}
	hooks := w.hooks.Merge(domain.LifecycleHooks{
		OnTaskSkip:   collect,
		OnTaskFinish: collect,
	})
	runner := runtime.NewRunner(
		runtime.WithLogger(w.logger),
		runtime.WithLifecycleHooks(hooks),
		runtime.WithWorkflowName(w.Name),
	)

	start := time.Now()
	err := w.manager.Update(ctx, w.Name, func(ctx context.Context, prior domain.Log) (domain.Log, error) {
		ok, log, err := runner.Run(ctx, tree, prior)
		if err != nil {
			return nil, err
		}
		res.Success = ok
		res.Log = log
		return log, nil
	})
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", w.Name, err)
	}
	res.Duration = time.Since(start)

	w.logger.InfoContext(ctx, "workflow finished",
		"success", res.Success,
		"reran", res.Reran(),
		"skipped", res.Skipped(),
		"duration", res.Duration,
	)
	return res, nil
}

// Log returns the stored log; empty when the workflow never ran.
func (w *Workflow) Log(ctx context.Context) (domain.Log, error) {
	return w.manager.Load(ctx, w.Name)
}

// Flat returns the flattened view of the stored log.
func (w *Workflow) Flat(ctx context.Context, opts ...flat.Option) (*flat.View, error) {
	log, err := w.Log(ctx)
	if err != nil {
		return nil, err
	}
	return flat.New(log, opts...), nil
}

// Reset deletes the stored log so that every task reruns next time.
func (w *Workflow) Reset(ctx context.Context) error {
	return w.manager.Delete(ctx, w.Name)
}

// Store returns the underlying log store.
func (w *Workflow) Store() ports.LogStore {
	return w.store
}
