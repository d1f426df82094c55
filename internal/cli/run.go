package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/redo"
	"github.com/aretw0/redo/internal/config"
	"github.com/aretw0/redo/internal/logging"
	"github.com/aretw0/redo/internal/presentation/tui"
	"github.com/aretw0/redo/pkg/observability"
	"github.com/aretw0/redo/pkg/workflow"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	Config       config.Config
	WorkflowPath string

	// Fresh deletes the stored log first, so every task reruns.
	Fresh bool
	// Report renders a markdown summary instead of the tree.
	Report bool
	Quiet  bool
	// Color enables ANSI styles in the tree and the report.
	Color bool
	Width int

	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Run executes a workflow file against its stored log and prints the outcome.
// Failing tasks are reported through Result.Success, not as an error.
func Run(ctx context.Context, opts RunOptions) (*redo.Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	wf, err := workflow.Load(opts.WorkflowPath)
	if err != nil {
		return nil, err
	}
	baseDir, err := filepath.Abs(filepath.Dir(opts.WorkflowPath))
	if err != nil {
		return nil, err
	}

	backend, err := OpenBackend(opts.Config, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("failed to close backend", "error", err)
		}
	}()

	metrics := observability.NewMetrics()
	w, err := redo.New(wf.Name,
		redo.WithStore(backend.Store),
		redo.WithLocker(backend.Locker),
		redo.WithLockTTL(opts.Config.LockTTL),
		redo.WithLockTimeout(opts.Config.LockTimeout),
		redo.WithLifecycleHooks(metrics.Hooks().Merge(debugHooks(logger))),
		redo.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	if opts.Fresh {
		if err := w.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset %s: %w", wf.Name, err)
		}
		if !opts.Quiet {
			printSystemMessage(stderr, "Cleared log of '%s'.", wf.Name)
		}
	}

	tree, err := wf.Tree(baseDir, workflow.WithOutput(stdout, stderr), workflow.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	res, err := w.Run(ctx, tree)
	if err != nil {
		return nil, err
	}
	metrics.ObserveRun(wf.Name, res.Success, res.Duration, time.Now())
	if opts.Config.MetricsFile != "" {
		if err := metrics.WriteTextfile(opts.Config.MetricsFile); err != nil {
			logger.Warn("failed to write metrics", "path", opts.Config.MetricsFile, "error", err)
		}
	}

	if opts.Quiet {
		return res, nil
	}
	if opts.Report {
		render, err := tui.NewRenderer(opts.Color, opts.Width)
		if err != nil {
			return res, err
		}
		out, err := render(tui.Report(res))
		if err != nil {
			return res, err
		}
		_, err = io.WriteString(stdout, out)
		return res, err
	}
	tui.NewTreePrinter(stdout, opts.Color).WithEvents(res.Events).Print(wf.Name, res.Log)
	return res, nil
}
