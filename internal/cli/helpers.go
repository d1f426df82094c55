package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/redo/internal/logging"
	"github.com/aretw0/redo/pkg/domain"
)

// SignalContext is cancelled on SIGINT or SIGTERM and remembers which
// signal did it, so that commands can tell an interrupt from a timeout.
type SignalContext struct {
	context.Context
	Cancel context.CancelFunc

	mu  sync.Mutex
	sig os.Signal
}

// NewSignalContext starts watching for signals until the context is done.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{Context: ctx, Cancel: cancel}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			sc.mu.Lock()
			sc.sig = sig
			sc.mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()
	return sc
}

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sig
}

// NewLogger configures the application logger from a level name.
// Logs go to w so that stdout stays free for trees and exports.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return logging.NewWithWriter(w, logging.ParseLevel(level))
}

// debugHooks logs every task decision at debug level.
func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTaskSkip: func(ctx context.Context, e *domain.TaskEvent) {
			logger.DebugContext(ctx, "Task Skipped", "index", e.Index.String(), "task", e.Task)
		},
		OnTaskStart: func(ctx context.Context, e *domain.TaskEvent) {
			logger.DebugContext(ctx, "Task Started", "index", e.Index.String(), "task", e.Task,
				"inputs_changed", e.InputsChanged, "outputs_changed", e.OutputsChanged)
		},
		OnTaskFinish: func(ctx context.Context, e *domain.TaskEvent) {
			logger.DebugContext(ctx, "Task Finished", "index", e.Index.String(), "task", e.Task,
				"success", e.Success, "duration", e.Duration)
		},
	}
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// IsInterrupted reports whether err comes from a cancelled run.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
