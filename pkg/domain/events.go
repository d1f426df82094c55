package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTaskStart  EventType = "task_start"
	EventTaskSkip   EventType = "task_skip"
	EventTaskFinish EventType = "task_finish"
)

// TaskEvent describes a decision or outcome for a single leaf of the tree.
type TaskEvent struct {
	Timestamp      time.Time     `json:"timestamp"`
	Type           EventType     `json:"type"`
	Workflow       string        `json:"workflow,omitempty"`
	Index          Index         `json:"index"`
	Task           string        `json:"task"`
	InputsChanged  bool          `json:"inputs_changed"`
	OutputsChanged bool          `json:"outputs_changed"`
	Success        bool          `json:"success"`
	Duration       time.Duration `json:"duration,omitempty"`
}

// LifecycleHooks defines callbacks for runner observability.
// Any of them may be nil.
type LifecycleHooks struct {
	// OnTaskStart fires before a leaf is rerun.
	OnTaskStart func(context.Context, *TaskEvent)
	// OnTaskSkip fires when a leaf is up to date.
	OnTaskSkip func(context.Context, *TaskEvent)
	// OnTaskFinish fires after a rerun completed without a hook error.
	OnTaskFinish func(context.Context, *TaskEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTaskStart:  chain(h.OnTaskStart, other.OnTaskStart),
		OnTaskSkip:   chain(h.OnTaskSkip, other.OnTaskSkip),
		OnTaskFinish: chain(h.OnTaskFinish, other.OnTaskFinish),
	}
}

func chain(a, b func(context.Context, *TaskEvent)) func(context.Context, *TaskEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *TaskEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
