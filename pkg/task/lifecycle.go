package task

import (
	"context"
	"fmt"

	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/param"
)

// Decision is the outcome of comparing a task against its prior record.
type Decision struct {
	InputsChanged  bool
	OutputsChanged bool
	PriorSuccess   bool
}

// Rerun reports whether the task must execute: a changed snapshot or a prior
// run that is not known to have succeeded.
func (d Decision) Rerun() bool {
	return d.InputsChanged || d.OutputsChanged || !d.PriorSuccess
}

// Plan compares the current snapshots with the prior record. A nil prior is
// treated as a record of a task that never ran.
func (t *Task) Plan(ctx context.Context, prior *domain.Record) (Decision, error) {
	if prior == nil {
		prior = domain.NewRecord(nil, t.label)
	}
	inputsChanged, err := t.inputs.Changed(prior.Inputs)
	if err != nil {
		return Decision{}, fmt.Errorf("task %s: inputs: %w", t.label, err)
	}
	outputsChanged, err := t.outputs.Changed(prior.Outputs)
	if err != nil {
		return Decision{}, fmt.Errorf("task %s: outputs: %w", t.label, err)
	}
	d := Decision{
		InputsChanged:  inputsChanged,
		OutputsChanged: outputsChanged,
		PriorSuccess:   prior.Succeeded(),
	}
	t.logger.DebugContext(ctx, "task planned",
		"task", t.label,
		"inputs_changed", d.InputsChanged,
		"outputs_changed", d.OutputsChanged,
		"prior_success", d.PriorSuccess,
	)
	return d, nil
}

// Run decides between skip and rerun. On skip the prior record is returned
// unmodified; on rerun a new record is returned.
func (t *Task) Run(ctx context.Context, prior *domain.Record) (*domain.Record, error) {
	d, err := t.Plan(ctx, prior)
	if err != nil {
		return nil, err
	}
	if !d.Rerun() {
		return prior, nil
	}
	return t.Rerun(ctx, prior)
}

// Rerun executes action, success and after, in that order.
//
// On success every input and output snapshot is refreshed and stored. On
// failure the stored snapshots stay as they were, so that the false success
// flag alone forces the next rerun. The prior record is never modified.
func (t *Task) Rerun(ctx context.Context, prior *domain.Record) (*domain.Record, error) {
	rec := prior.Clone()
	if rec == nil {
		rec = domain.NewRecord(nil, t.label)
	}
	rec.TaskClass = t.label

	t.logger.InfoContext(ctx, "rerunning task", "task", t.label)

	report, err := t.def.Action(ctx, t)
	if err != nil {
		return nil, err
	}
	t.report = report

	results, err := t.def.Success(ctx, t)
	if err != nil {
		return nil, err
	}
	success := true
	for _, ok := range results {
		success = success && ok
	}

	info := map[string]any{}
	if h, ok := t.def.(AfterHook); ok {
		extra, err := h.After(ctx, t)
		if err != nil {
			return nil, err
		}
		set, err := param.NewSet(extra...)
		if err != nil {
			return nil, fmt.Errorf("task %s: info: %w", t.label, err)
		}
		if err := set.Refresh(); err != nil {
			return nil, fmt.Errorf("task %s: info: %w", t.label, err)
		}
		info = set.Snapshot()
	}
	rec.Info = info

	if success {
		if err := t.inputs.Refresh(); err != nil {
			return nil, fmt.Errorf("task %s: inputs: %w", t.label, err)
		}
		if err := t.outputs.Refresh(); err != nil {
			return nil, fmt.Errorf("task %s: outputs: %w", t.label, err)
		}
		rec.Inputs = t.inputs.Snapshot()
		rec.Outputs = t.outputs.Snapshot()
	}
	rec.SetSuccess(success)

	t.logger.InfoContext(ctx, "task finished", "task", t.label, "success", success)
	return rec, nil
}
