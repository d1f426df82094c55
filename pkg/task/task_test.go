package task_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/param"
	"github.com/aretw0/redo/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probe is a configurable definition that records its hook calls.
type probe struct {
	inputs  []param.Parameter
	outputs []param.Parameter
	info    []param.Parameter
	results []bool
	fail    error
	calls   []string
}

func (p *probe) Before(*task.Task) error {
	p.calls = append(p.calls, "before")
	return nil
}

func (p *probe) Input(*task.Task) ([]param.Parameter, error)  { return p.inputs, nil }
func (p *probe) Output(*task.Task) ([]param.Parameter, error) { return p.outputs, nil }

func (p *probe) Action(context.Context, *task.Task) (any, error) {
	p.calls = append(p.calls, "action")
	if p.fail != nil {
		return nil, p.fail
	}
	return "done", nil
}

func (p *probe) Success(context.Context, *task.Task) ([]bool, error) {
	p.calls = append(p.calls, "success")
	return p.results, nil
}

func (p *probe) After(context.Context, *task.Task) ([]param.Parameter, error) {
	p.calls = append(p.calls, "after")
	return p.info, nil
}

type labeled struct{ probe }

func (labeled) Label() string { return "Compile" }

func succeeded(b bool) *bool { return &b }

func TestNew_ProvenanceParameters(t *testing.T) {
	def := &probe{inputs: []param.Parameter{param.New("a", 1)}}
	tk, err := task.New(def, task.WithArgs("x", 2), task.WithKwargs(map[string]any{"k": "v"}))
	require.NoError(t, err)

	assert.Equal(t, "probe", tk.Label())
	assert.Equal(t, []string{"a", task.ParamName, task.ParamArgs, task.ParamKwargs}, tk.Inputs().Names())
	assert.Equal(t, "probe", tk.Inputs().Value(task.ParamName))
	assert.Equal(t, []any{"x", 2}, tk.Inputs().Value(task.ParamArgs))
	assert.Equal(t, map[string]any{"k": "v"}, tk.Inputs().Value(task.ParamKwargs))
	assert.Equal(t, 0, tk.Outputs().Len())
	assert.Equal(t, []string{"before"}, def.calls)
}

func TestNew_LabelerOverridesTypeName(t *testing.T) {
	tk, err := task.New(&labeled{})
	require.NoError(t, err)
	assert.Equal(t, "Compile", tk.Label())
}

func TestNew_ReservedNameCollision(t *testing.T) {
	_, err := task.New(&probe{inputs: []param.Parameter{param.New(task.ParamArgs, 1)}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNew_DuplicateOutput(t *testing.T) {
	_, err := task.New(&probe{outputs: []param.Parameter{param.New("o", 1), param.New("o", 2)}})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNew_InputAndOutputNamespacesAreIndependent(t *testing.T) {
	_, err := task.New(&probe{
		inputs:  []param.Parameter{param.New("same", 1)},
		outputs: []param.Parameter{param.New("same", 2)},
	})
	assert.NoError(t, err)
}

func TestNew_NilDefinition(t *testing.T) {
	_, err := task.New(nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRun_NoPriorRecordReruns(t *testing.T) {
	def := &probe{inputs: []param.Parameter{param.New("a", 1)}, results: []bool{true}}
	tk := task.MustNew(def)

	rec, err := tk.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"before", "action", "success", "after"}, def.calls)
	assert.Equal(t, "probe", rec.TaskClass)
	assert.True(t, rec.Succeeded())
	assert.Equal(t, 1, rec.Inputs["a"])
	assert.Equal(t, "done", tk.Report())
	assert.Equal(t, map[string]any{}, rec.Info)
}

func TestRun_SkipReturnsPriorUnmodified(t *testing.T) {
	ctx := context.Background()
	first := task.MustNew(&probe{inputs: []param.Parameter{param.New("a", 1)}})
	prior, err := first.Run(ctx, nil)
	require.NoError(t, err)
	require.True(t, prior.Succeeded())

	def := &probe{inputs: []param.Parameter{param.New("a", 1)}}
	rec, err := task.MustNew(def).Run(ctx, prior)
	require.NoError(t, err)

	assert.Same(t, prior, rec)
	assert.Equal(t, []string{"before"}, def.calls)
}

func TestRun_SkipAfterPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	build := func() *task.Task {
		return task.MustNew(&probe{
			inputs: []param.Parameter{param.New("pair", [2]any{"a", 1})},
		}, task.WithArgs(3))
	}
	prior, err := build().Run(ctx, nil)
	require.NoError(t, err)

	data, err := domain.EncodeLog(domain.Log{domain.Leaf(prior)})
	require.NoError(t, err)
	decoded, err := domain.DecodeLog(data)
	require.NoError(t, err)

	loaded := decoded[0].Record
	d, err := build().Plan(ctx, loaded)
	require.NoError(t, err)
	assert.False(t, d.Rerun(), "decoded snapshots compare equal to fresh ones: %+v", d)
}

func TestRun_ChangedInputReruns(t *testing.T) {
	ctx := context.Background()
	prior, err := task.MustNew(&probe{inputs: []param.Parameter{param.New("a", 1)}}).Run(ctx, nil)
	require.NoError(t, err)

	tk := task.MustNew(&probe{inputs: []param.Parameter{param.New("a", 2)}})
	d, err := tk.Plan(ctx, prior)
	require.NoError(t, err)
	assert.Equal(t, task.Decision{InputsChanged: true, PriorSuccess: true}, d)

	rec, err := tk.Run(ctx, prior)
	require.NoError(t, err)
	assert.NotSame(t, prior, rec)
	assert.Equal(t, 2, rec.Inputs["a"])
	assert.Equal(t, 1, prior.Inputs["a"], "prior record is left untouched")
}

func TestRun_ChangedArgsRerun(t *testing.T) {
	ctx := context.Background()
	prior, err := task.MustNew(&probe{}, task.WithArgs(1)).Run(ctx, nil)
	require.NoError(t, err)

	d, err := task.MustNew(&probe{}, task.WithArgs(2)).Plan(ctx, prior)
	require.NoError(t, err)
	assert.True(t, d.InputsChanged)
}

func TestRun_PriorUnknownOrFalseAlwaysReruns(t *testing.T) {
	ctx := context.Background()
	prior, err := task.MustNew(&probe{}).Run(ctx, nil)
	require.NoError(t, err)

	for name, success := range map[string]*bool{"unknown": nil, "false": succeeded(false)} {
		t.Run(name, func(t *testing.T) {
			stale := prior.Clone()
			stale.LastRunSuccess = success

			def := &probe{}
			rec, err := task.MustNew(def).Run(ctx, stale)
			require.NoError(t, err)
			assert.Contains(t, def.calls, "action")
			assert.True(t, rec.Succeeded())
		})
	}
}

func TestRun_NewInputNameCountsAsChanged(t *testing.T) {
	ctx := context.Background()
	prior, err := task.MustNew(&probe{}).Run(ctx, nil)
	require.NoError(t, err)

	d, err := task.MustNew(&probe{inputs: []param.Parameter{param.New("extra", 0)}}).Plan(ctx, prior)
	require.NoError(t, err)
	assert.True(t, d.InputsChanged)

	// Names only present in the prior record are ignored.
	withExtra, err := task.MustNew(&probe{inputs: []param.Parameter{param.New("extra", 0)}}).Run(ctx, nil)
	require.NoError(t, err)
	d, err = task.MustNew(&probe{}).Plan(ctx, withExtra)
	require.NoError(t, err)
	assert.False(t, d.InputsChanged)
}

func TestRerun_FailureKeepsStaleSnapshots(t *testing.T) {
	ctx := context.Background()
	prior, err := task.MustNew(&probe{inputs: []param.Parameter{param.New("a", 1)}}).Run(ctx, nil)
	require.NoError(t, err)

	tk := task.MustNew(&probe{
		inputs:  []param.Parameter{param.New("a", 2)},
		results: []bool{true, false},
	})
	rec, err := tk.Run(ctx, prior)
	require.NoError(t, err)

	assert.False(t, rec.Succeeded())
	require.NotNil(t, rec.LastRunSuccess)
	assert.Equal(t, 1, rec.Inputs["a"])
}

func TestRun_UnchangedButPriorFailedReruns(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "result.txt")
	require.NoError(t, os.WriteFile(out, nil, 0o644))
	mtime := time.Unix(11111, 0)
	require.NoError(t, os.Chtimes(out, mtime, mtime))

	newTask := func() *task.Task {
		f, err := param.NewFile("result", out)
		require.NoError(t, err)
		return task.MustNew(&probe{
			inputs:  []param.Parameter{param.New("a", 1)},
			outputs: []param.Parameter{f},
		})
	}
	first, err := newTask().Run(ctx, nil)
	require.NoError(t, err)

	stale := first.Clone()
	stale.SetSuccess(false)
	stale.Outputs = map[string]any{"result": []any{out, mtime.UnixNano()}}

	tk := newTask()
	d, err := tk.Plan(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, task.Decision{}, d)
	assert.True(t, d.Rerun())

	rec, err := tk.Run(ctx, stale)
	require.NoError(t, err)
	assert.True(t, rec.Succeeded())
	assert.Equal(t, []any{out, mtime.UnixNano()}, rec.Outputs["result"])
	assert.Equal(t, 1, rec.Inputs["a"])
	assert.False(t, stale.Succeeded())
}

func TestRerun_RecoversAfterFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	out := filepath.Join(dir, "out", "result.txt")

	newTask := func(results ...bool) *task.Task {
		f, err := param.NewFile("result", out, param.AutoCreate())
		require.NoError(t, err)
		return task.MustNew(&probe{
			inputs:  []param.Parameter{param.New("a", 1)},
			outputs: []param.Parameter{f},
			results: results,
		})
	}

	first, err := newTask(true).Run(ctx, nil)
	require.NoError(t, err)
	require.True(t, first.Succeeded())

	later := time.Unix(22222, 0)
	require.NoError(t, os.Chtimes(out, later, later))

	failed, err := newTask(false).Run(ctx, first)
	require.NoError(t, err)
	require.False(t, failed.Succeeded())
	assert.Equal(t, first.Outputs, failed.Outputs, "a failed run keeps the stale output snapshot")

	tk := newTask(true)
	d, err := tk.Plan(ctx, failed)
	require.NoError(t, err)
	assert.False(t, d.PriorSuccess)

	rec, err := tk.Run(ctx, failed)
	require.NoError(t, err)
	assert.True(t, rec.Succeeded())
	assert.Equal(t, []any{out, later.UnixNano()}, rec.Outputs["result"])
}

func TestRerun_AfterSnapshotsGoToInfo(t *testing.T) {
	tk := task.MustNew(&probe{info: []param.Parameter{param.New("lines", 42)}})
	rec, err := tk.Rerun(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lines": 42}, rec.Info)
}

func TestRerun_DuplicateInfoNames(t *testing.T) {
	tk := task.MustNew(&probe{info: []param.Parameter{param.New("x", 1), param.New("x", 2)}})
	_, err := tk.Rerun(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRerun_ActionErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	def := &probe{fail: boom}
	_, err := task.MustNew(def).Rerun(context.Background(), nil)

	assert.Equal(t, boom, err)
	assert.NotContains(t, def.calls, "success")
}

func TestCount(t *testing.T) {
	a := task.MustNew(&probe{})
	tree := task.Seq(a, task.Seq(a, a), task.Seq())
	assert.Equal(t, 3, task.Count(tree))
	assert.Equal(t, 1, task.Count(a))
}
