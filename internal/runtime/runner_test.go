package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/redo/internal/runtime"
	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/param"
	"github.com/aretw0/redo/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is a minimal task type whose outcome and identity are configurable.
type step struct {
	label string
	ok    bool
	value int
	err   error
	runs  *[]string
}

func (s *step) Label() string { return s.label }

func (s *step) Input(*task.Task) ([]param.Parameter, error) {
	return []param.Parameter{param.New("value", s.value)}, nil
}

func (s *step) Output(*task.Task) ([]param.Parameter, error) { return nil, nil }

func (s *step) Action(context.Context, *task.Task) (any, error) {
	*s.runs = append(*s.runs, s.label)
	return nil, s.err
}

func (s *step) Success(context.Context, *task.Task) ([]bool, error) {
	return []bool{s.ok}, nil
}

type fixture struct {
	runs []string
}

func (f *fixture) ok(label string) *task.Task {
	return task.MustNew(&step{label: label, ok: true, runs: &f.runs})
}

func (f *fixture) fail(label string) *task.Task {
	return task.MustNew(&step{label: label, runs: &f.runs})
}

func (f *fixture) valued(label string, v int) *task.Task {
	return task.MustNew(&step{label: label, ok: true, value: v, runs: &f.runs})
}

func run(t *testing.T, tree task.Node, prior domain.Log) (bool, domain.Log) {
	t.Helper()
	ok, log, err := runtime.NewRunner().Run(context.Background(), tree, prior)
	require.NoError(t, err)
	return ok, log
}

// assertShape checks that log is isomorphic to tree at every level.
func assertShape(t *testing.T, tree task.Group, log domain.Log) {
	t.Helper()
	require.Len(t, log, len(tree))
	for i, n := range tree {
		switch node := n.(type) {
		case task.Group:
			require.True(t, log[i].IsGroup(), "entry %d should be a group", i)
			assertShape(t, node, log[i].Group)
		case *task.Task:
			require.False(t, log[i].IsGroup(), "entry %d should be a leaf", i)
			assert.Equal(t, node.Label(), log[i].Record.TaskClass)
		}
	}
}

func TestRunner_FailureDoesNotShortCircuit(t *testing.T) {
	f := &fixture{}
	tree := task.Seq(f.ok("Task0"), task.Seq(f.ok("Task1a"), f.fail("Task1b")), f.ok("Task2"))

	ok, log := run(t, tree, nil)

	assert.False(t, ok)
	assert.Equal(t, []string{"Task0", "Task1a", "Task1b", "Task2"}, f.runs)
	assertShape(t, tree, log)
	assert.False(t, log[1].Group[1].Record.Succeeded())
	assert.True(t, log[2].Record.Succeeded())
	assert.Equal(t, domain.Index{1, 1}, log[1].Group[1].Record.Index)
}

func TestRunner_AllSucceed(t *testing.T) {
	f := &fixture{}
	tree := task.Seq(f.ok("A"), task.Seq(f.ok("B"), task.Seq(f.ok("C"))))

	ok, log := run(t, tree, nil)
	assert.True(t, ok)
	assertShape(t, tree, log)
	assert.Equal(t, domain.Index{1, 1, 0}, log[1].Group[1].Group[0].Record.Index)
}

func TestRunner_SecondRunSkipsEverything(t *testing.T) {
	f := &fixture{}
	build := func() task.Group {
		return task.Seq(f.ok("A"), task.Seq(f.ok("B"), f.ok("C")))
	}

	ok, first := run(t, build(), nil)
	require.True(t, ok)
	f.runs = nil

	ok, second := run(t, build(), first)
	assert.True(t, ok)
	assert.Empty(t, f.runs)
	assert.True(t, first.Equal(second))
	assert.Same(t, first[1].Group[0].Record, second[1].Group[0].Record)
}

func TestRunner_FailedLeafRerunsNextTime(t *testing.T) {
	f := &fixture{}
	ok, first := run(t, task.Seq(f.ok("A"), f.fail("B")), nil)
	require.False(t, ok)
	f.runs = nil

	ok, second := run(t, task.Seq(f.ok("A"), f.ok("B")), first)
	assert.True(t, ok)
	assert.Equal(t, []string{"B"}, f.runs)
	assert.True(t, second[1].Record.Succeeded())
}

func TestRunner_PrunesRemovedLeaves(t *testing.T) {
	f := &fixture{}
	_, prior := run(t, task.Seq(f.ok("A"), f.ok("B"), f.ok("C"), f.ok("D")), nil)
	require.Len(t, prior, 4)
	f.runs = nil

	tree := task.Seq(f.ok("A"), f.ok("B"), f.ok("C"))
	ok, log := run(t, tree, prior)

	assert.True(t, ok)
	assert.Empty(t, f.runs)
	assertShape(t, tree, log)
}

func TestRunner_LeafBecomesGroup(t *testing.T) {
	f := &fixture{}
	_, prior := run(t, task.Seq(f.ok("A"), f.ok("B")), nil)
	f.runs = nil

	tree := task.Seq(f.ok("A"), task.Seq(f.ok("B"), f.ok("B")))
	ok, log := run(t, tree, prior)

	assert.True(t, ok)
	assert.Equal(t, []string{"B", "B"}, f.runs, "group children start from unknown records")
	assertShape(t, tree, log)
}

func TestRunner_GroupBecomesLeaf(t *testing.T) {
	f := &fixture{}
	_, prior := run(t, task.Seq(f.ok("A"), task.Seq(f.ok("B"))), nil)
	f.runs = nil

	tree := task.Seq(f.ok("A"), f.ok("B"))
	ok, log := run(t, tree, prior)

	assert.True(t, ok)
	assert.Equal(t, []string{"B"}, f.runs)
	assertShape(t, tree, log)
}

func TestRunner_DeeperNestingReconciles(t *testing.T) {
	f := &fixture{}
	_, prior := run(t, task.Seq(task.Seq(f.ok("A"), f.ok("B")), f.ok("C")), nil)
	f.runs = nil

	tree := task.Seq(task.Seq(f.ok("A"), task.Seq(f.ok("X"))), f.ok("C"), f.ok("D"))
	ok, log := run(t, tree, prior)

	assert.True(t, ok)
	assert.Equal(t, []string{"X", "D"}, f.runs)
	assertShape(t, tree, log)
}

func TestRunner_ChangedInputReruns(t *testing.T) {
	f := &fixture{}
	_, prior := run(t, task.Seq(f.valued("A", 1), f.valued("B", 1)), nil)
	f.runs = nil

	_, log := run(t, task.Seq(f.valued("A", 1), f.valued("B", 2)), prior)
	assert.Equal(t, []string{"B"}, f.runs)
	assert.Equal(t, 2, log[1].Record.Inputs["value"])
}

func TestRunner_RootLeaf(t *testing.T) {
	f := &fixture{}
	ok, log := run(t, f.ok("A"), nil)
	assert.True(t, ok)
	require.Len(t, log, 1)
	assert.Equal(t, domain.Index{0}, log[0].Record.Index)
}

func TestRunner_EmptyTree(t *testing.T) {
	ok, log := run(t, nil, domain.Log{domain.Leaf(domain.NewRecord(nil, "old"))})
	assert.True(t, ok)
	assert.Empty(t, log)

	ok, log = run(t, task.Seq(), nil)
	assert.True(t, ok)
	assert.Empty(t, log)
}

func TestRunner_EmptyGroupStaysAGroup(t *testing.T) {
	f := &fixture{}
	tree := task.Seq(f.ok("A"), task.Seq())
	_, log := run(t, tree, nil)
	assertShape(t, tree, log)
}

func TestRunner_OverallSuccessMatchesLeaves(t *testing.T) {
	f := &fixture{}
	trees := []task.Group{
		task.Seq(f.ok("A")),
		task.Seq(f.fail("A")),
		task.Seq(task.Seq(task.Seq(f.fail("A"))), f.ok("B")),
		task.Seq(task.Seq(f.ok("A"), f.ok("B")), task.Seq(f.ok("C"))),
	}
	for _, tree := range trees {
		ok, log := run(t, tree, nil)
		assert.Equal(t, log.Succeeded(), ok)
	}
}

func TestRunner_HookErrorAbortsRun(t *testing.T) {
	f := &fixture{}
	boom := errors.New("boom")
	broken := task.MustNew(&step{label: "Broken", err: boom, runs: &f.runs})

	_, _, err := runtime.NewRunner().Run(context.Background(), task.Seq(broken, f.ok("After")), nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"Broken"}, f.runs)
}

func TestRunner_NilTaskInGroup(t *testing.T) {
	var missing *task.Task
	_, _, err := runtime.NewRunner().Run(context.Background(), task.Group{missing}, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRunner_LifecycleHooks(t *testing.T) {
	f := &fixture{}
	var events []domain.EventType
	var finished []*domain.TaskEvent
	hooks := domain.LifecycleHooks{
		OnTaskStart: func(_ context.Context, e *domain.TaskEvent) { events = append(events, e.Type) },
		OnTaskSkip:  func(_ context.Context, e *domain.TaskEvent) { events = append(events, e.Type) },
		OnTaskFinish: func(_ context.Context, e *domain.TaskEvent) {
			events = append(events, e.Type)
			finished = append(finished, e)
		},
	}
	runner := runtime.NewRunner(runtime.WithLifecycleHooks(hooks), runtime.WithWorkflowName("build"))

	_, prior, err := runner.Run(context.Background(), task.Seq(f.ok("A"), f.fail("B")), nil)
	require.NoError(t, err)
	_, _, err = runner.Run(context.Background(), task.Seq(f.ok("A"), f.fail("B")), prior)
	require.NoError(t, err)

	assert.Equal(t, []domain.EventType{
		domain.EventTaskStart, domain.EventTaskFinish,
		domain.EventTaskStart, domain.EventTaskFinish,
		domain.EventTaskSkip,
		domain.EventTaskStart, domain.EventTaskFinish,
	}, events)
	require.Len(t, finished, 3)
	assert.Equal(t, "build", finished[1].Workflow)
	assert.Equal(t, "B", finished[1].Task)
	assert.False(t, finished[1].Success)
	assert.Equal(t, domain.Index{1}, finished[1].Index)
}

func TestRunner_CancelledContext(t *testing.T) {
	f := &fixture{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := runtime.NewRunner().Run(ctx, task.Seq(f.ok("A")), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.runs)
}
