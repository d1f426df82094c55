package observability_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/redo/pkg/adapters/memory"
	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics()
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnTaskSkip(ctx, &domain.TaskEvent{Workflow: "build"})
	hooks.OnTaskFinish(ctx, &domain.TaskEvent{Workflow: "build", Success: true, Duration: time.Second})
	hooks.OnTaskFinish(ctx, &domain.TaskEvent{Workflow: "build", Duration: time.Millisecond})
	hooks.OnTaskFinish(ctx, &domain.TaskEvent{Workflow: "build", Success: true})

	expected := `
# HELP redo_tasks_total Task decisions by outcome.
# TYPE redo_tasks_total counter
redo_tasks_total{outcome="failed",workflow="build"} 1
redo_tasks_total{outcome="skipped",workflow="build"} 1
redo_tasks_total{outcome="succeeded",workflow="build"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "redo_tasks_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Registry(), "redo_task_duration_seconds"))
	assert.Nil(t, hooks.OnTaskStart, "starts are not counted")
}

func TestMetrics_ObserveRun(t *testing.T) {
	m := observability.NewMetrics()
	at := time.Unix(1700000000, 0)

	m.ObserveRun("build", false, time.Second, at)
	m.ObserveRun("build", true, time.Second, at.Add(time.Minute))

	expected := `
# HELP redo_last_run_success 1 if the last completed run succeeded, 0 otherwise.
# TYPE redo_last_run_success gauge
redo_last_run_success{workflow="build"} 1
# HELP redo_last_run_timestamp_seconds Unix time of the last completed run.
# TYPE redo_last_run_timestamp_seconds gauge
redo_last_run_timestamp_seconds{workflow="build"} 1.70000006e+09
# HELP redo_runs_total Workflow runs by result.
# TYPE redo_runs_total counter
redo_runs_total{result="failed",workflow="build"} 1
redo_runs_total{result="succeeded",workflow="build"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"redo_last_run_success", "redo_last_run_timestamp_seconds", "redo_runs_total"))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := observability.NewMetrics()
	m.ObserveRun("nightly", true, time.Second, time.Now())
	path := filepath.Join(t.TempDir(), "redo.prom")

	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `redo_runs_total{result="succeeded",workflow="nightly"} 1`)
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics()
	m.Hooks().OnTaskSkip(context.Background(), &domain.TaskEvent{Workflow: "w"})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `redo_tasks_total{outcome="skipped",workflow="w"} 1`)
}

func TestLogCollector(t *testing.T) {
	store := memory.NewStore()
	ok := domain.NewRecord(domain.Index{0}, "A")
	ok.SetSuccess(true)
	bad := domain.NewRecord(domain.Index{1, 0}, "B")
	bad.SetSuccess(false)
	never := domain.NewRecord(domain.Index{1, 1}, "C")
	require.NoError(t, store.Save(context.Background(), "site", domain.Log{
		domain.Leaf(ok),
		domain.Nest(domain.Leaf(bad), domain.Leaf(never)),
	}))

	c := observability.NewLogCollector(store, nil)
	expected := `
# HELP redo_log_tasks Leaves in the persisted log by last run state.
# TYPE redo_log_tasks gauge
redo_log_tasks{state="failed",workflow="site"} 1
redo_log_tasks{state="succeeded",workflow="site"} 1
redo_log_tasks{state="unknown",workflow="site"} 1
# HELP redo_log_scrape_errors Logs that could not be read during the scrape.
# TYPE redo_log_scrape_errors gauge
redo_log_scrape_errors 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}
