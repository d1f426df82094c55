package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/redo/internal/config"
	"github.com/aretw0/redo/internal/logging"
	"github.com/aretw0/redo/pkg/adapters/file"
	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/flat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipeline = `
name: pipeline
tasks:
  - name: copy
    command: sh
    args: [-c, "cp in.txt out.txt"]
    inputs: [in.txt]
    outputs: [out.txt]
  - group:
      - name: count
        command: sh
        args: [-c, "wc -c < out.txt > count.txt"]
        inputs: [out.txt]
        outputs: [count.txt]
`

func setup(t *testing.T) (string, config.Config) {
	t.Helper()
	if goruntime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in.txt"), []byte("hello"), 0o644))
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pipeline), 0o644))

	cfg := config.Default()
	cfg.Dir = dir
	return path, cfg
}

func TestOpenBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = t.TempDir()

	b, err := OpenBackend(cfg, logging.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &file.Store{}, b.Store)
	assert.NotNil(t, b.Locker)
	assert.NoError(t, b.Close())

	cfg.Backend = config.BackendMemory
	b, err = OpenBackend(cfg, logging.NewNop())
	require.NoError(t, err)
	assert.Nil(t, b.Locker)

	cfg.Backend = "s3"
	_, err = OpenBackend(cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestOpenBackend_Encrypted(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	ctx := context.Background()

	b, err := OpenBackend(cfg, logging.NewNop())
	require.NoError(t, err)
	log := domain.Log{domain.Leaf(domain.NewRecord(domain.Index{0}, "Secret"))}
	require.NoError(t, b.Store.Save(ctx, "vault", log))

	loaded, err := b.Store.Load(ctx, "vault")
	require.NoError(t, err)
	assert.True(t, log.Equal(loaded))

	raw, err := file.New(filepath.Join(cfg.Dir, file.DefaultDir)).Load(ctx, "vault")
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "__encrypted__", raw[0].Record.TaskClass)

	cfg.EncryptionKey = "too-short"
	_, err = OpenBackend(cfg, logging.NewNop())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestOpenBackend_Redis(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Backend = config.BackendRedis
	cfg.Redis.Addr = s.Addr()

	b, err := OpenBackend(cfg, logging.NewNop())
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Store.Save(ctx, "w", domain.Log{}))
	assert.True(t, s.Exists(cfg.Redis.Prefix+"w"))

	unlock, err := b.Locker.Lock(ctx, "w", cfg.LockTTL)
	require.NoError(t, err)
	assert.NoError(t, unlock.Unlock(ctx))
}

func TestRun_IncrementalTree(t *testing.T) {
	path, cfg := setup(t)
	ctx := context.Background()

	var out bytes.Buffer
	res, err := Run(ctx, RunOptions{Config: cfg, WorkflowPath: path, Stdout: &out})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Reran())
	assert.Contains(t, out.String(), "pipeline\n")
	assert.Contains(t, out.String(), "✓ [1][0] count")
	assert.FileExists(t, filepath.Join(cfg.Dir, file.DefaultDir, "pipeline.json"))

	out.Reset()
	res, err = Run(ctx, RunOptions{Config: cfg, WorkflowPath: path, Stdout: &out})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Reran())
	assert.Contains(t, out.String(), "(up to date)")

	res, err = Run(ctx, RunOptions{Config: cfg, WorkflowPath: path, Fresh: true, Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reran())
}

func TestRun_ReportAndMetrics(t *testing.T) {
	path, cfg := setup(t)
	cfg.MetricsFile = filepath.Join(t.TempDir(), "redo.prom")

	var out bytes.Buffer
	_, err := Run(context.Background(), RunOptions{Config: cfg, WorkflowPath: path, Report: true, Stdout: &out})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "pipeline")
	assert.Contains(t, out.String(), "count")

	data, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `redo_tasks_total{outcome="succeeded",workflow="pipeline"} 2`)
}

func TestRun_MissingInput(t *testing.T) {
	path, cfg := setup(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.Dir, "in.txt")))

	_, err := Run(context.Background(), RunOptions{Config: cfg, WorkflowPath: path})
	assert.ErrorIs(t, err, domain.ErrDependencyUnavailable)
}

func TestLogCommands(t *testing.T) {
	path, cfg := setup(t)
	ctx := context.Background()
	_, err := Run(ctx, RunOptions{Config: cfg, WorkflowPath: path, Quiet: true})
	require.NoError(t, err)

	b, err := OpenBackend(cfg, logging.NewNop())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ListLogs(ctx, b, &buf))
	assert.Equal(t, "pipeline\n", buf.String())

	buf.Reset()
	require.NoError(t, ShowLog(ctx, b, "pipeline", &buf))
	log, err := domain.DecodeLog(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, log.Succeeded())

	buf.Reset()
	require.NoError(t, PrintTree(ctx, b, "pipeline", &buf, false))
	assert.Contains(t, buf.String(), "└── [1]\n")

	buf.Reset()
	require.NoError(t, WriteGraph(ctx, b, "pipeline", &buf))
	assert.Contains(t, buf.String(), "class t1_0 succeeded;")

	buf.Reset()
	q := flat.Query{Cols: []string{flat.ColTaskClass}, Props: []string{"outputs:count.txt"}}
	require.NoError(t, WriteFlat(ctx, b, "pipeline", q, flat.Underscore, flat.FormatCSV, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "key,task_class,outputs_count.txt", lines[0])
	assert.Equal(t, "0,copy,", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "1_0,count,"))
	assert.True(t, strings.HasSuffix(lines[2], "count.txt"))

	require.NoError(t, RemoveLog(ctx, b, "pipeline"))
	assert.ErrorIs(t, ShowLog(ctx, b, "pipeline", &buf), domain.ErrLogNotFound)
	assert.ErrorIs(t, RemoveLog(ctx, b, "../x"), domain.ErrInvalidName)
}
