package workflow

import (
	"io"
	"log/slog"

	"github.com/aretw0/redo/pkg/task"
)

// TreeOption configures Tree.
type TreeOption func(*treeConfig)

type treeConfig struct {
	stdout, stderr io.Writer
	logger         *slog.Logger
}

// WithOutput streams the output of every command to the given writers.
func WithOutput(stdout, stderr io.Writer) TreeOption {
	return func(c *treeConfig) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// WithLogger passes a logger to every task.
func WithLogger(logger *slog.Logger) TreeOption {
	return func(c *treeConfig) {
		c.logger = logger
	}
}

// Tree instantiates the task tree. Relative paths resolve against baseDir.
// Construction errors, such as a missing input file, are returned as is.
func (f *File) Tree(baseDir string, opts ...TreeOption) (task.Group, error) {
	var cfg treeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return build(f.Tasks, baseDir, &cfg)
}

func build(steps []Step, baseDir string, cfg *treeConfig) (task.Group, error) {
	group := make(task.Group, 0, len(steps))
	for _, s := range steps {
		if s.IsGroup() {
			sub, err := build(s.Group, baseDir, cfg)
			if err != nil {
				return nil, err
			}
			group = append(group, sub)
			continue
		}

		cmd := &Command{Step: s, BaseDir: baseDir, Stdout: cfg.stdout, Stderr: cfg.stderr}
		args := make([]any, len(s.Args))
		for i, a := range s.Args {
			args[i] = a
		}
		opts := []task.Option{task.WithArgs(args...)}
		if cfg.logger != nil {
			opts = append(opts, task.WithLogger(cfg.logger))
		}
		t, err := task.New(cmd, opts...)
		if err != nil {
			return nil, err
		}
		group = append(group, t)
	}
	return group, nil
}
