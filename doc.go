/*
Package redo is an incremental task-execution engine.

A workflow is a tree of tasks. Each task declares the parameters it depends on
(inputs) and the ones it produces (outputs). On every run the engine compares
the current snapshot of each parameter with the snapshot stored by the last
successful run and only executes the tasks whose state changed, or whose last
run did not succeed. The outcome is stored in a log whose shape mirrors the
tree, even when the tree changes shape between runs.

# Concept

  - Parameters: values, files (path and modification time) and source digests.
  - Tasks: implement task.Definition (Input, Output, Action, Success) and
    optionally task.BeforeHook and task.AfterHook.
  - Groups: task.Seq nests tasks. Groups shape the log; they run in order.
  - Logs: persisted per workflow by a ports.LogStore (JSON files by default).

A failing task never stops its siblings; it only makes the run unsuccessful and
is rerun next time.

# Usage

	type Compile struct{ Src, Bin string }

	func (c *Compile) Input(*task.Task) ([]param.Parameter, error) {
		src, err := param.NewFile("src", c.Src)
		if err != nil {
			return nil, err
		}
		self, err := param.Self(c)
		if err != nil {
			return nil, err
		}
		return []param.Parameter{src, self}, nil
	}

	func (c *Compile) Output(*task.Task) ([]param.Parameter, error) {
		bin, err := param.NewFile("bin", c.Bin, param.AutoCreate())
		return []param.Parameter{bin}, err
	}

	func (c *Compile) Action(ctx context.Context, _ *task.Task) (any, error) {
		return nil, exec.CommandContext(ctx, "go", "build", "-o", c.Bin, c.Src).Run()
	}

	func (c *Compile) Success(context.Context, *task.Task) ([]bool, error) {
		return []bool{true}, nil
	}

	func main() {
		wf, err := redo.New("build")
		if err != nil {
			log.Fatal(err)
		}
		res, err := wf.Run(context.Background(), task.Seq(
			task.MustNew(&Compile{Src: "main.go", Bin: "bin/app"}),
		))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("success:", res.Success)
	}

Workflows made of shell commands can also be declared in YAML, see package
workflow and the redo command.
*/
package redo
