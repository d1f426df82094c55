package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/redo/internal/cli"
	"github.com/spf13/cobra"
)

// errFailed makes the process exit non-zero without printing anything more.
var errFailed = errors.New("workflow failed")

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Run a workflow, skipping up-to-date tasks",
	Long: `Runs every task of the workflow file in order against the log of the previous run.
Tasks whose inputs, outputs and command are unchanged since their last successful
run are skipped. The exit status is 1 when any task failed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("metrics-file") {
			cfg.MetricsFile, _ = cmd.Flags().GetString("metrics-file")
		}
		fresh, _ := cmd.Flags().GetBool("fresh")
		report, _ := cmd.Flags().GetBool("report")
		quiet, _ := cmd.Flags().GetBool("quiet")

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		res, err := cli.Run(sigCtx, cli.RunOptions{
			Config:       cfg,
			WorkflowPath: args[0],
			Fresh:        fresh,
			Report:       report,
			Quiet:        quiet,
			Color:        useColor(cmd),
			Width:        terminalWidth(),
			Stdout:       os.Stdout,
			Stderr:       os.Stderr,
			Logger:       newLogger(cfg),
		})
		if err != nil {
			if cli.IsInterrupted(err) && sigCtx.Signal() != nil {
				return fmt.Errorf("interrupted by %v: nothing was saved", sigCtx.Signal())
			}
			return err
		}
		if !res.Success {
			return errFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("fresh", false, "Delete the stored log first so that every task reruns")
	runCmd.Flags().Bool("report", false, "Print a markdown report instead of the tree")
	runCmd.Flags().BoolP("quiet", "q", false, "Print nothing but the commands' output")
	runCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this textfile after the run")
}
