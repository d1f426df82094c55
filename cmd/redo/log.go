package main

import (
	"os"

	"github.com/aretw0/redo/internal/cli"
	"github.com/aretw0/redo/pkg/flat"
	"github.com/aretw0/redo/pkg/lease"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect and manage stored workflow logs",
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows with a stored log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, _, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()
		return cli.ListLogs(cmd.Context(), b, os.Stdout)
	},
}

var logShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a stored log as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()
		return cli.ShowLog(cmd.Context(), b, args[0], os.Stdout)
	},
}

var logTreeCmd = &cobra.Command{
	Use:   "tree <name>",
	Short: "Draw a stored log as a tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()
		return cli.PrintTree(cmd.Context(), b, args[0], os.Stdout, useColor(cmd))
	},
}

var logGraphCmd = &cobra.Command{
	Use:   "graph <name>",
	Short: "Print a stored log as a Mermaid flowchart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()
		return cli.WriteGraph(cmd.Context(), b, args[0], os.Stdout)
	},
}

var logFlatCmd = &cobra.Command{
	Use:   "flat <name>",
	Short: "Print a stored log as one row per task",
	Long: `Flattens the log into rows keyed by position, e.g. [1][0].

  redo log flat build --cols task_class,last_run_success --prop inputs:main.go --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, _ := cmd.Flags().GetStringSlice("keys")
		cols, _ := cmd.Flags().GetStringSlice("cols")
		props, _ := cmd.Flags().GetStringSlice("prop")
		hash, _ := cmd.Flags().GetBool("hash")
		format, _ := cmd.Flags().GetString("format")
		underscore, _ := cmd.Flags().GetBool("underscore")

		style := flat.Brackets
		if underscore {
			style = flat.Underscore
		}

		b, _, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()
		q := flat.Query{Keys: keys, Cols: cols, Props: props, IncludeHash: hash}
		return cli.WriteFlat(cmd.Context(), b, args[0], q, style, format, os.Stdout)
	},
}

var logRmCmd = &cobra.Command{
	Use:     "rm <name>...",
	Aliases: []string{"reset"},
	Short:   "Delete stored logs so that every task reruns",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, cfg, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()
		for _, name := range args {
			err := cli.RemoveLog(cmd.Context(), b, name,
				lease.WithLockTTL(cfg.LockTTL),
				lease.WithLockTimeout(cfg.LockTimeout),
			)
			if err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logListCmd, logShowCmd, logTreeCmd, logGraphCmd, logFlatCmd, logRmCmd)

	logFlatCmd.Flags().StringSlice("keys", nil, "Rows to keep, e.g. [0],[1][2]")
	logFlatCmd.Flags().StringSlice("cols", nil, "Columns to keep (default all)")
	logFlatCmd.Flags().StringSlice("prop", nil, "Add <prop>:<name> columns, e.g. inputs:main.go")
	logFlatCmd.Flags().Bool("hash", false, "Keep whole snapshots in --prop columns instead of their first element")
	logFlatCmd.Flags().Bool("underscore", false, "Key rows as 1_0 instead of [1][0]")
	logFlatCmd.Flags().StringP("format", "f", flat.FormatJSON, "Output format: json, yaml or csv")
}
