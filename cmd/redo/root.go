package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/redo/internal/cli"
	"github.com/aretw0/redo/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "redo",
	Short: "redo reruns only the tasks whose inputs or outputs changed",
	Long: `redo executes a tree of tasks in order and keeps a log of every run.
A task is skipped when its inputs and outputs match the last successful run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default ./"+config.FileName+" if present)")
	rootCmd.PersistentFlags().String("dir", "", "Directory holding the .redo log store")
	rootCmd.PersistentFlags().String("backend", "", "Log store backend: file, redis or memory")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
}

// loadConfig resolves the configuration, then applies explicit flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, os.Environ())
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("dir") {
		cfg.Dir, _ = cmd.Flags().GetString("dir")
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend, _ = cmd.Flags().GetString("backend")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) *slog.Logger {
	return cli.NewLogger(os.Stderr, cfg.LogLevel)
}

// useColor reports whether stdout is a terminal and colors were not disabled.
func useColor(cmd *cobra.Command) bool {
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return min(w, 120)
	}
	return 80
}

// openBackend loads the configuration and opens the log store it names.
func openBackend(cmd *cobra.Command) (*cli.Backend, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}
	b, err := cli.OpenBackend(cfg, newLogger(cfg))
	return b, cfg, err
}
