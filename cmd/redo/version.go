package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/redo"
	"github.com/aretw0/redo/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of redo",
	Run: func(cmd *cobra.Command, args []string) {
		version := strings.TrimSpace(redo.Version)
		if useColor(cmd) {
			tui.PrintBanner(os.Stdout, version)
			return
		}
		fmt.Printf("redo version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
