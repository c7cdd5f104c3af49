package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mpykit/mpykit/internal/config"
	"github.com/mpykit/mpykit/internal/console"
)

// consoleCmd runs the interactive device console.
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive console for repeated device work",
	Long: `Opens an interactive console over the current workspace. Project
selection stays sticky between commands, projects whose .mpyproject
file disappears are dropped automatically, and one device operation
runs at a time; starting a monitor replaces a previous one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, err := os.Getwd()
		if err != nil {
			return err
		}
		if override, _ := cmd.Flags().GetString("project"); override != "" {
			workspace = override
		}

		settings, err := config.LoadSettings()
		if err != nil {
			return err
		}

		s, err := console.New(workspace, settings)
		if err != nil {
			return err
		}
		return s.Run()
	},
}
