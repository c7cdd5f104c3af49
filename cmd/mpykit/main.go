// Package main provides the entry point for the mpykit CLI.
//
// mpykit deploys MicroPython source trees from the local filesystem to
// a microcontroller, driving the mpytool command line utility for all
// device interaction.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mpykit/mpykit/internal/ui"
)

// Version information set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mpykit",
	Short: "Deploy MicroPython projects to microcontrollers",
	Long: `mpykit discovers MicroPython projects by their .mpyproject file,
resolves the project's deploy mapping into a transfer plan, and runs
mpytool to upload files, monitor output, and manage the device.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		if debug {
			log.SetLevel(log.DebugLevel)
			log.Debug("Debug logging enabled")
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		ui.SetQuietMode(quiet)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON (where supported)")
	rootCmd.PersistentFlags().StringP("port", "p", "", "Serial port override (default: project setting)")
	rootCmd.PersistentFlags().String("project", "", "Project root override (default: nearest .mpyproject)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(eraseCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(excludeCmd)
	rootCmd.AddCommand(consoleCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		ui.PrintInfo("Version: %s", version)
		ui.PrintInfo("Commit: %s", commit)
		ui.PrintInfo("Built: %s", date)
	},
}

func main() {
	Execute()
}
