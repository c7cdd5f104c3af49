package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mpykit/mpykit/internal/dispatch"
	"github.com/mpykit/mpykit/internal/ui"
)

// backupCmd downloads the device filesystem into a local directory.
var backupCmd = &cobra.Command{
	Use:   "backup [dir]",
	Short: "Download the device filesystem to a local directory",
	Long: `Downloads everything on the device into a local directory. Without an
argument the backup goes to the project's .backup directory; backups are
never treated as project sources.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		var dir string
		if len(args) > 0 {
			dir = args[0]
		} else {
			cfg, err := resolveProject(cmd)
			if err != nil {
				return fmt.Errorf("no backup directory given and %w", err)
			}
			dir = dispatch.DefaultBackupDir(cfg.Root)
		}

		ui.PrintInfo("Backing up device to %s", dir)
		result, err := s.dispatcher.Backup(devicePort(cmd), dir)
		return reportResult("backup", result, err)
	},
}

// restoreCmd uploads a previous backup back to the device.
var restoreCmd = &cobra.Command{
	Use:   "restore [dir]",
	Short: "Upload a backup back to the device",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		cfg, err := resolveProject(cmd)
		if err != nil {
			cfg = nil
		}

		var dir string
		switch {
		case len(args) > 0:
			dir = args[0]
		case cfg != nil:
			dir = dispatch.FindBackupDir(cfg.Root)
		}
		if dir == "" {
			return fmt.Errorf("no backup directory found; run 'mpykit backup' first or name one")
		}
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("cannot restore from %s: %w", dir, err)
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			ok, err := ui.PromptConfirm(fmt.Sprintf("Restore %s to the device? This overwrites device files.", dir), false)
			if err != nil || !ok {
				ui.PrintInfo("Restore cancelled")
				return nil
			}
		}

		if cfg != nil {
			cfg.Port = portFor(cmd, cfg)
		}
		result, err := s.dispatcher.Restore(cfg, dir)
		return reportResult("restore", result, err)
	},
}

func init() {
	restoreCmd.Flags().Bool("force", false, "Skip the confirmation prompt")
}
