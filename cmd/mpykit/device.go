package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mpykit/mpykit/internal/mpytool"
	"github.com/mpykit/mpykit/internal/supervise"
	"github.com/mpykit/mpykit/internal/ui"
)

// monitorCmd streams the device's serial output.
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream the device's serial output",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		result, err := s.dispatcher.Monitor(devicePort(cmd))
		return reportResult("monitor", result, err)
	},
}

// resetCmd resets the device, optionally monitoring afterwards.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		monitor, _ := cmd.Flags().GetBool("monitor")
		result, err := s.dispatcher.Reset(devicePort(cmd), monitor)
		return reportResult("reset", result, err)
	},
}

// replCmd opens an interactive REPL on the device.
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Open an interactive REPL on the device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		inv := mpytool.Repl(devicePort(cmd))

		if external, _ := cmd.Flags().GetBool("external"); external {
			return openExternalRepl(s, inv)
		}

		result, err := s.dispatcher.RunAttached(supervise.KindRepl, inv)
		return reportResult("repl", result, err)
	},
}

// openExternalRepl launches the REPL in a separate terminal window so
// the current shell stays free.
func openExternalRepl(s *session, inv mpytool.Invocation) error {
	terminal := s.settings.Terminal
	if terminal == "" {
		terminal = defaultTerminal()
	}
	if terminal == "" {
		return fmt.Errorf("no terminal emulator configured; set 'terminal' in the settings file")
	}

	args := append([]string{"-e", s.settings.MpytoolPath}, inv.Args...)
	log.Debug("Launching external terminal", "terminal", terminal, "args", args)

	c := exec.Command(terminal, args...)
	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to launch %s: %w", terminal, err)
	}
	ui.PrintSuccess("REPL opened in %s (pid %d)", terminal, c.Process.Pid)
	return c.Process.Release()
}

// defaultTerminal picks a platform terminal emulator when none is
// configured.
func defaultTerminal() string {
	candidates := []string{"x-terminal-emulator", "gnome-terminal", "konsole", "xterm"}
	for _, name := range candidates {
		if _, err := exec.LookPath(name); err == nil {
			return name
		}
	}
	return ""
}

// lsCmd lists the device filesystem.
var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List files on the device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCaptured(cmd, "ls", func(s *session, port string) (*supervise.Result, error) {
			return s.dispatcher.Ls(port)
		})
	},
}

// infoCmd shows device and firmware information.
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device and firmware information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCaptured(cmd, "info", func(s *session, port string) (*supervise.Result, error) {
			return s.dispatcher.Info(port)
		})
	},
}

// runCaptured runs a read-only device query, copying its output to the
// clipboard when --copy is set.
func runCaptured(cmd *cobra.Command, name string, fn func(*session, string) (*supervise.Result, error)) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	copyOut, _ := cmd.Flags().GetBool("copy")
	var capture *supervise.CaptureSink
	if copyOut {
		capture = &supervise.CaptureSink{Next: s.dispatcher.Sink}
		s.dispatcher.Sink = capture
	}

	result, err := fn(s, devicePort(cmd))
	if err != nil {
		return err
	}
	if result.Failed() {
		return fmt.Errorf("%s failed (exit %d)", name, result.ExitCode)
	}

	if capture != nil {
		if err := clipboard.WriteAll(capture.String()); err != nil {
			ui.PrintWarning("failed to copy output to clipboard: %v", err)
		} else {
			ui.PrintSuccess("output copied to clipboard")
		}
	}
	return nil
}

// eraseCmd erases the device filesystem after confirmation.
var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Erase the device filesystem",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			ok, err := ui.PromptConfirm("Erase the entire device filesystem?", false)
			if err != nil || !ok {
				ui.PrintInfo("Erase cancelled")
				return nil
			}
		}

		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		result, err := s.dispatcher.Erase(devicePort(cmd))
		return reportResult("erase", result, err)
	},
}

// cpCmd copies a single file or directory to the device without a
// project.
var cpCmd = &cobra.Command{
	Use:   "cp <local-path> [device-path]",
	Short: "Copy a file or directory to the device",
	Long: `Copies a local file or directory to the device without needing a
project. Directories are copied under their own name; pass an explicit
device path to control the destination.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		dest := ""
		if len(args) > 1 {
			dest = args[1]
		}

		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("cannot copy %s: %w", args[0], err)
		}

		result, err := s.dispatcher.CopyToDevice(devicePort(cmd), args[0], dest)
		return reportResult("cp", result, err)
	},
}

func init() {
	resetCmd.Flags().Bool("monitor", false, "Stream device output after the reset")
	replCmd.Flags().Bool("external", false, "Open the REPL in a separate terminal window")
	lsCmd.Flags().Bool("copy", false, "Copy the listing to the clipboard")
	infoCmd.Flags().Bool("copy", false, "Copy the output to the clipboard")
	eraseCmd.Flags().Bool("force", false, "Skip the confirmation prompt")
}
