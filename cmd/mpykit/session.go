package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mpykit/mpykit/internal/config"
	"github.com/mpykit/mpykit/internal/dispatch"
	"github.com/mpykit/mpykit/internal/project"
	"github.com/mpykit/mpykit/internal/supervise"
	"github.com/mpykit/mpykit/internal/tui"
	"github.com/mpykit/mpykit/internal/ui"
)

// session holds the pieces a single CLI invocation composes: user
// settings, the process supervisor, and the dispatcher that drives
// mpytool.
type session struct {
	settings   *config.Settings
	supervisor *supervise.Supervisor
	dispatcher *dispatch.Dispatcher

	stopSignals func()
}

// newSession builds the shared runtime for one command invocation and
// installs the interrupt handler that forwards Ctrl-C to the running
// operation.
func newSession(cmd *cobra.Command) (*session, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	log.Debug("Settings loaded", "mpytool", settings.MpytoolPath, "grace", settings.GracePeriod())

	sup := supervise.New(settings.GracePeriod())
	s := &session{
		settings:   settings,
		supervisor: sup,
		dispatcher: &dispatch.Dispatcher{
			Settings:   settings,
			Supervisor: sup,
			Sink:       supervise.WriterSink{W: os.Stdout},
			Warnf:      ui.PrintWarning,
			SelectPort: selectPort(cmd),
		},
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		ui.Println()
		ui.PrintInfo("stopping...")
		sup.Stop()
	}()
	s.stopSignals = func() { signal.Stop(sigs) }
	return s, nil
}

// close tears down the interrupt handler.
func (s *session) close() {
	if s.stopSignals != nil {
		s.stopSignals()
	}
}

// selectPort returns the handler used when mpytool reports several
// attached serial devices: an interactive picker on a terminal, or a
// plain numbered prompt otherwise.
func selectPort(cmd *cobra.Command) func(ports []string) (string, error) {
	jsonOut, _ := cmd.Flags().GetBool("json")
	quiet, _ := cmd.Flags().GetBool("quiet")

	return func(ports []string) (string, error) {
		if tui.ShouldRunTUI(jsonOut, quiet) {
			items := make([]tui.Item, len(ports))
			for i, p := range ports {
				items[i] = tui.Item{Label: p}
			}
			idx, err := tui.Pick("Multiple serial ports found", items)
			if err != nil {
				return "", err
			}
			return ports[idx], nil
		}

		idx, err := ui.PromptSelect("Multiple serial ports found", ports)
		if err != nil {
			return "", err
		}
		return ports[idx], nil
	}
}

// resolveProject finds the project the command should act on: the
// --project override when given, otherwise the nearest project
// governing the working directory.
func resolveProject(cmd *cobra.Command) (*config.ProjectConfig, error) {
	if override, _ := cmd.Flags().GetString("project"); override != "" {
		root, err := filepath.Abs(override)
		if err != nil {
			return nil, err
		}
		return config.Load(filepath.Join(root, config.FileName))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	if nearest := project.FindNearest(cwd); nearest != "" {
		return config.Load(nearest)
	}

	// No ancestor project. Fall back to discovery below the working
	// directory so `mpykit deploy` works from a workspace parent too.
	projects, err := project.Discover([]string{cwd})
	if err != nil {
		return nil, err
	}
	cfg, _, err := project.ResolveActive(projects, cwd, project.Auto())
	return cfg, err
}

// portFor applies the --port flag over the project's configured port.
func portFor(cmd *cobra.Command, cfg *config.ProjectConfig) string {
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		return port
	}
	if cfg != nil {
		return cfg.Port
	}
	return config.PortAuto
}

// devicePort resolves the port for device-only commands that work
// without a project, preferring one when the working directory has it.
func devicePort(cmd *cobra.Command) string {
	cfg, err := resolveProject(cmd)
	if err != nil {
		log.Debug("No project for port resolution", "error", err)
		cfg = nil
	}
	return portFor(cmd, cfg)
}

// reportResult translates a finished operation into user feedback and
// a process exit code.
func reportResult(name string, result *supervise.Result, err error) error {
	if err != nil {
		return err
	}
	if result.Cancelled {
		ui.PrintInfo("%s stopped", name)
		return nil
	}
	if result.Failed() {
		return fmt.Errorf("%s failed (exit %d)", name, result.ExitCode)
	}
	ui.PrintSuccess("%s complete", name)
	return nil
}
