// Package console provides the interactive device console for the CLI.
//
// The console keeps one process alive across many device actions, which
// is where the session-scoped pieces earn their keep: the active-project
// selection stays sticky between commands, the workspace watcher reverts
// it when a project file disappears, and the supervisor's single-flight
// policy arbitrates overlapping commands (a deploy while a monitor
// stream is open, a second monitor superseding the first).
package console

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/mpykit/mpykit/internal/config"
	"github.com/mpykit/mpykit/internal/dispatch"
	"github.com/mpykit/mpykit/internal/project"
	"github.com/mpykit/mpykit/internal/supervise"
	"github.com/mpykit/mpykit/internal/ui"
)

// Session is one interactive console run over a workspace.
type Session struct {
	workspace  string
	settings   *config.Settings
	supervisor *supervise.Supervisor
	dispatcher *dispatch.Dispatcher
	watcher    *project.Watcher
	reader     *bufio.Reader

	mu        sync.Mutex
	projects  []*config.ProjectConfig
	selection project.Selection
}

// New creates a console session rooted at workspace.
//
// Parameters:
//   - workspace: The directory scanned for projects
//   - settings: Per-user tool settings
//
// Returns:
//   - *Session: The session, ready to Run
//   - error: Discovery failures
func New(workspace string, settings *config.Settings) (*Session, error) {
	sup := supervise.New(settings.GracePeriod())
	s := &Session{
		workspace:  workspace,
		settings:   settings,
		supervisor: sup,
		reader:     bufio.NewReader(os.Stdin),
	}
	s.dispatcher = &dispatch.Dispatcher{
		Settings:   settings,
		Supervisor: sup,
		Sink:       supervise.WriterSink{W: os.Stdout},
		Warnf:      ui.PrintWarning,
	}

	if err := s.rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

// rescan rediscovers workspace projects and restarts the watcher over
// their roots.
func (s *Session) rescan() error {
	projects, err := project.Discover([]string{s.workspace})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.projects = projects
	roots := make([]string, len(projects))
	for i, p := range projects {
		roots[i] = p.Root
	}
	s.mu.Unlock()

	if s.watcher != nil {
		s.watcher.Close()
	}
	s.watcher, err = project.WatchProjects(roots, s.onProjectRemoved)
	if err != nil {
		log.Warn("project watching disabled", "error", err)
		s.watcher = nil
	}
	return nil
}

// onProjectRemoved drops a project whose config file disappeared and
// reverts a manual selection pointing at it.
func (s *Session) onProjectRemoved(root string) {
	s.mu.Lock()
	kept := s.projects[:0]
	for _, p := range s.projects {
		if p.Root != root {
			kept = append(kept, p)
		}
	}
	s.projects = kept
	reverted := s.selection.IsManual() && s.selection.ManualRoot == root
	if reverted {
		s.selection = project.Auto()
	}
	s.mu.Unlock()

	ui.PrintWarning("project removed: %s", root)
	if reverted {
		ui.PrintInfo("selection reverted to auto")
	}
}

// active resolves the project governing the console's working directory.
func (s *Session) active() (*config.ProjectConfig, error) {
	s.mu.Lock()
	projects := s.projects
	sel := s.selection
	s.mu.Unlock()

	cfg, updated, err := project.ResolveActive(projects, s.workspace, sel)

	s.mu.Lock()
	s.selection = updated
	s.mu.Unlock()
	return cfg, err
}

// Run executes the console loop until quit or EOF.
//
// Ctrl-C stops the running operation rather than killing the console;
// a second Ctrl-C with nothing running exits.
func (s *Session) Run() error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		for range sigs {
			if _, _, running := s.supervisor.Running(); running {
				ui.Println()
				ui.PrintInfo("stopping...")
				s.supervisor.Stop()
				continue
			}
			fmt.Println()
			os.Exit(0)
		}
	}()

	s.printWelcome()

	for {
		fmt.Print(ui.TitleStyle.Render("mpy> "))
		line, err := s.reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			s.shutdown()
			return nil
		}

		if quit := s.execute(strings.TrimSpace(line)); quit {
			s.shutdown()
			return nil
		}
	}
}

// shutdown stops any running operation and the watcher.
func (s *Session) shutdown() {
	s.supervisor.Stop()
	if s.watcher != nil {
		s.watcher.Close()
	}
}

// printWelcome shows the session header.
func (s *Session) printWelcome() {
	s.mu.Lock()
	count := len(s.projects)
	s.mu.Unlock()

	ui.PrintInfo("mpykit console: %d project(s) in %s", count, s.workspace)
	ui.PrintDim("type 'help' for commands, 'quit' to exit")
	ui.Println()
}
