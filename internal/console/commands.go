package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mpykit/mpykit/internal/config"
	"github.com/mpykit/mpykit/internal/dispatch"
	"github.com/mpykit/mpykit/internal/project"
	"github.com/mpykit/mpykit/internal/supervise"
	"github.com/mpykit/mpykit/internal/ui"
)

// execute runs one console command line. It returns true when the
// session should end.
func (s *Session) execute(line string) bool {
	if line == "" {
		return false
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		s.printHelp()
	case "status":
		s.printStatus()
	case "projects":
		s.printProjects()
	case "use":
		s.cmdUse(args)
	case "plan":
		s.cmdPlan()
	case "deploy":
		s.launch(func(d *dispatch.Dispatcher, cfg *config.ProjectConfig) (*supervise.Result, error) {
			return d.Deploy(cfg)
		})
	case "sync":
		s.launch(func(d *dispatch.Dispatcher, cfg *config.ProjectConfig) (*supervise.Result, error) {
			return d.Sync(cfg)
		})
	case "monitor":
		s.launchDevice(func(d *dispatch.Dispatcher, port string) (*supervise.Result, error) {
			return d.Monitor(port)
		})
	case "reset":
		withMonitor := len(args) > 0 && args[0] == "monitor"
		s.launchDevice(func(d *dispatch.Dispatcher, port string) (*supervise.Result, error) {
			return d.Reset(port, withMonitor)
		})
	case "ls":
		s.launchDevice(func(d *dispatch.Dispatcher, port string) (*supervise.Result, error) {
			return d.Ls(port)
		})
	case "info":
		s.launchDevice(func(d *dispatch.Dispatcher, port string) (*supervise.Result, error) {
			return d.Info(port)
		})
	case "backup":
		s.cmdBackup(args)
	case "restore":
		s.cmdRestore(args)
	case "erase":
		s.cmdErase()
	case "stop":
		s.cmdStop()
	case "rescan":
		if err := s.rescan(); err != nil {
			ui.PrintError("rescan failed: %v", err)
		} else {
			s.printProjects()
		}
	default:
		ui.PrintError("unknown command: %s (try 'help')", cmd)
	}
	return false
}

func (s *Session) printHelp() {
	fmt.Printf("Commands:\n")
	fmt.Printf("  projects          list discovered projects\n")
	fmt.Printf("  use <n|name|auto> pin the active project, or return to auto\n")
	fmt.Printf("  status            show selection and running operation\n")
	fmt.Printf("  plan              show what deploy would transfer\n")
	fmt.Printf("  deploy            upload project files, then reset and monitor\n")
	fmt.Printf("  sync              upload project files only\n")
	fmt.Printf("  monitor           stream device output\n")
	fmt.Printf("  reset [monitor]   reset the device, optionally monitor after\n")
	fmt.Printf("  ls | info         list device files / show device info\n")
	fmt.Printf("  backup [dir]      download device contents\n")
	fmt.Printf("  restore [dir]     upload a backup back to the device\n")
	fmt.Printf("  erase             erase the device filesystem\n")
	fmt.Printf("  stop              stop the running operation\n")
	fmt.Printf("  rescan            rediscover workspace projects\n")
	fmt.Printf("  quit              exit the console\n")
}

func (s *Session) printStatus() {
	s.mu.Lock()
	sel := s.selection
	s.mu.Unlock()

	if sel.IsManual() {
		ui.PrintInfo("selection: manual (%s)", sel.ManualRoot)
	} else {
		ui.PrintInfo("selection: auto")
	}

	if cfg, err := s.active(); err == nil {
		ui.PrintInfo("active project: %s (%s)", cfg.Name, cfg.Root)
	} else {
		ui.PrintWarning("no active project: %v", err)
	}

	if kind, id, running := s.supervisor.Running(); running {
		ui.PrintInfo("running: %s (%s)", kind, id)
	} else {
		ui.PrintDim("idle")
	}
}

func (s *Session) printProjects() {
	s.mu.Lock()
	projects := append([]*config.ProjectConfig(nil), s.projects...)
	sel := s.selection
	s.mu.Unlock()

	if len(projects) == 0 {
		ui.PrintWarning("no projects found under %s", s.workspace)
		return
	}
	for i, p := range projects {
		marker := " "
		if sel.IsManual() && sel.ManualRoot == p.Root {
			marker = "*"
		}
		fmt.Printf("%s %d. %s  %s\n", marker, i+1, p.Name, ui.DimStyle.Render(p.Root))
	}
}

// cmdUse pins the selection to a project by number or name, or back to
// auto.
func (s *Session) cmdUse(args []string) {
	if len(args) == 0 {
		ui.PrintError("usage: use <number|name|auto>")
		return
	}

	if args[0] == "auto" {
		s.mu.Lock()
		s.selection = project.Auto()
		s.mu.Unlock()
		ui.PrintSuccess("selection set to auto")
		return
	}

	s.mu.Lock()
	projects := append([]*config.ProjectConfig(nil), s.projects...)
	s.mu.Unlock()

	var picked *config.ProjectConfig
	if n, err := strconv.Atoi(args[0]); err == nil {
		if n >= 1 && n <= len(projects) {
			picked = projects[n-1]
		}
	} else {
		for _, p := range projects {
			if p.Name == args[0] {
				picked = p
				break
			}
		}
	}
	if picked == nil {
		ui.PrintError("no such project: %s", args[0])
		return
	}

	s.mu.Lock()
	s.selection = project.Manual(picked.Root)
	s.mu.Unlock()
	ui.PrintSuccess("using %s (%s)", picked.Name, picked.Root)
}

func (s *Session) cmdPlan() {
	cfg, err := s.active()
	if err != nil {
		ui.PrintError("%v", err)
		return
	}
	p, err := s.dispatcher.Plan(cfg)
	if err != nil {
		ui.PrintError("%v", err)
		return
	}
	for _, op := range p.Operations {
		kind := "file"
		if op.IsDir {
			kind = "dir "
		}
		fmt.Printf("  %s %s  %s\n", kind, op.DevicePath, ui.DimStyle.Render(op.LocalPath))
	}
	ui.PrintInfo("%d operation(s)", len(p.Operations))
}

func (s *Session) cmdBackup(args []string) {
	cfg, err := s.active()
	if err != nil {
		ui.PrintError("%v", err)
		return
	}
	dir := dispatch.DefaultBackupDir(cfg.Root)
	if len(args) > 0 {
		dir = args[0]
	}
	port := cfg.Port
	s.start(func() (*supervise.Result, error) {
		return s.dispatcher.Backup(port, dir)
	})
}

func (s *Session) cmdRestore(args []string) {
	cfg, err := s.active()
	if err != nil {
		ui.PrintError("%v", err)
		return
	}
	dir := dispatch.FindBackupDir(cfg.Root)
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		ui.PrintError("no backup directory found; run 'backup' first or name one")
		return
	}
	if ok, err := ui.PromptConfirm(fmt.Sprintf("Restore %s to the device?", dir), false); err != nil || !ok {
		ui.PrintInfo("cancelled")
		return
	}
	s.start(func() (*supervise.Result, error) {
		return s.dispatcher.Restore(cfg, dir)
	})
}

func (s *Session) cmdErase() {
	if ok, err := ui.PromptConfirm("Erase the entire device filesystem?", false); err != nil || !ok {
		ui.PrintInfo("cancelled")
		return
	}
	s.launchDevice(func(d *dispatch.Dispatcher, port string) (*supervise.Result, error) {
		return d.Erase(port)
	})
}

func (s *Session) cmdStop() {
	if _, _, running := s.supervisor.Running(); !running {
		ui.PrintDim("nothing running")
		return
	}
	if err := s.supervisor.Stop(); err != nil {
		ui.PrintError("stop failed: %v", err)
	}
}

// launch starts a project-scoped operation in the background.
func (s *Session) launch(fn func(*dispatch.Dispatcher, *config.ProjectConfig) (*supervise.Result, error)) {
	cfg, err := s.active()
	if err != nil {
		ui.PrintError("%v", err)
		return
	}
	s.start(func() (*supervise.Result, error) { return fn(s.dispatcher, cfg) })
}

// launchDevice starts a device-scoped operation using the active
// project's port when one resolves, falling back to auto detection.
func (s *Session) launchDevice(fn func(*dispatch.Dispatcher, string) (*supervise.Result, error)) {
	port := config.PortAuto
	if cfg, err := s.active(); err == nil {
		port = cfg.Port
	}
	s.start(func() (*supervise.Result, error) { return fn(s.dispatcher, port) })
}

// start runs fn in the background so the prompt stays live while
// output streams; the supervisor arbitrates overlap.
func (s *Session) start(fn func() (*supervise.Result, error)) {
	go func() {
		result, err := fn()
		switch {
		case errors.Is(err, supervise.ErrAlreadyRunning):
			ui.PrintError("%v (use 'stop' first)", err)
		case errors.Is(err, supervise.ErrCancelling):
			ui.PrintError("previous operation is still shutting down")
		case err != nil:
			ui.PrintError("%v", err)
		case result.Cancelled:
			ui.PrintInfo("%s stopped", result.Kind)
		case result.Failed():
			ui.PrintError("%s failed (exit %d)", result.Kind, result.ExitCode)
		default:
			ui.PrintSuccess("%s finished", result.Kind)
		}
	}()
}
