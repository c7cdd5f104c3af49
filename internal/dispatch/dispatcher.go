// Package dispatch is the composition root for device actions.
//
// Each user-invoked action resolves the active project, builds either a
// deploy plan or a raw mpytool argument list, and hands the invocation
// to the process supervisor. Configuration and planning errors abort an
// action before mpytool ever starts; a malformed or partial operation
// list is never sent to the device.
package dispatch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/mpykit/mpykit/internal/config"
	"github.com/mpykit/mpykit/internal/mpytool"
	"github.com/mpykit/mpykit/internal/plan"
	"github.com/mpykit/mpykit/internal/supervise"
	"github.com/mpykit/mpykit/internal/ui"
)

// Dispatcher wires project resolution, planning, and supervision
// together for the command layer.
type Dispatcher struct {
	// Settings is the per-user tool configuration.
	Settings *config.Settings

	// Supervisor enforces single-flight execution of device operations.
	Supervisor *supervise.Supervisor

	// Sink receives streamed mpytool output.
	Sink supervise.OutputSink

	// Warnf surfaces non-fatal planning warnings; may be nil.
	Warnf func(format string, args ...interface{})

	// SelectPort is consulted when mpytool reports multiple serial
	// ports; it returns the chosen port. Nil disables the retry flow.
	SelectPort func(ports []string) (string, error)
}

// warn forwards a warning when a handler is installed.
func (d *Dispatcher) warn(format string, args ...interface{}) {
	if d.Warnf != nil {
		d.Warnf(format, args...)
	}
}

// Run executes one supervised invocation to completion, retrying once
// with an explicit port when mpytool reports that several serial
// devices are attached.
//
// Parameters:
//   - kind: The operation kind for the single-flight policy
//   - inv: The mpytool invocation
//
// Returns:
//   - *supervise.Result: How the operation ended
//   - error: Start rejections and spawn failures
func (d *Dispatcher) Run(kind supervise.Kind, inv mpytool.Invocation) (*supervise.Result, error) {
	ui.PrintCommand(d.Settings.MpytoolPath, inv.Args)
	capture := &supervise.CaptureSink{Next: d.Sink}

	handle, err := d.Supervisor.Start(supervise.Spec{
		Kind: kind,
		Name: d.Settings.MpytoolPath,
		Args: inv.Args,
		Dir:  inv.Dir,
		Sink: capture,
	})
	if err != nil {
		return nil, err
	}
	result := handle.Wait()

	if result.Failed() && d.SelectPort != nil {
		if ports := mpytool.ParsePortList(capture.String()); len(ports) > 0 {
			port, err := d.SelectPort(ports)
			if err != nil {
				return result, nil
			}
			log.Debug("retrying with explicit port", "port", port)
			return d.runPinned(kind, inv.WithPort(port))
		}
	}
	return result, nil
}

// runPinned reruns an invocation already pinned to a port.
func (d *Dispatcher) runPinned(kind supervise.Kind, inv mpytool.Invocation) (*supervise.Result, error) {
	ui.PrintCommand(d.Settings.MpytoolPath, inv.Args)
	handle, err := d.Supervisor.Start(supervise.Spec{
		Kind: kind,
		Name: d.Settings.MpytoolPath,
		Args: inv.Args,
		Dir:  inv.Dir,
		Sink: d.Sink,
	})
	if err != nil {
		return nil, err
	}
	return handle.Wait(), nil
}

// RunAttached executes an invocation with the terminal attached
// (REPL mode); output streaming and port retry do not apply.
func (d *Dispatcher) RunAttached(kind supervise.Kind, inv mpytool.Invocation) (*supervise.Result, error) {
	ui.PrintCommand(d.Settings.MpytoolPath, inv.Args)
	handle, err := d.Supervisor.Start(supervise.Spec{
		Kind:     kind,
		Name:     d.Settings.MpytoolPath,
		Args:     inv.Args,
		Dir:      inv.Dir,
		Attached: true,
	})
	if err != nil {
		return nil, err
	}
	return handle.Wait(), nil
}

// Plan resolves a project's deploy mapping and surfaces its warnings.
func (d *Dispatcher) Plan(cfg *config.ProjectConfig) (*plan.Plan, error) {
	p, err := plan.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	for _, w := range p.Warnings {
		d.warn("%s", w)
	}
	if len(p.Operations) == 0 {
		return nil, fmt.Errorf("nothing to deploy: configure 'deploy' in %s", cfg.Path())
	}
	return p, nil
}

// Deploy uploads the resolved plan, resets the device, and attaches the
// monitor stream.
func (d *Dispatcher) Deploy(cfg *config.ProjectConfig) (*supervise.Result, error) {
	p, err := d.Plan(cfg)
	if err != nil {
		return nil, err
	}
	return d.Run(supervise.KindDeploy, mpytool.PutList(cfg, p, true, true))
}

// Sync uploads the resolved plan and resets the device.
func (d *Dispatcher) Sync(cfg *config.ProjectConfig) (*supervise.Result, error) {
	p, err := d.Plan(cfg)
	if err != nil {
		return nil, err
	}
	return d.Run(supervise.KindSync, mpytool.PutList(cfg, p, true, false))
}

// Monitor streams device output.
func (d *Dispatcher) Monitor(port string) (*supervise.Result, error) {
	return d.Run(supervise.KindMonitor, mpytool.Monitor(port))
}

// Reset resets the device, optionally attaching the monitor afterwards.
func (d *Dispatcher) Reset(port string, monitor bool) (*supervise.Result, error) {
	kind := supervise.KindReset
	if monitor {
		kind = supervise.KindMonitor
	}
	return d.Run(kind, mpytool.Reset(port, monitor))
}

// Ls prints the device file tree.
func (d *Dispatcher) Ls(port string) (*supervise.Result, error) {
	return d.Run(supervise.KindList, mpytool.Ls(port))
}

// Info prints device information.
func (d *Dispatcher) Info(port string) (*supervise.Result, error) {
	return d.Run(supervise.KindInfo, mpytool.Info(port))
}

// Erase removes all files from the device. Confirmation is the
// caller's responsibility.
func (d *Dispatcher) Erase(port string) (*supervise.Result, error) {
	return d.Run(supervise.KindErase, mpytool.Erase(port))
}

// Backup downloads the whole device tree into dir, creating it first.
func (d *Dispatcher) Backup(port, dir string) (*supervise.Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return d.Run(supervise.KindBackup, mpytool.GetAll(port, dir))
}

// Restore feeds a backup directory back through the planner as a
// contents-of source for the device root and uploads it. cfg may be
// nil when restoring outside any project.
func (d *Dispatcher) Restore(cfg *config.ProjectConfig, dir string) (*supervise.Result, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("backup directory not found: %s", dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	restoreCfg := &config.ProjectConfig{
		Port: config.PortAuto,
		Root: filepath.Dir(abs),
		Deploy: []config.DeployEntry{
			{DevicePath: "/", Sources: []string{abs + "/"}},
		},
	}
	if cfg != nil {
		restoreCfg.Name = cfg.Name
		restoreCfg.Port = cfg.Port
	}
	p, err := plan.Resolve(restoreCfg)
	if err != nil {
		return nil, err
	}
	if len(p.Operations) == 0 {
		return nil, fmt.Errorf("backup directory is empty: %s", dir)
	}
	return d.Run(supervise.KindRestore, mpytool.PutList(restoreCfg, p, false, false))
}

// CopyToDevice is a one-off transfer of a file or directory without
// touching the deploy mapping. A directory is copied under its own
// name below dest.
func (d *Dispatcher) CopyToDevice(port, localPath, dest string) (*supervise.Result, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", localPath, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("path not found: %s", localPath)
	}

	src := filepath.Base(abs)
	oneOff := &config.ProjectConfig{
		Port: port,
		Root: filepath.Dir(abs),
		Deploy: []config.DeployEntry{
			{DevicePath: config.NormalizeDevicePath(dest), Sources: []string{src}},
		},
	}
	p, err := plan.Resolve(oneOff)
	if err != nil {
		return nil, err
	}
	return d.Run(supervise.KindSync, mpytool.PutList(oneOff, p, false, false))
}
