// Package supervise owns the lifecycle of the single long-running
// mpytool process.
//
// At most one device operation runs at a time; the supervisor enforces
// this with a small state machine (Idle -> Running -> Cancelling ->
// Idle) rather than relying on callers. Destructive operations are
// rejected while anything is running, because aborting a mid-flight
// file transfer can corrupt on-device state; read-only streams (monitor,
// REPL) implicitly cancel their predecessor instead. Cancellation sends
// SIGTERM to the child's process group and escalates to SIGKILL after a
// bounded grace period, and the supervisor returns to Idle on every
// exit path.
package supervise

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Kind identifies a supervised device operation.
type Kind string

// Operation kinds.
const (
	KindDeploy  Kind = "deploy"
	KindSync    Kind = "sync"
	KindMonitor Kind = "monitor"
	KindRepl    Kind = "repl"
	KindBackup  Kind = "backup"
	KindRestore Kind = "restore"
	KindErase   Kind = "erase"
	KindList    Kind = "list"
	KindInfo    Kind = "device-info"
	KindReset   Kind = "reset"
)

// Supersedes reports whether starting this kind while another operation
// is running cancels the previous one instead of being rejected.
// Restarting a read-only stream is always safe; everything else must
// wait or be stopped explicitly.
func (k Kind) Supersedes() bool {
	return k == KindMonitor || k == KindRepl
}

// State is the supervisor's lifecycle state.
type State int

// Supervisor states.
const (
	StateIdle State = iota
	StateRunning
	StateCancelling
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	default:
		return "unknown"
	}
}

// Supervision errors.
var (
	// ErrAlreadyRunning is returned when a start is rejected because an
	// operation is active.
	ErrAlreadyRunning = errors.New("operation already running")

	// ErrCancelling is returned when a start arrives while a previous
	// operation is still being cancelled.
	ErrCancelling = errors.New("previous operation still cancelling")
)

// OutputSink receives the child process's combined output line by line.
type OutputSink interface {
	// Line is called once per output line, without the trailing newline.
	Line(text string)
}

// Spec describes one operation to supervise.
type Spec struct {
	// Kind classifies the operation for the single-flight policy.
	Kind Kind

	// Name is the binary to run (the mpytool path).
	Name string

	// Args is the argument vector.
	Args []string

	// Dir is the working directory; empty inherits the caller's.
	Dir string

	// Sink receives streamed output. Ignored when Attached.
	Sink OutputSink

	// Attached connects the child directly to the terminal (REPL mode)
	// instead of streaming through Sink.
	Attached bool
}

// Result reports how a supervised operation ended.
type Result struct {
	// Kind is the operation kind.
	Kind Kind

	// ID is the operation's unique identifier.
	ID string

	// ExitCode is the child's exit code; -1 when it was killed.
	ExitCode int

	// Cancelled is set when the operation ended because Stop was
	// requested.
	Cancelled bool

	// Err holds spawn or wait failures. A non-zero ExitCode is an
	// operation failure, not an Err.
	Err error
}

// Failed reports whether the operation ended unsuccessfully for a reason
// other than cancellation.
func (r *Result) Failed() bool {
	return !r.Cancelled && (r.Err != nil || r.ExitCode != 0)
}

// Handle tracks a started operation until it finishes.
type Handle struct {
	// ID is the operation's unique identifier.
	ID string

	// Kind is the operation kind.
	Kind Kind

	done   chan struct{}
	result *Result
}

// Wait blocks until the operation finishes and returns its result.
func (h *Handle) Wait() *Result {
	<-h.done
	return h.result
}

// Supervisor runs at most one external operation at a time.
type Supervisor struct {
	grace time.Duration

	mu      sync.Mutex
	state   State
	current *child
}

// child is the supervisor's view of the running process.
type child struct {
	handle *Handle
	cmd    *exec.Cmd
	cancel bool
}

// New creates a supervisor with the given termination grace period.
func New(grace time.Duration) *Supervisor {
	if grace <= 0 {
		grace = 3 * time.Second
	}
	return &Supervisor{grace: grace, state: StateIdle}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running returns the active operation's kind and ID, if any.
func (s *Supervisor) Running() (Kind, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle || s.current == nil {
		return "", "", false
	}
	return s.current.handle.Kind, s.current.handle.ID, true
}

// Start launches a supervised operation.
//
// While another operation is running, kinds that supersede (monitor,
// REPL) cancel it first and then start; every other kind fails with
// ErrAlreadyRunning. A start during cancellation always fails with
// ErrCancelling.
//
// Parameters:
//   - spec: The operation to run
//
// Returns:
//   - *Handle: Tracks the running operation; Wait for the result
//   - error: ErrAlreadyRunning, ErrCancelling, or a spawn failure
func (s *Supervisor) Start(spec Spec) (*Handle, error) {
	for {
		s.mu.Lock()
		switch s.state {
		case StateCancelling:
			s.mu.Unlock()
			return nil, ErrCancelling
		case StateRunning:
			if !spec.Kind.Supersedes() {
				kind := s.current.handle.Kind
				s.mu.Unlock()
				return nil, fmt.Errorf("%s is %w", kind, ErrAlreadyRunning)
			}
			prev := s.current.handle
			s.mu.Unlock()
			log.Debug("superseding running operation", "old", prev.Kind, "new", spec.Kind)
			if err := s.Stop(); err != nil {
				return nil, err
			}
			prev.Wait()
			continue
		}
		// StateIdle: spawn under the lock so overlapping starts cannot
		// both pass the state check.
		handle, err := s.startLocked(spec)
		s.mu.Unlock()
		return handle, err
	}
}

// startLocked spawns the child. Caller holds s.mu with state Idle.
func (s *Supervisor) startLocked(spec Spec) (*Handle, error) {
	cmd := exec.Command(spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	setProcessGroup(cmd)

	handle := &Handle{
		ID:   uuid.NewString(),
		Kind: spec.Kind,
		done: make(chan struct{}),
	}

	var stream *os.File
	if spec.Attached {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		pr, pw, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create output pipe: %w", err)
		}
		cmd.Stdout = pw
		cmd.Stderr = pw
		stream = pr
		defer pw.Close()
	}

	if err := cmd.Start(); err != nil {
		if stream != nil {
			stream.Close()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%s not found: install mpytool or set mpytool_path in settings: %w", spec.Name, err)
		}
		return nil, fmt.Errorf("failed to start %s: %w", spec.Name, err)
	}

	s.state = StateRunning
	s.current = &child{handle: handle, cmd: cmd}
	log.Debug("operation started", "kind", spec.Kind, "id", handle.ID, "pid", cmd.Process.Pid)

	go s.run(handle, cmd, stream, spec.Sink)
	return handle, nil
}

// run streams output and reaps the child, then returns the supervisor
// to Idle regardless of how the process ended.
func (s *Supervisor) run(handle *Handle, cmd *exec.Cmd, stream *os.File, sink OutputSink) {
	if stream != nil {
		scanner := bufio.NewScanner(stream)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if sink != nil {
				sink.Line(scanner.Text())
			}
		}
		stream.Close()
	}

	err := cmd.Wait()

	s.mu.Lock()
	cancelled := s.current != nil && s.current.cancel
	s.state = StateIdle
	s.current = nil
	s.mu.Unlock()

	result := &Result{Kind: handle.Kind, ID: handle.ID, Cancelled: cancelled}
	switch e := err.(type) {
	case nil:
		result.ExitCode = 0
	case *exec.ExitError:
		result.ExitCode = e.ExitCode()
	default:
		result.ExitCode = -1
		result.Err = err
	}

	log.Debug("operation finished", "kind", handle.Kind, "id", handle.ID,
		"exit", result.ExitCode, "cancelled", cancelled)

	handle.result = result
	close(handle.done)
}

// Stop cancels the running operation.
//
// The child's process group receives SIGTERM; if it has not exited when
// the grace period elapses, it is killed. Stop returns once the kill
// path has been taken (the reaper goroutine completes the transition to
// Idle). Stopping an idle supervisor is a no-op.
//
// Returns:
//   - error: nil; reserved for platforms where signalling can fail
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning || s.current == nil {
		s.mu.Unlock()
		return nil
	}
	s.state = StateCancelling
	s.current.cancel = true
	cur := s.current
	s.mu.Unlock()

	pid := cur.cmd.Process.Pid
	log.Debug("stopping operation", "kind", cur.handle.Kind, "id", cur.handle.ID, "pid", pid)
	terminateProcessGroup(pid)

	select {
	case <-cur.handle.done:
		return nil
	case <-time.After(s.grace):
	}

	log.Warn("process ignored termination, killing", "pid", pid)
	killProcessGroup(pid)
	<-cur.handle.done
	return nil
}
