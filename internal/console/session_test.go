// Package console provides the interactive device console for the CLI.
package console

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mpykit/mpykit/internal/config"
)

// newTestSession builds a session over a workspace containing the given
// project directories.
func newTestSession(t *testing.T, projectDirs ...string) (*Session, []string) {
	t.Helper()
	ws := t.TempDir()

	roots := make([]string, 0, len(projectDirs))
	for _, dir := range projectDirs {
		root := filepath.Join(ws, dir)
		if err := os.MkdirAll(root, 0o755); err != nil {
			t.Fatal(err)
		}
		content := []byte(`{"name": "` + dir + `"}`)
		if err := os.WriteFile(filepath.Join(root, config.FileName), content, 0o644); err != nil {
			t.Fatal(err)
		}
		roots = append(roots, root)
	}

	s, err := New(ws, config.DefaultSettings())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.shutdown)
	return s, roots
}

// TestUseSelectsByNumberAndName verifies manual pinning from the use
// command.
func TestUseSelectsByNumberAndName(t *testing.T) {
	s, roots := newTestSession(t, "alpha", "beta")

	s.execute("use 2")
	if !s.selection.IsManual() || s.selection.ManualRoot != roots[1] {
		t.Errorf("selection after 'use 2' = %+v, want %s", s.selection, roots[1])
	}

	s.execute("use alpha")
	if s.selection.ManualRoot != roots[0] {
		t.Errorf("selection after 'use alpha' = %+v, want %s", s.selection, roots[0])
	}

	s.execute("use auto")
	if s.selection.IsManual() {
		t.Errorf("selection after 'use auto' = %+v, want auto", s.selection)
	}
}

// TestUseUnknownProjectKeepsSelection verifies that a bad name leaves
// the selection untouched.
func TestUseUnknownProjectKeepsSelection(t *testing.T) {
	s, roots := newTestSession(t, "alpha")

	s.execute("use alpha")
	s.execute("use nonsense")
	if s.selection.ManualRoot != roots[0] {
		t.Errorf("selection = %+v, want %s", s.selection, roots[0])
	}
}

// TestRemovedProjectRevertsSelection verifies that deleting the pinned
// project's config file drops it and reverts to auto mode.
func TestRemovedProjectRevertsSelection(t *testing.T) {
	s, roots := newTestSession(t, "alpha", "beta")

	s.execute("use alpha")
	if err := os.Remove(filepath.Join(roots[0], config.FileName)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		reverted := !s.selection.IsManual() && len(s.projects) == 1
		s.mu.Unlock()
		if reverted {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("selection did not revert after project removal")
}

// TestQuitEndsSession verifies the quit command signals loop exit.
func TestQuitEndsSession(t *testing.T) {
	s, _ := newTestSession(t, "alpha")

	for _, cmd := range []string{"quit", "exit", "q"} {
		if !s.execute(cmd) {
			t.Errorf("execute(%q) = false, want true", cmd)
		}
	}
	if s.execute("status") {
		t.Error("execute(status) ended the session")
	}
}
