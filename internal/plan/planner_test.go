// Package plan resolves a project's deploy mapping into a concrete,
// ordered list of device transfer operations.
package plan

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mpykit/mpykit/internal/config"
)

// writeTree creates files (and their parent directories) under root.
// Paths use forward slashes; a trailing slash creates an empty directory.
func writeTree(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(p, "/")))
		if strings.HasSuffix(p, "/") {
			if err := os.MkdirAll(full, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("# "+p+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// devicePaths projects a plan onto its device-side destinations.
func devicePaths(p *Plan) []string {
	out := make([]string, len(p.Operations))
	for i, op := range p.Operations {
		out[i] = op.DevicePath
	}
	return out
}

// TestResolveDirectoryNesting verifies the dir vs dir/ semantics: a bare
// directory name nests one level, a trailing slash contributes contents.
func TestResolveDirectoryNesting(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "drivers/a.py", "drivers/sub/b.py")

	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{
			name:   "bare name nests under device path",
			source: "drivers",
			want:   []string{"/lib/drivers", "/lib/drivers/a.py", "/lib/drivers/sub", "/lib/drivers/sub/b.py"},
		},
		{
			name:   "trailing slash contributes contents",
			source: "drivers/",
			want:   []string{"/lib/a.py", "/lib/sub", "/lib/sub/b.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.ProjectConfig{
				Root:   root,
				Deploy: []config.DeployEntry{{DevicePath: "/lib", Sources: []string{tt.source}}},
			}
			p, err := Resolve(cfg)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got := devicePaths(p); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("device paths = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestResolveSingleFile verifies that a file source lands directly under
// the entry's device path.
func TestResolveSingleFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "main.py")

	cfg := &config.ProjectConfig{
		Root:   root,
		Deploy: []config.DeployEntry{{DevicePath: "/", Sources: []string{"main.py"}}},
	}
	p, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(p.Operations) != 1 {
		t.Fatalf("got %d operations, want 1", len(p.Operations))
	}
	op := p.Operations[0]
	if op.DevicePath != "/main.py" || op.IsDir {
		t.Errorf("operation = %+v", op)
	}
	if op.LocalPath != filepath.Join(root, "main.py") {
		t.Errorf("LocalPath = %q", op.LocalPath)
	}
}

// TestResolveExcludesAtDepth verifies that segment patterns prune files
// and whole subtrees anywhere in the walk.
func TestResolveExcludesAtDepth(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"main.py",
		"lib/util.py",
		"lib/util.pyc",
		"lib/__pycache__/util.cpython-311.pyc",
		"lib/vendor/big.py",
	)

	cfg := &config.ProjectConfig{
		Root:    root,
		Deploy:  []config.DeployEntry{{DevicePath: "/", Sources: []string{"./"}}},
		Exclude: []string{"__pycache__", "*.pyc", "lib/vendor"},
	}
	p, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := []string{"/lib", "/lib/util.py", "/main.py"}
	if got := devicePaths(p); !reflect.DeepEqual(got, want) {
		t.Errorf("device paths = %v, want %v", got, want)
	}
}

// TestResolveDeterministic verifies that repeated resolution of the same
// tree yields identical plans.
func TestResolveDeterministic(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "b.py", "a.py", "z/x.py", "z/c/d.py", "m.py")

	cfg := &config.ProjectConfig{
		Root:   root,
		Deploy: []config.DeployEntry{{DevicePath: "/", Sources: []string{"./"}}},
	}

	first, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Resolve(cfg)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !reflect.DeepEqual(first.Operations, again.Operations) {
			t.Fatalf("plan changed between runs:\n%v\n%v", first.Operations, again.Operations)
		}
	}
}

// TestResolveLastWriteWins verifies that an exact device-path collision
// keeps the later mapping entry and records a warning.
func TestResolveLastWriteWins(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "base/main.py", "override/main.py")

	cfg := &config.ProjectConfig{
		Root: root,
		Deploy: []config.DeployEntry{
			{DevicePath: "/", Sources: []string{"base/"}},
			{DevicePath: "/", Sources: []string{"override/"}},
		},
	}
	p, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	var kept string
	for _, op := range p.Operations {
		if op.DevicePath == "/main.py" {
			if kept != "" {
				t.Fatal("duplicate /main.py operations in plan")
			}
			kept = op.LocalPath
		}
	}
	if want := filepath.Join(root, "override", "main.py"); kept != want {
		t.Errorf("kept %q, want %q", kept, want)
	}
	if len(p.Warnings) == 0 {
		t.Error("no warning recorded for duplicate device path")
	}
}

// TestResolveFileShadowingWarning verifies the warning when a file target
// has other operations nested beneath it.
func TestResolveFileShadowingWarning(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "lib", "pkg/lib/mod.py")

	cfg := &config.ProjectConfig{
		Root: root,
		Deploy: []config.DeployEntry{
			{DevicePath: "/", Sources: []string{"pkg/"}},
			{DevicePath: "/", Sources: []string{"lib"}},
		},
	}
	p, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	found := false
	for _, w := range p.Warnings {
		if strings.Contains(w, "nested under file target /lib") {
			found = true
		}
	}
	if !found {
		t.Errorf("no shadowing warning in %v", p.Warnings)
	}
}

// TestResolveMissingSource verifies that a dangling source aborts the
// whole plan.
func TestResolveMissingSource(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "main.py")

	cfg := &config.ProjectConfig{
		Root: root,
		Deploy: []config.DeployEntry{
			{DevicePath: "/", Sources: []string{"main.py", "gone.py"}},
		},
	}
	_, err := Resolve(cfg)
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrSourceNotFound", err)
	}
}

// TestResolveFileWithTrailingSlash verifies that contents-of syntax on a
// file is rejected.
func TestResolveFileWithTrailingSlash(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "main.py")

	cfg := &config.ProjectConfig{
		Root:   root,
		Deploy: []config.DeployEntry{{DevicePath: "/", Sources: []string{"main.py/"}}},
	}
	if _, err := Resolve(cfg); !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrSourceNotFound", err)
	}
}

// TestResolveInvalidDevicePath verifies rejection of relative deploy keys.
func TestResolveInvalidDevicePath(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "main.py")

	cfg := &config.ProjectConfig{
		Root:   root,
		Deploy: []config.DeployEntry{{DevicePath: "lib", Sources: []string{"main.py"}}},
	}
	if _, err := Resolve(cfg); !errors.Is(err, ErrInvalidDevicePath) {
		t.Fatalf("Resolve() error = %v, want ErrInvalidDevicePath", err)
	}
}

// TestResolveSourceRoots verifies the distinct watchable roots of a plan.
func TestResolveSourceRoots(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "main.py", "lib/a.py")

	cfg := &config.ProjectConfig{
		Root: root,
		Deploy: []config.DeployEntry{
			{DevicePath: "/", Sources: []string{"main.py"}},
			{DevicePath: "/lib", Sources: []string{"lib/"}},
		},
	}
	p, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := []string{filepath.Join(root, "lib"), filepath.Join(root, "main.py")}
	if !reflect.DeepEqual(p.SourceRoots, want) {
		t.Errorf("SourceRoots = %v, want %v", p.SourceRoots, want)
	}
}

// TestResolveDefaultMapping verifies that a project without a deploy
// mapping deploys its whole tree to the device root.
func TestResolveDefaultMapping(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "main.py", "boot.py")

	p, err := Resolve(&config.ProjectConfig{Root: root})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"/boot.py", "/main.py"}
	if got := devicePaths(p); !reflect.DeepEqual(got, want) {
		t.Errorf("device paths = %v, want %v", got, want)
	}
}
