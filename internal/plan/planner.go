// Package plan resolves a project's deploy mapping into a concrete,
// ordered list of device transfer operations.
//
// The deploy mapping is declarative ({"/lib": ["./drivers/"]}); this
// package turns it into the exact (device path, local path) pairs handed
// to mpytool, honoring exclude patterns and the dir-vs-dir/ nesting
// semantics. Planning over an unchanged filesystem is deterministic:
// mapping declaration order first, lexicographic walk order within a
// directory, so repeated deploys produce identical operation lists.
package plan

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mpykit/mpykit/internal/config"
)

// Planning failures. Both abort planning before any operation list is
// produced; a partial plan is never returned.
var (
	// ErrSourceNotFound indicates a deploy source resolved to nothing on disk.
	ErrSourceNotFound = errors.New("source not found")

	// ErrInvalidDevicePath indicates a deploy key that is not absolute.
	ErrInvalidDevicePath = errors.New("invalid device path")
)

// Operation is one resolved transfer: a local file or directory and its
// absolute device-side destination.
type Operation struct {
	// DevicePath is the absolute device destination (forward slashes).
	DevicePath string

	// LocalPath is the absolute local source path (host-native).
	LocalPath string

	// IsDir marks directory-creation operations; files carry content.
	IsDir bool
}

// Plan is the fully resolved, exclusion-filtered operation list for one
// deploy action.
type Plan struct {
	// Operations are the transfers in deterministic order.
	Operations []Operation

	// Warnings are non-fatal conditions the caller should surface:
	// duplicate device targets and ancestor/descendant overlaps.
	Warnings []string

	// SourceRoots are the distinct local paths the plan draws from,
	// for callers that watch the filesystem between deploys.
	SourceRoots []string
}

// Resolve expands a project's deploy mapping into a Plan.
//
// Entries are processed in mapping declaration order. For each source
// specifier:
//   - a file is placed directly under the entry's device path;
//   - a directory named without a trailing separator nests one level
//     under the device path ("./drivers" -> /lib/drivers/...);
//   - a directory named with a trailing separator contributes its
//     immediate children directly under the device path ("./drivers/"
//     -> /lib/...).
//
// Directory contents are walked recursively; any path segment matching
// an exclude pattern removes that file or subtree. When two operations
// resolve to the identical device path the later mapping entry wins and
// a warning is recorded.
//
// Parameters:
//   - cfg: The project configuration; Root must be set
//
// Returns:
//   - *Plan: The resolved plan; nil on error
//   - error: ErrInvalidDevicePath or ErrSourceNotFound (wrapped with detail)
func Resolve(cfg *config.ProjectConfig) (*Plan, error) {
	matcher := NewExcludeMatcher(cfg.Exclude)
	entries := cfg.DeployOrDefault()

	var ops []Operation
	rootSet := make(map[string]bool)

	for _, entry := range entries {
		if !strings.HasPrefix(entry.DevicePath, "/") {
			return nil, fmt.Errorf("deploy key %q: %w", entry.DevicePath, ErrInvalidDevicePath)
		}

		for _, src := range entry.Sources {
			resolved, err := resolveSource(cfg.Root, entry.DevicePath, src, matcher)
			if err != nil {
				return nil, err
			}
			ops = append(ops, resolved...)
		}
		for _, src := range entry.Sources {
			rootSet[absSource(cfg.Root, src)] = true
		}
	}

	ops, warnings := dedupe(ops)

	roots := make([]string, 0, len(rootSet))
	for r := range rootSet {
		roots = append(roots, r)
	}
	sort.Strings(roots)

	log.Debug("resolved deploy plan", "operations", len(ops), "warnings", len(warnings))
	return &Plan{Operations: ops, Warnings: warnings, SourceRoots: roots}, nil
}

// resolveSource expands a single source specifier under a device path.
func resolveSource(root, devicePath, src string, matcher *ExcludeMatcher) ([]Operation, error) {
	contentsOf := strings.HasSuffix(src, "/") && src != "/"
	local := absSource(root, src)

	info, err := os.Stat(local)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("deploy source %q (%s): %w", src, local, ErrSourceNotFound)
		}
		return nil, fmt.Errorf("deploy source %q: %w", src, err)
	}

	if !info.IsDir() {
		if contentsOf {
			return nil, fmt.Errorf("deploy source %q is a file, not a directory: %w", src, ErrSourceNotFound)
		}
		return []Operation{{
			DevicePath: path.Join(devicePath, filepath.Base(local)),
			LocalPath:  local,
		}}, nil
	}

	if contentsOf {
		// Contents-of semantics: children land directly under devicePath,
		// no extra nesting level.
		return walkChildren(local, devicePath, "", matcher)
	}

	// Whole-directory semantics: the directory itself nests one level
	// under devicePath.
	target := path.Join(devicePath, filepath.Base(local))
	ops := []Operation{{DevicePath: target, LocalPath: local, IsDir: true}}
	children, err := walkChildren(local, target, filepath.Base(local), matcher)
	if err != nil {
		return nil, err
	}
	return append(ops, children...), nil
}

// walkChildren emits operations for every entry under dir, recursively,
// in lexicographic order, pruning excluded segments and their subtrees.
// rel is the walked path relative to the source root, used for
// multi-segment exclude patterns.
func walkChildren(dir, devicePath, rel string, matcher *ExcludeMatcher) ([]Operation, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name() < dirents[j].Name() })

	var ops []Operation
	for _, d := range dirents {
		name := d.Name()
		childRel := path.Join(rel, name)
		if matcher.MatchSegment(name) || matcher.MatchPath(childRel) {
			log.Debug("excluded from plan", "path", filepath.Join(dir, name))
			continue
		}

		local := filepath.Join(dir, name)
		target := path.Join(devicePath, name)

		if d.IsDir() {
			ops = append(ops, Operation{DevicePath: target, LocalPath: local, IsDir: true})
			children, err := walkChildren(local, target, childRel, matcher)
			if err != nil {
				return nil, err
			}
			ops = append(ops, children...)
			continue
		}
		ops = append(ops, Operation{DevicePath: target, LocalPath: local})
	}
	return ops, nil
}

// dedupe enforces last-write-wins on exact device-path collisions and
// records warnings for collisions and for file operations shadowed by
// directory subtrees from other entries.
func dedupe(ops []Operation) ([]Operation, []string) {
	var warnings []string

	last := make(map[string]int)
	for i, op := range ops {
		if prev, ok := last[op.DevicePath]; ok {
			warnings = append(warnings, fmt.Sprintf(
				"duplicate device path %s: %s overrides %s",
				op.DevicePath, op.LocalPath, ops[prev].LocalPath))
		}
		last[op.DevicePath] = i
	}

	out := make([]Operation, 0, len(ops))
	for i, op := range ops {
		if last[op.DevicePath] != i {
			continue
		}
		out = append(out, op)
	}

	// A file landing where another operation needs a directory is a
	// configuration-author error the planner cannot resolve; keep both
	// and warn.
	isFile := make(map[string]string)
	for _, op := range out {
		if !op.IsDir {
			isFile[op.DevicePath] = op.LocalPath
		}
	}
	for _, op := range out {
		parent := path.Dir(op.DevicePath)
		for parent != "/" && parent != "." {
			if local, ok := isFile[parent]; ok {
				warnings = append(warnings, fmt.Sprintf(
					"device path %s is nested under file target %s (%s)",
					op.DevicePath, parent, local))
				break
			}
			parent = path.Dir(parent)
		}
	}

	return out, warnings
}

// absSource resolves a source specifier against the project root.
func absSource(root, src string) string {
	trimmed := strings.TrimSuffix(src, "/")
	if trimmed == "" || trimmed == "." {
		return filepath.Clean(root)
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(root, trimmed))
}
