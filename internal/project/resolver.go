// Package project discovers .mpyproject files in a workspace and decides
// which project governs the current action.
//
// Selection is either automatic (nearest ancestor of the active file) or
// manual (sticky until explicitly changed or the chosen project's config
// file disappears). The selection value is owned by the caller and passed
// explicitly; this package never holds ambient state.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mpykit/mpykit/internal/config"
)

// Resolution failures requiring explicit user disambiguation.
var (
	// ErrNoProject indicates no .mpyproject governs the current location.
	ErrNoProject = errors.New("no project found")

	// ErrAmbiguous indicates several projects exist and none can be
	// chosen from the active file alone.
	ErrAmbiguous = errors.New("multiple projects found, select one explicitly")
)

// Selection is the process-wide active-project choice.
//
// The zero value is auto mode. A non-empty ManualRoot pins that project
// until cleared or until its config file disappears, in which case
// ResolveActive reverts to auto mode.
type Selection struct {
	// ManualRoot is the sticky project root; empty means auto.
	ManualRoot string
}

// IsManual reports whether a project is manually pinned.
func (s Selection) IsManual() bool { return s.ManualRoot != "" }

// Manual returns a selection pinned to root.
func Manual(root string) Selection { return Selection{ManualRoot: root} }

// Auto returns the automatic selection.
func Auto() Selection { return Selection{} }

// Discover scans each workspace root for .mpyproject files.
//
// Hidden directories and .backup trees are skipped: backups mirror a
// device's filesystem and may contain a copied .mpyproject that must not
// be treated as a workspace project. Unreadable or invalid config files
// are logged and dropped rather than failing discovery.
//
// Parameters:
//   - roots: Workspace root directories to scan
//
// Returns:
//   - []*config.ProjectConfig: Discovered projects, sorted by root path
//   - error: Only on a failed walk of an existing root
func Discover(roots []string) ([]*config.ProjectConfig, error) {
	byRoot := make(map[string]*config.ProjectConfig)

	for _, root := range roots {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) || os.IsPermission(err) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if p != root && (strings.HasPrefix(name, ".") || name == ".backup") {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Name() != config.FileName {
				return nil
			}

			cfg, err := config.Load(p)
			if err != nil {
				log.Warn("skipping unreadable project file", "path", p, "error", err)
				return nil
			}
			byRoot[cfg.Root] = cfg
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}

	projects := make([]*config.ProjectConfig, 0, len(byRoot))
	for _, cfg := range byRoot {
		projects = append(projects, cfg)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Root < projects[j].Root })
	return projects, nil
}

// FindNearest walks upward from path looking for a .mpyproject file.
//
// Directories named .backup are skipped during the ascent, matching
// Discover's treatment of device backups.
//
// Parameters:
//   - path: A file or directory to start from
//
// Returns:
//   - string: Path of the nearest config file, or "" when none exists
func FindNearest(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}

	dir := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		if filepath.Base(dir) != ".backup" {
			candidate := filepath.Join(dir, config.FileName)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ResolveActive determines the project governing activeFile.
//
// Order of precedence:
//  1. a manual selection whose root still exists among projects;
//  2. the discovered project whose root is the deepest ancestor of
//     activeFile;
//  3. the sole project in the workspace, when exactly one exists.
//
// A manual selection whose project has disappeared reverts the returned
// selection to auto mode before the remaining rules apply.
//
// Parameters:
//   - projects: Discovered projects (see Discover)
//   - activeFile: Path of the file being edited; may be empty
//   - sel: The current selection state
//
// Returns:
//   - *config.ProjectConfig: The active project
//   - Selection: The (possibly reverted) selection state
//   - error: ErrNoProject or ErrAmbiguous
func ResolveActive(projects []*config.ProjectConfig, activeFile string, sel Selection) (*config.ProjectConfig, Selection, error) {
	if sel.IsManual() {
		for _, p := range projects {
			if p.Root == sel.ManualRoot {
				return p, sel, nil
			}
		}
		log.Debug("manual selection no longer exists, reverting to auto", "root", sel.ManualRoot)
		sel = Auto()
	}

	if activeFile != "" {
		if p := deepestAncestor(projects, activeFile); p != nil {
			return p, sel, nil
		}
	}

	switch len(projects) {
	case 0:
		return nil, sel, ErrNoProject
	case 1:
		return projects[0], sel, nil
	default:
		return nil, sel, ErrAmbiguous
	}
}

// deepestAncestor returns the project whose root is the longest ancestor
// prefix of path, or nil. Nested projects resolve to the nearest root.
func deepestAncestor(projects []*config.ProjectConfig, path string) *config.ProjectConfig {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}

	var best *config.ProjectConfig
	for _, p := range projects {
		if !isAncestor(p.Root, abs) {
			continue
		}
		if best == nil || len(p.Root) > len(best.Root) {
			best = p
		}
	}
	return best
}

// isAncestor reports whether dir is path itself or an ancestor directory
// of path.
func isAncestor(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
