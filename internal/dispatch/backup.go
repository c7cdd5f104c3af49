package dispatch

import (
	"os"
	"path/filepath"
	"strings"
)

// BackupDirName is the project-relative directory mirroring the device's
// file tree.
const BackupDirName = ".backup"

// FindBackupDir locates an existing backup directory for a path: either
// a .backup component already present in the path, or a .backup child of
// it. Returns "" when neither exists.
//
// Parameters:
//   - path: A file or directory inside the project
//
// Returns:
//   - string: The backup directory path, or ""
func FindBackupDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}

	parts := strings.Split(abs, string(os.PathSeparator))
	for i, part := range parts {
		if part == BackupDirName {
			return strings.Join(parts[:i+1], string(os.PathSeparator))
		}
	}

	child := filepath.Join(abs, BackupDirName)
	if info, err := os.Stat(child); err == nil && info.IsDir() {
		return child
	}
	return ""
}

// DefaultBackupDir returns the backup directory to use for a project
// root: an existing one when found, otherwise the conventional .backup
// child (not yet created).
func DefaultBackupDir(root string) string {
	if found := FindBackupDir(root); found != "" {
		return found
	}
	return filepath.Join(root, BackupDirName)
}
