// Package config provides project configuration management.
//
// This file contains the surgical mutations behind "add to deploy" and
// "add to exclude": they edit the raw .mpyproject document in place so a
// hand-edited file keeps its key order and unrelated content.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/sjson"
)

// ErrAlreadyPresent is returned when an add mutation would insert a value
// that is already configured.
var ErrAlreadyPresent = fmt.Errorf("already present")

// NormalizeDevicePath ensures a device destination is absolute.
func NormalizeDevicePath(dest string) string {
	if !strings.HasPrefix(dest, "/") {
		return "/" + dest
	}
	return dest
}

// AddToDeploy appends relPath to the source list of the deploy entry for
// dest, creating the entry if needed.
//
// When the file has no deploy mapping at all and addDefault is set, the
// default "/" -> ["./"] entry is inserted first so the project keeps
// deploying its own tree alongside the new source.
//
// Parameters:
//   - path: Path to the .mpyproject file
//   - relPath: Project-relative local source to add
//   - dest: Device destination; normalized to start with '/'
//   - addDefault: Insert the default mapping when deploy is empty
//
// Returns:
//   - error: ErrAlreadyPresent if the source is already mapped, otherwise
//     any load/validate/write error
func AddToDeploy(path, relPath, dest string, addDefault bool) error {
	raw, doc, err := readForEdit(path)
	if err != nil {
		return err
	}

	dest = NormalizeDevicePath(dest)

	deploy := doc.Get("deploy")
	if !deploy.Exists() || len(deploy.Map()) == 0 {
		if addDefault {
			if raw, err = sjson.Set(raw, "deploy."+EscapeKey("/"), []string{"./"}); err != nil {
				return fmt.Errorf("failed to edit deploy mapping: %w", err)
			}
		}
	}

	key := "deploy." + EscapeKey(dest)
	for _, src := range gjson.Get(raw, key).Array() {
		if src.String() == relPath {
			return fmt.Errorf("%q in deploy[%s]: %w", relPath, dest, ErrAlreadyPresent)
		}
	}

	raw, err = sjson.Set(raw, key+".-1", relPath)
	if err != nil {
		return fmt.Errorf("failed to edit deploy mapping: %w", err)
	}
	return writeAtomic(path, []byte(raw))
}

// AddToExclude appends relPath to the exclude list.
//
// Parameters:
//   - path: Path to the .mpyproject file
//   - relPath: Project-relative path or pattern to exclude
//
// Returns:
//   - error: ErrAlreadyPresent if already excluded, otherwise any
//     load/validate/write error
func AddToExclude(path, relPath string) error {
	raw, doc, err := readForEdit(path)
	if err != nil {
		return err
	}

	for _, pat := range doc.Get("exclude").Array() {
		if pat.String() == relPath {
			return fmt.Errorf("%q in exclude: %w", relPath, ErrAlreadyPresent)
		}
	}

	raw, err = sjson.Set(raw, "exclude.-1", relPath)
	if err != nil {
		return fmt.Errorf("failed to edit exclude list: %w", err)
	}
	return writeAtomic(path, []byte(raw))
}

// SetPort rewrites the port field in place.
func SetPort(path, port string) error {
	raw, _, err := readForEdit(path)
	if err != nil {
		return err
	}
	raw, err = sjson.Set(raw, "port", port)
	if err != nil {
		return fmt.Errorf("failed to edit port: %w", err)
	}
	return writeAtomic(path, []byte(raw))
}

// readForEdit loads the raw document for in-place editing, validating it
// first so mutations never run against a malformed file. Comments and
// trailing commas are stripped before editing: sjson path edits need
// strict JSON to splice reliably.
func readForEdit(path string) (string, gjson.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", gjson.Result{}, fmt.Errorf("failed to read project file: %w", err)
	}
	if _, err := Parse(data, path); err != nil {
		return "", gjson.Result{}, err
	}

	raw := string(jsonc.ToJSON(data))
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	return raw, gjson.Parse(raw), nil
}
