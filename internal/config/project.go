// Package config provides project configuration management.
//
// This package handles reading and writing .mpyproject files: the small
// JSON documents that pair a MicroPython board (serial port) with a deploy
// mapping from device paths to local sources. The files are hand-edited,
// so the loader tolerates comments and trailing commas and reports schema
// problems per field rather than as raw parse failures.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/sjson"
)

// FileName is the project configuration file name.
const FileName = ".mpyproject"

// PortAuto is the sentinel port value that lets mpytool pick the device.
const PortAuto = "auto"

// DefaultExcludes are the build-artifact patterns written into new projects.
var DefaultExcludes = []string{"__pycache__", "*.pyc", ".git", ".backup", ".DS_Store"}

// ProjectConfig represents one .mpyproject file.
type ProjectConfig struct {
	// Name is the display name; defaults to the root directory's basename.
	Name string

	// Port is either PortAuto or an explicit serial device identifier.
	Port string

	// Deploy is the ordered deploy mapping. Declaration order is semantic:
	// later entries targeting the same device path win during planning.
	Deploy []DeployEntry

	// Exclude is the set of glob patterns matched against path segments
	// during plan resolution.
	Exclude []string

	// Root is the absolute directory containing the config file.
	// Established at load time, never written to disk.
	Root string
}

// DeployEntry is one entry of the deploy mapping: a device directory and
// the ordered local sources placed under it.
type DeployEntry struct {
	// DevicePath is the device-side destination; always absolute.
	DevicePath string

	// Sources are local-source specifiers relative to the project root.
	// A specifier ending in "/" means "contents of this directory".
	Sources []string
}

// SchemaError reports an invalid or mistyped field in a .mpyproject file.
type SchemaError struct {
	// Path is the config file that failed validation.
	Path string

	// Field is the offending field (e.g. "deploy./lib").
	Field string

	// Reason is a human-readable description of the problem.
	Reason string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", e.Path, e.Field, e.Reason)
}

// Load reads and validates a .mpyproject file.
//
// The raw bytes are stripped of comments and trailing commas first, so
// hand-edited files with sloppy JSON still load. An empty file is a valid
// empty configuration: every field takes its default.
//
// Parameters:
//   - path: Path to the .mpyproject file
//
// Returns:
//   - *ProjectConfig: The loaded configuration with Root set
//   - error: *SchemaError for invalid fields, wrapped I/O or parse errors otherwise
func Load(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	root, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	cfg, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	cfg.Root = root
	if cfg.Name == "" {
		cfg.Name = filepath.Base(root)
	}
	return cfg, nil
}

// Parse validates raw .mpyproject bytes into a ProjectConfig.
//
// Deploy mapping order is preserved exactly as declared in the document,
// because later entries intentionally overwrite earlier ones during
// planning. Root and the Name default are left to the caller.
//
// Parameters:
//   - data: Raw file contents (JSON, optionally with comments/trailing commas)
//   - path: File path used in error messages
//
// Returns:
//   - *ProjectConfig: The parsed configuration (Root unset)
//   - error: *SchemaError per offending field, or a parse error
func Parse(data []byte, path string) (*ProjectConfig, error) {
	stripped := jsonc.ToJSON(data)

	if strings.TrimSpace(string(stripped)) == "" {
		return &ProjectConfig{Port: PortAuto}, nil
	}

	if !gjson.ValidBytes(stripped) {
		return nil, fmt.Errorf("%s: malformed JSON", path)
	}
	doc := gjson.ParseBytes(stripped)
	if !doc.IsObject() {
		return nil, &SchemaError{Path: path, Field: "(root)", Reason: "must be a JSON object"}
	}

	cfg := &ProjectConfig{Port: PortAuto}

	if v := doc.Get("name"); v.Exists() {
		if v.Type != gjson.String {
			return nil, &SchemaError{Path: path, Field: "name", Reason: "must be a string"}
		}
		cfg.Name = v.String()
	}

	if v := doc.Get("port"); v.Exists() {
		if v.Type != gjson.String || v.String() == "" {
			return nil, &SchemaError{Path: path, Field: "port", Reason: "must be a non-empty string"}
		}
		cfg.Port = v.String()
	}

	if v := doc.Get("deploy"); v.Exists() {
		entries, err := parseDeploy(v, path)
		if err != nil {
			return nil, err
		}
		cfg.Deploy = entries
	}

	if v := doc.Get("exclude"); v.Exists() {
		if !v.IsArray() {
			return nil, &SchemaError{Path: path, Field: "exclude", Reason: "must be an array of patterns"}
		}
		var schemaErr error
		v.ForEach(func(_, item gjson.Result) bool {
			if item.Type != gjson.String {
				schemaErr = &SchemaError{Path: path, Field: "exclude", Reason: "patterns must be strings"}
				return false
			}
			cfg.Exclude = append(cfg.Exclude, item.String())
			return true
		})
		if schemaErr != nil {
			return nil, schemaErr
		}
	}

	return cfg, nil
}

// parseDeploy validates the deploy mapping, preserving declaration order
// and rejecting duplicate device-path keys.
func parseDeploy(v gjson.Result, path string) ([]DeployEntry, error) {
	if !v.IsObject() {
		return nil, &SchemaError{Path: path, Field: "deploy", Reason: "must be an object mapping device paths to source lists"}
	}

	var entries []DeployEntry
	var schemaErr error
	seen := make(map[string]bool)

	v.ForEach(func(key, value gjson.Result) bool {
		dest := key.String()
		field := "deploy." + dest

		if !strings.HasPrefix(dest, "/") {
			schemaErr = &SchemaError{Path: path, Field: field, Reason: "device path must start with '/'"}
			return false
		}
		if seen[dest] {
			schemaErr = &SchemaError{Path: path, Field: field, Reason: "duplicate device path"}
			return false
		}
		seen[dest] = true

		if !value.IsArray() {
			schemaErr = &SchemaError{Path: path, Field: field, Reason: "must be an array of local sources"}
			return false
		}

		entry := DeployEntry{DevicePath: dest}
		value.ForEach(func(_, src gjson.Result) bool {
			if src.Type != gjson.String || src.String() == "" {
				schemaErr = &SchemaError{Path: path, Field: field, Reason: "sources must be non-empty strings"}
				return false
			}
			entry.Sources = append(entry.Sources, src.String())
			return true
		})
		if schemaErr != nil {
			return false
		}

		entries = append(entries, entry)
		return true
	})
	if schemaErr != nil {
		return nil, schemaErr
	}

	return entries, nil
}

// Path returns the full path of the configuration file for this project.
func (c *ProjectConfig) Path() string {
	return filepath.Join(c.Root, FileName)
}

// DeployOrDefault returns the deploy mapping, falling back to the default
// "deploy the whole project to /" when none is configured.
func (c *ProjectConfig) DeployOrDefault() []DeployEntry {
	if len(c.Deploy) > 0 {
		return c.Deploy
	}
	return []DeployEntry{{DevicePath: "/", Sources: []string{"./"}}}
}

// Save writes the configuration to path atomically.
//
// The document is rendered to a temp file in the target directory and
// renamed over the destination, so a failed save never leaves a
// half-written .mpyproject behind.
//
// Parameters:
//   - path: Destination file path
//   - cfg: The configuration to write
//
// Returns:
//   - error: Any marshal or I/O error; the prior file is untouched on failure
func Save(path string, cfg *ProjectConfig) error {
	data, err := render(cfg)
	if err != nil {
		return fmt.Errorf("failed to render project file: %w", err)
	}
	return writeAtomic(path, data)
}

// CreateDefault builds a minimal valid configuration for a new project
// rooted at root: auto port, whole tree deployed to /, and the standard
// build-artifact excludes.
func CreateDefault(root string) *ProjectConfig {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return &ProjectConfig{
		Name:    filepath.Base(abs),
		Port:    PortAuto,
		Deploy:  []DeployEntry{{DevicePath: "/", Sources: []string{"./"}}},
		Exclude: append([]string(nil), DefaultExcludes...),
		Root:    abs,
	}
}

// render produces the canonical indented JSON for a ProjectConfig.
// The document is assembled key by key so the deploy mapping keeps its
// declaration order.
func render(cfg *ProjectConfig) ([]byte, error) {
	out := "{}"
	var err error

	if out, err = sjson.Set(out, "name", cfg.Name); err != nil {
		return nil, err
	}
	port := cfg.Port
	if port == "" {
		port = PortAuto
	}
	if out, err = sjson.Set(out, "port", port); err != nil {
		return nil, err
	}
	for _, entry := range cfg.Deploy {
		if out, err = sjson.Set(out, "deploy."+EscapeKey(entry.DevicePath), entry.Sources); err != nil {
			return nil, err
		}
	}
	if len(cfg.Exclude) > 0 {
		if out, err = sjson.Set(out, "exclude", cfg.Exclude); err != nil {
			return nil, err
		}
	}

	buf, err := json.MarshalIndent(json.RawMessage(out), "", "    ")
	if err != nil {
		return nil, err
	}
	return append(buf, '\n'), nil
}

// EscapeKey escapes sjson/gjson path metacharacters in an object key so
// device paths like "/lib.d" address a single key instead of a nested path.
func EscapeKey(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, ":", `\:`)
	return r.Replace(key)
}

// writeAtomic replaces path with data via write-to-temp-then-rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
