// Package config provides project configuration management.
//
// This file handles the per-user settings file (~/.config/mpykit/settings.yaml)
// that configures the mpytool binary location and supervision behavior.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the per-user tool configuration.
type Settings struct {
	// MpytoolPath is the command or absolute path of the mpytool binary.
	MpytoolPath string `yaml:"mpytool_path,omitempty"`

	// GracePeriodSeconds is how long Stop waits after SIGTERM before
	// escalating to SIGKILL.
	GracePeriodSeconds int `yaml:"grace_period_seconds,omitempty"`

	// Terminal is the external terminal emulator command for `repl
	// --external` (e.g. "x-terminal-emulator"). Empty selects a
	// platform default.
	Terminal string `yaml:"terminal,omitempty"`
}

// DefaultSettings returns the settings used when no settings file exists.
func DefaultSettings() *Settings {
	return &Settings{
		MpytoolPath:        "mpytool",
		GracePeriodSeconds: 3,
	}
}

// GracePeriod returns the termination grace period as a duration.
func (s *Settings) GracePeriod() time.Duration {
	if s.GracePeriodSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(s.GracePeriodSeconds) * time.Second
}

// SettingsPath returns the settings file location, honoring
// XDG_CONFIG_HOME.
func SettingsPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "mpykit", "settings.yaml"), nil
}

// LoadSettings reads the settings file, returning defaults when the file
// does not exist. Fields absent from the file keep their defaults.
func LoadSettings() (*Settings, error) {
	path, err := SettingsPath()
	if err != nil {
		return nil, err
	}
	return LoadSettingsFrom(path)
}

// LoadSettingsFrom reads settings from an explicit path.
//
// Parameters:
//   - path: Path to the settings YAML file
//
// Returns:
//   - *Settings: Loaded settings merged over defaults
//   - error: Parse or read errors; a missing file is not an error
func LoadSettingsFrom(path string) (*Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if s.MpytoolPath == "" {
		s.MpytoolPath = "mpytool"
	}
	return s, nil
}
