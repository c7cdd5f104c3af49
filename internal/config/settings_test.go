package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadSettingsFrom verifies defaulting and YAML parsing of the
// settings file.
func TestLoadSettingsFrom(t *testing.T) {
	tests := []struct {
		name    string
		content string // "" means no file written
		wantErr bool
		check   func(t *testing.T, s *Settings)
	}{
		{
			name: "missing file returns defaults",
			check: func(t *testing.T, s *Settings) {
				if s.MpytoolPath != "mpytool" {
					t.Errorf("MpytoolPath = %q, want mpytool", s.MpytoolPath)
				}
				if s.GracePeriod() != 3*time.Second {
					t.Errorf("GracePeriod() = %v, want 3s", s.GracePeriod())
				}
			},
		},
		{
			name:    "explicit values override defaults",
			content: "mpytool_path: /opt/mpy/bin/mpytool\ngrace_period_seconds: 10\nterminal: kitty\n",
			check: func(t *testing.T, s *Settings) {
				if s.MpytoolPath != "/opt/mpy/bin/mpytool" {
					t.Errorf("MpytoolPath = %q", s.MpytoolPath)
				}
				if s.GracePeriod() != 10*time.Second {
					t.Errorf("GracePeriod() = %v, want 10s", s.GracePeriod())
				}
				if s.Terminal != "kitty" {
					t.Errorf("Terminal = %q, want kitty", s.Terminal)
				}
			},
		},
		{
			name:    "partial file keeps remaining defaults",
			content: "grace_period_seconds: 5\n",
			check: func(t *testing.T, s *Settings) {
				if s.MpytoolPath != "mpytool" {
					t.Errorf("MpytoolPath = %q, want mpytool", s.MpytoolPath)
				}
				if s.GracePeriod() != 5*time.Second {
					t.Errorf("GracePeriod() = %v, want 5s", s.GracePeriod())
				}
			},
		},
		{
			name:    "invalid YAML reported",
			content: "mpytool_path: [oops\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.yaml")
			if tt.content != "" {
				if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			s, err := LoadSettingsFrom(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("LoadSettingsFrom() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadSettingsFrom() error = %v", err)
			}
			tt.check(t, s)
		})
	}
}

// TestGracePeriodFloor verifies that nonsense grace values fall back to
// the default.
func TestGracePeriodFloor(t *testing.T) {
	s := &Settings{GracePeriodSeconds: -1}
	if s.GracePeriod() != 3*time.Second {
		t.Errorf("GracePeriod() = %v, want 3s", s.GracePeriod())
	}
}

// TestSettingsPathHonorsXDG verifies XDG_CONFIG_HOME placement.
func TestSettingsPathHonorsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := SettingsPath()
	if err != nil {
		t.Fatalf("SettingsPath() error = %v", err)
	}
	want := filepath.Join(dir, "mpykit", "settings.yaml")
	if path != want {
		t.Errorf("SettingsPath() = %q, want %q", path, want)
	}
}
