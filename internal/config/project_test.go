// Package config provides project configuration management.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestParse verifies schema validation and defaulting of .mpyproject
// documents.
func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   bool
		wantField string // expected SchemaError field, "" for any
		check     func(t *testing.T, cfg *ProjectConfig)
	}{
		{
			name:  "empty file is a valid empty config",
			input: "",
			check: func(t *testing.T, cfg *ProjectConfig) {
				if cfg.Port != PortAuto {
					t.Errorf("Port = %q, want %q", cfg.Port, PortAuto)
				}
				if len(cfg.Deploy) != 0 {
					t.Errorf("Deploy = %v, want empty", cfg.Deploy)
				}
			},
		},
		{
			name:  "defaults applied when fields missing",
			input: `{"name": "blinky"}`,
			check: func(t *testing.T, cfg *ProjectConfig) {
				if cfg.Name != "blinky" {
					t.Errorf("Name = %q, want blinky", cfg.Name)
				}
				if cfg.Port != PortAuto {
					t.Errorf("Port = %q, want %q", cfg.Port, PortAuto)
				}
			},
		},
		{
			name: "deploy mapping preserves declaration order",
			input: `{
				"deploy": {
					"/lib": ["lib/"],
					"/": ["main.py", "boot.py"],
					"/data": ["assets/"]
				}
			}`,
			check: func(t *testing.T, cfg *ProjectConfig) {
				want := []string{"/lib", "/", "/data"}
				if len(cfg.Deploy) != len(want) {
					t.Fatalf("got %d deploy entries, want %d", len(cfg.Deploy), len(want))
				}
				for i, dest := range want {
					if cfg.Deploy[i].DevicePath != dest {
						t.Errorf("Deploy[%d].DevicePath = %q, want %q", i, cfg.Deploy[i].DevicePath, dest)
					}
				}
				if got := cfg.Deploy[1].Sources; len(got) != 2 || got[0] != "main.py" {
					t.Errorf("Deploy[1].Sources = %v", got)
				}
			},
		},
		{
			name:  "comments and trailing commas tolerated",
			input: "{\n  // board on the desk\n  \"port\": \"/dev/ttyUSB0\",\n  \"exclude\": [\"*.pyc\",],\n}",
			check: func(t *testing.T, cfg *ProjectConfig) {
				if cfg.Port != "/dev/ttyUSB0" {
					t.Errorf("Port = %q", cfg.Port)
				}
				if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "*.pyc" {
					t.Errorf("Exclude = %v", cfg.Exclude)
				}
			},
		},
		{
			name:    "malformed JSON rejected",
			input:   `{"deploy": `,
			wantErr: true,
		},
		{
			name:      "non-object root rejected",
			input:     `["main.py"]`,
			wantErr:   true,
			wantField: "(root)",
		},
		{
			name:      "device path without leading slash rejected",
			input:     `{"deploy": {"lib": ["lib/"]}}`,
			wantErr:   true,
			wantField: "deploy.lib",
		},
		{
			name:      "duplicate device path rejected",
			input:     `{"deploy": {"/lib": ["a/"], "/lib": ["b/"]}}`,
			wantErr:   true,
			wantField: "deploy./lib",
		},
		{
			name:      "non-array source list rejected",
			input:     `{"deploy": {"/": "main.py"}}`,
			wantErr:   true,
			wantField: "deploy./",
		},
		{
			name:      "empty source string rejected",
			input:     `{"deploy": {"/": [""]}}`,
			wantErr:   true,
			wantField: "deploy./",
		},
		{
			name:      "empty port rejected",
			input:     `{"port": ""}`,
			wantErr:   true,
			wantField: "port",
		},
		{
			name:      "non-string exclude entry rejected",
			input:     `{"exclude": ["*.pyc", 7]}`,
			wantErr:   true,
			wantField: "exclude",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.input), ".mpyproject")

			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() succeeded, want error")
				}
				if tt.wantField != "" {
					var se *SchemaError
					if !errors.As(err, &se) {
						t.Fatalf("error type = %T, want *SchemaError (%v)", err, err)
					}
					if se.Field != tt.wantField {
						t.Errorf("SchemaError.Field = %q, want %q", se.Field, tt.wantField)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

// TestLoadDefaultsNameToDirectory verifies that a project without a name
// takes the root directory's basename.
func TestLoadDefaultsNameToDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(`{"port": "auto"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Name != filepath.Base(dir) {
		t.Errorf("Name = %q, want %q", cfg.Name, filepath.Base(dir))
	}
	if cfg.Root != dir {
		t.Errorf("Root = %q, want %q", cfg.Root, dir)
	}
}

// TestSaveRoundTrip verifies that Save preserves deploy mapping order
// through a load/save/load cycle.
func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	cfg := &ProjectConfig{
		Name: "sensor-node",
		Port: "/dev/ttyACM0",
		Deploy: []DeployEntry{
			{DevicePath: "/lib", Sources: []string{"lib/"}},
			{DevicePath: "/", Sources: []string{"main.py"}},
		},
		Exclude: []string{"__pycache__", "*.pyc"},
		Root:    dir,
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Name != cfg.Name || loaded.Port != cfg.Port {
		t.Errorf("round trip changed name/port: %q %q", loaded.Name, loaded.Port)
	}
	if len(loaded.Deploy) != 2 {
		t.Fatalf("got %d deploy entries, want 2", len(loaded.Deploy))
	}
	if loaded.Deploy[0].DevicePath != "/lib" || loaded.Deploy[1].DevicePath != "/" {
		t.Errorf("deploy order changed: %q then %q", loaded.Deploy[0].DevicePath, loaded.Deploy[1].DevicePath)
	}
	if len(loaded.Exclude) != 2 {
		t.Errorf("Exclude = %v", loaded.Exclude)
	}
}

// TestSaveIsAtomic verifies that the previous file survives a render of
// the new content, and no temp files are left behind.
func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	if err := Save(path, CreateDefault(dir)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

// TestDeployOrDefault verifies the whole-tree fallback mapping.
func TestDeployOrDefault(t *testing.T) {
	cfg := &ProjectConfig{}
	entries := cfg.DeployOrDefault()
	if len(entries) != 1 || entries[0].DevicePath != "/" {
		t.Fatalf("DeployOrDefault() = %v", entries)
	}
	if len(entries[0].Sources) != 1 || entries[0].Sources[0] != "./" {
		t.Errorf("Sources = %v, want [./]", entries[0].Sources)
	}

	cfg.Deploy = []DeployEntry{{DevicePath: "/lib", Sources: []string{"lib/"}}}
	entries = cfg.DeployOrDefault()
	if len(entries) != 1 || entries[0].DevicePath != "/lib" {
		t.Errorf("DeployOrDefault() ignored configured mapping: %v", entries)
	}
}

// TestEscapeKey verifies that device paths with gjson metacharacters
// address a single deploy key.
func TestEscapeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/lib", "/lib"},
		{"/lib.d", `/lib\.d`},
		{"/a*b", `/a\*b`},
		{"/q?", `/q\?`},
	}
	for _, tt := range tests {
		if got := EscapeKey(tt.in); got != tt.want {
			t.Errorf("EscapeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
