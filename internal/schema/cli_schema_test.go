package schema

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// testRoot builds a small command tree mirroring the CLI's shape.
func testRoot() *cobra.Command {
	root := &cobra.Command{Use: "mpykit", Short: "root"}
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	deploy := &cobra.Command{Use: "deploy", Short: "Upload the project"}
	project := &cobra.Command{Use: "project", Short: "Inspect projects"}
	project.AddCommand(&cobra.Command{Use: "show", Short: "Show the active project"})

	hidden := &cobra.Command{Use: "internal-thing", Short: "hidden"}
	hidden.Flags().Bool("secret", false, "hidden flag")
	hidden.Flags().MarkHidden("secret")

	root.AddCommand(deploy, project, hidden)
	return root
}

// TestGetCLISchema verifies command extraction, nesting, and global
// flags.
func TestGetCLISchema(t *testing.T) {
	s := GetCLISchema(testRoot(), "1.2.3")

	if s.Name != "mpykit" || s.Version != "1.2.3" {
		t.Errorf("identity = %q %q", s.Name, s.Version)
	}

	byPath := make(map[string]CommandInfo)
	var index func(cmds []CommandInfo)
	index = func(cmds []CommandInfo) {
		for _, c := range cmds {
			byPath[c.Path] = c
			index(c.Subcommands)
		}
	}
	index(s.Commands)

	if _, ok := byPath["deploy"]; !ok {
		t.Error("deploy command missing from schema")
	}
	if _, ok := byPath["project show"]; !ok {
		t.Error("nested command path missing from schema")
	}

	foundDebug := false
	for _, f := range s.GlobalFlags {
		if f.Name == "debug" {
			foundDebug = true
		}
	}
	if !foundDebug {
		t.Error("persistent flag missing from global flags")
	}

	for _, f := range byPath["internal-thing"].Flags {
		if f.Name == "secret" {
			t.Error("hidden flag leaked into schema")
		}
	}
}

// TestFormatText verifies the human-readable rendering lists every
// command path.
func TestFormatText(t *testing.T) {
	s := GetCLISchema(testRoot(), "dev")
	out := s.FormatText()

	for _, want := range []string{"deploy", "project show"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatText() missing %q:\n%s", want, out)
		}
	}
}

// TestFormatJSON verifies the schema marshals cleanly.
func TestFormatJSON(t *testing.T) {
	s := GetCLISchema(testRoot(), "dev")
	out, err := s.FormatJSON()
	if err != nil {
		t.Fatalf("FormatJSON() error = %v", err)
	}
	if !strings.Contains(out, `"workflows"`) {
		t.Error("workflows section missing from JSON")
	}
}
