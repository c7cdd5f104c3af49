// Package schema generates machine-readable documentation of the CLI:
// its commands, flags, and common workflows, for editor integrations and
// other tools that drive mpykit programmatically.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CLISchema represents the complete CLI schema.
type CLISchema struct {
	Name        string        `json:"name"`
	Version     string        `json:"version"`
	Description string        `json:"description"`
	Commands    []CommandInfo `json:"commands"`
	GlobalFlags []FlagInfo    `json:"global_flags"`
	Workflows   []Workflow    `json:"workflows"`
}

// CommandInfo represents a CLI command.
type CommandInfo struct {
	Path        string        `json:"path"`
	Short       string        `json:"short"`
	Long        string        `json:"long,omitempty"`
	Usage       string        `json:"usage"`
	Flags       []FlagInfo    `json:"flags,omitempty"`
	Subcommands []CommandInfo `json:"subcommands,omitempty"`
}

// FlagInfo represents a CLI flag.
type FlagInfo struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description"`
}

// Workflow represents a common CLI workflow.
type Workflow struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Steps       []string `json:"steps"`
}

// GetCLISchema generates the CLI schema from a root Cobra command.
//
// Parameters:
//   - rootCmd: The root Cobra command
//   - version: CLI version string
//
// Returns:
//   - *CLISchema: The generated CLI schema
func GetCLISchema(rootCmd *cobra.Command, version string) *CLISchema {
	return &CLISchema{
		Name:        "mpykit",
		Version:     version,
		Description: "Deploy MicroPython projects to microcontrollers via mpytool.",
		Commands:    extractCommands(rootCmd, ""),
		GlobalFlags: extractFlags(rootCmd.PersistentFlags()),
		Workflows:   getCommonWorkflows(),
	}
}

// extractCommands recursively extracts command information.
func extractCommands(cmd *cobra.Command, parentPath string) []CommandInfo {
	var commands []CommandInfo

	for _, subCmd := range cmd.Commands() {
		// Skip help and completion commands
		if subCmd.Name() == "help" || subCmd.Name() == "completion" {
			continue
		}

		path := subCmd.Name()
		if parentPath != "" {
			path = parentPath + " " + subCmd.Name()
		}

		info := CommandInfo{
			Path:  path,
			Short: subCmd.Short,
			Long:  subCmd.Long,
			Usage: subCmd.UseLine(),
			Flags: extractFlags(subCmd.LocalFlags()),
		}
		if subCmd.HasSubCommands() {
			info.Subcommands = extractCommands(subCmd, path)
		}

		commands = append(commands, info)
	}

	return commands
}

// extractFlags extracts flag information from a FlagSet.
func extractFlags(flags *pflag.FlagSet) []FlagInfo {
	var flagInfos []FlagInfo

	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		flagInfos = append(flagInfos, FlagInfo{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Type:        f.Value.Type(),
			Default:     f.DefValue,
			Description: f.Usage,
		})
	})

	return flagInfos
}

// getCommonWorkflows returns common CLI workflows.
func getCommonWorkflows() []Workflow {
	return []Workflow{
		{
			Name:        "First-time setup",
			Description: "Turn a directory of MicroPython sources into a project",
			Steps: []string{
				"cd my-project",
				"mpykit init",
				"# Review the deploy mapping:",
				"mpykit plan",
			},
		},
		{
			Name:        "Edit, deploy, watch",
			Description: "The everyday loop: upload, reset, and watch the board",
			Steps: []string{
				"mpykit deploy",
				"# Upload without resetting:",
				"mpykit sync",
				"# Just watch the board:",
				"mpykit monitor",
			},
		},
		{
			Name:        "Safeguard device state",
			Description: "Snapshot the device before destructive changes",
			Steps: []string{
				"mpykit backup",
				"mpykit erase",
				"mpykit restore",
			},
		},
		{
			Name:        "Work across several projects",
			Description: "Keep one console open instead of repeating flags",
			Steps: []string{
				"mpykit console",
				"# Inside the console:",
				"projects",
				"use 2",
				"deploy",
			},
		},
	}
}

// FormatJSON renders a schema as indented JSON.
func (s *CLISchema) FormatJSON() (string, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	return string(out), nil
}

// FormatText renders a compact human-readable command reference.
func (s *CLISchema) FormatText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n%s\n\n", s.Name, s.Version, s.Description)

	var walk func(cmds []CommandInfo)
	walk = func(cmds []CommandInfo) {
		for _, c := range cmds {
			fmt.Fprintf(&b, "  %-18s %s\n", c.Path, c.Short)
			walk(c.Subcommands)
		}
	}
	walk(s.Commands)
	return b.String()
}
