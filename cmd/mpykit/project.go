package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpykit/mpykit/internal/config"
	"github.com/mpykit/mpykit/internal/project"
	"github.com/mpykit/mpykit/internal/tui"
	"github.com/mpykit/mpykit/internal/ui"
)

// initCmd creates a .mpyproject file in the current directory.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .mpyproject file in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		path := filepath.Join(cwd, config.FileName)
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", config.FileName)
		}

		cfg := config.CreateDefault(cwd)
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		ui.PrintSuccess("Created %s for project %q", config.FileName, cfg.Name)
		ui.PrintDim("edit the 'deploy' mapping to control what goes where")
		return nil
	},
}

// projectCmd groups project inspection subcommands.
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Inspect and choose MicroPython projects",
}

// projectShowCmd prints the project governing the working directory.
var projectShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveProject(cmd)
		if err != nil {
			return err
		}

		ui.PrintInfo("Project: %s", cfg.Name)
		ui.PrintInfo("Root: %s", cfg.Root)
		ui.PrintInfo("Port: %s", cfg.Port)
		for _, entry := range cfg.DeployOrDefault() {
			ui.Println()
			ui.PrintInfo("%s <- %s", entry.DevicePath, strings.Join(entry.Sources, ", "))
		}
		if len(cfg.Exclude) > 0 {
			ui.Println()
			ui.PrintDim("exclude: %s", strings.Join(cfg.Exclude, ", "))
		}
		return nil
	},
}

// projectListCmd lists all projects under the working directory.
var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects under the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		projects, err := project.Discover([]string{cwd})
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			ui.PrintWarning("no projects found under %s", cwd)
			return nil
		}
		for _, p := range projects {
			fmt.Printf("  %s  %s\n", p.Name, ui.DimStyle.Render(p.Root))
		}
		return nil
	},
}

// projectSelectCmd picks a project interactively and prints how to pin
// it. One-shot commands hold no state between runs; a selection stays
// sticky inside `mpykit console`.
var projectSelectCmd = &cobra.Command{
	Use:   "select",
	Short: "Pick a project interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		projects, err := project.Discover([]string{cwd})
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			return fmt.Errorf("no projects found under %s", cwd)
		}

		jsonOut, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")

		var idx int
		if tui.ShouldRunTUI(jsonOut, quiet) {
			items := make([]tui.Item, len(projects))
			for i, p := range projects {
				items[i] = tui.Item{Label: p.Name, Description: p.Root}
			}
			idx, err = tui.Pick("Select a project", items)
		} else {
			labels := make([]string, len(projects))
			for i, p := range projects {
				labels[i] = fmt.Sprintf("%s (%s)", p.Name, p.Root)
			}
			idx, err = ui.PromptSelect("Select a project", labels)
		}
		if err != nil {
			return err
		}

		picked := projects[idx]
		ui.PrintSuccess("Selected %s", picked.Name)
		ui.PrintDim("pin it with --project %s, or keep it sticky in 'mpykit console'", picked.Root)
		return nil
	},
}

// addCmd adds a path to the project's deploy mapping.
var addCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Add a file or directory to the deploy mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveProject(cmd)
		if err != nil {
			return err
		}

		rel, err := projectRelative(cfg, args[0])
		if err != nil {
			return err
		}

		dest, _ := cmd.Flags().GetString("dest")
		dest = config.NormalizeDevicePath(dest)

		err = config.AddToDeploy(cfg.Path(), rel, dest, true)
		if err != nil {
			return err
		}
		ui.PrintSuccess("Added %s to %s in %s", rel, dest, config.FileName)
		return nil
	},
}

// excludeCmd adds a pattern to the project's exclude list.
var excludeCmd = &cobra.Command{
	Use:   "exclude <pattern>",
	Short: "Add a pattern to the project's exclude list",
	Long: `Adds a glob pattern to the exclude list. Patterns match individual
path segments ("*.pyc", "__pycache__") or whole relative paths
("lib/vendor"). Existing paths are added relative to the project root.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveProject(cmd)
		if err != nil {
			return err
		}

		pattern := args[0]
		// A real path becomes a root-relative pattern; anything else is
		// taken as a glob verbatim.
		if _, statErr := os.Stat(pattern); statErr == nil {
			if rel, relErr := projectRelative(cfg, pattern); relErr == nil {
				pattern = rel
			}
		}

		if err := config.AddToExclude(cfg.Path(), pattern); err != nil {
			return err
		}
		ui.PrintSuccess("Excluded %s in %s", pattern, config.FileName)
		return nil
	},
}

// projectRelative resolves p against the project root, rejecting paths
// outside it.
func projectRelative(cfg *config.ProjectConfig, p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(cfg.Root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside project %s", p, cfg.Root)
	}
	return filepath.ToSlash(rel), nil
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite an existing project file")
	addCmd.Flags().String("dest", "/", "Device directory to deploy the path to")

	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectSelectCmd)
}
