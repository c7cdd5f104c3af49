package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpykit/mpykit/internal/ui"
)

// deployCmd uploads the project, resets the device, and monitors its
// output.
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Upload the project, reset the device, and monitor output",
	Long: `Resolves the project's deploy mapping into a transfer plan, uploads
it with mpytool, then resets the device and streams its serial output.
Press Ctrl-C to stop monitoring.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		cfg, err := resolveProject(cmd)
		if err != nil {
			return err
		}
		cfg.Port = portFor(cmd, cfg)

		ui.PrintInfo("Deploying %s", cfg.Name)
		result, err := s.dispatcher.Deploy(cfg)
		return reportResult("deploy", result, err)
	},
}

// syncCmd uploads the project without resetting the device.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload the project without resetting the device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		cfg, err := resolveProject(cmd)
		if err != nil {
			return err
		}
		cfg.Port = portFor(cmd, cfg)

		ui.PrintInfo("Syncing %s", cfg.Name)
		result, err := s.dispatcher.Sync(cfg)
		return reportResult("sync", result, err)
	},
}

// planCmd shows the resolved transfer plan without touching the device.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what deploy would transfer, without running it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		cfg, err := resolveProject(cmd)
		if err != nil {
			return err
		}

		p, err := s.dispatcher.Plan(cfg)
		if err != nil {
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			out, err := json.MarshalIndent(p.Operations, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		ui.PrintInfo("Plan for %s (%d operations)", cfg.Name, len(p.Operations))
		for _, op := range p.Operations {
			kind := "file"
			if op.IsDir {
				kind = "dir "
			}
			fmt.Printf("  %s %s  %s\n", kind, op.DevicePath, ui.DimStyle.Render(op.LocalPath))
		}
		return nil
	},
}
