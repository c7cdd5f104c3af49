package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpykit/mpykit/internal/schema"
)

// schemaCmd emits the CLI's command and flag reference for tooling.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the CLI command reference",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := schema.GetCLISchema(rootCmd, version)

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			out, err := s.FormatJSON()
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		}
		fmt.Print(s.FormatText())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
