package main

import (
	"fmt"

	"github.com/DJA-prog/serialmacro/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file.yaml...]",
	Short: "Check macro files for invalid steps",
	Long:  `Parses the given macro files, or every macro on the search path, and reports all invalid steps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.Validate(cmd.OutOrStdout(), settings, args); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Macros are valid! ✅")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available macros",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.List(cmd.OutOrStdout(), settings)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
}
