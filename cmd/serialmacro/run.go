package main

import (
	"context"

	"github.com/DJA-prog/serialmacro/internal/cli"
	"github.com/DJA-prog/serialmacro/internal/config"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <macro | file.yaml>",
	Short: "Run a macro against the serial device",
	Long: `Runs a macro by name, or from a YAML file, showing device traffic and
asking for input when the macro needs it. Ctrl+C stops the macro.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		simulate, _ := cmd.Flags().GetString("simulate")
		debug, _ := cmd.Flags().GetBool("debug")
		headless, _ := cmd.Flags().GetBool("headless")
		jsonMode, _ := cmd.Flags().GetBool("json")

		return cli.RunSession(context.Background(), cli.RunOptions{
			Settings: settings,
			Macro:    args[0],
			Simulate: simulate,
			Headless: headless,
			JSON:     jsonMode,
			Debug:    debug,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("headless", false, "Answer every prompt with its default")
	runCmd.Flags().Bool("json", false, "Run in JSON mode (JSON lines on stdin/stdout)")
	runCmd.Flags().Bool("reveal", false, "Show hidden characters in device traffic")
	bind(runCmd.Flags(), config.KeyReveal, "reveal")
}
