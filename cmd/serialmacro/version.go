package main

import (
	"fmt"
	"strings"

	"github.com/DJA-prog/serialmacro"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of serialmacro",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "serialmacro version %s\n", strings.TrimSpace(serialmacro.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
