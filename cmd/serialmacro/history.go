package main

import (
	"github.com/DJA-prog/serialmacro/internal/cli"
	"github.com/DJA-prog/serialmacro/internal/config"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent macro runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return cli.History(cmd.Context(), cmd.OutOrStdout(), settings, limit)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().String("dir", "", "Directory run records are kept in")
	bind(historyCmd.Flags(), config.KeyHistoryDir, "dir")
}
