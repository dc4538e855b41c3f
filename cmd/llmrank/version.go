package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/llmrank/internal/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "llmrank %s\ncommit: %s\nbuilt:  %s\n",
			version.Version, version.Commit, version.Date)
	},
}
