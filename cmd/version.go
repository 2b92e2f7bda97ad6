package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build version information",
	Run: func(cmd *cobra.Command, args []string) {
		versionRun()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func versionRun() {
	fmt.Fprintf(ui.Out, "projectops %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
}
