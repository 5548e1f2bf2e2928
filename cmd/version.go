package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCmd creates the Cobra command for displaying the application version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of runvet",
		Long:  `All software has versions. This is runvet's.`,
		Run: func(cmd *cobra.Command, args []string) {
			// rootCmd.Version is set by main at build time.
			fmt.Fprintf(cmd.OutOrStdout(), "runvet version %s\n", rootCmd.Version)
		},
	}
}
