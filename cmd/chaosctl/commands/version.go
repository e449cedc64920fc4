package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command
func NewVersionCommand(version, buildTime, gitCommit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the version, build time, and git commit of chaosctl",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "chaosctl version %s\n", version)
			fmt.Fprintf(w, "Build time: %s\n", buildTime)
			fmt.Fprintf(w, "Git commit: %s\n", gitCommit)
		},
	}
}
