package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chaosswarm/chaosswarm/cmd/chaosctl/commands"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chaosctl",
		Short: "Chaos Swarm CLI",
		Long: `chaosctl submits chaos actions to a Chaos Swarm helper and reports the
outcome for every selected target.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(commands.NewSubmitCommand())
	rootCmd.AddCommand(commands.NewHealthCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version, BuildTime, GitCommit))

	return rootCmd
}
