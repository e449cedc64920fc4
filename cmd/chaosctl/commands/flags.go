package commands

import "github.com/spf13/cobra"

// AddGlobalFlags registers the flags shared by every command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("helper", "", "Helper address (default from config, localhost:8080)")
	cmd.PersistentFlags().String("config", "", "Config file path (default: $HOME/.chaosswarm/config.yaml)")
	cmd.PersistentFlags().StringP("output", "o", "table", "Output format: table, json, yaml")
	cmd.PersistentFlags().Duration("timeout", 0, "Request timeout (default from config, 35s)")
}
