package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/chaosswarm/chaosswarm/pkg/agent"
	containerruntime "github.com/chaosswarm/chaosswarm/pkg/runtime"
)

var (
	inspectFormat string

	inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Inspect the node and the action binaries",
		RunE:  inspect,
	}
)

func init() {
	inspectCmd.Flags().StringVarP(&inspectFormat, "output", "o", "yaml", "Output format (yaml, json)")
}

// inspect prints what the executor would see on this node: host facts and
// where each action binary resolves. The container runtime is not contacted.
func inspect(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	executor, err := agent.New(&agent.Config{
		Actions:  cfg.Actions,
		Timeout:  cfg.Timeouts.Execution,
		Resolver: containerruntime.Static{},
		Logger:   zap.NewNop(),
	})
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	report := executor.Inspect(ctx)

	switch inspectFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(report)
	default:
		return fmt.Errorf("unsupported output format: %s", inspectFormat)
	}
}
