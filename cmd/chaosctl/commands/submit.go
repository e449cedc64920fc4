package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaosswarm/chaosswarm/cmd/chaosctl/config"
	"github.com/chaosswarm/chaosswarm/pkg/api"
)

// NewSubmitCommand creates the submit command
func NewSubmitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit [flags] -- ACTION [ARGS...]",
		Short: "Run a chaos action against randomly selected tasks",
		Long: `Submit a chaos action to a helper acting as coordinator.

The helper resolves the services and tasks matching the filters, picks the
requested number of targets at random, and runs the action on each target's
node. The target container name is appended to the action's arguments.`,
		Example: `  chaosctl submit --service-filter name=web --targets 1 -- pumba kill
  chaosctl submit --service-filter label=tier=frontend --task-filter node=n1 -- pumba pause --duration 10s`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, args)
		},
	}

	cmd.Flags().StringArray("service-filter", nil, "Service filter key=value (repeatable)")
	cmd.Flags().StringArray("task-filter", nil, "Task filter key=value (repeatable)")
	cmd.Flags().String("targets", "1", "Number of targets")
	cmd.Flags().String("request-id", "", "Request id to propagate (generated when empty)")
	cmd.MarkFlagRequired("service-filter")

	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	out := config.NewOutputterTo(output, cmd.OutOrStdout())
	if err := out.Validate(); err != nil {
		return err
	}

	serviceFilters, _ := cmd.Flags().GetStringArray("service-filter")
	taskFilters, _ := cmd.Flags().GetStringArray("task-filter")
	targets, _ := cmd.Flags().GetString("targets")
	requestID, _ := cmd.Flags().GetString("request-id")

	services, err := ParseFilters(serviceFilters)
	if err != nil {
		return fmt.Errorf("invalid --service-filter: %w", err)
	}
	tasks, err := ParseFilters(taskFilters)
	if err != nil {
		return fmt.Errorf("invalid --task-filter: %w", err)
	}

	req := api.SubmitRequest{
		Selector: api.Selector{Services: services, Tasks: tasks},
		Targets:  api.TargetCount(targets),
		Action:   api.ActionSpec(args),
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	resp, err := cfg.NewClient().Submit(ctx, req, requestID)
	if err != nil {
		return fmt.Errorf("failed to submit: %w", err)
	}

	if out.GetFormat() == config.OutputTable {
		if err := printExecutionTable(out, resp); err != nil {
			return err
		}
	} else if err := out.Print(resp); err != nil {
		return err
	}

	if resp.Status != api.StatusSuccess {
		return fmt.Errorf("submission failed: %s", resp.Message)
	}
	return nil
}

func printExecutionTable(out *config.Outputter, resp api.SubmitResponse) error {
	if len(resp.Executions) > 0 {
		headers := []string{"TARGET", "STATUS", "DETAIL"}
		rows := make([][]string, 0, len(resp.Executions))
		for _, exec := range resp.Executions {
			detail := exec.Output
			if !exec.Succeeded() {
				detail = exec.Message
			}
			rows = append(rows, []string{exec.Target, string(exec.Status), strings.TrimSpace(detail)})
		}
		if err := out.PrintTable(headers, rows); err != nil {
			return err
		}
	}

	if resp.Status == api.StatusSuccess {
		out.Printf("Submission succeeded on %d target(s)\n", len(resp.Executions))
	}
	return nil
}

// ParseFilters turns repeated key=value flags into a filter. Repeating a key
// accepts any of its values. Only the first '=' separates key from value, so
// label=tier=frontend filters on the label tier=frontend.
func ParseFilters(values []string) (api.Filter, error) {
	if len(values) == 0 {
		return nil, nil
	}

	filter := make(api.Filter, len(values))
	for _, kv := range values {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("expected key=value, got %q", kv)
		}
		filter[key] = append(filter[key], value)
	}
	return filter, nil
}
