// Package cluster is the coordinator's view of the Swarm orchestration API.
//
// The API interface is the subset of the Docker Engine client the coordinator
// needs, so *client.Client satisfies it directly and tests can substitute a fake.
package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/chaosswarm/chaosswarm/pkg/api"
)

// API lists Swarm services and tasks
type API interface {
	ServiceList(ctx context.Context, options types.ServiceListOptions) ([]swarm.Service, error)
	TaskList(ctx context.Context, options types.TaskListOptions) ([]swarm.Task, error)
}

// ClientConfig configures the Docker Engine client
type ClientConfig struct {
	// Host overrides DOCKER_HOST, e.g. unix:///var/run/docker.sock
	Host string

	// Timeout bounds every request made by the client
	Timeout time.Duration
}

// NewClient creates a Docker Engine client from the environment, negotiating
// the API version with the daemon
func NewClient(cfg ClientConfig, logger *zap.Logger) (*client.Client, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, client.WithTimeout(cfg.Timeout))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	logger.Info("Docker client configured",
		zap.String("host", cli.DaemonHost()),
	)

	return cli, nil
}

// FilterArgs converts a selector filter to Docker filter arguments
func FilterArgs(f api.Filter) filters.Args {
	args := filters.NewArgs()
	for _, key := range f.Keys() {
		for _, value := range f[key] {
			args.Add(key, value)
		}
	}
	return args
}

// ListServices returns the services matching the filter
func ListServices(ctx context.Context, c API, f api.Filter) ([]swarm.Service, error) {
	services, err := c.ServiceList(ctx, types.ServiceListOptions{Filters: FilterArgs(f)})
	if err != nil {
		return nil, fmt.Errorf("failed to list services %s: %w", f, err)
	}
	return services, nil
}

// RunningTask is a task that has a container on a node
type RunningTask struct {
	TaskID      string
	NodeID      string
	ContainerID string
}

// ListRunningTasks returns the running tasks of a service, narrowed by an
// optional extra filter. Tasks are only reported once they have been assigned
// a node and a container.
func ListRunningTasks(ctx context.Context, c API, serviceID string, extra api.Filter) ([]RunningTask, error) {
	args := FilterArgs(extra)
	args.Add("service", serviceID)
	if !args.Contains("desired-state") {
		args.Add("desired-state", string(swarm.TaskStateRunning))
	}

	tasks, err := c.TaskList(ctx, types.TaskListOptions{Filters: args})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks of service %s: %w", serviceID, err)
	}

	running := make([]RunningTask, 0, len(tasks))
	for _, t := range tasks {
		if t.Status.State != swarm.TaskStateRunning {
			continue
		}
		if t.NodeID == "" || t.Status.ContainerStatus == nil || t.Status.ContainerStatus.ContainerID == "" {
			continue
		}
		running = append(running, RunningTask{
			TaskID:      t.ID,
			NodeID:      t.NodeID,
			ContainerID: t.Status.ContainerStatus.ContainerID,
		})
	}
	return running, nil
}
