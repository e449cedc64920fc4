package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/chaosswarm/chaosswarm/pkg/api"
	"github.com/chaosswarm/chaosswarm/pkg/cluster"
	"github.com/chaosswarm/chaosswarm/pkg/observability"
)

// DefaultHostnameLength is the container id prefix Docker uses as hostname
const DefaultHostnameLength = 12

// Directory maps a swarm node id to the host of the helper running on it
type Directory map[string]string

// Lookup returns the helper host for a node
func (d Directory) Lookup(nodeID string) (string, bool) {
	host, ok := d[nodeID]
	return host, ok
}

// DirectoryBuilder discovers the helpers of the cluster. Helpers run as a
// single global service identified by a label; each running task is
// reachable by its container hostname.
type DirectoryBuilder struct {
	client         cluster.API
	label          string
	hostnameLength int
	timeout        time.Duration
	logger         *zap.Logger
}

// DirectoryConfig configures helper discovery
type DirectoryConfig struct {
	// Label is the filter identifying the helper service, e.g. chaos-swarm-helper=v1
	Label string

	// HostnameLength is how many leading characters of the container id
	// form the helper hostname
	HostnameLength int

	// Timeout bounds each orchestration query
	Timeout time.Duration
}

// NewDirectoryBuilder creates a directory builder
func NewDirectoryBuilder(client cluster.API, cfg DirectoryConfig, logger *zap.Logger) *DirectoryBuilder {
	if cfg.HostnameLength <= 0 {
		cfg.HostnameLength = DefaultHostnameLength
	}
	return &DirectoryBuilder{
		client:         client,
		label:          cfg.Label,
		hostnameLength: cfg.HostnameLength,
		timeout:        cfg.Timeout,
		logger:         logger,
	}
}

// Build queries the cluster and returns a fresh directory. Exactly one
// helper service must exist. Nodes without a running helper are simply
// absent from the result.
func (b *DirectoryBuilder) Build(ctx context.Context) (Directory, error) {
	ctx, span := observability.StartSpan(ctx, "coordinator.BuildDirectory")
	defer span.End()

	helperFilter := api.Filter{"label": {b.label}}

	listCtx, cancel := withOptionalTimeout(ctx, b.timeout)
	services, err := cluster.ListServices(listCtx, b.client, helperFilter)
	cancel()
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, fmt.Errorf("%w: %w", ErrOrchestration, err)
	}
	if len(services) != 1 {
		err := fmt.Errorf("%w: expected exactly one service labelled %s, found %d", ErrHelperDiscovery, b.label, len(services))
		observability.RecordError(ctx, err)
		return nil, err
	}
	helper := services[0]

	taskCtx, cancel := withOptionalTimeout(ctx, b.timeout)
	tasks, err := cluster.ListRunningTasks(taskCtx, b.client, helper.ID, nil)
	cancel()
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, fmt.Errorf("%w: %w", ErrOrchestration, err)
	}

	logger := observability.ContextLogger(ctx, b.logger)
	dir := make(Directory, len(tasks))
	for _, t := range tasks {
		host := b.hostname(t.ContainerID)
		if existing, ok := dir[t.NodeID]; ok {
			logger.Warn("Multiple helpers on one node, keeping the first",
				zap.String("node_id", t.NodeID),
				zap.String("kept", existing),
				zap.String("ignored", host),
			)
			continue
		}
		dir[t.NodeID] = host
	}

	observability.HelpersDiscovered.Set(float64(len(dir)))
	span.SetAttributes(attribute.Int("helpers", len(dir)))
	logger.Debug("Built helper directory",
		zap.String("service_id", helper.ID),
		zap.Int("helpers", len(dir)),
	)

	return dir, nil
}

func (b *DirectoryBuilder) hostname(containerID string) string {
	id := strings.TrimSpace(containerID)
	if len(id) > b.hostnameLength {
		return id[:b.hostnameLength]
	}
	return id
}
