package coordinator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/docker/docker/api/types/swarm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/chaosswarm/chaosswarm/pkg/api"
	"github.com/chaosswarm/chaosswarm/pkg/cluster"
	"github.com/chaosswarm/chaosswarm/pkg/observability"
)

// Candidate is one running instance and the node hosting it
type Candidate struct {
	NodeID      string
	ContainerID string
}

// Target is a candidate chosen for action
type Target = Candidate

// Resolver evaluates selectors against live cluster state
type Resolver struct {
	client  cluster.API
	timeout time.Duration
	logger  *zap.Logger
}

// NewResolver creates a resolver. timeout bounds each orchestration query.
func NewResolver(client cluster.API, timeout time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{client: client, timeout: timeout, logger: logger}
}

// Resolve returns every running instance selected by sel. An empty result
// is not an error. The output is sorted so that a fixed cluster snapshot
// always yields the same sequence.
func (r *Resolver) Resolve(ctx context.Context, sel api.Selector) ([]Candidate, error) {
	ctx, span := observability.StartSpan(ctx, "coordinator.Resolve",
		trace.WithAttributes(attribute.String("selector", sel.String())),
	)
	defer span.End()

	services, err := r.listServices(ctx, sel.Services)
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, fmt.Errorf("%w: %w", ErrOrchestration, err)
	}

	var candidates []Candidate
	for _, svc := range services {
		tasks, err := r.listTasks(ctx, svc.ID, sel.Tasks)
		if err != nil {
			observability.RecordError(ctx, err)
			return nil, fmt.Errorf("%w: %w", ErrOrchestration, err)
		}
		for _, t := range tasks {
			candidates = append(candidates, Candidate{NodeID: t.NodeID, ContainerID: t.ContainerID})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].NodeID != candidates[j].NodeID {
			return candidates[i].NodeID < candidates[j].NodeID
		}
		return candidates[i].ContainerID < candidates[j].ContainerID
	})

	span.SetAttributes(
		attribute.Int("services", len(services)),
		attribute.Int("candidates", len(candidates)),
	)
	observability.ContextLogger(ctx, r.logger).Debug("Resolved selector",
		zap.Stringer("selector", sel),
		zap.Int("services", len(services)),
		zap.Int("candidates", len(candidates)),
	)

	return candidates, nil
}

func (r *Resolver) listServices(ctx context.Context, f api.Filter) ([]swarm.Service, error) {
	ctx, cancel := withOptionalTimeout(ctx, r.timeout)
	defer cancel()

	return cluster.ListServices(ctx, r.client, f)
}

func (r *Resolver) listTasks(ctx context.Context, serviceID string, f api.Filter) ([]cluster.RunningTask, error) {
	ctx, cancel := withOptionalTimeout(ctx, r.timeout)
	defer cancel()

	return cluster.ListRunningTasks(ctx, r.client, serviceID, f)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
