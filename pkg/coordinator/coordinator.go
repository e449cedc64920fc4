package coordinator

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/chaosswarm/chaosswarm/pkg/api"
	"github.com/chaosswarm/chaosswarm/pkg/cluster"
	"github.com/chaosswarm/chaosswarm/pkg/observability"
)

// DefaultDiscoveryLabel identifies the helper's own Swarm service
const DefaultDiscoveryLabel = "chaos-swarm-helper=v1"

// DefaultSwarmTimeout bounds each orchestration query
const DefaultSwarmTimeout = 5 * time.Second

// DefaultRequestTimeout bounds a whole submission
const DefaultRequestTimeout = 30 * time.Second

// Config represents the coordinator configuration
type Config struct {
	// Swarm is the orchestration API
	Swarm  cluster.API
	Logger *zap.Logger

	// DiscoveryLabel locates the helper service
	DiscoveryLabel string

	// HelperPort is the port helpers serve /execute on
	HelperPort int

	// HostnameLength is the container id prefix used as helper host
	HostnameLength int

	// MaxTargets is the largest accepted target count
	MaxTargets int

	// DispatchTimeout bounds each coordinator to helper request
	DispatchTimeout time.Duration

	// SwarmTimeout bounds each orchestration query
	SwarmTimeout time.Duration

	// RequestTimeout bounds the whole submission. The orchestration queries
	// share what is left of it after DispatchTimeout.
	RequestTimeout time.Duration

	// Optional
	RandSource rand.Source
	Transport  http.RoundTripper
}

// Validate validates the coordinator configuration and fills defaults
func (c *Config) Validate() error {
	if c.Swarm == nil {
		return fmt.Errorf("swarm client is required")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.DiscoveryLabel == "" {
		c.DiscoveryLabel = DefaultDiscoveryLabel
	}
	if c.HelperPort == 0 {
		c.HelperPort = DefaultHelperPort
	}
	if c.HelperPort < 0 || c.HelperPort > 65535 {
		return fmt.Errorf("invalid helper port %d", c.HelperPort)
	}
	if c.HostnameLength == 0 {
		c.HostnameLength = DefaultHostnameLength
	}
	if c.MaxTargets == 0 {
		c.MaxTargets = DefaultMaxTargets
	}
	if c.MaxTargets < 0 {
		return fmt.Errorf("max targets must be positive, got %d", c.MaxTargets)
	}
	if c.DispatchTimeout == 0 {
		c.DispatchTimeout = DefaultDispatchTimeout
	}
	if c.SwarmTimeout == 0 {
		c.SwarmTimeout = DefaultSwarmTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RequestTimeout <= c.DispatchTimeout {
		return fmt.Errorf("request timeout %s must exceed dispatch timeout %s", c.RequestTimeout, c.DispatchTimeout)
	}
	return nil
}

// Coordinator turns a submission into per-target executions: resolve the
// selector, pick targets, locate helpers, dispatch and aggregate.
// A Coordinator holds no per-submission state and is safe for concurrent use.
type Coordinator struct {
	logger      *zap.Logger
	queryBudget time.Duration
	resolver   *Resolver
	selector   *TargetSelector
	directory  *DirectoryBuilder
	dispatcher *Dispatcher
}

// New creates a new coordinator instance
func New(config *Config) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := &Coordinator{
		logger:      config.Logger,
		queryBudget: config.RequestTimeout - config.DispatchTimeout,
		resolver:    NewResolver(config.Swarm, config.SwarmTimeout, config.Logger),
		selector: NewTargetSelector(config.RandSource, config.MaxTargets),
		directory: NewDirectoryBuilder(config.Swarm, DirectoryConfig{
			Label:          config.DiscoveryLabel,
			HostnameLength: config.HostnameLength,
			Timeout:        config.SwarmTimeout,
		}, config.Logger),
		dispatcher: NewDispatcher(DispatcherConfig{
			Port:      config.HelperPort,
			Timeout:   config.DispatchTimeout,
			Transport: config.Transport,
		}, config.Logger),
	}

	config.Logger.Info("Coordinator initialized",
		zap.String("discovery_label", config.DiscoveryLabel),
		zap.Int("helper_port", config.HelperPort),
		zap.Int("max_targets", config.MaxTargets),
		zap.Duration("dispatch_timeout", config.DispatchTimeout),
		zap.Duration("request_timeout", config.RequestTimeout),
	)

	return c, nil
}

// Submit runs one submission. A returned error means nothing was dispatched;
// it wraps one of the package sentinels. Once dispatch starts the outcome is
// always a response, whose status reports whether every target succeeded.
func (c *Coordinator) Submit(ctx context.Context, req api.SubmitRequest) (api.SubmitResponse, error) {
	ctx, span := observability.StartSpan(ctx, "coordinator.Submit",
		trace.WithAttributes(
			attribute.String("selector", req.Selector.String()),
			attribute.String("action", req.Action.Name()),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		observability.SubmissionDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	resp, err := c.submit(ctx, req)
	switch {
	case err == nil && resp.Status == api.StatusSuccess:
		observability.SubmissionsTotal.WithLabelValues("success").Inc()
	case err == nil:
		observability.SubmissionsTotal.WithLabelValues("failure").Inc()
	case IsClientError(err):
		observability.SubmissionsTotal.WithLabelValues("rejected").Inc()
		observability.RecordError(ctx, err)
	default:
		observability.SubmissionsTotal.WithLabelValues("error").Inc()
		observability.RecordError(ctx, err)
	}
	return resp, err
}

func (c *Coordinator) submit(ctx context.Context, req api.SubmitRequest) (api.SubmitResponse, error) {
	logger := observability.ContextLogger(ctx, c.logger)

	if err := req.Validate(); err != nil {
		return api.SubmitResponse{}, fmt.Errorf("%w: %w", ErrInvalidSelector, err)
	}
	if _, err := c.selector.ParseCount(req.Targets); err != nil {
		return api.SubmitResponse{}, err
	}

	// Every orchestration query shares one budget so dispatch still fits
	// inside the request timeout.
	queryCtx, cancel := context.WithTimeout(ctx, c.queryBudget)
	defer cancel()

	candidates, err := c.resolver.Resolve(queryCtx, req.Selector)
	if err != nil {
		return api.SubmitResponse{}, err
	}
	if len(candidates) == 0 {
		return api.SubmitResponse{}, fmt.Errorf("%w for selector %s", ErrNoTargets, req.Selector)
	}

	targets, err := c.selector.Select(candidates, req.Targets)
	if err != nil {
		return api.SubmitResponse{}, err
	}

	dir, err := c.directory.Build(queryCtx)
	if err != nil {
		logger.Error("Helper directory unavailable", zap.Error(err))
		return api.SubmitResponse{}, err
	}

	logger.Info("Dispatching action",
		zap.Strings("action", req.Action),
		zap.Int("candidates", len(candidates)),
		zap.Int("targets", len(targets)),
		zap.Int("helpers", len(dir)),
	)

	resp := Aggregate(c.dispatcher.Dispatch(ctx, dir, targets, req.Action))

	if resp.Status == api.StatusSuccess {
		logger.Info("Submission succeeded", zap.Int("executions", len(resp.Executions)))
	} else {
		logger.Warn("Submission failed",
			zap.Int("executions", len(resp.Executions)),
			zap.String("message", resp.Message),
		)
	}
	return resp, nil
}
