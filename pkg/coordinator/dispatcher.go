package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/chaosswarm/chaosswarm/pkg/api"
	"github.com/chaosswarm/chaosswarm/pkg/observability"
)

const (
	// DefaultHelperPort is the port helpers serve /execute on
	DefaultHelperPort = 8080

	// DefaultDispatchTimeout bounds one coordinator to helper request
	DefaultDispatchTimeout = 15 * time.Second

	// maxResponseBytes caps how much of a helper response is read
	maxResponseBytes = 1 << 20
)

// DispatcherConfig configures the fan-out to helpers
type DispatcherConfig struct {
	// Port helpers listen on
	Port int

	// Timeout bounds each per-target request
	Timeout time.Duration

	// Transport overrides the HTTP transport, mainly for tests
	Transport http.RoundTripper
}

// Dispatcher delivers an action to the helper on each target's node
type Dispatcher struct {
	client  *http.Client
	port    int
	timeout time.Duration
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.Port <= 0 {
		cfg.Port = DefaultHelperPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDispatchTimeout
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &Dispatcher{
		client: &http.Client{
			Transport: otelhttp.NewTransport(base),
			Timeout:   cfg.Timeout,
		},
		port:    cfg.Port,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Dispatch runs the action against every target concurrently and returns
// one result per target, in target order. A failing or slow target never
// affects the others. Dispatch returns only once every request has finished
// or timed out.
//
// The caller's cancellation is not propagated: in-flight requests run to
// their own timeout. This is a recommendation for irreversible actions, not
// a guarantee; an abandoned submission may still leave partial effects.
func (d *Dispatcher) Dispatch(ctx context.Context, dir Directory, targets []Target, action api.ActionSpec) []api.ExecutionResult {
	detached := context.WithoutCancel(ctx)

	results := make([]api.ExecutionResult, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target Target) {
			defer wg.Done()
			results[i] = d.dispatchOne(detached, dir, target, action)
		}(i, target)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, dir Directory, target Target, action api.ActionSpec) api.ExecutionResult {
	ctx = observability.WithTarget(observability.WithNodeID(ctx, target.NodeID), target.ContainerID)
	ctx, span := observability.StartSpan(ctx, "coordinator.Dispatch",
		trace.WithAttributes(
			attribute.String("node_id", target.NodeID),
			attribute.String("target", target.ContainerID),
		),
	)
	defer span.End()

	logger := observability.ContextLogger(ctx, d.logger)
	start := time.Now()
	defer func() {
		observability.DispatchDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	host, ok := dir.Lookup(target.NodeID)
	if !ok {
		msg := fmt.Sprintf("no helper active on node %s", target.NodeID)
		logger.Warn("Dispatch skipped", zap.String("reason", msg))
		observability.DispatchesTotal.WithLabelValues("no_helper").Inc()
		observability.SetSpanStatus(ctx, codes.Error, msg)
		return api.Failure(target.ContainerID, msg)
	}
	span.SetAttributes(attribute.String("helper", host))

	result, err := d.execute(ctx, host, target, action)
	if err != nil {
		logger.Warn("Dispatch failed",
			zap.String("helper", host),
			zap.Error(err),
		)
		observability.DispatchesTotal.WithLabelValues("failure").Inc()
		observability.RecordError(ctx, err)
		return api.Failure(target.ContainerID, err.Error())
	}

	if result.Succeeded() {
		observability.DispatchesTotal.WithLabelValues("success").Inc()
	} else {
		logger.Warn("Helper reported failure",
			zap.String("helper", host),
			zap.String("message", result.Message),
		)
		observability.DispatchesTotal.WithLabelValues("failure").Inc()
	}
	return result
}

// execute performs one POST /execute. A returned error means no usable
// result came back; a failure body from the helper is returned as a result.
func (d *Dispatcher) execute(ctx context.Context, host string, target Target, action api.ActionSpec) (api.ExecutionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	body, err := json.Marshal(api.ExecuteRequest{Container: target.ContainerID, Action: action})
	if err != nil {
		return api.ExecutionResult{}, fmt.Errorf("failed to encode request: %w", err)
	}

	url := "http://" + net.JoinHostPort(host, strconv.Itoa(d.port)) + "/execute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return api.ExecutionResult{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID := observability.GetRequestID(ctx); requestID != "" {
		req.Header.Set(observability.RequestIDHeader, requestID)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return api.ExecutionResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return api.ExecutionResult{}, fmt.Errorf("failed to read response from helper %s: %w", host, err)
	}

	var result api.ExecutionResult
	decodeErr := json.Unmarshal(raw, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Helpers answer errors with a failure body; keep its message
		if decodeErr == nil && !result.Succeeded() && result.Message != "" {
			return api.Failure(target.ContainerID, result.Message), nil
		}
		return api.ExecutionResult{}, fmt.Errorf("helper %s responded %s", host, resp.Status)
	}

	if decodeErr != nil {
		return api.ExecutionResult{}, fmt.Errorf("invalid response from helper %s: %w", host, decodeErr)
	}
	if result.Target == "" {
		result.Target = target.ContainerID
	}
	if result.Target != target.ContainerID {
		return api.ExecutionResult{}, fmt.Errorf("helper %s answered for %s instead of %s", host, result.Target, target.ContainerID)
	}
	return result, nil
}
