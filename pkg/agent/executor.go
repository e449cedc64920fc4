package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/chaosswarm/chaosswarm/pkg/api"
	"github.com/chaosswarm/chaosswarm/pkg/observability"
	"github.com/chaosswarm/chaosswarm/pkg/runtime"
)

const (
	// DefaultExecutionTimeout bounds one action binary run
	DefaultExecutionTimeout = 10 * time.Second

	// waitDelay bounds how long output pipes may stay open after the
	// process has been killed
	waitDelay = 500 * time.Millisecond
)

// DefaultActions is the built-in allow-list
func DefaultActions() map[string]string {
	return map[string]string{"pumba": "pumba"}
}

// ErrUnknownAction means the action is not on the allow-list
var ErrUnknownAction = errors.New("unknown action")

// UnknownActionError reports a rejected action name and the accepted ones
type UnknownActionError struct {
	Action string
	Known  []string
}

func (e *UnknownActionError) Error() string {
	return "known actions: " + strings.Join(e.Known, ", ")
}

// Is matches ErrUnknownAction
func (e *UnknownActionError) Is(target error) bool {
	return target == ErrUnknownAction
}

// Config represents the executor configuration
type Config struct {
	// Actions maps an allowed action name to the binary that runs it
	Actions map[string]string

	// Timeout bounds each binary run
	Timeout time.Duration

	// Resolver maps container ids to local names
	Resolver runtime.NameResolver

	Logger *zap.Logger
}

// Validate validates the executor configuration
func (c *Config) Validate() error {
	if len(c.Actions) == 0 {
		return fmt.Errorf("at least one action is required")
	}
	for name, bin := range c.Actions {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("action name must not be empty")
		}
		if strings.TrimSpace(bin) == "" {
			return fmt.Errorf("action %q has no binary", name)
		}
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultExecutionTimeout
	}
	if c.Timeout < 0 {
		return fmt.Errorf("execution timeout must be positive")
	}
	if c.Resolver == nil {
		return fmt.Errorf("name resolver is required")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// Executor runs allowed actions against containers on this node
type Executor struct {
	actions  map[string]string
	known    []string
	timeout  time.Duration
	resolver runtime.NameResolver
	logger   *zap.Logger
}

// New creates a new executor
func New(config *Config) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	actions := make(map[string]string, len(config.Actions))
	known := make([]string, 0, len(config.Actions))
	for name, bin := range config.Actions {
		actions[name] = bin
		known = append(known, name)
	}
	sort.Strings(known)

	return &Executor{
		actions:  actions,
		known:    known,
		timeout:  config.Timeout,
		resolver: config.Resolver,
		logger:   config.Logger,
	}, nil
}

// KnownActions returns the allowed action names, sorted
func (e *Executor) KnownActions() []string {
	return append([]string(nil), e.known...)
}

// Binary returns the binary configured for an action
func (e *Executor) Binary(action string) (string, bool) {
	bin, ok := e.actions[action]
	return bin, ok
}

// Execute runs the action against the container. An error is returned only
// when the request is rejected before anything runs; every execution outcome,
// including failures, is reported as a result.
func (e *Executor) Execute(ctx context.Context, req api.ExecuteRequest) (api.ExecutionResult, error) {
	if err := req.Validate(); err != nil {
		return api.ExecutionResult{}, err
	}

	action := req.Action.Name()
	bin, ok := e.actions[action]
	if !ok {
		observability.ExecutionsTotal.WithLabelValues("unknown", "rejected").Inc()
		return api.ExecutionResult{}, &UnknownActionError{Action: action, Known: e.KnownActions()}
	}

	ctx = observability.WithTarget(ctx, req.Container)
	ctx, span := observability.StartSpan(ctx, "agent.Execute",
		trace.WithAttributes(
			attribute.String("action", action),
			attribute.String("target", req.Container),
		),
	)
	defer span.End()

	logger := observability.ContextLogger(ctx, e.logger)
	start := time.Now()
	defer func() {
		observability.ExecutionDurationSeconds.WithLabelValues(action).Observe(time.Since(start).Seconds())
	}()

	// The execution timeout covers name resolution and the process run
	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	name, err := e.resolver.ResolveName(execCtx, req.Container)
	if err != nil {
		logger.Warn("Failed to resolve container name", zap.Error(err))
		observability.ExecutionsTotal.WithLabelValues(action, "failure").Inc()
		observability.RecordError(ctx, err)
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return api.Failure(req.Container, e.timedOut(bin)), nil
		}
		return api.Failure(req.Container, err.Error()), nil
	}

	args := append(append([]string(nil), req.Action.Args()...), name)
	result := e.run(execCtx, req.Container, bin, args)

	if result.Succeeded() {
		logger.Info("Action executed",
			zap.String("action", action),
			zap.Strings("args", args),
			zap.Duration("duration", time.Since(start)),
		)
		observability.ExecutionsTotal.WithLabelValues(action, "success").Inc()
	} else {
		logger.Warn("Action failed",
			zap.String("action", action),
			zap.Strings("args", args),
			zap.String("message", result.Message),
		)
		observability.ExecutionsTotal.WithLabelValues(action, "failure").Inc()
		observability.SetSpanStatus(ctx, codes.Error, result.Message)
	}
	return result, nil
}

// run invokes bin until ctx expires and maps its outcome
func (e *Executor) run(ctx context.Context, target, bin string, args []string) api.ExecutionResult {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case err == nil:
		return api.Success(target, stdout.String())
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return api.Failure(target, bin+": command not found")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return api.Failure(target, e.timedOut(bin))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return api.Failure(target, stderr.String())
	}
	return api.Failure(target, fmt.Sprintf("%s: %v", bin, err))
}

func (e *Executor) timedOut(bin string) string {
	return fmt.Sprintf("%s: timed out after %s", bin, e.timeout)
}
