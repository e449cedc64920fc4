// Package runtime resolves a container id to the name the node's container
// runtime knows it by, so that action binaries can address it by name.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Runtime kinds
const (
	KindDocker     = "docker"
	KindContainerd = "containerd"
)

// ErrContainerNotFound means the runtime has no container with that id
var ErrContainerNotFound = errors.New("no such container")

// NameResolver maps a container id to its local name
type NameResolver interface {
	ResolveName(ctx context.Context, containerID string) (string, error)
	Close() error
}

// Config contains configuration for the runtime
type Config struct {
	// Kind is docker or containerd
	Kind string

	// Socket path or daemon address; empty uses the runtime default
	Socket string

	// Namespace for containerd; Docker Engine uses "moby"
	Namespace string

	// Timeout for operations
	Timeout time.Duration
}

// New connects to the configured runtime
func New(config Config, logger *zap.Logger) (NameResolver, error) {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	switch config.Kind {
	case "", KindDocker:
		return NewDockerResolver(config, logger)
	case KindContainerd:
		return NewContainerdResolver(config, logger)
	default:
		return nil, fmt.Errorf("unsupported container runtime %q (supported: %s, %s)", config.Kind, KindDocker, KindContainerd)
	}
}

// Static resolves every id to itself. It is used where no runtime is
// reachable and the action binary accepts raw ids.
type Static struct{}

// ResolveName returns the id unchanged
func (Static) ResolveName(_ context.Context, containerID string) (string, error) {
	return containerID, nil
}

// Close is a no-op
func (Static) Close() error { return nil }
