package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"go.uber.org/zap"
)

// ContainerInspector is the subset of the Docker client used for names
type ContainerInspector interface {
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
}

// DockerResolver resolves names through the Docker Engine API
type DockerResolver struct {
	inspector ContainerInspector
	closer    func() error
	logger    *zap.Logger
}

// NewDockerResolver connects to the local Docker Engine
func NewDockerResolver(config Config, logger *zap.Logger) (*DockerResolver, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if config.Socket != "" {
		host := config.Socket
		if !strings.Contains(host, "://") {
			host = "unix://" + host
		}
		opts = append(opts, client.WithHost(host))
	}
	if config.Timeout > 0 {
		opts = append(opts, client.WithTimeout(config.Timeout))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	logger.Info("Using docker runtime",
		zap.String("host", cli.DaemonHost()),
	)

	resolver := NewDockerResolverWithClient(cli, logger)
	resolver.closer = cli.Close
	return resolver, nil
}

// NewDockerResolverWithClient wraps an existing inspector
func NewDockerResolverWithClient(inspector ContainerInspector, logger *zap.Logger) *DockerResolver {
	return &DockerResolver{inspector: inspector, logger: logger}
}

// ResolveName returns the container name without Docker's leading slash
func (r *DockerResolver) ResolveName(ctx context.Context, containerID string) (string, error) {
	info, err := r.inspector.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrContainerNotFound, containerID)
		}
		return "", fmt.Errorf("failed to inspect container %s: %w", containerID, err)
	}
	if info.ContainerJSONBase == nil || info.Name == "" {
		return containerID, nil
	}

	name := strings.TrimPrefix(info.Name, "/")
	r.logger.Debug("Resolved container name",
		zap.String("container_id", containerID),
		zap.String("name", name),
	)
	return name, nil
}

// Close closes the docker client
func (r *DockerResolver) Close() error {
	if r.closer != nil {
		return r.closer()
	}
	return nil
}
