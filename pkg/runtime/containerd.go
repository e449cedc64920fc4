package runtime

import (
	"context"
	"fmt"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	"go.uber.org/zap"
)

// Labels under which runtimes record a human name for a container
const (
	SwarmTaskNameLabel = "com.docker.swarm.task.name"
	NerdctlNameLabel   = "nerdctl/name"
)

// LabelSource returns the labels of a container
type LabelSource interface {
	ContainerLabels(ctx context.Context, containerID string) (map[string]string, error)
}

// ContainerdResolver resolves names from containerd container labels
type ContainerdResolver struct {
	labels    LabelSource
	namespace string
	closer    func() error
	logger    *zap.Logger
}

// NewContainerdResolver connects to containerd
func NewContainerdResolver(config Config, logger *zap.Logger) (*ContainerdResolver, error) {
	if config.Socket == "" {
		config.Socket = "/run/containerd/containerd.sock"
	}
	if config.Namespace == "" {
		config.Namespace = "moby"
	}

	logger.Info("Connecting to containerd",
		zap.String("socket", config.Socket),
		zap.String("namespace", config.Namespace),
	)

	client, err := containerd.New(config.Socket,
		containerd.WithTimeout(config.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()
	version, err := client.Version(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get containerd version: %w", err)
	}

	logger.Info("Connected to containerd",
		zap.String("version", version.Version),
		zap.String("revision", version.Revision),
	)

	resolver := NewContainerdResolverWithSource(containerdLabels{client: client}, config.Namespace, logger)
	resolver.closer = client.Close
	return resolver, nil
}

// NewContainerdResolverWithSource wraps an existing label source
func NewContainerdResolverWithSource(labels LabelSource, namespace string, logger *zap.Logger) *ContainerdResolver {
	if namespace == "" {
		namespace = "moby"
	}
	return &ContainerdResolver{labels: labels, namespace: namespace, logger: logger}
}

// ResolveName prefers the swarm task name, then the nerdctl name, and falls
// back to the id itself
func (r *ContainerdResolver) ResolveName(ctx context.Context, containerID string) (string, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	labels, err := r.labels.ContainerLabels(ctx, containerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrContainerNotFound, containerID)
		}
		return "", fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	name := containerID
	for _, key := range []string{SwarmTaskNameLabel, NerdctlNameLabel} {
		if v := labels[key]; v != "" {
			name = v
			break
		}
	}

	r.logger.Debug("Resolved container name",
		zap.String("container_id", containerID),
		zap.String("namespace", r.namespace),
		zap.String("name", name),
	)
	return name, nil
}

// Close closes the containerd client
func (r *ContainerdResolver) Close() error {
	if r.closer != nil {
		return r.closer()
	}
	return nil
}

type containerdLabels struct {
	client *containerd.Client
}

func (c containerdLabels) ContainerLabels(ctx context.Context, containerID string) (map[string]string, error) {
	container, err := c.client.LoadContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	return container.Labels(ctx)
}
