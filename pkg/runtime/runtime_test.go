package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"

	containerderrdefs "github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	"github.com/docker/docker/api/types"
	dockererrdefs "github.com/docker/docker/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInspector struct {
	containers map[string]types.ContainerJSON
	err        error
}

func (f *fakeInspector) ContainerInspect(_ context.Context, id string) (types.ContainerJSON, error) {
	if f.err != nil {
		return types.ContainerJSON{}, f.err
	}
	c, ok := f.containers[id]
	if !ok {
		return types.ContainerJSON{}, dockererrdefs.NotFound(fmt.Errorf("No such container: %s", id))
	}
	return c, nil
}

func named(name string) types.ContainerJSON {
	return types.ContainerJSON{ContainerJSONBase: &types.ContainerJSONBase{Name: name}}
}

func TestDockerResolver_ResolveName(t *testing.T) {
	inspector := &fakeInspector{containers: map[string]types.ContainerJSON{
		"abc123":   named("/web.1.xyz"),
		"noslash":  named("plain"),
		"nameless": {},
	}}
	r := NewDockerResolverWithClient(inspector, zap.NewNop())

	tests := []struct {
		name        string
		containerID string
		want        string
		wantErr     error
	}{
		{name: "leading slash trimmed", containerID: "abc123", want: "web.1.xyz"},
		{name: "no slash", containerID: "noslash", want: "plain"},
		{name: "no name falls back to id", containerID: "nameless", want: "nameless"},
		{name: "unknown container", containerID: "missing", wantErr: ErrContainerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveName(context.Background(), tt.containerID)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), tt.containerID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDockerResolver_DaemonError(t *testing.T) {
	r := NewDockerResolverWithClient(&fakeInspector{err: errors.New("daemon down")}, zap.NewNop())

	_, err := r.ResolveName(context.Background(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrContainerNotFound)
	assert.Contains(t, err.Error(), "daemon down")
	assert.NoError(t, r.Close())
}

type fakeLabels struct {
	labels    map[string]map[string]string
	namespace string
}

func (f *fakeLabels) ContainerLabels(ctx context.Context, id string) (map[string]string, error) {
	f.namespace, _ = namespaces.Namespace(ctx)
	l, ok := f.labels[id]
	if !ok {
		return nil, fmt.Errorf("container %q: %w", id, containerderrdefs.ErrNotFound)
	}
	return l, nil
}

func TestContainerdResolver_ResolveName(t *testing.T) {
	source := &fakeLabels{labels: map[string]map[string]string{
		"swarm":   {SwarmTaskNameLabel: "web.1.abc", NerdctlNameLabel: "ignored"},
		"nerdctl": {NerdctlNameLabel: "my-nginx"},
		"bare":    {"other": "x"},
	}}
	r := NewContainerdResolverWithSource(source, "", zap.NewNop())

	tests := []struct {
		name        string
		containerID string
		want        string
		wantErr     bool
	}{
		{name: "swarm task name", containerID: "swarm", want: "web.1.abc"},
		{name: "nerdctl name", containerID: "nerdctl", want: "my-nginx"},
		{name: "falls back to id", containerID: "bare", want: "bare"},
		{name: "unknown container", containerID: "missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveName(context.Background(), tt.containerID)
			assert.Equal(t, "moby", source.namespace)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrContainerNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_UnsupportedKind(t *testing.T) {
	_, err := New(Config{Kind: "cri-o"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported container runtime")
}

func TestStatic(t *testing.T) {
	var r NameResolver = Static{}

	name, err := r.ResolveName(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", name)
	assert.NoError(t, r.Close())
}
