package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docker/docker/api/types/swarm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chaosswarm/chaosswarm/test/testutil"
	"github.com/chaosswarm/chaosswarm/test/testutil/fixtures"
	"github.com/chaosswarm/chaosswarm/test/testutil/mocks"
)

func TestDirectoryBuilder_Build(t *testing.T) {
	fake := &mocks.FakeSwarm{
		Services: []swarm.Service{
			fixtures.NewTestService("svc-web", "web", nil),
			fixtures.NewHelperService("svc-helper"),
		},
		Tasks: []swarm.Task{
			fixtures.NewRunningTask("h1", "svc-helper", "n1", "0123456789abcdef0123"),
			fixtures.NewRunningTask("h2", "svc-helper", "n2", "fedcba9876543210fedc"),
			fixtures.NewShutdownTask("h3", "svc-helper", "n3", "333333333333333333"),
			fixtures.NewRunningTask("w1", "svc-web", "n4", "444444444444444444"),
		},
	}

	b := NewDirectoryBuilder(fake, DirectoryConfig{Label: fixtures.HelperLabel, Timeout: time.Second}, testutil.NewTestLogger(t))
	dir, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Directory{
		"n1": "0123456789ab",
		"n2": "fedcba987654",
	}, dir)

	calls := fake.ServiceCalls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].ExactMatch("label", fixtures.HelperLabel))
}

func TestDirectoryBuilder_HelperServiceCount(t *testing.T) {
	tests := []struct {
		name     string
		services []swarm.Service
		found    string
	}{
		{
			name:     "no helper service",
			services: []swarm.Service{fixtures.NewTestService("svc-web", "web", nil)},
			found:    "found 0",
		},
		{
			name: "two helper services",
			services: []swarm.Service{
				fixtures.NewHelperService("svc-helper-a"),
				fixtures.NewHelperService("svc-helper-b"),
			},
			found: "found 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &mocks.FakeSwarm{Services: tt.services}
			b := NewDirectoryBuilder(fake, DirectoryConfig{Label: fixtures.HelperLabel}, testutil.NewTestLogger(t))

			dir, err := b.Build(context.Background())
			require.Error(t, err)
			assert.Nil(t, dir)
			assert.ErrorIs(t, err, ErrHelperDiscovery)
			assert.Contains(t, err.Error(), tt.found)
			assert.False(t, IsClientError(err))
			assert.Empty(t, fake.TaskCalls(), "tasks must not be listed without a unique helper service")
		})
	}
}

func TestDirectoryBuilder_DuplicateNodeKeepsFirst(t *testing.T) {
	fake := &mocks.FakeSwarm{
		Services: []swarm.Service{fixtures.NewHelperService("svc-helper")},
		Tasks: []swarm.Task{
			fixtures.NewRunningTask("h1", "svc-helper", "n1", "aaaaaaaaaaaa0000"),
			fixtures.NewRunningTask("h2", "svc-helper", "n1", "bbbbbbbbbbbb0000"),
		},
	}
	logger, logs := mocks.NewObservedLogger(zap.WarnLevel)

	b := NewDirectoryBuilder(fake, DirectoryConfig{Label: fixtures.HelperLabel}, logger)
	dir, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Directory{"n1": "aaaaaaaaaaaa"}, dir)
	assert.Equal(t, 1, logs.FilterMessage("Multiple helpers on one node, keeping the first").Len())
}

func TestDirectoryBuilder_HostnameLength(t *testing.T) {
	fake := &mocks.FakeSwarm{
		Services: []swarm.Service{fixtures.NewHelperService("svc-helper")},
		Tasks: []swarm.Task{
			fixtures.NewRunningTask("h1", "svc-helper", "n1", "abcdefgh"),
			fixtures.NewRunningTask("h2", "svc-helper", "n2", "abc"),
		},
	}

	b := NewDirectoryBuilder(fake, DirectoryConfig{Label: fixtures.HelperLabel, HostnameLength: 4}, testutil.NewTestLogger(t))
	dir, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Directory{"n1": "abcd", "n2": "abc"}, dir)
}

func TestDirectoryBuilder_OrchestrationErrors(t *testing.T) {
	tests := []struct {
		name string
		fake *mocks.FakeSwarm
	}{
		{
			name: "service listing fails",
			fake: &mocks.FakeSwarm{ServiceErr: errors.New("socket closed")},
		},
		{
			name: "task listing fails",
			fake: &mocks.FakeSwarm{
				Services: []swarm.Service{fixtures.NewHelperService("svc-helper")},
				TaskErr:  errors.New("socket closed"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewDirectoryBuilder(tt.fake, DirectoryConfig{Label: fixtures.HelperLabel}, testutil.NewTestLogger(t))

			_, err := b.Build(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrOrchestration)
		})
	}
}

func TestDirectory_Lookup(t *testing.T) {
	dir := Directory{"n1": "host-1"}

	host, ok := dir.Lookup("n1")
	assert.True(t, ok)
	assert.Equal(t, "host-1", host)

	_, ok = dir.Lookup("n2")
	assert.False(t, ok)

	var empty Directory
	_, ok = empty.Lookup("n1")
	assert.False(t, ok)
}
