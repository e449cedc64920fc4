package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/swarm"
)

// FakeSwarm is an in-memory stand-in for the Swarm API. It applies the id,
// name, label, service, node and desired-state filters like the daemon does.
type FakeSwarm struct {
	Services []swarm.Service
	Tasks    []swarm.Task

	ServiceErr error
	TaskErr    error

	// Delay is added to every call, cut short by the context
	Delay time.Duration

	mu           sync.Mutex
	serviceCalls []filters.Args
	taskCalls    []filters.Args
}

// ServiceList implements cluster.API
func (f *FakeSwarm) ServiceList(ctx context.Context, options types.ServiceListOptions) ([]swarm.Service, error) {
	f.mu.Lock()
	f.serviceCalls = append(f.serviceCalls, options.Filters)
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	if f.ServiceErr != nil {
		return nil, f.ServiceErr
	}

	var out []swarm.Service
	for _, s := range f.Services {
		args := options.Filters
		if !args.ExactMatch("id", s.ID) || !args.ExactMatch("name", s.Spec.Name) {
			continue
		}
		if !args.MatchKVList("label", s.Spec.Labels) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// TaskList implements cluster.API
func (f *FakeSwarm) TaskList(ctx context.Context, options types.TaskListOptions) ([]swarm.Task, error) {
	f.mu.Lock()
	f.taskCalls = append(f.taskCalls, options.Filters)
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	if f.TaskErr != nil {
		return nil, f.TaskErr
	}

	var out []swarm.Task
	for _, t := range f.Tasks {
		args := options.Filters
		if !args.ExactMatch("service", t.ServiceID) || !args.ExactMatch("node", t.NodeID) {
			continue
		}
		if !args.ExactMatch("id", t.ID) {
			continue
		}
		if !args.ExactMatch("desired-state", string(t.DesiredState)) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *FakeSwarm) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(f.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServiceCalls returns the filters of every ServiceList call
func (f *FakeSwarm) ServiceCalls() []filters.Args {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]filters.Args(nil), f.serviceCalls...)
}

// TaskCalls returns the filters of every TaskList call
func (f *FakeSwarm) TaskCalls() []filters.Args {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]filters.Args(nil), f.taskCalls...)
}
