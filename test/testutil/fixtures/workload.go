package fixtures

import (
	"github.com/docker/docker/api/types/swarm"
)

// HelperLabel is the discovery label used by helper fixtures
const HelperLabel = "chaos-swarm-helper=v1"

// NewTestService creates a swarm service with the given id, name and labels
func NewTestService(id, name string, labels map[string]string) swarm.Service {
	return swarm.Service{
		ID: id,
		Spec: swarm.ServiceSpec{
			Annotations: swarm.Annotations{
				Name:   name,
				Labels: labels,
			},
		},
	}
}

// NewHelperService creates the helper's own service carrying the discovery label
func NewHelperService(id string) swarm.Service {
	return NewTestService(id, "chaos-swarm-helper", map[string]string{"chaos-swarm-helper": "v1"})
}

// NewRunningTask creates a running task of a service on a node
func NewRunningTask(id, serviceID, nodeID, containerID string) swarm.Task {
	return swarm.Task{
		ID:           id,
		ServiceID:    serviceID,
		NodeID:       nodeID,
		DesiredState: swarm.TaskStateRunning,
		Status: swarm.TaskStatus{
			State: swarm.TaskStateRunning,
			ContainerStatus: &swarm.ContainerStatus{
				ContainerID: containerID,
			},
		},
	}
}

// NewPendingTask creates a task that has not been given a container yet
func NewPendingTask(id, serviceID string) swarm.Task {
	return swarm.Task{
		ID:           id,
		ServiceID:    serviceID,
		DesiredState: swarm.TaskStateRunning,
		Status: swarm.TaskStatus{
			State: swarm.TaskStatePending,
		},
	}
}

// NewShutdownTask creates a task that has been told to stop
func NewShutdownTask(id, serviceID, nodeID, containerID string) swarm.Task {
	task := NewRunningTask(id, serviceID, nodeID, containerID)
	task.DesiredState = swarm.TaskStateShutdown
	task.Status.State = swarm.TaskStateShutdown
	return task
}
