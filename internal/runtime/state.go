package runtime

import (
	"fmt"

	"github.com/docker/docker/api/types/container"
)

// ContainerState is the daemon-reported state of a container, mapped to
// the few cases jetbox distinguishes.
type ContainerState string

const (
	ContainerCreated ContainerState = "created"
	ContainerRunning ContainerState = "running"
	ContainerExited  ContainerState = "exited"
	ContainerError   ContainerState = "error"
)

// ContainerStateInfo holds the result of container state inspection.
type ContainerStateInfo struct {
	// State is the mapped container state
	State ContainerState

	// ErrorMessage contains details if the container is not healthy
	ErrorMessage string

	// ExitCode contains the container exit code (only valid for exited containers)
	ExitCode int

	// IsRunning indicates if the container is currently running
	IsRunning bool
}

// mapContainerState converts Docker container state to the jetbox model.
//
// State Mapping Rules:
//   - Container running        -> ContainerRunning
//   - Container created        -> ContainerCreated
//   - Container exited, code 0 -> ContainerExited
//   - Exited non-zero or dead  -> ContainerError
//   - Restarting / other       -> ContainerError
func mapContainerState(state *container.State) *ContainerStateInfo {
	info := &ContainerStateInfo{
		IsRunning: state.Running,
		ExitCode:  state.ExitCode,
	}

	if state.Running {
		info.State = ContainerRunning
		return info
	}

	switch {
	case state.Status == "created":
		info.State = ContainerCreated

	case state.Status == "exited" && state.ExitCode == 0 && state.Error == "":
		info.State = ContainerExited

	case state.Status == "exited" || state.Status == "dead":
		info.State = ContainerError
		info.ErrorMessage = formatExitError(state)

	case state.Restarting:
		info.State = ContainerError
		info.ErrorMessage = "container is stuck in restart loop"

	default:
		info.State = ContainerError
		info.ErrorMessage = fmt.Sprintf("container in unexpected state: %s", state.Status)
	}

	return info
}

func formatExitError(state *container.State) string {
	if state.Error != "" {
		return fmt.Sprintf("container exited with code %d: %s", state.ExitCode, state.Error)
	}
	return fmt.Sprintf("container exited with code %d", state.ExitCode)
}

// SupervisorState is the bring-up state of the managed container.
type SupervisorState string

const (
	StateNotRunning SupervisorState = "not-running"
	StateStarting   SupervisorState = "starting"
	StateReady      SupervisorState = "ready"
	StateFailed     SupervisorState = "failed"
)

// canTransition lists the legal supervisor transitions.
func canTransition(from, to SupervisorState) bool {
	switch from {
	case StateNotRunning:
		return to == StateStarting || to == StateFailed
	case StateStarting:
		return to == StateReady || to == StateFailed
	case StateReady, StateFailed:
		return to == StateNotRunning
	}
	return false
}
