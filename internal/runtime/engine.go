// Package runtime supervises the jetbox container.
//
// It talks to the Docker daemon through the Engine API for everything that
// inspects or stops containers (ping, info, lookup by name, stop, logs) and
// through the docker CLI for compose bring-up and in-container commands.
// The Supervisor drives the not-running → starting → ready/failed state
// machine on top of both.
package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/tsingmao/jetbox/internal/logger"
)

// ErrDaemonUnreachable is returned when the Docker daemon does not answer a ping.
var ErrDaemonUnreachable = errors.New("docker daemon is not accessible")

// Mount is a bind or volume mount of a container.
type Mount struct {
	Type        string
	Source      string
	Destination string
	ReadWrite   bool
}

// ContainerStatus describes a container found by name.
type ContainerStatus struct {
	ID        string
	Name      string
	Image     string
	State     ContainerState
	Running   bool
	ExitCode  int
	Error     string
	StartedAt time.Time
	Mounts    []Mount
}

// ShortID returns the 12-character container ID.
func (s *ContainerStatus) ShortID() string {
	return shortID(s.ID)
}

// BindMounts returns only bind mounts.
func (s *ContainerStatus) BindMounts() []Mount {
	var binds []Mount
	for _, m := range s.Mounts {
		if m.Type == string(mount.TypeBind) {
			binds = append(binds, m)
		}
	}
	return binds
}

// Engine is the subset of the Docker daemon jetbox needs.
type Engine interface {
	// Ping verifies the daemon answers.
	Ping(ctx context.Context) error

	// Runtimes lists the OCI runtimes registered with the daemon.
	Runtimes(ctx context.Context) ([]string, error)

	// FindContainer returns the container with exactly this name, or nil.
	FindContainer(ctx context.Context, name string) (*ContainerStatus, error)

	// StopContainer stops a container, waiting up to timeout before SIGKILL.
	StopContainer(ctx context.Context, id string, timeout time.Duration) error

	// TailLogs returns the last lines of a container's combined output.
	TailLogs(ctx context.Context, id string, lines int) (string, error)

	// Close releases the client connection.
	Close() error
}

// DockerEngine implements Engine with the Docker Engine API client.
type DockerEngine struct {
	client *client.Client
}

// NewDockerEngine creates a Docker API client from the environment.
//
// The client respects DOCKER_HOST, DOCKER_TLS_VERIFY and DOCKER_CERT_PATH,
// and negotiates the API version with the daemon. The daemon is not
// contacted here; call Ping to verify it is reachable.
//
// Returns:
//   - Initialized engine
//   - Error if client creation fails
func NewDockerEngine() (*DockerEngine, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return &DockerEngine{client: cli}, nil
}

// Ping implements Engine with a 5-second budget.
func (e *DockerEngine) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := e.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}
	return nil
}

// Runtimes implements Engine.
func (e *DockerEngine) Runtimes(ctx context.Context) ([]string, error) {
	info, err := e.client.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query Docker info: %w", err)
	}

	names := make([]string, 0, len(info.Runtimes))
	for name := range info.Runtimes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// FindContainer implements Engine.
//
// The name filter of the Engine API matches substrings, so the result is
// narrowed to the container whose name is exactly name.
func (e *DockerEngine) FindContainer(ctx context.Context, name string) (*ContainerStatus, error) {
	containers, err := e.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", "^/"+name+"$")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	for _, c := range containers {
		if !hasName(c.Names, name) {
			continue
		}

		inspect, err := e.client.ContainerInspect(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect container %s: %w", shortID(c.ID), err)
		}
		return statusFromInspect(name, &inspect), nil
	}
	return nil, nil
}

// StopContainer implements Engine.
func (e *DockerEngine) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := e.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds}); err != nil {
		return fmt.Errorf("failed to stop container %s: %w", shortID(id), err)
	}
	return nil
}

// TailLogs implements Engine.
//
// Containers created without a TTY multiplex stdout and stderr on one
// stream; those are split with stdcopy. TTY containers are copied raw.
func (e *DockerEngine) TailLogs(ctx context.Context, id string, lines int) (string, error) {
	inspect, err := e.client.ContainerInspect(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container %s: %w", shortID(id), err)
	}

	reader, err := e.client.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(lines),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get container logs: %w", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if inspect.Config != nil && inspect.Config.Tty {
		_, err = io.Copy(&buf, reader)
	} else {
		_, err = stdcopy.StdCopy(&buf, &buf, reader)
	}
	if err != nil {
		return buf.String(), fmt.Errorf("failed to read container logs: %w", err)
	}
	return buf.String(), nil
}

// Close implements Engine.
func (e *DockerEngine) Close() error {
	return e.client.Close()
}

func statusFromInspect(name string, inspect *container.InspectResponse) *ContainerStatus {
	status := &ContainerStatus{
		ID:   inspect.ID,
		Name: name,
	}
	if inspect.Config != nil {
		status.Image = inspect.Config.Image
	}
	if inspect.State != nil {
		info := mapContainerState(inspect.State)
		status.State = info.State
		status.Running = info.IsRunning
		status.ExitCode = info.ExitCode
		status.Error = info.ErrorMessage
		if inspect.State.StartedAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); err == nil {
				status.StartedAt = t
			}
		}
	}
	for _, m := range inspect.Mounts {
		status.Mounts = append(status.Mounts, Mount{
			Type:        string(m.Type),
			Source:      m.Source,
			Destination: m.Destination,
			ReadWrite:   m.RW,
		})
	}
	logger.Debug("Container %s (%s) state: %s", name, status.ShortID(), status.State)
	return status
}

func hasName(names []string, name string) bool {
	for _, n := range names {
		if strings.TrimPrefix(n, "/") == name {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
