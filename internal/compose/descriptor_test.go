package compose

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tsingmao/jetbox/internal/config"
)

func TestBuildDefaults(t *testing.T) {
	cfg := config.NewDefaultConfig("/home/nvidia/project")

	d, err := Build(cfg)
	require.NoError(t, err)

	svc, ok := d.Services["jetson"]
	require.True(t, ok)
	require.Equal(t, "jetson-dev", svc.ContainerName)
	require.Equal(t, config.DefaultImage, svc.Image)
	require.Equal(t, "nvidia", svc.Runtime)
	require.Equal(t, "host", svc.NetworkMode)
	require.True(t, svc.Privileged)
	require.Contains(t, svc.Devices, "/dev/nvmap")
	require.Contains(t, svc.Volumes, "/tmp/.X11-unix:/tmp/.X11-unix:rw")
	require.Contains(t, svc.Volumes, "/home/nvidia/project:/workspace")
	require.Contains(t, svc.Volumes, "/tmp/.docker.xauth:/tmp/.docker.xauth:rw")
	require.Contains(t, svc.Environment, "XAUTHORITY=/tmp/.docker.xauth")
	require.Empty(t, svc.Ports)
}

func TestBuildPorts(t *testing.T) {
	cfg := config.NewDefaultConfig("/p")
	cfg.Container.NetworkMode = "bridge"
	cfg.Container.Ports = []string{"8888:8888", "127.0.0.1:6006:6006/tcp"}

	d, err := Build(cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"127.0.0.1:6006:6006/tcp", "8888:8888/tcp"}, d.Services["jetson"].Ports)

	cfg.Container.Ports = []string{"not-a-port"}
	_, err = Build(cfg)
	require.ErrorContains(t, err, "invalid port mapping")
}

func TestBuildIgnoresPortsInHostMode(t *testing.T) {
	cfg := config.NewDefaultConfig("/p")
	cfg.Container.Ports = []string{"8888:8888"}

	d, err := Build(cfg)
	require.NoError(t, err)
	require.Empty(t, d.Services["jetson"].Ports)
}

func TestBuildWithoutDisplay(t *testing.T) {
	cfg := config.NewDefaultConfig("/p")
	cfg.Display.Enabled = false

	d, err := Build(cfg)
	require.NoError(t, err)
	require.NotContains(t, d.Services["jetson"].Volumes, "/tmp/.docker.xauth:/tmp/.docker.xauth:rw")
}

func TestWriteRoundTripsAndRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docker-compose.yml")
	d, err := Build(config.NewDefaultConfig("/p"))
	require.NoError(t, err)

	require.NoError(t, d.Write(path, false))
	require.ErrorIs(t, d.Write(path, false), ErrExists)
	require.NoError(t, d.Write(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Generated by jetbox")
	require.Contains(t, string(data), "network_mode: host")

	var parsed map[string]map[string]map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	require.Equal(t, "jetson-dev", parsed["services"]["jetson"]["container_name"])
	require.Equal(t, true, parsed["services"]["jetson"]["privileged"])
}
