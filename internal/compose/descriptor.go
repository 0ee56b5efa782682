// Package compose renders the Docker Compose descriptor for the Jetson
// container.
//
// The descriptor is written once by "jetbox compose render" and is then
// owned by the user. Nothing else in jetbox reads it back; the supervisor
// only hands its path to docker compose.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/docker/go-connections/nat"
	"gopkg.in/yaml.v3"

	"github.com/tsingmao/jetbox/internal/config"
	"github.com/tsingmao/jetbox/internal/logger"
)

// X11Socket is the host X server socket directory.
const X11Socket = "/tmp/.X11-unix"

// ErrExists is returned by Write when the descriptor exists and force is off.
var ErrExists = errors.New("descriptor already exists")

// header is written above the generated YAML.
const header = "# Generated by jetbox compose render.\n" +
	"# DISPLAY and XDG_RUNTIME_DIR are supplied by jetbox at \"docker compose up\" time.\n"

// Descriptor is a Compose file with a single service.
type Descriptor struct {
	Services map[string]Service `yaml:"services"`
}

// Service is the Compose service running the Jetson image.
type Service struct {
	Image         string   `yaml:"image"`
	ContainerName string   `yaml:"container_name"`
	Runtime       string   `yaml:"runtime,omitempty"`
	NetworkMode   string   `yaml:"network_mode,omitempty"`
	IPC           string   `yaml:"ipc,omitempty"`
	Privileged    bool     `yaml:"privileged"`
	StdinOpen     bool     `yaml:"stdin_open"`
	TTY           bool     `yaml:"tty"`
	WorkingDir    string   `yaml:"working_dir,omitempty"`
	Devices       []string `yaml:"devices,omitempty"`
	Volumes       []string `yaml:"volumes,omitempty"`
	Ports         []string `yaml:"ports,omitempty"`
	Environment   []string `yaml:"environment,omitempty"`
}

// Build derives the descriptor from the configuration.
//
// Returns:
//   - The descriptor
//   - Error if a port spec is invalid
func Build(cfg *config.Config) (*Descriptor, error) {
	c := cfg.Container
	svc := Service{
		Image:         c.Image,
		ContainerName: c.Name,
		Runtime:       c.Runtime,
		NetworkMode:   c.NetworkMode,
		IPC:           "host",
		Privileged:    true,
		StdinOpen:     true,
		TTY:           true,
		WorkingDir:    c.WorkspaceDir,
		Devices:       append([]string(nil), c.Devices...),
		Volumes: []string{
			X11Socket + ":" + X11Socket + ":rw",
			cfg.Project.Root + ":" + c.WorkspaceDir,
		},
		Environment: []string{
			"DISPLAY=${DISPLAY:-:0}",
			"XDG_RUNTIME_DIR=${XDG_RUNTIME_DIR:-/tmp}",
			"NVIDIA_VISIBLE_DEVICES=all",
			"NVIDIA_DRIVER_CAPABILITIES=all",
		},
	}

	if cfg.Display.Enabled && cfg.Display.AuthFile != "" {
		svc.Volumes = append(svc.Volumes, cfg.Display.AuthFile+":"+cfg.Display.AuthFile+":rw")
		svc.Environment = append(svc.Environment, "XAUTHORITY="+cfg.Display.AuthFile)
	}

	if len(c.Ports) > 0 {
		if c.NetworkMode == "host" {
			logger.Warn("Ignoring %d port mapping(s): the container uses host networking", len(c.Ports))
		} else {
			ports, err := normalizePorts(c.Ports)
			if err != nil {
				return nil, err
			}
			svc.Ports = ports
		}
	}

	return &Descriptor{Services: map[string]Service{c.Service: svc}}, nil
}

// normalizePorts validates docker-style port specs and returns them in a
// stable order.
func normalizePorts(specs []string) ([]string, error) {
	_, bindings, err := nat.ParsePortSpecs(specs)
	if err != nil {
		return nil, fmt.Errorf("invalid port mapping: %w", err)
	}

	var out []string
	for port, list := range bindings {
		for _, b := range list {
			spec := port.Port() + "/" + port.Proto()
			if b.HostPort != "" {
				spec = b.HostPort + ":" + spec
			}
			if b.HostIP != "" {
				spec = b.HostIP + ":" + spec
			}
			out = append(out, spec)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Marshal renders the descriptor as YAML with the generated-file header.
func (d *Descriptor) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders the descriptor to path. An existing file is only replaced
// when force is set.
func (d *Descriptor) Write(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, path)
	}
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
