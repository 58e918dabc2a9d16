package discovery

import (
	"encoding/json"
	"os/exec"
	"strings"

	"opsagent/pkg/log"
	"opsagent/pkg/models"
)

// dockerZeroTime is what inspect reports for a container that never started.
const dockerZeroTime = "0001-01-01T00:00:00Z"

// dockerStatusMapping translates container states into application statuses.
var dockerStatusMapping = map[string]string{
	"running":    "online",
	"exited":     "offline",
	"paused":     "maintenance",
	"restarting": "restarting",
	"created":    "offline",
	"removing":   "offline",
	"dead":       "offline",
}

// dockerContainer is one line of `docker ps --format '{{json .}}'`.
type dockerContainer struct {
	ID     string `json:"ID"`
	Names  string `json:"Names"`
	Image  string `json:"Image"`
	Status string `json:"Status"`
	Ports  string `json:"Ports"`
}

// DockerDiscoverer finds running containers through the docker CLI. A host
// without docker installed yields an empty result, not an error.
type DockerDiscoverer struct {
	// runDocker is swappable for tests; the default shells out to docker.
	runDocker func(args ...string) (string, error)
}

// NewDockerDiscoverer builds a container discoverer.
func NewDockerDiscoverer() *DockerDiscoverer {
	return &DockerDiscoverer{runDocker: dockerCommand}
}

// Name implements Discoverer.
func (d *DockerDiscoverer) Name() string {
	return "docker"
}

// Discover implements Discoverer. Only running containers are reported, and
// a container that cannot be decoded is skipped rather than failing the
// whole listing.
func (d *DockerDiscoverer) Discover() ([]models.ApplicationInfo, error) {
	out, err := d.runDocker("ps", "--format", "{{json .}}")
	if err != nil {
		return nil, nil
	}

	var apps []models.ApplicationInfo
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}

		var container dockerContainer
		if err := json.Unmarshal([]byte(line), &container); err != nil {
			log.Warn().Err(err).Msg("Skipping undecodable container listing line")
			continue
		}
		if container.ID == "" || container.Names == "" {
			continue
		}

		image, tag := parseImageTag(container.Image)
		metadata := map[string]string{
			"container_id":  container.ID,
			"image":         image,
			"tag":           tag,
			"docker_status": container.Status,
		}
		if port := parseHostPort(container.Ports); port != "" {
			metadata["port"] = port
		}

		apps = append(apps, models.ApplicationInfo{
			Name:      strings.TrimPrefix(container.Names, "/"),
			Version:   tag,
			Status:    mapDockerStatus(container.Status),
			StartTime: d.containerStartTime(container.ID),
			Metadata:  metadata,
		})
	}
	return apps, nil
}

// containerStartTime queries inspect for the container's start timestamp.
func (d *DockerDiscoverer) containerStartTime(containerID string) string {
	out, err := d.runDocker("inspect", "-f", "{{.State.StartedAt}}", containerID)
	if err != nil {
		return "unknown"
	}
	startTime := strings.TrimSpace(out)
	if startTime == "" || startTime == dockerZeroTime {
		return "unknown"
	}
	return startTime
}

// mapDockerStatus reduces a human status line ("Up 2 hours",
// "Exited (0) 3 hours ago") to an application status.
func mapDockerStatus(status string) string {
	lower := strings.ToLower(status)
	for state, mapped := range dockerStatusMapping {
		if strings.Contains(lower, state) {
			return mapped
		}
	}
	if strings.HasPrefix(lower, "up") {
		return "online"
	}
	return "unknown"
}

// parseImageTag splits an image reference into image and tag, handling
// registry hosts that carry a port ("registry.example.com:5000/app:v1.2.3").
func parseImageTag(image string) (string, string) {
	if image == "" || strings.HasPrefix(image, "sha256:") {
		return image, "latest"
	}

	idx := strings.LastIndex(image, ":")
	if idx < 0 {
		return image, "latest"
	}
	after := image[idx+1:]
	if strings.Contains(after, "/") || isDigits(after) {
		return image, "latest"
	}
	return image[:idx], after
}

// parseHostPort extracts the first host-mapped port from a docker ports
// string ("0.0.0.0:8080->8080/tcp, :::8080->8080/tcp"). A container port
// without a host mapping ("8080/tcp") yields nothing.
func parseHostPort(ports string) string {
	if ports == "" {
		return ""
	}

	mapping, _, _ := strings.Cut(ports, ", ")
	hostPart, _, found := strings.Cut(mapping, "->")
	if !found {
		return ""
	}
	if idx := strings.LastIndex(hostPart, ":"); idx >= 0 {
		hostPart = hostPart[idx+1:]
	}
	if !isDigits(hostPart) {
		return ""
	}
	return hostPart
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// dockerCommand runs one docker CLI invocation.
func dockerCommand(args ...string) (string, error) {
	out, err := exec.Command("docker", args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
