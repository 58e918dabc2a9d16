package discovery

import (
	"fmt"

	"opsagent/pkg/eureka"
	"opsagent/pkg/models"
)

// metadataVersionFields are tried in order when a registry instance does
// not expose an explicit version.
var metadataVersionFields = []string{"version", "app_version", "build.version"}

// EurekaDiscoverer surfaces applications registered in the service registry
// alongside locally discovered ones.
type EurekaDiscoverer struct {
	client *eureka.Client
}

// NewEurekaDiscoverer builds a discoverer over a registry client.
func NewEurekaDiscoverer(client *eureka.Client) *EurekaDiscoverer {
	return &EurekaDiscoverer{client: client}
}

// Name implements Discoverer.
func (d *EurekaDiscoverer) Name() string {
	return "eureka"
}

// Discover implements Discoverer.
func (d *EurekaDiscoverer) Discover() ([]models.ApplicationInfo, error) {
	registered, err := d.client.Applications()
	if err != nil {
		return nil, err
	}

	var apps []models.ApplicationInfo
	for _, app := range registered {
		apps = append(apps, models.ApplicationInfo{
			Name:      app.AppName,
			Version:   versionFromMetadata(app.Metadata),
			Status:    app.Status,
			StartTime: "unknown",
			Metadata: map[string]string{
				"instance_id": app.InstanceID,
				"address":     fmt.Sprintf("%s:%d", app.IP, app.Port),
				"home_page":   app.HomePageURL,
			},
		})
	}
	return apps, nil
}

func versionFromMetadata(metadata map[string]string) string {
	for _, field := range metadataVersionFields {
		if v := metadata[field]; v != "" {
			return v
		}
	}
	return "unknown"
}
