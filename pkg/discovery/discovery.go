package discovery

import (
	"opsagent/pkg/log"
	"opsagent/pkg/models"
)

// Discoverer finds running applications of one kind on this host.
type Discoverer interface {
	Name() string
	Discover() ([]models.ApplicationInfo, error)
}

// Manager fans discovery out over the registered discoverers. A failing
// discoverer is logged and skipped so one broken source never hides the
// others' results.
type Manager struct {
	discoverers []Discoverer
}

// NewManager builds a manager over the given discoverers.
func NewManager(discoverers ...Discoverer) *Manager {
	return &Manager{discoverers: discoverers}
}

// Discoverers returns the registered discoverer names.
func (m *Manager) Discoverers() []string {
	names := make([]string, len(m.discoverers))
	for i, d := range m.discoverers {
		names[i] = d.Name()
	}
	return names
}

// Run collects applications from every discoverer.
func (m *Manager) Run() []models.ApplicationInfo {
	apps := []models.ApplicationInfo{}
	for _, d := range m.discoverers {
		found, err := d.Discover()
		if err != nil {
			log.Warn().Err(err).Str("discoverer", d.Name()).Msg("Discovery failed")
			continue
		}
		apps = append(apps, found...)
	}
	return apps
}
