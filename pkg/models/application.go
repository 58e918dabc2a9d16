package models

// ApplicationInfo describes one application found by a discoverer.
type ApplicationInfo struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	StartTime string            `json:"start_time"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
