package discovery

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"opsagent/pkg/models"
)

// versionPattern extracts a dotted version from a distribution symlink
// target, tolerating timestamped release directories and .jar suffixes.
var versionPattern = regexp.MustCompile(`([\d.]+)(?:\.jar)?$`)

// SVCAppDiscoverer finds applications managed by the host service manager.
// An application exists when a directory under the app root has a matching
// distribution symlink under the htdoc root.
type SVCAppDiscoverer struct {
	appRoot   string
	htdocRoot string

	// runStatus is swappable for tests; the default shells out to svcs.
	runStatus func(name string) (string, string)
}

// NewSVCAppDiscoverer builds a discoverer over the given roots.
func NewSVCAppDiscoverer(appRoot, htdocRoot string) *SVCAppDiscoverer {
	return &SVCAppDiscoverer{
		appRoot:   appRoot,
		htdocRoot: htdocRoot,
		runStatus: svcStatus,
	}
}

// Name implements Discoverer.
func (d *SVCAppDiscoverer) Name() string {
	return "svcapp"
}

// Discover implements Discoverer. Missing roots yield an empty result, not
// an error: the discoverer simply does not apply to this host.
func (d *SVCAppDiscoverer) Discover() ([]models.ApplicationInfo, error) {
	appNames, err := listDirNames(d.appRoot)
	if err != nil {
		return nil, nil
	}
	distrNames, err := listSymlinkStems(d.htdocRoot)
	if err != nil {
		return nil, nil
	}

	var apps []models.ApplicationInfo
	for _, name := range appNames {
		if !distrNames[name] {
			continue
		}

		status, startTime := d.runStatus(name)
		apps = append(apps, models.ApplicationInfo{
			Name:      name,
			Version:   d.appVersion(name),
			Status:    status,
			StartTime: startTime,
			Metadata: map[string]string{
				"log_path":   resolveSymlink(filepath.Join(d.appRoot, name, "logs")),
				"distr_path": resolveSymlink(filepath.Join(d.htdocRoot, name)),
			},
		})
	}
	return apps, nil
}

// appVersion derives the deployed version from the distribution symlink
// target.
func (d *SVCAppDiscoverer) appVersion(name string) string {
	for _, link := range []string{
		filepath.Join(d.htdocRoot, name),
		filepath.Join(d.htdocRoot, name+".jar"),
	} {
		target, err := filepath.EvalSymlinks(link)
		if err != nil {
			continue
		}
		if match := versionPattern.FindStringSubmatch(target); match != nil {
			return strings.Trim(match[1], ".")
		}
	}
	return "unknown"
}

// svcStatus queries the service manager for state and start time.
func svcStatus(name string) (string, string) {
	out, err := exec.Command("svcs", "-Ho", "state,stime", name).Output()
	if err != nil {
		return "unknown", "unknown"
	}

	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) == 0 {
		return "unknown", "unknown"
	}
	state := fields[0]
	startTime := "unknown"
	if len(fields) > 1 {
		startTime = strings.Join(fields[1:], " ")
	}
	return state, startTime
}

func listDirNames(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func listSymlinkStems(root string) (map[string]bool, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	stems := make(map[string]bool)
	for _, e := range entries {
		if e.Type()&os.ModeSymlink == 0 {
			continue
		}
		name := e.Name()
		stems[strings.TrimSuffix(name, filepath.Ext(name))] = true
	}
	return stems, nil
}

func resolveSymlink(path string) string {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "unknown"
	}
	return target
}
