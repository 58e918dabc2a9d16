package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultListenAddr     = ":11011"
	defaultHAProxyTimeout = 5 * time.Second
	defaultEurekaTimeout  = 10 * time.Second
	defaultSVCAppRoot     = "/site/app"
	defaultSVCHtdocRoot   = "/site/share/htdoc"
)

// Config is the agent's startup configuration. It is assembled once in
// main and treated as read-only afterwards.
type Config struct {
	ListenAddr string
	Debug      bool

	// HAProxyInstances is either one bare address or comma-separated
	// name=address pairs; parsing and validation happen in the haproxy
	// registry.
	HAProxyInstances string
	HAProxyTimeout   time.Duration

	EurekaEnabled bool
	EurekaURL     string
	EurekaTimeout time.Duration

	SVCAppRoot   string
	SVCHtdocRoot string

	DockerEnabled bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:     defaultListenAddr,
		HAProxyTimeout: defaultHAProxyTimeout,
		EurekaTimeout:  defaultEurekaTimeout,
		SVCAppRoot:     defaultSVCAppRoot,
		SVCHtdocRoot:   defaultSVCHtdocRoot,
		DockerEnabled:  true,
	}
}

// fileConfig maps the TOML file keys. Durations are written as strings
// ("5s", "1m30s").
type fileConfig struct {
	ListenAddr       string `toml:"listen_addr"`
	Debug            bool   `toml:"debug"`
	HAProxyInstances string `toml:"haproxy_instances"`
	HAProxyTimeout   string `toml:"haproxy_timeout"`
	EurekaEnabled    bool   `toml:"eureka_enabled"`
	EurekaURL        string `toml:"eureka_url"`
	EurekaTimeout    string `toml:"eureka_timeout"`
	SVCAppRoot       string `toml:"svc_app_root"`
	SVCHtdocRoot     string `toml:"svc_htdoc_root"`
	DockerEnabled    bool   `toml:"docker_enabled"`
}

// Load reads a TOML file and overlays it over the defaults. Only keys
// present in the file override; an empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load agent config: %w", err)
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}
	if meta.IsDefined("haproxy_instances") {
		cfg.HAProxyInstances = strings.TrimSpace(raw.HAProxyInstances)
	}
	if meta.IsDefined("haproxy_timeout") {
		cfg.HAProxyTimeout, err = parseTimeout("haproxy_timeout", raw.HAProxyTimeout)
		if err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("eureka_enabled") {
		cfg.EurekaEnabled = raw.EurekaEnabled
	}
	if meta.IsDefined("eureka_url") {
		cfg.EurekaURL = strings.TrimSpace(raw.EurekaURL)
	}
	if meta.IsDefined("eureka_timeout") {
		cfg.EurekaTimeout, err = parseTimeout("eureka_timeout", raw.EurekaTimeout)
		if err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("svc_app_root") {
		cfg.SVCAppRoot = strings.TrimSpace(raw.SVCAppRoot)
	}
	if meta.IsDefined("svc_htdoc_root") {
		cfg.SVCHtdocRoot = strings.TrimSpace(raw.SVCHtdocRoot)
	}
	if meta.IsDefined("docker_enabled") {
		cfg.DockerEnabled = raw.DockerEnabled
	}

	if cfg.EurekaEnabled && cfg.EurekaURL == "" {
		return Config{}, fmt.Errorf("load agent config: eureka_enabled requires eureka_url")
	}

	return cfg, nil
}

func parseTimeout(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("load agent config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("load agent config: %s must be positive", key)
	}
	return d, nil
}
