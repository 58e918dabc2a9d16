package main

import (
	_ "embed"
	"flag"
	"os"
	"strings"

	"opsagent/pkg/config"
	"opsagent/pkg/discovery"
	"opsagent/pkg/eureka"
	"opsagent/pkg/haproxy"
	"opsagent/pkg/log"
	"opsagent/pkg/server"
	eurekactl "opsagent/pkg/server/eureka"
	haproxyctl "opsagent/pkg/server/haproxy"
)

//go:embed VERSION
var Version string

func main() {
	// Initialize logger first
	_ = log.Logger

	configPath := flag.String("config", "", "Path to TOML configuration file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	instances := flag.String("haproxy", "", "HAProxy instances: one address or name=address pairs (overrides config)")
	timeout := flag.Duration("timeout", 0, "HAProxy command timeout (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load configuration")
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *instances != "" {
		cfg.HAProxyInstances = *instances
	}
	if *timeout > 0 {
		cfg.HAProxyTimeout = *timeout
	}
	if *debug {
		cfg.Debug = true
	}

	if cfg.Debug {
		log.SetDebugMode()
		log.Debug().Msg("Debug mode enabled")
	}

	registry, err := haproxy.NewRegistry(cfg.HAProxyInstances, cfg.HAProxyTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid haproxy instance configuration")
	}
	log.Info().
		Strs("instances", registry.Names()).
		Dur("timeout", cfg.HAProxyTimeout).
		Msg("HAProxy registry configured")

	discoverers := []discovery.Discoverer{
		discovery.NewSVCAppDiscoverer(cfg.SVCAppRoot, cfg.SVCHtdocRoot),
	}
	if cfg.DockerEnabled {
		discoverers = append(discoverers, discovery.NewDockerDiscoverer())
	}
	controllers := []server.Controller{
		haproxyctl.NewController(registry),
	}

	if cfg.EurekaEnabled {
		client := eureka.NewClient(cfg.EurekaURL, cfg.EurekaTimeout)
		discoverers = append(discoverers, discovery.NewEurekaDiscoverer(client))
		controllers = append(controllers, eurekactl.NewController(client))
		log.Info().Str("url", cfg.EurekaURL).Msg("Eureka registry enabled")
	}

	manager := discovery.NewManager(discoverers...)
	log.Info().Strs("discoverers", manager.Discoverers()).Msg("Discovery configured")

	agent := server.NewAgentServer(strings.TrimSpace(Version), manager, controllers...)
	if err := agent.Start(cfg.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("Agent failed to start")
	}

	os.Exit(0)
}
