package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opsagent/pkg/discovery"
	"opsagent/pkg/log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10 * time.Second

// Controller is one mounted control surface. Each controller owns the
// routes under /api/v1/<name>.
type Controller interface {
	Name() string
	Register(g *echo.Group)
}

// AgentServer is the HTTP shell of the operations agent.
type AgentServer struct {
	echo        *echo.Echo
	version     string
	discovery   *discovery.Manager
	controllers []Controller
}

// NewAgentServer assembles the agent's HTTP surface from a discovery
// manager and the configured controllers.
func NewAgentServer(version string, mgr *discovery.Manager, controllers ...Controller) *AgentServer {
	return &AgentServer{
		echo:        echo.New(),
		version:     version,
		discovery:   mgr,
		controllers: controllers,
	}
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
func (a *AgentServer) Start(addr string) error {
	a.setupRoutes()

	go func() {
		log.Info().
			Str("addr", addr).
			Str("version", a.version).
			Msg("Starting operations agent")

		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return a.Shutdown()
}

// Shutdown stops the HTTP server, letting in-flight requests finish.
func (a *AgentServer) Shutdown() error {
	log.Info().Msg("Shutting down agent...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Agent stopped")
	return nil
}

func (a *AgentServer) setupRoutes() {
	a.echo.HideBanner = true
	a.echo.HidePort = true

	a.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${status} ${method} ${uri} (${latency_human})\n",
	}))
	a.echo.Use(middleware.Recover())

	a.echo.GET("/health", a.health)
	a.echo.GET("/api/v1/apps", a.listApplications)

	for _, c := range a.controllers {
		c.Register(a.echo.Group("/api/v1/" + c.Name()))
	}
}

func (a *AgentServer) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": a.version,
	})
}

// listApplications runs discovery on demand; results are not cached so the
// response reflects the host's current state.
func (a *AgentServer) listApplications(ctx echo.Context) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	apps := a.discovery.Run()
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"server": map[string]interface{}{
			"name":         hostname,
			"applications": apps,
		},
	})
}
