package eureka

import (
	"encoding/json"
	"errors"
	"net/http"

	eur "opsagent/pkg/eureka"
	"opsagent/pkg/log"
	"opsagent/pkg/server"

	"github.com/labstack/echo/v4"
)

// Controller maps the /api/v1/eureka namespace onto the service registry
// and the managed instances' management endpoints.
type Controller struct {
	client *eur.Client
}

// NewController builds the registry control surface.
func NewController(client *eur.Client) *Controller {
	return &Controller{client: client}
}

// Name implements server.Controller.
func (c *Controller) Name() string {
	return "eureka"
}

// Register mounts the registry routes. Unlike the balancer surface there is
// no optional leading segment, so fixed route patterns suffice.
func (c *Controller) Register(g *echo.Group) {
	g.GET("/apps", c.listApps)
	g.GET("/apps/:id", c.getApp)
	g.GET("/apps/:id/health", c.getAppHealth)
	g.POST("/apps/:id/pause", c.pauseApp)
	g.POST("/apps/:id/shutdown", c.shutdownApp)
	g.POST("/apps/:id/loglevel", c.setLogLevel)
}

func (c *Controller) listApps(ctx echo.Context) error {
	apps, err := c.client.Applications()
	if err != nil {
		return c.respondError(ctx, err)
	}
	return server.RespondOK(ctx, map[string]interface{}{
		"applications": apps,
		"count":        len(apps),
	}, "")
}

func (c *Controller) getApp(ctx echo.Context) error {
	app, err := c.client.Instance(ctx.Param("id"))
	if err != nil {
		return c.respondError(ctx, err)
	}
	return server.RespondOK(ctx, app, "")
}

func (c *Controller) getAppHealth(ctx echo.Context) error {
	app, err := c.client.Instance(ctx.Param("id"))
	if err != nil {
		return c.respondError(ctx, err)
	}

	health, err := c.client.InstanceHealth(app)
	if err != nil {
		return c.respondError(ctx, err)
	}
	return server.RespondOK(ctx, map[string]interface{}{
		"instance_id": app.InstanceID,
		"health":      health,
	}, "")
}

func (c *Controller) pauseApp(ctx echo.Context) error {
	app, err := c.client.Instance(ctx.Param("id"))
	if err != nil {
		return c.respondError(ctx, err)
	}

	log.Info().Str("instance_id", app.InstanceID).Msg("Pausing application")
	if err := c.client.Pause(app); err != nil {
		return c.respondError(ctx, err)
	}
	return server.RespondOK(ctx, map[string]interface{}{
		"instance_id": app.InstanceID,
		"action":      "pause",
		"status":      "completed",
	}, "application paused")
}

func (c *Controller) shutdownApp(ctx echo.Context) error {
	app, err := c.client.Instance(ctx.Param("id"))
	if err != nil {
		return c.respondError(ctx, err)
	}

	log.Info().Str("instance_id", app.InstanceID).Msg("Shutting down application")
	if err := c.client.Shutdown(app); err != nil {
		return c.respondError(ctx, err)
	}
	return server.RespondOK(ctx, map[string]interface{}{
		"instance_id": app.InstanceID,
		"action":      "shutdown",
		"status":      "completed",
	}, "application shutting down")
}

func (c *Controller) setLogLevel(ctx echo.Context) error {
	app, err := c.client.Instance(ctx.Param("id"))
	if err != nil {
		return c.respondError(ctx, err)
	}

	var body struct {
		Logger string `json:"logger"`
		Level  string `json:"level"`
	}
	if err := json.NewDecoder(ctx.Request().Body).Decode(&body); err != nil || body.Level == "" {
		return server.RespondError(ctx, http.StatusBadRequest,
			"request body must be a JSON object with a string 'level' field")
	}
	if body.Logger == "" {
		body.Logger = "ROOT"
	}

	log.Info().
		Str("instance_id", app.InstanceID).
		Str("logger", body.Logger).
		Str("level", body.Level).
		Msg("Changing application log level")

	if err := c.client.SetLogLevel(app, body.Logger, body.Level); err != nil {
		return c.respondError(ctx, err)
	}
	return server.RespondOK(ctx, map[string]interface{}{
		"instance_id": app.InstanceID,
		"logger":      body.Logger,
		"level":       body.Level,
		"status":      "completed",
	}, "log level changed")
}

func (c *Controller) respondError(ctx echo.Context, err error) error {
	var (
		notFound    eur.NotFoundError
		unavailable *eur.UnavailableError
		status      *eur.StatusError
	)

	switch {
	case errors.As(err, &notFound):
		return server.RespondError(ctx, http.StatusNotFound, err.Error())
	case errors.As(err, &unavailable):
		log.Error().Err(err).Msg("Registry unreachable")
		return server.RespondError(ctx, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &status):
		return server.RespondError(ctx, http.StatusBadGateway, err.Error())
	default:
		log.Error().Err(err).Msg("Unexpected eureka controller failure")
		return server.RespondError(ctx, http.StatusInternalServerError, err.Error())
	}
}
