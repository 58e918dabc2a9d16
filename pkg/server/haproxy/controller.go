package haproxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	hap "opsagent/pkg/haproxy"
	"opsagent/pkg/log"
	"opsagent/pkg/server"

	"github.com/labstack/echo/v4"
)

// Reserved first path segments. A path whose first segment is not one of
// these is read as an explicit instance name followed by the same shapes.
const (
	segmentInstances = "instances"
	segmentBackends  = "backends"
	segmentServers   = "servers"
	segmentAction    = "action"
)

// Controller maps the /api/v1/haproxy REST namespace onto balancer admin
// operations through the instance registry. It holds no mutable state;
// concurrent requests share only the read-only registry.
type Controller struct {
	registry *hap.Registry
}

// NewController builds the balancer control surface over a registry.
func NewController(registry *hap.Registry) *Controller {
	return &Controller{registry: registry}
}

// Name implements server.Controller.
func (c *Controller) Name() string {
	return "haproxy"
}

// Register mounts wildcard routes; path decomposition happens in the
// handlers because the instance segment is optional and cannot be expressed
// as a fixed route pattern.
func (c *Controller) Register(g *echo.Group) {
	g.GET("", c.handleGet)
	g.GET("/*", c.handleGet)
	g.POST("", c.handleAction)
	g.POST("/*", c.handleAction)
}

// handleGet serves the listing shapes:
//
//	instances
//	[instance/]backends
//	[instance/]backends/{backend}/servers
func (c *Controller) handleGet(ctx echo.Context) error {
	parts := splitPath(ctx.Param("*"))
	if len(parts) == 0 {
		return c.routeNotFound(ctx, parts)
	}

	if len(parts) == 1 && parts[0] == segmentInstances {
		statuses := c.registry.List()
		return server.RespondOK(ctx, map[string]interface{}{
			"instances": statuses,
			"count":     len(statuses),
		}, "")
	}

	instanceName, rest := splitInstance(parts)
	instance, err := c.registry.Resolve(instanceName)
	if err != nil {
		return c.respondError(ctx, err)
	}

	switch {
	case len(rest) == 1 && rest[0] == segmentBackends:
		backends, err := instance.Client().ListBackends()
		if err != nil {
			return c.respondError(ctx, err)
		}
		return server.RespondOK(ctx, map[string]interface{}{
			"instance": instance.Name(),
			"backends": backends,
			"count":    len(backends),
		}, "")

	case len(rest) == 3 && rest[0] == segmentBackends && rest[2] == segmentServers:
		backend := rest[1]
		servers, err := instance.Client().ListServers(backend)
		if err != nil {
			return c.respondError(ctx, err)
		}
		return server.RespondOK(ctx, map[string]interface{}{
			"instance": instance.Name(),
			"backend":  backend,
			"servers":  servers,
			"count":    len(servers),
		}, "")

	default:
		return c.routeNotFound(ctx, parts)
	}
}

// handleAction serves the state-change shape:
//
//	[instance/]backends/{backend}/servers/{server}/action
//
// Validation order: path shape, instance resolution, body decode, action
// value. Each failure short-circuits before any balancer connection.
func (c *Controller) handleAction(ctx echo.Context) error {
	parts := splitPath(ctx.Param("*"))
	instanceName, rest := splitInstance(parts)

	if len(rest) != 5 || rest[0] != segmentBackends || rest[2] != segmentServers || rest[4] != segmentAction {
		return c.routeNotFound(ctx, parts)
	}
	backend, serverName := rest[1], rest[3]

	instance, err := c.registry.Resolve(instanceName)
	if err != nil {
		return c.respondError(ctx, err)
	}

	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(ctx.Request().Body).Decode(&body); err != nil || body.Action == "" {
		return server.RespondError(ctx, http.StatusBadRequest,
			"request body must be a JSON object with a string 'action' field")
	}
	if !hap.ValidState(body.Action) {
		return server.RespondError(ctx, http.StatusBadRequest,
			hap.InvalidStateError{State: body.Action}.Error())
	}

	log.Info().
		Str("instance", instance.Name()).
		Str("backend", backend).
		Str("server", serverName).
		Str("action", body.Action).
		Msg("Setting server state")

	if err := instance.Client().SetServerState(backend, serverName, body.Action); err != nil {
		return c.respondError(ctx, err)
	}

	return server.RespondOK(ctx, map[string]interface{}{
		"instance": instance.Name(),
		"backend":  backend,
		"server":   serverName,
		"action":   body.Action,
		"status":   "completed",
	}, "server state changed to '"+body.Action+"'")
}

// splitPath breaks the wildcard remainder into clean segments.
func splitPath(p string) []string {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return parts
}

// splitInstance consumes an optional leading instance segment. The first
// segment is an instance name unless it equals a reserved keyword; this one
// deterministic rule lets the same shapes serve the implicit-default and
// explicit-instance forms.
func splitInstance(parts []string) (string, []string) {
	if len(parts) == 0 || parts[0] == segmentBackends || parts[0] == segmentInstances {
		return "", parts
	}
	return parts[0], parts[1:]
}

func (c *Controller) routeNotFound(ctx echo.Context, parts []string) error {
	return server.RespondError(ctx, http.StatusNotFound,
		"unknown haproxy route: /"+strings.Join(parts, "/"))
}

// respondError maps the error taxonomy onto HTTP statuses. Balancer and
// transport messages are surfaced verbatim in the envelope; nothing is
// retried here.
func (c *Controller) respondError(ctx echo.Context, err error) error {
	var (
		instanceNotFound hap.InstanceNotFoundError
		backendNotFound  hap.BackendNotFoundError
		serverNotFound   hap.ServerNotFoundError
		commandRejected  hap.CommandRejectedError
		invalidState     hap.InvalidStateError
		transportErr     *hap.TransportError
	)

	switch {
	case errors.As(err, &instanceNotFound),
		errors.As(err, &backendNotFound),
		errors.As(err, &serverNotFound):
		return server.RespondError(ctx, http.StatusNotFound, err.Error())

	case errors.As(err, &commandRejected):
		return server.RespondError(ctx, http.StatusBadGateway, commandRejected.Reply)

	case errors.As(err, &invalidState):
		return server.RespondError(ctx, http.StatusBadRequest, err.Error())

	case errors.As(err, &transportErr):
		log.Error().Err(err).Msg("Balancer transport failure")
		return server.RespondError(ctx, http.StatusServiceUnavailable, err.Error())

	default:
		log.Error().Err(err).Msg("Unexpected haproxy controller failure")
		return server.RespondError(ctx, http.StatusInternalServerError, err.Error())
	}
}
