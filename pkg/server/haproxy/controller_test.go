package haproxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	hap "opsagent/pkg/haproxy"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
)

// recordingTransport records issued commands and plays back canned replies.
type recordingTransport struct {
	replies  map[string]string
	err      error
	commands []string
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{replies: make(map[string]string)}
}

func (t *recordingTransport) Exchange(command string) (string, error) {
	t.commands = append(t.commands, command)
	if t.err != nil {
		return "", t.err
	}
	return t.replies[command], nil
}

// envelope mirrors models.Response with the data kept raw for per-test
// decoding.
type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
}

// ControllerTestSuite tests the balancer control routes
type ControllerTestSuite struct {
	suite.Suite
	echo       *echo.Echo
	transport  *recordingTransport
	controller *Controller
}

func (s *ControllerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.transport = newRecordingTransport()

	registry, err := hap.NewStaticRegistry([]*hap.Instance{
		hap.NewInstance(hap.DefaultInstanceName, "/run/haproxy.sock",
			hap.NewClientWithTransport(s.transport)),
	})
	s.Require().NoError(err)
	s.controller = NewController(registry)
}

// request dispatches one request through the wildcard handlers and decodes
// the envelope.
func (s *ControllerTestSuite) request(method, path, body string) (int, envelope) {
	req := httptest.NewRequest(method, "/api/v1/haproxy/"+path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := s.echo.NewContext(req, rec)
	ctx.SetParamNames("*")
	ctx.SetParamValues(path)

	var err error
	if method == http.MethodGet {
		err = s.controller.handleGet(ctx)
	} else {
		err = s.controller.handleAction(ctx)
	}
	s.Require().NoError(err)

	var env envelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

// TestListInstances tests the instances listing shape
func (s *ControllerTestSuite) TestListInstances() {
	s.transport.replies["show info"] = "Version: 2.8.3\n"

	code, env := s.request(http.MethodGet, "instances", "")
	s.Equal(http.StatusOK, code)
	s.True(env.Success)
	s.Equal(http.StatusOK, env.StatusCode)

	var data struct {
		Instances []hap.InstanceStatus `json:"instances"`
		Count     int                  `json:"count"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &data))
	s.Equal(1, data.Count)
	s.Require().Len(data.Instances, 1)
	s.Equal(hap.InstanceStatus{
		Name:      hap.DefaultInstanceName,
		Endpoint:  "/run/haproxy.sock",
		Available: true,
	}, data.Instances[0])
}

// TestListBackends tests the implicit-default backends listing
func (s *ControllerTestSuite) TestListBackends() {
	s.transport.replies["show stat"] = "# pxname,svname,status,weight,\n" +
		"app,BACKEND,UP,1,\n" +
		"static,BACKEND,UP,1,\n"

	code, env := s.request(http.MethodGet, "backends", "")
	s.Equal(http.StatusOK, code)
	s.True(env.Success)

	var data struct {
		Instance string   `json:"instance"`
		Backends []string `json:"backends"`
		Count    int      `json:"count"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &data))
	s.Equal(hap.DefaultInstanceName, data.Instance)
	s.Equal([]string{"app", "static"}, data.Backends)
	s.Equal(2, data.Count)
}

// TestListBackendsQualified tests the instance-qualified form
func (s *ControllerTestSuite) TestListBackendsQualified() {
	s.transport.replies["show stat"] = "# pxname,svname,status,weight,\napp,BACKEND,UP,1,\n"

	code, env := s.request(http.MethodGet, "default/backends", "")
	s.Equal(http.StatusOK, code)
	s.True(env.Success)
}

// TestListServers tests the end-to-end server listing shape, including a
// table without proxy-name columns and MAINT status passthrough
func (s *ControllerTestSuite) TestListServers() {
	s.transport.replies["show stat"] = "name,status,weight\nsrv1,UP,1\nsrv2,MAINT,1\n"

	code, env := s.request(http.MethodGet, "backends/app/servers", "")
	s.Equal(http.StatusOK, code)
	s.True(env.Success)

	var data struct {
		Instance string       `json:"instance"`
		Backend  string       `json:"backend"`
		Servers  []hap.Server `json:"servers"`
		Count    int          `json:"count"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &data))
	s.Equal("app", data.Backend)
	s.Equal(2, data.Count)
	s.Require().Len(data.Servers, 2)
	s.Equal("srv1", data.Servers[0].Name)
	s.Equal("UP", data.Servers[0].Status)
	s.Equal("srv2", data.Servers[1].Name)
	s.Equal("MAINT", data.Servers[1].Status)
}

// TestBackendNotFound tests a backend the balancer does not report
func (s *ControllerTestSuite) TestBackendNotFound() {
	s.transport.replies["show stat"] = "# pxname,svname,status,weight,\napp,BACKEND,UP,1,\n"

	code, env := s.request(http.MethodGet, "backends/missing/servers", "")
	s.Equal(http.StatusNotFound, code)
	s.False(env.Success)
	s.Equal(http.StatusNotFound, env.StatusCode)
	s.Contains(env.Error, "missing")
}

// TestUnknownInstance tests that an unconfigured instance name is a 404
func (s *ControllerTestSuite) TestUnknownInstance() {
	code, env := s.request(http.MethodGet, "edge/backends", "")
	s.Equal(http.StatusNotFound, code)
	s.False(env.Success)
	s.Contains(env.Error, "edge")
	s.Empty(s.transport.commands)
}

// TestRouteNotFound tests that an unknown shape gets an enveloped 404
func (s *ControllerTestSuite) TestRouteNotFound() {
	code, env := s.request(http.MethodGet, "backends/app/frontends", "")
	s.Equal(http.StatusNotFound, code)
	s.False(env.Success)
	s.NotEmpty(env.Error)
}

// TestSetServerState tests a successful state change end to end
func (s *ControllerTestSuite) TestSetServerState() {
	s.transport.replies["set server app/srv1 state drain"] = ""

	code, env := s.request(http.MethodPost, "backends/app/servers/srv1/action", `{"action":"drain"}`)
	s.Equal(http.StatusOK, code)
	s.True(env.Success)
	s.Equal("server state changed to 'drain'", env.Message)

	var data map[string]string
	s.Require().NoError(json.Unmarshal(env.Data, &data))
	s.Equal(hap.DefaultInstanceName, data["instance"])
	s.Equal("app", data["backend"])
	s.Equal("srv1", data["server"])
	s.Equal("drain", data["action"])
	s.Equal("completed", data["status"])

	s.Equal([]string{"set server app/srv1 state drain"}, s.transport.commands)
}

// TestSetServerStateIdempotent tests that repeating the same action succeeds
// both times
func (s *ControllerTestSuite) TestSetServerStateIdempotent() {
	s.transport.replies["set server app/srv1 state ready"] = ""

	for i := 0; i < 2; i++ {
		code, env := s.request(http.MethodPost, "backends/app/servers/srv1/action", `{"action":"ready"}`)
		s.Equal(http.StatusOK, code)
		s.True(env.Success)
	}
	s.Len(s.transport.commands, 2)
}

// TestInvalidAction tests that an unknown action is rejected before any
// balancer connection
func (s *ControllerTestSuite) TestInvalidAction() {
	code, env := s.request(http.MethodPost, "backends/app/servers/srv1/action", `{"action":"stopped"}`)
	s.Equal(http.StatusBadRequest, code)
	s.False(env.Success)
	s.Contains(env.Error, "stopped")
	s.Empty(s.transport.commands)
}

// TestMalformedBody tests rejection of bodies that are not the expected JSON
// object
func (s *ControllerTestSuite) TestMalformedBody() {
	for _, body := range []string{"", "not json", `{"action":""}`, `{}`} {
		code, env := s.request(http.MethodPost, "backends/app/servers/srv1/action", body)
		s.Equal(http.StatusBadRequest, code, "body %q", body)
		s.False(env.Success)
	}
	s.Empty(s.transport.commands)
}

// TestCommandRejected tests that the balancer's refusal is surfaced verbatim
// with a 502
func (s *ControllerTestSuite) TestCommandRejected() {
	s.transport.replies["set server app/ghost state maint"] = "No such server.\n"

	code, env := s.request(http.MethodPost, "backends/app/servers/ghost/action", `{"action":"maint"}`)
	s.Equal(http.StatusBadGateway, code)
	s.False(env.Success)
	s.Equal("No such server.", env.Error)
}

// TestTransportFailure tests that connection failures become a 503
func (s *ControllerTestSuite) TestTransportFailure() {
	s.transport.err = &hap.TransportError{
		Kind: hap.TransportConnectionRefused,
		Op:   "connect",
		Addr: "/run/haproxy.sock",
	}

	code, env := s.request(http.MethodGet, "backends", "")
	s.Equal(http.StatusServiceUnavailable, code)
	s.False(env.Success)
	s.NotEmpty(env.Error)
}

// TestActionRouteShape tests that malformed action paths are 404s and never
// reach the balancer
func (s *ControllerTestSuite) TestActionRouteShape() {
	for _, path := range []string{
		"backends/app/servers/srv1",
		"backends/app/action",
		"backends/app/servers/srv1/action/extra",
	} {
		code, env := s.request(http.MethodPost, path, `{"action":"ready"}`)
		s.Equal(http.StatusNotFound, code, "path %q", path)
		s.False(env.Success)
	}
	s.Empty(s.transport.commands)
}

// TestEnvelopeAgreement tests that the envelope status_code always matches
// the HTTP status
func (s *ControllerTestSuite) TestEnvelopeAgreement() {
	s.transport.replies["show stat"] = "# pxname,svname,status,weight,\napp,BACKEND,UP,1,\n"

	for path, body := range map[string]string{
		"backends":                      "",
		"backends/missing/servers":      "",
		"edge/backends":                 "",
		"nonsense":                      "",
		"backends/app/servers/s/action": `{"action":"bogus"}`,
	} {
		method := http.MethodGet
		if body != "" {
			method = http.MethodPost
		}
		code, env := s.request(method, path, body)
		s.Equal(code, env.StatusCode, "path %q", path)
	}
}

// TestAmbiguousDefault tests that the implicit form fails with 404 when
// several instances exist and none is named default
func (s *ControllerTestSuite) TestAmbiguousDefault() {
	registry, err := hap.NewStaticRegistry([]*hap.Instance{
		hap.NewInstance("edge", "/run/a.sock", hap.NewClientWithTransport(newRecordingTransport())),
		hap.NewInstance("internal", "/run/b.sock", hap.NewClientWithTransport(newRecordingTransport())),
	})
	s.Require().NoError(err)
	s.controller = NewController(registry)

	code, env := s.request(http.MethodGet, "backends", "")
	s.Equal(http.StatusNotFound, code)
	s.False(env.Success)
}

// TestControllerSuite runs the controller test suite
func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}
