package eureka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"opsagent/pkg/log"

	"github.com/hashicorp/go-retryablehttp"
)

// Application is one registered service instance as seen by the registry.
type Application struct {
	AppName        string            `json:"app_name"`
	InstanceID     string            `json:"instance_id"`
	IP             string            `json:"ip"`
	Port           int               `json:"port"`
	Status         string            `json:"status"`
	HomePageURL    string            `json:"home_page_url"`
	HealthCheckURL string            `json:"health_check_url"`
	StatusPageURL  string            `json:"status_page_url"`
	VIPAddress     string            `json:"vip_address"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Client is a REST client for a Eureka service registry.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewClient builds a registry client. Retries apply to connection and
// timeout errors only; registry error responses are forwarded as-is.
func NewClient(baseURL string, timeout time.Duration) *Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	client.CheckRetry = connectionRetryPolicy

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}
}

// connectionRetryPolicy retries only when no response was received at all,
// so registry 4xx/5xx answers reach the caller instead of being retried
// into a generic failure.
func connectionRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil {
		return false, nil
	}
	if err != nil {
		return true, nil //nolint:nilerr // retryablehttp reports the final error
	}
	return false, nil
}

// Applications lists every instance registered with the registry.
func (c *Client) Applications() ([]Application, error) {
	body, err := c.get(c.baseURL + "/eureka/apps")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Applications struct {
			Application json.RawMessage `json:"application"`
		} `json:"applications"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}

	var apps []Application
	for _, rawApp := range asList(payload.Applications.Application) {
		var app struct {
			Name     string          `json:"name"`
			Instance json.RawMessage `json:"instance"`
		}
		if err := json.Unmarshal(rawApp, &app); err != nil {
			log.Warn().Err(err).Msg("Skipping undecodable registry application")
			continue
		}
		for _, rawInst := range asList(app.Instance) {
			if parsed := parseInstance(rawInst, app.Name); parsed != nil {
				apps = append(apps, *parsed)
			}
		}
	}

	return apps, nil
}

// Instance looks up one registered instance by its instance ID.
func (c *Client) Instance(instanceID string) (*Application, error) {
	apps, err := c.Applications()
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].InstanceID == instanceID {
			return &apps[i], nil
		}
	}
	return nil, NotFoundError{InstanceID: instanceID}
}

// InstanceHealth fetches the instance's own health endpoint and returns the
// decoded payload.
func (c *Client) InstanceHealth(app *Application) (map[string]interface{}, error) {
	url := app.HealthCheckURL
	if url == "" {
		url = managementURL(app, "health")
	}
	body, err := c.get(url)
	if err != nil {
		return nil, err
	}

	var health map[string]interface{}
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return health, nil
}

// Pause asks the instance's management endpoint to stop accepting traffic.
func (c *Client) Pause(app *Application) error {
	return c.post(managementURL(app, "pause"), nil)
}

// Shutdown asks the instance to shut down gracefully.
func (c *Client) Shutdown(app *Application) error {
	return c.post(managementURL(app, "shutdown"), nil)
}

// SetLogLevel reconfigures one logger on the instance.
func (c *Client) SetLogLevel(app *Application, loggerName, level string) error {
	payload := map[string]string{"configuredLevel": strings.ToUpper(level)}
	return c.post(managementURL(app, "loggers/"+loggerName), payload)
}

func (c *Client) get(url string) ([]byte, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UnavailableError{URL: url, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close registry response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) post(url string, payload interface{}) error {
	var body interface{}
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = encoded
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &UnavailableError{URL: url, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close registry response body")
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return nil
}

// managementURL builds an actuator endpoint URL from the instance's home
// page.
func managementURL(app *Application, action string) string {
	base := strings.TrimRight(app.HomePageURL, "/")
	if base == "" {
		base = fmt.Sprintf("http://%s", net.JoinHostPort(app.IP, fmt.Sprintf("%d", app.Port)))
	}
	return base + "/actuator/" + action
}

// asList tolerates the registry's single-object-or-list JSON shapes.
func asList(raw json.RawMessage) []json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil
		}
		return list
	}
	return []json.RawMessage{raw}
}

// eurekaPort tolerates the registry's port shapes: a plain number or a
// {"$": 8080, "@enabled": "true"} object.
type eurekaPort int

func (p *eurekaPort) UnmarshalJSON(data []byte) error {
	var direct int
	if err := json.Unmarshal(data, &direct); err == nil {
		*p = eurekaPort(direct)
		return nil
	}

	var wrapped struct {
		Value int `json:"$"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*p = eurekaPort(wrapped.Value)
	return nil
}

func parseInstance(raw json.RawMessage, appName string) *Application {
	var inst struct {
		InstanceID     string            `json:"instanceId"`
		IPAddr         string            `json:"ipAddr"`
		Port           eurekaPort        `json:"port"`
		Status         string            `json:"status"`
		HomePageURL    string            `json:"homePageUrl"`
		HealthCheckURL string            `json:"healthCheckUrl"`
		StatusPageURL  string            `json:"statusPageUrl"`
		VIPAddress     string            `json:"vipAddress"`
		Metadata       map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &inst); err != nil {
		log.Warn().Err(err).Str("app", appName).Msg("Skipping undecodable registry instance")
		return nil
	}

	status := inst.Status
	if status == "" {
		status = "UNKNOWN"
	}

	return &Application{
		AppName:        appName,
		InstanceID:     inst.InstanceID,
		IP:             extractIP(inst.InstanceID, inst.IPAddr),
		Port:           int(inst.Port),
		Status:         status,
		HomePageURL:    inst.HomePageURL,
		HealthCheckURL: inst.HealthCheckURL,
		StatusPageURL:  inst.StatusPageURL,
		VIPAddress:     inst.VIPAddress,
		Metadata:       inst.Metadata,
	}
}

// extractIP prefers an IP embedded in the instance ID (containerized
// instances register that way) over the ipAddr field.
func extractIP(instanceID, ipAddr string) string {
	if host, _, found := strings.Cut(instanceID, ":"); found {
		if ip := net.ParseIP(host); ip != nil {
			return host
		}
	}
	return ipAddr
}
