package haproxy

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	showStatCommand = "show stat"
	showInfoCommand = "show info"

	// Aggregate row discriminators in the stat table. Rows carrying these in
	// the svname column describe the proxy itself, not a server.
	statRowBackend  = "BACKEND"
	statRowFrontend = "FRONTEND"
)

// ValidStates are the admin states accepted by SetServerState.
var ValidStates = []string{"ready", "drain", "maint"}

// ValidState reports whether state is an accepted server admin state.
func ValidState(state string) bool {
	for _, s := range ValidStates {
		if s == state {
			return true
		}
	}
	return false
}

// Server is one server row from a backend listing. Values are passed through
// from the balancer verbatim, including status values outside the usual
// UP/DOWN/DRAIN/MAINT set. Nothing here is cached; the balancer is the
// source of truth.
type Server struct {
	Name          string `json:"name"`
	Status        string `json:"status"`
	Weight        string `json:"weight"`
	CheckStatus   string `json:"check_status"`
	CheckDuration string `json:"check_duration"`
	LastChange    string `json:"last_chg"`
	Downtime      string `json:"downtime"`
	Addr          string `json:"addr"`
	Cookie        string `json:"cookie"`
}

// Client speaks the balancer's line-oriented admin protocol over a
// Transport. Each call performs exactly one command/reply exchange.
type Client struct {
	transport Transport
}

// NewClient builds a client for the given address, parsing it up front so
// malformed configuration fails before any connection attempt.
func NewClient(addr string, timeout time.Duration) (*Client, error) {
	endpoint, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	return &Client{transport: newSocketTransport(endpoint, timeout)}, nil
}

// NewClientWithTransport builds a client over a caller-supplied transport.
func NewClientWithTransport(t Transport) *Client {
	return &Client{transport: t}
}

// ListBackends returns the sorted names of all backends known to the
// balancer.
func (c *Client) ListBackends() ([]string, error) {
	reply, err := c.transport.Exchange(showStatCommand)
	if err != nil {
		return nil, err
	}

	backends := []string{}
	table := parseStatTable(reply)
	if table == nil {
		return backends, nil
	}

	seen := make(map[string]bool)
	for _, row := range table.rows {
		if row["svname"] != statRowBackend {
			continue
		}
		name := row["pxname"]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		backends = append(backends, name)
	}

	sort.Strings(backends)
	return backends, nil
}

// ListServers returns the servers of one backend in the order the balancer
// reported them. A header-only table is a valid "no servers" result; a reply
// with no header at all, or a table that never mentions the backend, yields
// BackendNotFoundError. Tables without a proxy-name column are taken as
// already scoped to the requested backend.
func (c *Client) ListServers(backend string) ([]Server, error) {
	reply, err := c.transport.Exchange(showStatCommand)
	if err != nil {
		return nil, err
	}

	table := parseStatTable(reply)
	if table == nil {
		return nil, BackendNotFoundError{Backend: backend}
	}
	if len(table.rows) == 0 {
		return []Server{}, nil
	}

	scoped := table.hasColumn("pxname")
	typed := table.hasColumn("svname")
	known := !scoped

	var servers []Server
	for _, row := range table.rows {
		if scoped && row["pxname"] != backend {
			continue
		}
		known = true
		svname := row["svname"]
		if typed && (svname == statRowBackend || svname == statRowFrontend) {
			continue
		}
		name := svname
		if !typed {
			name = row["name"]
		}
		servers = append(servers, Server{
			Name:          name,
			Status:        row["status"],
			Weight:        row["weight"],
			CheckStatus:   row["check_status"],
			CheckDuration: row["check_duration"],
			LastChange:    row["last_chg"],
			Downtime:      row["downtime"],
			Addr:          row["addr"],
			Cookie:        row["cookie"],
		})
	}

	if !known {
		return nil, BackendNotFoundError{Backend: backend}
	}
	if servers == nil {
		servers = []Server{}
	}
	return servers, nil
}

// GetServer returns one server from a backend listing.
func (c *Client) GetServer(backend, server string) (*Server, error) {
	servers, err := c.ListServers(backend)
	if err != nil {
		return nil, err
	}
	for i := range servers {
		if servers[i].Name == server {
			return &servers[i], nil
		}
	}
	return nil, ServerNotFoundError{Backend: backend, Server: server}
}

// SetServerState transitions a server's admin state. An empty reply means
// the command was accepted; any other reply is the balancer rejecting the
// command and is surfaced verbatim. The resulting state is not verified or
// cached; callers re-query to observe it.
func (c *Client) SetServerState(backend, server, state string) error {
	if !ValidState(state) {
		return InvalidStateError{State: state}
	}

	command := fmt.Sprintf("set server %s/%s state %s", backend, server, state)
	reply, err := c.transport.Exchange(command)
	if err != nil {
		return err
	}

	if text := strings.TrimSpace(reply); text != "" {
		return CommandRejectedError{Reply: text}
	}
	return nil
}

// Info returns the balancer's "show info" key/value output.
func (c *Client) Info() (map[string]string, error) {
	reply, err := c.transport.Exchange(showInfoCommand)
	if err != nil {
		return nil, err
	}

	info := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(reply), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		info[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return info, nil
}

// HealthCheck reports whether the balancer answers the info command. It
// degrades every failure to false so availability can be reported without
// aborting the surrounding request.
func (c *Client) HealthCheck() bool {
	info, err := c.Info()
	if err != nil {
		return false
	}
	_, ok := info["Version"]
	return ok
}
