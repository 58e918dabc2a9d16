package haproxy

import (
	"net"
	"strconv"
	"strings"
)

const (
	tcp4Prefix = "ipv4@"
	tcp6Prefix = "ipv6@"

	maxPort = 65535
)

// Endpoint is a resolved balancer admin endpoint. The address string is
// parsed once at construction so no string sniffing happens per call.
type Endpoint struct {
	// Network is "unix" or "tcp".
	Network string
	// Addr is the socket path for unix endpoints, host:port for tcp.
	Addr string
}

// ParseAddress resolves a configured address string into an endpoint.
// Addresses of the form "ipv4@host:port" or "ipv6@host:port" designate TCP
// endpoints; any other non-empty string is taken as a unix socket path.
func ParseAddress(raw string) (Endpoint, error) {
	addr := strings.TrimSpace(raw)
	if addr == "" {
		return Endpoint{}, InvalidAddressError{Addr: raw, Reason: "empty address"}
	}

	var hostPort string
	switch {
	case strings.HasPrefix(addr, tcp4Prefix):
		hostPort = strings.TrimPrefix(addr, tcp4Prefix)
	case strings.HasPrefix(addr, tcp6Prefix):
		hostPort = strings.TrimPrefix(addr, tcp6Prefix)
	default:
		return Endpoint{Network: "unix", Addr: addr}, nil
	}

	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Endpoint{}, InvalidAddressError{Addr: raw, Reason: "expected host:port after network prefix"}
	}
	if strings.TrimSpace(host) == "" {
		return Endpoint{}, InvalidAddressError{Addr: raw, Reason: "missing host"}
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return Endpoint{}, InvalidAddressError{Addr: raw, Reason: "port is not numeric"}
	}
	if portNum < 1 || portNum > maxPort {
		return Endpoint{}, InvalidAddressError{Addr: raw, Reason: "port out of range 1-65535"}
	}

	return Endpoint{Network: "tcp", Addr: net.JoinHostPort(host, port)}, nil
}
