package haproxy

import (
	"fmt"
	"strings"
)

// TransportErrorKind classifies transport-level failures.
type TransportErrorKind int

const (
	// TransportAddressNotFound means the socket file or host does not exist.
	TransportAddressNotFound TransportErrorKind = iota

	// TransportConnectionRefused means the endpoint exists but refused the
	// connection.
	TransportConnectionRefused

	// TransportTimeout means the configured timeout expired during connect
	// or read.
	TransportTimeout

	// TransportClosed means the peer closed the connection before a complete
	// reply was read.
	TransportClosed
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportAddressNotFound:
		return "address not found"
	case TransportConnectionRefused:
		return "connection refused"
	case TransportTimeout:
		return "timeout"
	case TransportClosed:
		return "connection closed"
	default:
		return "transport error"
	}
}

// TransportError reports a failed exchange with a balancer endpoint. Op names
// the phase ("connect", "write" or "read") for diagnostics; the kind does not
// distinguish phases.
type TransportError struct {
	Kind TransportErrorKind
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("haproxy %s %s (%s): %v", e.Op, e.Addr, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// InvalidAddressError reports a malformed endpoint address. It is a
// configuration defect raised before any connection attempt.
type InvalidAddressError struct {
	Addr   string
	Reason string
}

func (e InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid haproxy address %q: %s", e.Addr, e.Reason)
}

// BackendNotFoundError is returned when a stat listing contains no row at all
// for the requested backend.
type BackendNotFoundError struct {
	Backend string
}

func (e BackendNotFoundError) Error() string {
	return fmt.Sprintf("backend %q not found", e.Backend)
}

// ServerNotFoundError is returned when a backend listing does not contain the
// requested server.
type ServerNotFoundError struct {
	Backend string
	Server  string
}

func (e ServerNotFoundError) Error() string {
	return fmt.Sprintf("server %q not found in backend %q", e.Server, e.Backend)
}

// CommandRejectedError carries the balancer's own status-line reply to a
// rejected command. Reply is preserved verbatim; operators rely on the
// balancer's wording for diagnosis.
type CommandRejectedError struct {
	Reply string
}

func (e CommandRejectedError) Error() string {
	return e.Reply
}

// InvalidStateError is returned for a server admin state outside the allowed
// set before any command is sent.
type InvalidStateError struct {
	State string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("invalid server state %q, allowed: %s", e.State, strings.Join(ValidStates, ", "))
}

// InstanceNotFoundError is returned when resolving an instance name that is
// not configured.
type InstanceNotFoundError struct {
	Name      string
	Available []string
}

func (e InstanceNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("haproxy instance %q not found, no instances configured", e.Name)
	}
	return fmt.Sprintf("haproxy instance %q not found, available: %s", e.Name, strings.Join(e.Available, ", "))
}
