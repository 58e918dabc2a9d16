package haproxy

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

// Transport performs one admin protocol exchange: send a single command,
// read the complete reply. The protocol signals completion by closing the
// connection from the remote side, so implementations read to end-of-stream.
type Transport interface {
	Exchange(command string) (string, error)
}

// socketTransport opens one connection per command against a resolved
// endpoint. The balancer admin socket does not support multiplexed sessions;
// connection setup cost per call is accepted.
type socketTransport struct {
	endpoint Endpoint
	timeout  time.Duration
}

func newSocketTransport(endpoint Endpoint, timeout time.Duration) *socketTransport {
	return &socketTransport{
		endpoint: endpoint,
		timeout:  timeout,
	}
}

// Exchange dials the endpoint, writes the command and reads until the peer
// closes. One deadline spans connect, write and the entire read phase.
func (t *socketTransport) Exchange(command string) (string, error) {
	deadline := time.Now().Add(t.timeout)

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.Dial(t.endpoint.Network, t.endpoint.Addr)
	if err != nil {
		return "", t.wrapDialError(err)
	}
	defer func() {
		_ = conn.Close()
	}()

	if err := conn.SetDeadline(deadline); err != nil {
		return "", &TransportError{Kind: TransportClosed, Op: "connect", Addr: t.endpoint.Addr, Err: err}
	}

	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return "", t.wrapStreamError("write", err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", t.wrapStreamError("read", err)
	}

	return string(reply), nil
}

// wrapDialError maps connect failures onto the transport taxonomy. Dial
// errors with no more specific classification count as refused connections:
// the endpoint exists in configuration but cannot be reached right now.
func (t *socketTransport) wrapDialError(err error) error {
	kind := TransportConnectionRefused

	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = TransportTimeout
	case errors.Is(err, syscall.ENOENT):
		kind = TransportAddressNotFound
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		kind = TransportAddressNotFound
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = TransportConnectionRefused
	}

	return &TransportError{Kind: kind, Op: "connect", Addr: t.endpoint.Addr, Err: err}
}

// wrapStreamError maps write/read failures. A peer that drops the connection
// mid-reply is a protocol error, never an empty-but-successful result.
func (t *socketTransport) wrapStreamError(op string, err error) error {
	kind := TransportClosed

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = TransportTimeout
	}

	return &TransportError{Kind: kind, Op: op, Addr: t.endpoint.Addr, Err: err}
}
