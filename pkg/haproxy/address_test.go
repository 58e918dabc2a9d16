package haproxy

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// AddressTestSuite tests endpoint address parsing
type AddressTestSuite struct {
	suite.Suite
}

// TestUnixSocketPath tests that a bare path parses as a unix endpoint
func (s *AddressTestSuite) TestUnixSocketPath() {
	endpoint, err := ParseAddress("/tmp/x.sock")
	s.NoError(err)
	s.Equal("unix", endpoint.Network)
	s.Equal("/tmp/x.sock", endpoint.Addr)
}

// TestTCPAddress tests the ipv4@host:port form
func (s *AddressTestSuite) TestTCPAddress() {
	endpoint, err := ParseAddress("ipv4@10.0.0.1:7777")
	s.NoError(err)
	s.Equal("tcp", endpoint.Network)
	s.Equal("10.0.0.1:7777", endpoint.Addr)
}

// TestIPv6Address tests the ipv6@host:port form
func (s *AddressTestSuite) TestIPv6Address() {
	endpoint, err := ParseAddress("ipv6@[::1]:9999")
	s.NoError(err)
	s.Equal("tcp", endpoint.Network)
	s.Equal("[::1]:9999", endpoint.Addr)
}

// TestMissingPort tests that a prefixed address without a port fails
func (s *AddressTestSuite) TestMissingPort() {
	_, err := ParseAddress("ipv4@10.0.0.1")
	s.Error(err)
	var invalidErr InvalidAddressError
	s.ErrorAs(err, &invalidErr)
}

// TestPortOutOfRange tests ports outside 1-65535
func (s *AddressTestSuite) TestPortOutOfRange() {
	for _, addr := range []string{"ipv4@10.0.0.1:99999", "ipv4@10.0.0.1:0", "ipv4@10.0.0.1:-1"} {
		_, err := ParseAddress(addr)
		var invalidErr InvalidAddressError
		s.ErrorAs(err, &invalidErr, "address %q should be invalid", addr)
	}
}

// TestNonNumericPort tests that a non-numeric port fails
func (s *AddressTestSuite) TestNonNumericPort() {
	_, err := ParseAddress("ipv4@10.0.0.1:http")
	var invalidErr InvalidAddressError
	s.ErrorAs(err, &invalidErr)
}

// TestMissingHost tests that a prefixed address without a host fails
func (s *AddressTestSuite) TestMissingHost() {
	_, err := ParseAddress("ipv4@:7777")
	var invalidErr InvalidAddressError
	s.ErrorAs(err, &invalidErr)
}

// TestEmptyAddress tests that an empty address fails
func (s *AddressTestSuite) TestEmptyAddress() {
	for _, addr := range []string{"", "   "} {
		_, err := ParseAddress(addr)
		var invalidErr InvalidAddressError
		s.ErrorAs(err, &invalidErr)
	}
}

// TestWhitespaceTrimmed tests that surrounding whitespace is ignored
func (s *AddressTestSuite) TestWhitespaceTrimmed() {
	endpoint, err := ParseAddress("  /var/run/haproxy.sock  ")
	s.NoError(err)
	s.Equal("unix", endpoint.Network)
	s.Equal("/var/run/haproxy.sock", endpoint.Addr)
}

// TestAddressSuite runs the address test suite
func TestAddressSuite(t *testing.T) {
	suite.Run(t, new(AddressTestSuite))
}
