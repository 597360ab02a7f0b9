package tchannel2

import (
	"fmt"
	"net"
)

// ParsePeerAddr validates a "host:port" string before it is used as a peer
// table key or dialed (§4.10, generalizing ipaddr.go's narrower IPv4
// classification into full address validation).
func ParsePeerAddr(s string) (host string, port string, err error) {
	host, port, err = net.SplitHostPort(s)
	if err != nil {
		return "", "", fmt.Errorf("invalid peer address %q: %w", s, err)
	}
	if host == "" {
		return "", "", fmt.Errorf("invalid peer address %q: empty host", s)
	}
	if port == "" {
		return "", "", fmt.Errorf("invalid peer address %q: empty port", s)
	}
	return host, port, nil
}

// IsSelfAddr reports whether b names the same peer as a -- self-peering is
// forbidden (§6 Addressing).
func IsSelfAddr(a, b string) bool {
	return a == b
}

// IsRoutableIPv4 returns true if ip is an IPv4 address string that is not
// in a private range. See http://en.wikipedia.org/wiki/Private_network for
// the ranges excluded.
func IsRoutableIPv4(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	v4 := parsed.To4()
	if v4 == nil {
		return false
	}
	privateBlocks := []*net.IPNet{
		{IP: net.IPv4(127, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
		{IP: net.IPv4(10, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
		{IP: net.IPv4(172, 16, 0, 0), Mask: net.CIDRMask(12, 32)},
		{IP: net.IPv4(192, 168, 0, 0), Mask: net.CIDRMask(16, 32)},
	}
	for _, b := range privateBlocks {
		if b.Contains(v4) {
			return false
		}
	}
	return true
}

// IsLocalhost reports whether ipStr (optionally "host:port") names the
// loopback interface, along with the host-only portion.
func IsLocalhost(ipStr string) (isLocal bool, hostOnly string) {
	host, _, err := net.SplitHostPort(ipStr)
	if err == nil {
		ipStr = host
	}
	hostOnly = ipStr
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false, hostOnly
	}
	return ip.IsLoopback(), hostOnly
}
