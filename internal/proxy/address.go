package proxy

import "net/netip"

// Blocked ranges. The broadcast address is covered by 240.0.0.0/4 but is
// listed explicitly so the intent survives refactors.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),    // loopback
	netip.MustParsePrefix("169.254.0.0/16"), // link-local
	netip.MustParsePrefix("0.0.0.0/8"),      // "this" network
	netip.MustParsePrefix("224.0.0.0/4"),    // multicast
	netip.MustParsePrefix("240.0.0.0/4"),    // reserved
}

var broadcastAddr = netip.MustParseAddr("255.255.255.255")

// RFC 1918 private ranges. A consumer gateway's management interface only
// ever lives on one of these.
var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// ValidGatewayAddr reports whether s is an IPv4 address cellgate may
// forward requests to: well-formed dotted quad, not in any blocked range,
// and inside an RFC 1918 private range. Everything else is rejected so an
// attacker-supplied header can never steer the proxy at an arbitrary host.
func ValidGatewayAddr(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return false
	}
	if addr == broadcastAddr {
		return false
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return false
		}
	}
	for _, p := range privatePrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ResolveGatewayAddr returns supplied if it passes validation, otherwise
// fallback. An invalid address is corrected rather than rejected: the
// caller keeps working against the configured default instead of seeing a
// hard failure.
func ResolveGatewayAddr(supplied, fallback string) string {
	if ValidGatewayAddr(supplied) {
		return supplied
	}
	return fallback
}
