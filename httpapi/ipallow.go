package httpapi

import "net"

// ipAllowed reports whether ip falls within any of the configured CIDRs,
// the same shape the ratelimit package uses for its internal-CIDR bypass.
func ipAllowed(ip string, cidrs []string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, c := range cidrs {
		_, ipNet, err := net.ParseCIDR(c)
		if err != nil {
			continue
		}
		if ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}
