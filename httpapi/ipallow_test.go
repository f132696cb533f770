package httpapi

import "testing"

func TestIPAllowedMatchesCIDR(t *testing.T) {
	cidrs := []string{"10.0.0.0/8", "192.168.1.0/24"}
	cases := map[string]bool{
		"10.1.2.3":     true,
		"192.168.1.50": true,
		"192.168.2.1":  false,
		"8.8.8.8":      false,
		"not-an-ip":    false,
	}
	for ip, want := range cases {
		if got := ipAllowed(ip, cidrs); got != want {
			t.Errorf("ipAllowed(%q) = %v, want %v", ip, got, want)
		}
	}
}

func TestIPAllowedRejectsAllWhenCIDRListEmpty(t *testing.T) {
	if ipAllowed("10.0.0.1", nil) {
		t.Fatal("expected an empty allowlist to reject every ip")
	}
}
