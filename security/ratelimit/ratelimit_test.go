package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/jonatasporto/trinks-router/storemem"
)

func TestAllowIPWithinLimit(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewRateCounterStore()
	l := New(Config{IPLimitRPM: 10, PhoneLimitRPM: 5, BanWindow: time.Minute}, backing)
	for i := 0; i < 10; i++ {
		d, err := l.AllowIP(ctx, "1.2.3.4")
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}
}

func TestExceedingLimitDeniesAndEventuallyBans(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewRateCounterStore()
	l := New(Config{IPLimitRPM: 2, PhoneLimitRPM: 5, BanWindow: time.Minute, ViolationsToBan: 2}, backing)
	for i := 0; i < 2; i++ {
		d, _ := l.AllowIP(ctx, "9.9.9.9")
		if !d.Allowed {
			t.Fatalf("request %d within limit should be allowed", i)
		}
	}
	d, _ := l.AllowIP(ctx, "9.9.9.9")
	if d.Allowed {
		t.Fatal("3rd request should be denied")
	}
	d, _ = l.AllowIP(ctx, "9.9.9.9")
	if !d.Banned {
		t.Fatal("expected ban after repeated violations")
	}
}

func TestInternalCIDRBypassesLimit(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewRateCounterStore()
	l := New(Config{IPLimitRPM: 1, BanWindow: time.Minute, InternalCIDRs: []string{"10.0.0.0/8"}}, backing)
	for i := 0; i < 5; i++ {
		d, _ := l.AllowIP(ctx, "10.1.2.3")
		if !d.Allowed {
			t.Fatal("internal CIDR should always be allowed")
		}
	}
}

func TestBannedKeyStaysDenied(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewRateCounterStore()
	_ = backing.Ban(ctx, "phone:+5511999999999", time.Now().Add(time.Minute))
	l := New(Config{PhoneLimitRPM: 100, BanWindow: time.Minute}, backing)
	d, _ := l.AllowPhone(ctx, "+5511999999999")
	if d.Allowed {
		t.Fatal("banned phone should be denied")
	}
}
