// Package ratelimit implements per-IP/per-phone sliding-window rate
// limiting with soft bans, one-minute granularity, and an internal-CIDR
// bypass.
package ratelimit

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonatasporto/trinks-router/store"
)

// Config is the tunable limiter configuration.
type Config struct {
	IPLimitRPM      int
	PhoneLimitRPM   int
	BanWindow       time.Duration
	InternalCIDRs   []string
	ViolationsToBan int // over-limit requests within one one-minute window that trigger a ban; default 3. Violations in earlier windows are not counted.
}

// Limiter enforces the per-source sliding-window limits. The durable
// per-minute counters in backing remain the source of truth for banning
// across instances; an in-process golang.org/x/time/rate token bucket per
// key sits in front of it purely as a smoothing gate, so a burst that lands
// squarely on a minute boundary (two allowed bursts either side of the
// rollover) still can't exceed the configured rate within any rolling
// window, not just within the calendar minute.
type Limiter struct {
	cfg      Config
	backing  store.RateCounterStore
	internal []*net.IPNet

	buckets sync.Map // key(string) -> *rate.Limiter
}

// New builds a Limiter, parsing the configured internal CIDRs once.
func New(cfg Config, backing store.RateCounterStore) *Limiter {
	if cfg.ViolationsToBan <= 0 {
		cfg.ViolationsToBan = 3
	}
	l := &Limiter{cfg: cfg, backing: backing}
	for _, c := range cfg.InternalCIDRs {
		if _, ipNet, err := net.ParseCIDR(c); err == nil {
			l.internal = append(l.internal, ipNet)
		}
	}
	return l
}

// bucketFor returns (creating if absent) the per-key token bucket, refilling
// at limitRPM/60 tokens per second with a burst equal to limitRPM itself, so
// a key comfortably within its quota never has its tokens exhausted.
func (l *Limiter) bucketFor(key string, limitRPM int) *rate.Limiter {
	if existing, ok := l.buckets.Load(key); ok {
		return existing.(*rate.Limiter)
	}
	burst := limitRPM
	if burst < 1 {
		burst = 1
	}
	fresh := rate.NewLimiter(rate.Limit(float64(limitRPM)/60.0), burst)
	actual, _ := l.buckets.LoadOrStore(key, fresh)
	return actual.(*rate.Limiter)
}

// IsInternal reports whether ip falls within a configured bypass CIDR.
func (l *Limiter) IsInternal(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range l.internal {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// Decision is the outcome of an Allow check.
type Decision struct {
	Allowed bool
	Banned  bool
}

// AllowIP enforces the per-IP limit; bypassed for internal CIDRs.
func (l *Limiter) AllowIP(ctx context.Context, ip string) (Decision, error) {
	if l.IsInternal(ip) {
		return Decision{Allowed: true}, nil
	}
	return l.allow(ctx, "ip:"+ip, l.cfg.IPLimitRPM)
}

// AllowPhone enforces the per-phone limit.
func (l *Limiter) AllowPhone(ctx context.Context, phone string) (Decision, error) {
	return l.allow(ctx, "phone:"+phone, l.cfg.PhoneLimitRPM)
}

func (l *Limiter) allow(ctx context.Context, key string, limit int) (Decision, error) {
	banned, err := l.backing.IsBanned(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	if banned {
		return Decision{Allowed: false, Banned: true}, nil
	}

	window := time.Now().Truncate(time.Minute)
	bucketKey := key + ":" + window.Format(time.RFC3339)
	count, err := l.backing.Increment(ctx, bucketKey, window, time.Minute+time.Second)
	if err != nil {
		return Decision{}, err
	}
	if count <= limit {
		// Within the calendar-minute counter; still subject to the
		// cross-window token bucket so a burst can't double up across a
		// minute rollover.
		return Decision{Allowed: l.bucketFor(key, limit).Allow()}, nil
	}

	if count-limit >= l.cfg.ViolationsToBan {
		if err := l.backing.Ban(ctx, key, time.Now().Add(l.cfg.BanWindow)); err != nil {
			return Decision{}, err
		}
		return Decision{Allowed: false, Banned: true}, nil
	}
	return Decision{Allowed: false}, nil
}
