package catalogsync

import (
	"sync"
	"sync/atomic"

	"github.com/jonatasporto/trinks-router/domain"
)

// tenantGuard is a fail-fast, per-tenant "exactly one active sync" guard.
// Each tenant gets its own *int32 flipped with atomic CAS so a concurrent
// tryEnter never blocks — it either wins the CAS or fails immediately,
// matching the single-flight-but-not-coalescing contract TriggerFullSync
// requires (deliberately not golang.org/x/sync/singleflight — see Service
// doc comment).
type tenantGuard struct {
	mu    sync.Mutex
	flags map[domain.Tenant]*int32
}

func (g *tenantGuard) flagFor(tenant domain.Tenant) *int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.flags == nil {
		g.flags = make(map[domain.Tenant]*int32)
	}
	f, ok := g.flags[tenant]
	if !ok {
		var zero int32
		f = &zero
		g.flags[tenant] = f
	}
	return f
}

func (g *tenantGuard) tryEnter(tenant domain.Tenant) bool {
	flag := g.flagFor(tenant)
	return atomic.CompareAndSwapInt32(flag, 0, 1)
}

func (g *tenantGuard) exit(tenant domain.Tenant) {
	flag := g.flagFor(tenant)
	atomic.StoreInt32(flag, 0)
}
