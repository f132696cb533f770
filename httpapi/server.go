// Package httpapi provides the thin Echo-based composition layer that wires
// the router core's seven components and security envelope into a runnable
// HTTP surface, grounded on the teacher's server/router package: one
// constructor takes an explicit Dependencies struct (internal/profile.Profile
// + store.Store equivalent) and registers routes against an *echo.Echo the
// caller owns. No protocol demuxing, provider HTTP client, or process
// bootstrap lives here — those are external per the specification's
// Non-goals; this package only composes already-built components.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jonatasporto/trinks-router/catalogsync"
	"github.com/jonatasporto/trinks-router/conversation"
	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/metrics"
	"github.com/jonatasporto/trinks-router/security/breaker"
	"github.com/jonatasporto/trinks-router/security/hmacring"
	"github.com/jonatasporto/trinks-router/security/ratelimit"
	"github.com/jonatasporto/trinks-router/store"
	"github.com/jonatasporto/trinks-router/upsell"
)

// Dependencies is the explicit wiring struct every component of the HTTP
// surface is built from, mirroring the teacher's APIV1Service field-bag
// idiom rather than ambient package-level singletons.
type Dependencies struct {
	Controller   *conversation.Controller
	CatalogSync  *catalogsync.Service
	UpsellSvc    *upsell.Service
	HMACRing     *hmacring.Ring
	RateLimiter  *ratelimit.Limiter
	Breakers     *breaker.Registry
	Metrics      *metrics.Exporter
	Dedup        store.MessageDedupStore
	Conversation store.ConversationStore
	Upsell       store.UpsellStore

	AdminAuth     *AdminAuth
	AdminCIDRs    []string
	TenantDefault domain.Tenant

	// CallDeadline bounds every suspension point (catalog, provider,
	// outbound, cache, lock acquisition) per the specification's §5
	// resource model; it is applied to the webhook handler's request
	// context, not to Echo's own server-level timeouts.
	CallDeadline time.Duration
}

// Server owns the Echo instance and every registered route group.
type Server struct {
	Echo *echo.Echo
	deps Dependencies
}

// New builds a Server and registers the webhook, admin, and operational
// routes. Callers own starting/stopping the underlying net/http server
// (process bootstrap is out of scope here).
func New(deps Dependencies) *Server {
	if deps.CallDeadline <= 0 {
		deps.CallDeadline = 30 * time.Second
	}
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// uuid.NewString in place of Echo's default random-string generator, so
	// the request id doubles as a correlation id usable in upstream Trinks
	// calls and structured log lines.
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	s := &Server{Echo: e, deps: deps}
	s.registerWebhook()
	s.registerAdmin()
	s.registerOps()
	return s
}

func (s *Server) registerOps() {
	s.Echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	s.Echo.GET("/ready", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})
	if s.deps.Metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}
}

func clientIP(c echo.Context) string {
	ip := c.RealIP()
	if host, _, err := net.SplitHostPort(c.Request().RemoteAddr); err == nil && ip == "" {
		return host
	}
	return ip
}

func withDeadline(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}

func logError(msg string, err error) {
	slog.Error(msg, "error", err)
}
