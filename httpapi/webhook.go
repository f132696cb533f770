package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jonatasporto/trinks-router/domain"
)

// IncomingMessage is the already-demuxed payload shape this handler
// consumes; the provider-specific JSON envelope (WhatsApp/Evolution wire
// format) is extracted upstream, per the specification's Non-goals.
type IncomingMessage struct {
	Tenant      string `json:"tenant,omitempty"`
	Phone       string `json:"phone"`
	Text        string `json:"text"`
	MessageID   string `json:"message_id"`
	DisplayName string `json:"display_name,omitempty"`
}

type receivedResponse struct {
	Received bool `json:"received"`
}

func (s *Server) registerWebhook() {
	s.Echo.POST("/webhooks/messaging", s.handleWebhook)
}

// handleWebhook implements the security envelope ordering of spec.md §2's
// data-flow: HMAC verify -> rate limit -> dedup -> ProcessMessage. Only
// InputValidation, AuthNForbidden and RateLimited (429) ever produce a
// non-200 response; every other outcome replies 200 {"received": true} per spec.md §7's propagation
// policy, with the actual chat reply (if any) delivered through the
// outbound adapter from inside the controller.
func (s *Server) handleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read body")
	}

	sig := c.Request().Header.Get("X-Signature")
	if s.deps.HMACRing != nil && !s.deps.HMACRing.Verify(body, sig) {
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordHMACInvalid()
			s.deps.Metrics.RecordWebhookRequest("hmac_invalid")
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	var msg IncomingMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	}
	if msg.Phone == "" || msg.MessageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone and message_id required")
	}

	ctx, cancel := withDeadline(c.Request().Context(), s.deps.CallDeadline)
	defer cancel()

	ip := clientIP(c)
	if s.deps.RateLimiter != nil {
		if decision, err := s.deps.RateLimiter.AllowIP(ctx, ip); err == nil && !decision.Allowed {
			if s.deps.Metrics != nil {
				s.deps.Metrics.RecordRateLimited("ip")
				s.deps.Metrics.RecordWebhookRequest("rate_limited")
			}
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
		}
		if decision, err := s.deps.RateLimiter.AllowPhone(ctx, msg.Phone); err == nil && !decision.Allowed {
			if s.deps.Metrics != nil {
				s.deps.Metrics.RecordRateLimited("phone")
				s.deps.Metrics.RecordWebhookRequest("rate_limited")
			}
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
		}
	}

	// Duplicate-delivery defense: a provider message id seen before within
	// the dedup TTL is acknowledged without re-running the pipeline, per
	// the specification's Cancellation & timeouts section.
	if s.deps.Dedup != nil {
		seen, err := s.deps.Dedup.SeenBefore(ctx, msg.MessageID, 10*time.Minute)
		if err != nil {
			logError("webhook: dedup check failed", err)
		} else if seen {
			if s.deps.Metrics != nil {
				s.deps.Metrics.RecordWebhookRequest("duplicate")
			}
			return c.JSON(http.StatusOK, receivedResponse{Received: true})
		}
	}

	tenant := domain.Tenant(msg.Tenant)
	if tenant == "" {
		tenant = s.deps.TenantDefault
	}

	resp, err := s.deps.Controller.ProcessMessage(ctx, tenant, domain.Phone(msg.Phone), msg.Text)
	if err != nil {
		logError("webhook: ProcessMessage failed", err)
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordWebhookRequest("error")
		}
		return c.JSON(http.StatusOK, receivedResponse{Received: true})
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordWebhookRequest(string(resp.Action))
	}
	return c.JSON(http.StatusOK, receivedResponse{Received: true})
}
