package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jonatasporto/trinks-router/domain"
)

func (s *Server) registerAdmin() {
	g := s.Echo.Group("/admin")
	g.Use(s.requireAllowedIP)

	g.POST("/login", s.handleAdminLogin)

	protected := g.Group("", s.requireBearer)
	protected.GET("/state/:phone", s.handleGetState)
	protected.POST("/state/:phone", s.handlePutState)
	protected.GET("/states", s.handleListStates)
	protected.POST("/sync-servicos", s.handleTriggerSync)
	protected.POST("/rotate-secret", s.handleRotateSecret)
	protected.GET("/upsell/metrics", s.handleUpsellMetrics)
	protected.GET("/upsell/health", s.handleUpsellHealth)
	protected.POST("/upsell/test", s.handleUpsellTest)
}

// handleAdminLogin issues a bearer token. Credential verification beyond the
// IP allowlist is an external operator concern per the specification; this
// endpoint mints a token for whatever subject the caller asserts.
func (s *Server) handleAdminLogin(c echo.Context) error {
	var req struct {
		Subject string `json:"subject"`
	}
	_ = c.Bind(&req)
	if req.Subject == "" {
		req.Subject = "admin"
	}
	if s.deps.AdminAuth == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "admin auth not configured")
	}
	token, err := s.deps.AdminAuth.IssueToken(req.Subject)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue token")
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleGetState(c echo.Context) error {
	tenant := s.tenantParam(c)
	phone := domain.Phone(c.Param("phone"))
	ctx := c.Request().Context()
	cc, err := s.deps.Conversation.Get(ctx, tenant, phone)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load state")
	}
	if cc == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no state for phone")
	}
	return c.JSON(http.StatusOK, cc)
}

func (s *Server) handlePutState(c echo.Context) error {
	tenant := s.tenantParam(c)
	phone := domain.Phone(c.Param("phone"))
	var cc domain.ConversationContext
	if err := json.NewDecoder(c.Request().Body).Decode(&cc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed context")
	}
	cc.Tenant = tenant
	cc.Phone = phone
	if err := s.deps.Conversation.Put(c.Request().Context(), cc, 2*time.Hour); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to persist state")
	}
	return c.JSON(http.StatusOK, cc)
}

func (s *Server) handleListStates(c echo.Context) error {
	tenant := s.tenantParam(c)
	list, err := s.deps.Conversation.List(c.Request().Context(), tenant)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list states")
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleTriggerSync(c echo.Context) error {
	tenant := s.tenantParam(c)
	var req struct {
		SinceISO string `json:"since_iso,omitempty"`
	}
	_ = c.Bind(&req)
	result, err := s.deps.CatalogSync.TriggerFullSync(c.Request().Context(), tenant, req.SinceISO)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleRotateSecret(c echo.Context) error {
	var req struct {
		NewSecret string `json:"new_secret"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	if err := s.deps.HMACRing.Rotate(req.NewSecret); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"rotated": true})
}

func (s *Server) handleUpsellMetrics(c echo.Context) error {
	m, err := s.deps.Upsell.Metrics(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read upsell metrics")
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) handleUpsellHealth(c echo.Context) error {
	jobs, err := s.deps.Upsell.DuePendingJobs(c.Request().Context(), time.Now().Add(24*time.Hour), 100)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read upsell health")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"pending_jobs": len(jobs),
		"jobs":         jobs,
	})
}

// handleUpsellTest forces a synthetic upsell with an admin-specified
// variant, per the specification's "admin test endpoints" capability.
func (s *Server) handleUpsellTest(c echo.Context) error {
	var req struct {
		ConversationID   string `json:"conversation_id"`
		Phone            string `json:"phone"`
		AppointmentID    string `json:"appointment_id"`
		PrimaryServiceID string `json:"primary_service_id"`
		Copy             string `json:"copy"`     // "A" | "B"
		Position         string `json:"position"` // "IMMEDIATE" | "DELAY10"
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	if req.ConversationID == "" || req.Phone == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id and phone required")
	}
	variant := domain.Variant{
		Copy:     domain.VariantCopy(req.Copy),
		Position: domain.VariantPosition(req.Position),
	}
	tenant := s.tenantParam(c)
	err := s.deps.UpsellSvc.OnBookingConfirmed(c.Request().Context(), tenant, req.ConversationID,
		domain.Phone(req.Phone), req.AppointmentID, req.PrimaryServiceID, &variant)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"triggered": true})
}

func (s *Server) tenantParam(c echo.Context) domain.Tenant {
	if t := c.QueryParam("tenant"); t != "" {
		return domain.Tenant(t)
	}
	return s.deps.TenantDefault
}
