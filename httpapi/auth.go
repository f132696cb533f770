package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AdminAuth issues and verifies the bearer tokens gating /admin/*, grounded
// on the teacher's golang-jwt/jwt dependency (declared in its go.mod but
// otherwise unexercised there — this is its one concrete home in the
// router's domain stack).
type AdminAuth struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
}

// NewAdminAuth builds an AdminAuth from a shared secret. An empty secret
// makes every token verification fail closed, matching the specification's
// "bearer-token gated" requirement rather than silently allowing access.
func NewAdminAuth(secret string, tokenTTL time.Duration) *AdminAuth {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &AdminAuth{secret: []byte(secret), issuer: "trinks-router-admin", tokenTTL: tokenTTL}
}

type adminClaims struct {
	jwt.RegisteredClaims
}

// IssueToken mints a bearer token for POST /admin/login. The specification
// does not describe a credential check beyond "admin operation"; callers
// are expected to gate the login endpoint itself with the IP allowlist
// middleware and an out-of-band operator credential.
func (a *AdminAuth) IssueToken(subject string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("admin auth: no secret configured")
	}
	now := time.Now()
	claims := adminClaims{jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify parses and validates a bearer token string, returning its subject.
func (a *AdminAuth) Verify(tokenString string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("admin auth: no secret configured")
	}
	claims := &adminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !token.Valid {
		return "", errors.Wrap(err, "admin auth: invalid token")
	}
	return claims.Subject, nil
}

// requireBearer is Echo middleware enforcing a valid Authorization: Bearer
// token, recorded against auth_denied_total on rejection per spec.md §7.
func (s *Server) requireBearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			s.denyAuth("missing_bearer")
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		if s.deps.AdminAuth == nil {
			s.denyAuth("auth_not_configured")
			return echo.NewHTTPError(http.StatusUnauthorized, "admin auth not configured")
		}
		if _, err := s.deps.AdminAuth.Verify(strings.TrimPrefix(header, prefix)); err != nil {
			s.denyAuth("invalid_token")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
		}
		return next(c)
	}
}

// requireAllowedIP restricts a route to the configured admin CIDR
// allowlist; an empty allowlist denies every request rather than allowing
// all, since an unconfigured allowlist is never an intentional "open" state.
func (s *Server) requireAllowedIP(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if len(s.deps.AdminCIDRs) == 0 {
			s.denyAuth("ip_not_allowed")
			return echo.NewHTTPError(http.StatusForbidden, "admin access not configured")
		}
		ip := clientIP(c)
		if !ipAllowed(ip, s.deps.AdminCIDRs) {
			s.denyAuth("ip_not_allowed")
			return echo.NewHTTPError(http.StatusForbidden, "ip not allowed")
		}
		return next(c)
	}
}

func (s *Server) denyAuth(reason string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordAuthDenied(reason)
	}
}
