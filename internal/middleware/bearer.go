package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"im-connector-go/internal/auth"
)

// IdentityKey is the echo.Context key holding the verified *auth.Identity.
const IdentityKey = "identity"

// TokenVerifier verifies a raw bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*auth.Identity, error)
}

// BearerAuth rejects requests without a valid bearer token with 401 and a
// WWW-Authenticate challenge. The verified identity is stored under IdentityKey.
func BearerAuth(v TokenVerifier, logger *slog.Logger) echo.MiddlewareFunc {
	logger = logger.With("component", "bearer_auth")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorized(c, "Not authenticated")
			}

			id, err := v.Verify(c.Request().Context(), raw)
			if err != nil {
				logger.Info("bearer token rejected",
					"error", err,
					"remote_ip", c.RealIP(),
				)
				if errors.Is(err, auth.ErrUntrustedIssuer) {
					return unauthorized(c, "Token issuer is not trusted")
				}
				return unauthorized(c, "Invalid or expired token")
			}

			c.Set(IdentityKey, id)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity set by BearerAuth, or nil.
func IdentityFrom(c echo.Context) *auth.Identity {
	id, _ := c.Get(IdentityKey).(*auth.Identity)
	return id
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c echo.Context, msg string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}
