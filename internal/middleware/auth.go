package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/skvorcov/auth_service/internal/token"
)

type BearerAuth struct {
	Signer  *token.Signer
	Revoked token.RevocationRegistry
}

func NewBearerAuth(signer *token.Signer, revoked token.RevocationRegistry) *BearerAuth {
	return &BearerAuth{Signer: signer, Revoked: revoked}
}

// RequireAuth verifies the bearer access token and rejects revoked jtis.
// The raw token is kept in context so logout can revoke it.
func (m *BearerAuth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.Signer.Verify(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		revoked, err := m.Revoked.IsRevoked(c.Request().Context(), claims.ID)
		if err != nil {
			// fail closed when the registry is unreachable
			return echo.NewHTTPError(http.StatusUnauthorized, "cannot verify token")
		}
		if revoked {
			return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
		}

		c.Set("subject", claims.Subject)
		c.Set("authorities", claims.Authorities)
		c.Set("access_token", raw)

		return next(c)
	}
}
