package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-service/internal/auth"
)

// RequireAuth resolves the bearer token of the request to a user and
// stores it as the request principal.  It must run after StoreSession.
// Any authentication failure is answered with 401 and a
// `WWW-Authenticate: Bearer` challenge; store failures become 500.
func RequireAuth(gate *auth.Gate, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			store := Store(c)
			if store == nil {
				log.Error("RequireAuth used without StoreSession", "path", c.Path())
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}

			raw := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			u, err := gate.Authenticate(c.Request().Context(), store.Users, raw)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "could not validate credentials"})
				}
				log.Error("authenticate", "err", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}

			c.Set(principalKey, u)
			return next(c)
		}
	}
}
