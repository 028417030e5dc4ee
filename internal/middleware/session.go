package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-service/internal/database"
	"github.com/iliyamo/pipeline-service/internal/repository"
)

// StoreSession acquires a dedicated connection from the pool for the
// duration of the request and exposes it to handlers as a
// repository.Store.  The connection is returned to the pool on every exit
// path, including panics recovered further up the chain.
func StoreSession(db *database.DB, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			conn, err := db.Conn(c.Request().Context())
			if err != nil {
				log.Error("acquire store session", "err", err)
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
			}
			defer func() { _ = conn.Close() }()

			c.Set(storeKey, repository.NewStore(conn, db.Driver))
			return next(c)
		}
	}
}
