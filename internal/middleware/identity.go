package middleware

// identity.go holds the echo context keys shared by the middleware chain
// and the handlers: the per-request store and the authenticated principal.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-service/internal/model"
	"github.com/iliyamo/pipeline-service/internal/repository"
)

const (
	storeKey     = "store"
	principalKey = "principal"
)

// Store returns the store bound to the request by StoreSession, or nil.
func Store(c echo.Context) *repository.Store {
	s, _ := c.Get(storeKey).(*repository.Store)
	return s
}

// Principal returns the user resolved by RequireAuth, or nil.
func Principal(c echo.Context) *model.User {
	u, _ := c.Get(principalKey).(*model.User)
	return u
}

// principalID identifies the caller in rate-limit and cache keys.  It
// returns "anon" when no principal is set.
func principalID(c echo.Context) string {
	if u := Principal(c); u != nil && u.Username != "" {
		return u.Username
	}
	return "anon"
}
