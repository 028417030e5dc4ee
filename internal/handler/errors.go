package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-service/internal/auth"
	"github.com/iliyamo/pipeline-service/internal/service"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// respondError maps service and auth errors to status codes.  Anything it
// does not recognise is logged and answered with a bare 500.
func respondError(c echo.Context, log *slog.Logger, err error) error {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrDuplicateCredential):
		status, msg = http.StatusBadRequest, service.ErrDuplicateCredential.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, service.ErrInvalidCredentials.Error()
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	case errors.Is(err, auth.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "could not validate credentials"
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	case errors.Is(err, service.ErrUserNotFound):
		status, msg = http.StatusNotFound, service.ErrUserNotFound.Error()
	case errors.Is(err, service.ErrNotFoundOrUnauthorized):
		status, msg = http.StatusNotFound, service.ErrNotFoundOrUnauthorized.Error()
	default:
		log.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"err", err)
	}
	return c.JSON(status, echo.Map{"error": msg})
}
