// Package router assembles the echo instance: global middleware, the
// per-request store session and every route of the API.
package router

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/pipeline-service/internal/auth"
	"github.com/iliyamo/pipeline-service/internal/config"
	"github.com/iliyamo/pipeline-service/internal/database"
	"github.com/iliyamo/pipeline-service/internal/handler"
	"github.com/iliyamo/pipeline-service/internal/middleware"
	"github.com/iliyamo/pipeline-service/internal/service"
)

// Deps are the long-lived collaborators the routes are built from.  Redis
// may be nil, which disables rate limiting and response caching.
type Deps struct {
	Config    config.Config
	DB        *database.DB
	Redis     *redis.Client
	Gate      *auth.Gate
	Auth      *service.AuthService
	Pipelines *service.PipelineService
	Log       *slog.Logger
}

// New returns an echo instance with all middleware and routes registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(requestLogger(d.Log))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     d.Config.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: !allowsAnyOrigin(d.Config.CORSOrigins),
	}))

	RegisterRoutes(e)
	session := middleware.StoreSession(d.DB, d.Log)
	RegisterAuth(e, d, session)
	RegisterPipelines(e, d, session)
	return e
}

// RegisterRoutes registers the routes that need neither a store session
// nor authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/", handler.Home)
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers signup and login, rate limited per client, and
// the authenticated profile endpoint.
func RegisterAuth(e *echo.Echo, d Deps, session echo.MiddlewareFunc) {
	a := handler.NewAuthHandler(d.Auth, d.Log)
	limit := middleware.NewTokenBucket(d.Config.RateLimit, d.Redis, d.Log)

	e.POST("/signup", a.Signup, limit, session)
	e.POST("/login", a.Login, limit, session)
	e.GET("/me", a.Me, session, middleware.RequireAuth(d.Gate, d.Log))
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Error("request", append(attrs, "err", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	})
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
