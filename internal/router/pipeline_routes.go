package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-service/internal/handler"
	"github.com/iliyamo/pipeline-service/internal/middleware"
)

// RegisterPipelines registers the ownership-scoped pipeline endpoints.
// Every route requires a bearer token; the list is cached per principal
// and any successful write drops that principal's cached list.
func RegisterPipelines(e *echo.Echo, d Deps, session echo.MiddlewareFunc) {
	p := handler.NewPipelineHandler(d.Pipelines, d.Log)
	invalidate := middleware.InvalidateCache(d.Config.Cache, d.Redis, d.Log)

	g := e.Group("/pipelines", session, middleware.RequireAuth(d.Gate, d.Log))
	g.POST("", p.Create, invalidate)
	g.GET("", p.List, middleware.NewRedisCache(d.Config.Cache, d.Redis, d.Log))
	g.GET("/:id", p.Get)
	g.PUT("/:id", p.Update, invalidate)
	g.DELETE("/:id", p.Delete, invalidate)
}
