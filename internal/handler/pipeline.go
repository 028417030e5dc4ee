package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-service/internal/middleware"
	"github.com/iliyamo/pipeline-service/internal/model"
	"github.com/iliyamo/pipeline-service/internal/service"
)

// PipelineHandler exposes the principal's pipelines.
type PipelineHandler struct {
	pipelines *service.PipelineService
	log       *slog.Logger
}

func NewPipelineHandler(pipelines *service.PipelineService, log *slog.Logger) *PipelineHandler {
	return &PipelineHandler{pipelines: pipelines, log: log}
}

type pipelineResp struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func toPipelineResp(p *model.Pipeline) pipelineResp {
	return pipelineResp{
		ID:        p.ID,
		Name:      p.Name,
		Status:    p.Status,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// pipelineID parses the :id path parameter.  A malformed id is reported
// the same way as a pipeline that does not exist.
func pipelineID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *PipelineHandler) notFound(c echo.Context) error {
	return respondError(c, h.log, service.ErrNotFoundOrUnauthorized)
}

// Create handles POST /pipelines.
func (h *PipelineHandler) Create(c echo.Context) error {
	var req service.PipelineInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.pipelines.Create(ctx, middleware.Store(c).Pipelines, middleware.Principal(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Pipeline created", "id": p.ID})
}

// List handles GET /pipelines.
func (h *PipelineHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	ps, err := h.pipelines.List(ctx, middleware.Store(c).Pipelines, middleware.Principal(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]pipelineResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPipelineResp(p))
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /pipelines/:id.
func (h *PipelineHandler) Get(c echo.Context) error {
	id, ok := pipelineID(c)
	if !ok {
		return h.notFound(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.pipelines.Get(ctx, middleware.Store(c).Pipelines, middleware.Principal(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toPipelineResp(p))
}

// Update handles PUT /pipelines/:id.
func (h *PipelineHandler) Update(c echo.Context) error {
	id, ok := pipelineID(c)
	if !ok {
		return h.notFound(c)
	}
	var req service.PipelineInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.pipelines.Update(ctx, middleware.Store(c).Pipelines, middleware.Principal(c), id, req); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Pipeline updated"})
}

// Delete handles DELETE /pipelines/:id.
func (h *PipelineHandler) Delete(c echo.Context) error {
	id, ok := pipelineID(c)
	if !ok {
		return h.notFound(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.pipelines.Delete(ctx, middleware.Store(c).Pipelines, middleware.Principal(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Pipeline deleted"})
}
