// Package similarity exposes the scoring and summary endpoints.
package similarity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/CBPFGMS/GOmapping/pkg/similarity"
	"github.com/CBPFGMS/GOmapping/pkg/utils"
)

// Handler serves the similarity routes
type Handler struct {
	engine           *similarity.Engine
	defaultThreshold float64
	defaultMaxBucket int
}

// NewHandler creates a similarity route handler. The defaults apply
// when a recompute request leaves threshold or max_bucket unset.
func NewHandler(engine *similarity.Engine, defaultThreshold float64, defaultMaxBucket int) *Handler {
	return &Handler{
		engine:           engine,
		defaultThreshold: defaultThreshold,
		defaultMaxBucket: defaultMaxBucket,
	}
}

// Register registers the similarity routes on the API group
func (h *Handler) Register(g *echo.Group) {
	g.POST("/similarity/recompute", h.Recompute)
	g.GET("/summary", h.Summary)
}

// RecomputeRequest tunes one scoring pass
type RecomputeRequest struct {
	Threshold float64 `json:"threshold" query:"threshold" validate:"omitempty,min=0,max=100"`
	MaxBucket int     `json:"max_bucket" query:"max_bucket" validate:"omitempty,min=2"`
	Clear     *bool   `json:"clear" query:"clear"`
}

// Recompute rescores the whole registry and replaces the stored edges
func (h *Handler) Recompute(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[RecomputeRequest](c)
	if err != nil {
		return err
	}

	opts := similarity.Options{
		Threshold: req.Threshold,
		MaxBucket: req.MaxBucket,
		Clear:     true,
	}
	if opts.Threshold == 0 {
		opts.Threshold = h.defaultThreshold
	}
	if opts.MaxBucket == 0 {
		opts.MaxBucket = h.defaultMaxBucket
	}
	if req.Clear != nil {
		opts.Clear = *req.Clear
	}

	result, err := h.engine.Recompute(ctx, opts)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Summary returns the duplicate-group dashboard view
func (h *Handler) Summary(c echo.Context) error {
	ctx := c.Request().Context()

	summary, err := h.engine.Summary(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, summary)
}
