// Package groups exposes the duplicate-group advice endpoint.
package groups

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/CBPFGMS/GOmapping/pkg/recommend"
	"github.com/CBPFGMS/GOmapping/pkg/utils"
)

// Handler serves the group routes
type Handler struct {
	svc *recommend.Service
}

// NewHandler creates a group route handler
func NewHandler(svc *recommend.Service) *Handler {
	return &Handler{svc: svc}
}

// Register registers the group routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/groups/advise", h.Advise)
}

// Advise recommends which member of a duplicate group to keep
func (h *Handler) Advise(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[recommend.Request](c)
	if err != nil {
		return err
	}

	advice, err := h.svc.Advise(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, advice)
}
