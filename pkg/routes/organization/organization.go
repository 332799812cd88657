// Package organization exposes the organization read endpoints.
package organization

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/CBPFGMS/GOmapping/internal/repositories/organization"
	"github.com/CBPFGMS/GOmapping/internal/repositories/orgmapping"
	"github.com/CBPFGMS/GOmapping/internal/repositories/similarityedge"
	"github.com/CBPFGMS/GOmapping/pkg/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Handler serves organization routes
type Handler struct {
	orgs     *organization.Repository
	mappings *orgmapping.Repository
	edges    *similarityedge.Repository
}

// NewHandler creates an organization route handler
func NewHandler(orgs *organization.Repository, mappings *orgmapping.Repository, edges *similarityedge.Repository) *Handler {
	return &Handler{orgs: orgs, mappings: mappings, edges: edges}
}

// Register registers organization routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/mappings", h.Mappings)
	g.GET("/:id/similar", h.Similar)
}

// List returns a usage-ordered page of organizations
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	page := intQueryParam(c, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := intQueryParam(c, "page_size", defaultPageSize)
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	orgs, total, err := h.orgs.List(ctx, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.OrganizationListResponse{
		Items:      orgs,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Get returns one organization by id
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return err
	}

	org, err := h.orgs.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, org)
}

// Mappings returns the fund-instance mappings referencing an organization
func (h *Handler) Mappings(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return err
	}

	if _, err := h.orgs.Get(ctx, id); err != nil {
		return err
	}

	limit := intQueryParam(c, "limit", 0)
	mappings, err := h.mappings.ListByOrg(ctx, id, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, mappings)
}

// Similar returns the stored similarity edges from an organization,
// strongest first.
func (h *Handler) Similar(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return err
	}

	if _, err := h.orgs.Get(ctx, id); err != nil {
		return err
	}

	edges, err := h.edges.ListBySource(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, edges)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "invalid organization id")
	}
	return id, nil
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
