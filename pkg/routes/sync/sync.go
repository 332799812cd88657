// Package sync exposes the feed synchronization endpoints.
package sync

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/CBPFGMS/GOmapping/pkg/models"
	syncsvc "github.com/CBPFGMS/GOmapping/pkg/sync"
	"github.com/CBPFGMS/GOmapping/pkg/utils"
)

// Handler serves the sync routes
type Handler struct {
	svc *syncsvc.Service
}

// NewHandler creates a sync route handler
func NewHandler(svc *syncsvc.Service) *Handler {
	return &Handler{svc: svc}
}

// Register registers the sync routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/sync", h.Trigger)
	g.GET("/sync/status", h.Status)
	g.GET("/sync/history", h.History)
}

// TriggerRequest starts a sync pass
type TriggerRequest struct {
	SyncType    string `json:"sync_type" validate:"omitempty,oneof=global_org org_mapping all"`
	Force       bool   `json:"force"`
	TriggeredBy string `json:"triggered_by"`
}

// Trigger runs one sync pass, either a single feed or both
func (h *Handler) Trigger(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[TriggerRequest](c)
	if err != nil {
		return err
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = "api"
	}

	if req.SyncType == "" || req.SyncType == "all" {
		result := h.svc.SyncAll(ctx, req.TriggeredBy, req.Force)
		status := http.StatusOK
		if result.Status == models.SyncAllFailed {
			status = http.StatusInternalServerError
		}
		return c.JSON(status, result)
	}

	result, err := h.svc.Sync(ctx, req.SyncType, req.TriggeredBy, req.Force)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Status reports recent sync activity per feed
func (h *Handler) Status(c echo.Context) error {
	ctx := c.Request().Context()

	status, err := h.svc.Status(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, status)
}

// HistoryRequest filters the sync audit log
type HistoryRequest struct {
	SyncType string `query:"sync_type" validate:"omitempty,oneof=global_org org_mapping"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=200"`
}

// History lists recent sync runs, newest first
func (h *Handler) History(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[HistoryRequest](c)
	if err != nil {
		return err
	}

	runs, err := h.svc.History(ctx, req.SyncType, req.Limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, runs)
}
