// Package sync exposes the webhook that triggers a batch sync. The event
// platform posts either one event or {"batch": [...]} to this endpoint.
package sync

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/audienceops/traitsync/pkg/events"
	syncpipe "github.com/audienceops/traitsync/pkg/sync"
	"github.com/audienceops/traitsync/pkg/tracing"
)

// Processor runs the batch pipeline. Satisfied by *sync.Orchestrator.
type Processor interface {
	ProcessBatch(ctx context.Context, batch []*events.Event) (*syncpipe.Result, error)
}

// Handler serves the sync webhook.
type Handler struct {
	processor Processor
}

// NewHandler creates a sync webhook handler.
func NewHandler(processor Processor) *Handler {
	return &Handler{processor: processor}
}

// Register registers the sync routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Sync)
}

// syncRequest accepts either a single event envelope or a batch wrapper.
type syncRequest struct {
	Batch []*events.Event `json:"batch"`

	// Single-event fields, used when batch is absent
	events.Event
}

// Sync handles POST /v1/sync
func (h *Handler) Sync(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SyncHandler.Sync")
	defer span.End()

	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return httperror.WrapError(http.StatusBadRequest, err)
	}

	batch := req.Batch
	if len(batch) == 0 {
		if req.Event.Type == "" {
			return httperror.NewHTTPError(http.StatusBadRequest, "request must carry an event or a batch")
		}
		ev := req.Event
		batch = []*events.Event{&ev}
	}

	result, err := h.processor.ProcessBatch(ctx, batch)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, result)
}
