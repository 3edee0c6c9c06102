package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-hall-reservation/internal/model"
	"github.com/iliyamo/event-hall-reservation/internal/repository"
)

// PublicHandler serves unauthenticated browse endpoints.  Only approved
// events are visible; pending and rejected ones stay private to their
// host and the moderation queue.
type PublicHandler struct {
	Events *repository.EventRepo
	Halls  *repository.HallRepo
}

func NewPublicHandler(events *repository.EventRepo, halls *repository.HallRepo) *PublicHandler {
	if events == nil || halls == nil {
		panic("nil repository passed to NewPublicHandler")
	}
	return &PublicHandler{Events: events, Halls: halls}
}

// ListEvents handles GET /v1/events.  Defaults to upcoming approved
// events; ?window=past shows history.
func (h *PublicHandler) ListEvents(c echo.Context) error {
	offset, limit := pagination(c)
	window := strings.ToLower(strings.TrimSpace(c.QueryParam("window")))
	if window == "" {
		window = "upcoming"
	}
	filter := repository.EventFilter{
		Status: model.EventApproved,
		Window: window,
		Now:    time.Now().UTC(),
	}
	ctx := c.Request().Context()
	events, err := h.Events.List(ctx, filter, offset, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list events failed"})
	}
	total, err := h.Events.Count(ctx, filter)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count events failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": toEventResps(events), "total": total})
}

// GetEvent handles GET /v1/events/:id with the attendee count and the
// hall details attached.
func (h *PublicHandler) GetEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	if ev.Status != model.EventApproved {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	registered, err := h.Events.CountRegistrations(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count registrations failed"})
	}
	resp := echo.Map{
		"event":      toEventResp(ev),
		"registered": registered,
		"spots_left": int(ev.Capacity) - registered,
	}
	if ev.HallID != nil {
		if hall, err := h.Halls.GetByID(ctx, *ev.HallID); err == nil {
			resp["hall"] = toHallResp(hall)
		}
	}
	return c.JSON(http.StatusOK, resp)
}
