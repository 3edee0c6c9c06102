package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-hall-reservation/internal/lifecycle"
	"github.com/iliyamo/event-hall-reservation/internal/model"
	"github.com/iliyamo/event-hall-reservation/internal/repository"
)

// HostHandler exposes event management for approved hosts.  Shape
// validation happens here; every decision with cascading effects is
// delegated to the lifecycle engine.
type HostHandler struct {
	Engine *lifecycle.Engine
	Events *repository.EventRepo
}

func NewHostHandler(engine *lifecycle.Engine, events *repository.EventRepo) *HostHandler {
	if engine == nil || events == nil {
		panic("nil dependency passed to NewHostHandler")
	}
	return &HostHandler{Engine: engine, Events: events}
}

type eventReq struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Category    *string `json:"category"`
	Image       *string `json:"image"`
	EventDate   string  `json:"event_date"` // YYYY-MM-DD
	EventTime   string  `json:"event_time"`
	StartDate   *string `json:"start_date"` // RFC 3339
	EndDate     *string `json:"end_date"`   // RFC 3339
	Capacity    uint32  `json:"capacity"`
	PriceCents  uint32  `json:"price_cents"`
	HallID      *uint64 `json:"hall_id"`
}

// toModel validates the request shape and builds an event record.  The
// engine performs the semantic checks (hall existence, capacity fit,
// window ordering, overlap).
func (r *eventReq) toModel() (*model.Event, string) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return nil, "title required"
	}
	if strings.TrimSpace(r.Location) == "" {
		return nil, "location required"
	}
	if r.Capacity == 0 {
		return nil, "capacity must be positive"
	}
	eventDate, err := time.Parse("2006-01-02", r.EventDate)
	if err != nil {
		return nil, "event_date must be YYYY-MM-DD"
	}
	ev := &model.Event{
		Title:       title,
		Description: r.Description,
		Location:    strings.TrimSpace(r.Location),
		Category:    r.Category,
		Image:       r.Image,
		EventDate:   eventDate,
		EventTime:   strings.TrimSpace(r.EventTime),
		Capacity:    r.Capacity,
		PriceCents:  r.PriceCents,
		HallID:      r.HallID,
	}
	if r.StartDate != nil {
		t, err := time.Parse(time.RFC3339, *r.StartDate)
		if err != nil {
			return nil, "start_date must be RFC 3339"
		}
		u := t.UTC()
		ev.StartDate = &u
	}
	if r.EndDate != nil {
		t, err := time.Parse(time.RFC3339, *r.EndDate)
		if err != nil {
			return nil, "end_date must be RFC 3339"
		}
		u := t.UTC()
		ev.EndDate = &u
	}
	if ev.HallID != nil && (ev.StartDate == nil || ev.EndDate == nil) {
		return nil, "a hall request needs start_date and end_date"
	}
	return ev, ""
}

// Create handles POST /v1/host/events.  New events always start pending.
func (h *HostHandler) Create(c echo.Context) error {
	hostID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ev, msg := req.toModel()
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ev.HostID = hostID
	if err := h.Engine.Create(c.Request().Context(), ev); err != nil {
		return respondLifecycleError(c, err)
	}
	return c.JSON(http.StatusCreated, toEventResp(ev))
}

// Update handles PUT /v1/host/events/:id.  Changing the hall or the
// window of an approved event sends it back through approval.
func (h *HostHandler) Update(c echo.Context) error {
	hostID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ev, msg := req.toModel()
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ev.ID = id
	updated, err := h.Engine.Update(c.Request().Context(), hostID, ev)
	if err != nil {
		return respondLifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, toEventResp(updated))
}

// Delete handles DELETE /v1/host/events/:id.  Completed payments are
// refunded before anything is removed; a refund failure aborts.
func (h *HostHandler) Delete(c echo.Context) error {
	hostID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Engine.Delete(c.Request().Context(), hostID, id); err != nil {
		return respondLifecycleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMine handles GET /v1/host/events with optional ?status filter.
func (h *HostHandler) ListMine(c echo.Context) error {
	hostID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	offset, limit := pagination(c)
	filter := repository.EventFilter{HostID: hostID, Status: strings.TrimSpace(c.QueryParam("status"))}
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

// Registrations handles GET /v1/host/events/:id/registrations and
// returns the attendee count for one of the host's own events.
func (h *HostHandler) Registrations(c echo.Context) error {
	hostID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
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
	if ev.HostID != hostID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "event belongs to another host"})
	}
	n, err := h.Events.CountRegistrations(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count registrations failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": id, "registered": n, "capacity": ev.Capacity})
}
