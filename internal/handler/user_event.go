package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-hall-reservation/internal/lifecycle"
	"github.com/iliyamo/event-hall-reservation/internal/repository"
)

// UserHandler exposes attendee-facing registration endpoints.
type UserHandler struct {
	Engine *lifecycle.Engine
	Events *repository.EventRepo
}

func NewUserHandler(engine *lifecycle.Engine, events *repository.EventRepo) *UserHandler {
	if engine == nil || events == nil {
		panic("nil dependency passed to NewUserHandler")
	}
	return &UserHandler{Engine: engine, Events: events}
}

// Register handles POST /v1/events/:id/register.  Free events register
// immediately (201).  Paid events get a checkout session back (200);
// the registration only exists after Confirm sees the charge settle.
func (h *UserHandler) Register(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	sess, err := h.Engine.Register(c.Request().Context(), userID, id)
	if err != nil {
		return respondLifecycleError(c, err)
	}
	if sess == nil {
		return c.JSON(http.StatusCreated, echo.Map{"event_id": id, "registered": true})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"event_id":     id,
		"registered":   false,
		"session_id":   sess.SessionID,
		"checkout_url": sess.URL,
	})
}

type confirmReq struct {
	SessionID string `json:"session_id"`
}

// Confirm handles POST /v1/events/:id/confirm.  Idempotent: confirming
// an already-settled registration returns 201 again.
func (h *UserHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req confirmReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id required"})
	}
	if err := h.Engine.ConfirmRegistration(c.Request().Context(), userID, id, strings.TrimSpace(req.SessionID)); err != nil {
		return respondLifecycleError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"event_id": id, "registered": true})
}

// Unregister handles DELETE /v1/events/:id/register.  Paid
// registrations are refunded first; a refund failure leaves the
// registration in place.
func (h *UserHandler) Unregister(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Engine.Unregister(c.Request().Context(), userID, id); err != nil {
		return respondLifecycleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MyEvents handles GET /v1/me/events and lists the approved events the
// user is registered for.  ?window=upcoming|past filters on end date.
func (h *UserHandler) MyEvents(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	offset, limit := pagination(c)
	filter := repository.EventFilter{
		Window: strings.ToLower(strings.TrimSpace(c.QueryParam("window"))),
		Now:    time.Now().UTC(),
	}
	events, err := h.Events.ListRegisteredForUser(c.Request().Context(), userID, filter, offset, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list events failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": toEventResps(events)})
}
