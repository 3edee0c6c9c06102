package handler

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-hall-reservation/internal/lifecycle"
	"github.com/iliyamo/event-hall-reservation/internal/model"
	"github.com/iliyamo/event-hall-reservation/internal/queue"
	"github.com/iliyamo/event-hall-reservation/internal/repository"
	queuepub "github.com/iliyamo/event-hall-reservation/internal/service"
)

// AdminHandler exposes the moderation surface: event approval and
// rejection, host account approval, and user administration.
type AdminHandler struct {
	Engine       *lifecycle.Engine
	Events       *repository.EventRepo
	Users        *repository.UserRepo
	Halls        *repository.HallRepo
	Reservations *repository.ReservationRepo
	Payments     *repository.PaymentRepo
	Tokens       *repository.TokenRepo
}

func NewAdminHandler(engine *lifecycle.Engine, events *repository.EventRepo, users *repository.UserRepo,
	halls *repository.HallRepo, reservations *repository.ReservationRepo,
	payments *repository.PaymentRepo, tokens *repository.TokenRepo) *AdminHandler {
	if engine == nil || events == nil || users == nil || halls == nil ||
		reservations == nil || payments == nil || tokens == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{
		Engine: engine, Events: events, Users: users, Halls: halls,
		Reservations: reservations, Payments: payments, Tokens: tokens,
	}
}

// ListEvents handles GET /v1/admin/events.  Defaults to the pending
// moderation queue; ?status=approved|rejected|all widens the view.
func (h *AdminHandler) ListEvents(c echo.Context) error {
	offset, limit := pagination(c)
	status := strings.TrimSpace(c.QueryParam("status"))
	if status == "" {
		status = model.EventPending
	}
	if status == "all" {
		status = ""
	}
	filter := repository.EventFilter{Status: status}
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

// Approve handles POST /v1/admin/events/:id/approve.  On success the
// hall is reserved for the event window and an event.approved message
// is published for downstream consumers; publish failures are logged
// and never fail the approval.
func (h *AdminHandler) Approve(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	ev, err := h.Engine.Approve(ctx, id)
	if err != nil {
		return respondLifecycleError(c, err)
	}

	go h.publishApproved(ev)

	return c.JSON(http.StatusOK, toEventResp(ev))
}

// publishApproved assembles and publishes the event.approved message.
// Runs detached from the request; the approval has already committed.
func (h *AdminHandler) publishApproved(ev *model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := queue.EventApprovedEvent{
		EventID:    ev.ID,
		HostID:     ev.HostID,
		Title:      ev.Title,
		Capacity:   ev.Capacity,
		PriceCents: ev.PriceCents,
		ApprovedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if ev.StartDate != nil {
		msg.StartsAt = ev.StartDate.UTC().Format(time.RFC3339)
	}
	if ev.EndDate != nil {
		msg.EndsAt = ev.EndDate.UTC().Format(time.RFC3339)
	}
	if ev.HallID != nil {
		msg.HallID = *ev.HallID
		if hall, err := h.Halls.GetByID(ctx, *ev.HallID); err == nil {
			msg.HallName = hall.Name
		}
	}
	if res, err := h.Reservations.GetByEvent(ctx, ev.ID); err == nil && res != nil {
		msg.ReservationID = res.ID
	}
	if err := queuepub.PublishEventApproved(ctx, msg); err != nil {
		log.Printf("publish event.approved for event %d failed: %v", ev.ID, err)
	}
}

// Reject handles POST /v1/admin/events/:id/reject.
func (h *AdminHandler) Reject(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ev, err := h.Engine.Reject(c.Request().Context(), id)
	if err != nil {
		return respondLifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, toEventResp(ev))
}

// DeleteEvent handles DELETE /v1/admin/events/:id.  Administrative
// deletes skip the ownership check but run the full refund cascade.
func (h *AdminHandler) DeleteEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Engine.Delete(c.Request().Context(), 0, id); err != nil {
		return respondLifecycleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListUsers handles GET /v1/admin/users and returns every non-admin
// account, newest first.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	users, err := h.Users.ListNonAdmins(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list users failed"})
	}
	out := make([]userPart, 0, len(users))
	for _, u := range users {
		out = append(out, userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, HostStatus: hostStatusFor(u)})
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out})
}

type hostStatusReq struct {
	Status string `json:"status"` // approved | rejected
}

// SetHostStatus handles POST /v1/admin/users/:id/host-status and flips
// a host account between approved and rejected.
func (h *AdminHandler) SetHostStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req hostStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status != "approved" && status != "rejected" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be approved or rejected"})
	}

	ctx := c.Request().Context()
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	if u.Role != "host" {
		return c.JSON(http.StatusConflict, echo.Map{"error": "user is not a host"})
	}
	if err := h.Users.SetHostStatus(ctx, id, status); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update host status failed"})
	}
	// Force a token refresh so the new host_status claim takes effect.
	_ = h.Tokens.RevokeAllForUser(ctx, id)
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "host_status": status})
}

// DeleteUser handles DELETE /v1/admin/users/:id.  A host with approved
// events, or an attendee holding unrefunded payments, cannot be removed
// until those are resolved; otherwise the account, its registrations
// and its sessions all go.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx := c.Request().Context()
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	if u.Role == "admin" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot delete admin accounts"})
	}

	if u.Role == "host" {
		n, err := h.Events.CountApprovedByHost(ctx, id)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check events failed"})
		}
		if n > 0 {
			return c.JSON(http.StatusConflict, echo.Map{"error": "host still has approved events"})
		}
	}
	paid, err := h.Payments.HasCompletedForUser(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check payments failed"})
	}
	if paid {
		return c.JSON(http.StatusConflict, echo.Map{"error": "user holds unrefunded payments"})
	}

	if err := h.Events.RemoveAllRegistrationsForUser(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "remove registrations failed"})
	}
	_ = h.Tokens.RevokeAllForUser(ctx, id)
	if err := h.Users.Delete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete user failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
