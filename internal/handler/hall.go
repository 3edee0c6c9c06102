package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-hall-reservation/internal/model"
	"github.com/iliyamo/event-hall-reservation/internal/repository"
)

// HallHandler exposes administrative hall management.  Hall status is
// never writable through this API: it is derived from the reservation
// table by the lifecycle engine and the sweeper, and this handler only
// reports it.
type HallHandler struct {
	Halls           *repository.HallRepo
	Events          *repository.EventRepo
	ReservationRepo *repository.ReservationRepo
}

func NewHallHandler(h *repository.HallRepo, e *repository.EventRepo, r *repository.ReservationRepo) *HallHandler {
	if h == nil || e == nil || r == nil {
		panic("nil repository passed to NewHallHandler")
	}
	return &HallHandler{Halls: h, Events: e, ReservationRepo: r}
}

type hallReq struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity uint32 `json:"capacity"`
}

type hallResp struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Capacity  uint32    `json:"capacity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toHallResp(h *model.Hall) hallResp {
	return hallResp{
		ID: h.ID, Name: h.Name, Location: h.Location,
		Capacity: h.Capacity, Status: h.Status, CreatedAt: h.CreatedAt,
	}
}

// Create handles POST /v1/admin/halls.
func (h *HallHandler) Create(c echo.Context) error {
	var req hallReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)
	if req.Name == "" || req.Location == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/location required"})
	}
	if req.Capacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
	}
	hall := &model.Hall{Name: req.Name, Location: req.Location, Capacity: req.Capacity}
	if err := h.Halls.Create(c.Request().Context(), hall); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create hall failed"})
	}
	return c.JSON(http.StatusCreated, toHallResp(hall))
}

// List handles GET /v1/halls (public) with pagination.
func (h *HallHandler) List(c echo.Context) error {
	offset, limit := pagination(c)
	ctx := c.Request().Context()
	halls, err := h.Halls.List(ctx, offset, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list halls failed"})
	}
	total, err := h.Halls.Count(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count halls failed"})
	}
	out := make([]hallResp, 0, len(halls))
	for i := range halls {
		out = append(out, toHallResp(&halls[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"halls": out, "total": total})
}

// Get handles GET /v1/halls/:id.
func (h *HallHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hall id"})
	}
	hall, err := h.Halls.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrHallNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hall not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load hall failed"})
	}
	return c.JSON(http.StatusOK, toHallResp(hall))
}

// Update handles PUT /v1/admin/halls/:id.  Shrinking capacity below the
// declared capacity of any approved event on the hall is refused, since
// it would silently break the capacity guarantee those events were
// approved under.
func (h *HallHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hall id"})
	}
	var req hallReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)
	if req.Name == "" || req.Location == "" || req.Capacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/location/capacity required"})
	}

	ctx := c.Request().Context()
	hall, err := h.Halls.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrHallNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hall not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load hall failed"})
	}
	if req.Capacity < hall.Capacity {
		over, err := h.Events.CountApprovedByHallOverCapacity(ctx, id, req.Capacity)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "capacity check failed"})
		}
		if over > 0 {
			return c.JSON(http.StatusConflict, echo.Map{"error": "approved events exceed the new capacity"})
		}
	}

	hall.Name = req.Name
	hall.Location = req.Location
	hall.Capacity = req.Capacity
	if err := h.Halls.Update(ctx, hall); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update hall failed"})
	}
	return c.JSON(http.StatusOK, toHallResp(hall))
}

// Delete handles DELETE /v1/admin/halls/:id.  A hall with approved
// events still linked to it cannot be removed; reject or delete those
// events first.
func (h *HallHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hall id"})
	}
	ctx := c.Request().Context()
	linked, err := h.Events.CountApprovedByHall(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check events failed"})
	}
	if linked > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "hall has approved events"})
	}
	if err := h.Halls.Delete(ctx, id); err != nil {
		if err == repository.ErrHallNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hall not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete hall failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Reservations handles GET /v1/admin/halls/:id/reservations and returns
// the hall's reservation ledger ordered by start date.
func (h *HallHandler) Reservations(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hall id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Halls.GetByID(ctx, id); err != nil {
		if err == repository.ErrHallNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hall not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load hall failed"})
	}
	list, err := h.ReservationRepo.ListByHall(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list reservations failed"})
	}
	out := make([]reservationResp, 0, len(list))
	for _, r := range list {
		out = append(out, reservationResp{
			ID: r.ID, HallID: r.HallID, EventID: r.EventID,
			StartDate: r.StartDate, EndDate: r.EndDate, Status: r.Status,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

type reservationResp struct {
	ID        uint64    `json:"id"`
	HallID    uint64    `json:"hall_id"`
	EventID   uint64    `json:"event_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
}
