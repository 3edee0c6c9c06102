package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-hall-reservation/internal/lifecycle"
	"github.com/iliyamo/event-hall-reservation/internal/model"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
// JWT numeric claims decode as float64, so several representations are handled.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a numeric :id-style path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// pagination reads ?page and ?limit with sane bounds and returns the
// SQL offset/limit pair.
func pagination(c echo.Context) (offset, limit int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return (page - 1) * limit, limit
}

// respondLifecycleError maps engine failures to HTTP responses.  The
// Kind drives the status code; the reason goes to the client verbatim.
// Errors without a Kind are infrastructure failures and surface as 500
// with a generic message.
func respondLifecycleError(c echo.Context, err error) error {
	kind, ok := lifecycle.KindOf(err)
	if !ok {
		c.Logger().Errorf("internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	var le *lifecycle.Error
	errors.As(err, &le)
	status := http.StatusInternalServerError
	switch kind {
	case lifecycle.KindValidation:
		status = http.StatusBadRequest
	case lifecycle.KindNotFound:
		status = http.StatusNotFound
	case lifecycle.KindForbidden:
		status = http.StatusForbidden
	case lifecycle.KindConflict, lifecycle.KindCapacityExceeded:
		status = http.StatusConflict
	case lifecycle.KindPaymentRequired:
		status = http.StatusPaymentRequired
	case lifecycle.KindRefundFailed:
		status = http.StatusBadGateway
	}
	return c.JSON(status, echo.Map{"error": le.Reason, "kind": string(kind)})
}

// eventResp is the wire shape for a single event.
type eventResp struct {
	ID          uint64     `json:"id"`
	HostID      uint64     `json:"host_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Category    *string    `json:"category,omitempty"`
	Image       *string    `json:"image,omitempty"`
	EventDate   time.Time  `json:"event_date"`
	EventTime   string     `json:"event_time"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Capacity    uint32     `json:"capacity"`
	PriceCents  uint32     `json:"price_cents"`
	Status      string     `json:"status"`
	HallID      *uint64    `json:"hall_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toEventResp(ev *model.Event) eventResp {
	return eventResp{
		ID:          ev.ID,
		HostID:      ev.HostID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Category:    ev.Category,
		Image:       ev.Image,
		EventDate:   ev.EventDate,
		EventTime:   ev.EventTime,
		StartDate:   ev.StartDate,
		EndDate:     ev.EndDate,
		Capacity:    ev.Capacity,
		PriceCents:  ev.PriceCents,
		Status:      ev.Status,
		HallID:      ev.HallID,
		CreatedAt:   ev.CreatedAt,
	}
}

func toEventResps(evs []model.Event) []eventResp {
	out := make([]eventResp, 0, len(evs))
	for i := range evs {
		out = append(out, toEventResp(&evs[i]))
	}
	return out
}
