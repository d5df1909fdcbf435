package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-booking/internal/booking"
	"github.com/iliyamo/lab-booking/internal/labdir"
	"github.com/iliyamo/lab-booking/internal/middleware"
	"github.com/iliyamo/lab-booking/internal/model"
	"github.com/iliyamo/lab-booking/internal/queue"
)

// Managers hands out the booking manager of the calling user.
// *session.Registry implements it.
type Managers interface {
	For(userID, role, token string) *booking.Manager
}

// DecisionPublisher announces approvals and rejections.
type DecisionPublisher interface {
	PublishDecided(ctx context.Context, ev queue.BookingDecidedEvent) error
}

// DecisionStore reads the decision audit trail.
type DecisionStore interface {
	ListByBooking(ctx context.Context, bookingID string) ([]model.Decision, error)
}

// BookingHandler serves the booking pages of the front-end.  Publisher and
// Decisions are optional.
type BookingHandler struct {
	Managers      Managers
	Labs          labdir.Directory
	Publisher     DecisionPublisher
	Decisions     DecisionStore
	ApproverRoles []string

	// PublishTimeout bounds the publish that follows a decision.
	PublishTimeout time.Duration
}

// NewBookingHandler panics if the managers or lab directory are missing.
func NewBookingHandler(managers Managers, labs labdir.Directory) *BookingHandler {
	if managers == nil || labs == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Managers: managers, Labs: labs, PublishTimeout: 5 * time.Second}
}

func (h *BookingHandler) manager(c echo.Context) *booking.Manager {
	return h.Managers.For(middleware.UserID(c), middleware.Role(c), middleware.Token(c))
}

func (h *BookingHandler) isApprover(c echo.Context) bool {
	role := middleware.Role(c)
	for _, r := range h.ApproverRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (h *BookingHandler) rows(c echo.Context, list []model.Booking) echo.Map {
	rows := labdir.Join(c.Request().Context(), h.Labs, list)
	return echo.Map{"items": rows, "count": len(rows)}
}

// List handles GET /v1/bookings.  Query parameters userId, labId, status
// and date (YYYY-MM-DD) are passed to the booking service.
func (h *BookingHandler) List(c echo.Context) error {
	f := model.Filter{
		UserID: strings.TrimSpace(c.QueryParam("userId")),
		LabID:  strings.TrimSpace(c.QueryParam("labId")),
		Date:   strings.TrimSpace(c.QueryParam("date")),
	}
	if s := c.QueryParam("status"); s != "" {
		st, err := model.ParseStatus(s)
		if err != nil {
			return badRequest(c, "status", err.Error())
		}
		f.Status = st
	}
	if f.Date != "" {
		if _, err := time.Parse("2006-01-02", f.Date); err != nil {
			return badRequest(c, "date", "date must be YYYY-MM-DD")
		}
	}
	list, err := h.manager(c).List(c.Request().Context(), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.rows(c, list))
}

// Mine handles GET /v1/bookings/mine: the caller's bookings, newest first.
func (h *BookingHandler) Mine(c echo.Context) error {
	uid := middleware.UserID(c)
	m := h.manager(c)
	list, err := m.List(c.Request().Context(), model.Filter{UserID: uid})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.rows(c, booking.MyBookings(list, uid)))
}

type pendingRow struct {
	labdir.Row
	Urgent bool `json:"urgent"`
}

// Pending handles GET /v1/bookings/pending?window=all|today|this_week, the
// approval queue with its counters.
func (h *BookingHandler) Pending(c echo.Context) error {
	w, err := booking.ParseWindow(c.QueryParam("window"))
	if err != nil {
		return respondError(c, err)
	}
	m := h.manager(c)
	all, err := m.ListPending(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	now := m.Now()
	joined := labdir.Join(c.Request().Context(), h.Labs, booking.FilterByWindow(all, w, now))
	items := make([]pendingRow, 0, len(joined))
	for _, r := range joined {
		items = append(items, pendingRow{Row: r, Urgent: booking.IsUrgent(r.Booking, now)})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"window": w,
		"stats":  booking.Stats(all, now),
		"items":  items,
		"count":  len(items),
	})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.manager(c).Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	rows := labdir.Join(c.Request().Context(), h.Labs, []model.Booking{b})
	return c.JSON(http.StatusOK, rows[0])
}

// Create handles POST /v1/bookings.  The requester is always the caller.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "", "invalid JSON body")
	}
	m := h.manager(c)
	in, err := req.toNewBooking(middleware.UserID(c), m.Now().Location())
	if err != nil {
		return respondError(c, err)
	}
	b, err := m.Create(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Update handles PUT /v1/bookings/:id with a partial body.
func (h *BookingHandler) Update(c echo.Context) error {
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "", "invalid JSON body")
	}
	m := h.manager(c)
	p, err := req.toPatch(m.Now().Location())
	if err != nil {
		return respondError(c, err)
	}
	b, err := m.Update(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Delete handles DELETE /v1/bookings/:id.  Deleting twice is not an error.
func (h *BookingHandler) Delete(c echo.Context) error {
	if err := h.manager(c).Delete(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Approve handles PATCH /v1/bookings/:id/approve.
func (h *BookingHandler) Approve(c echo.Context) error {
	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "", "invalid JSON body")
	}
	m := h.manager(c)
	b, err := m.Approve(c.Request().Context(), c.Param("id"), model.ApproveData{Notes: strings.TrimSpace(req.Notes)})
	if err != nil {
		return respondError(c, err)
	}
	h.publish(b, middleware.UserID(c), m.Now())
	return c.JSON(http.StatusOK, b)
}

// Reject handles PATCH /v1/bookings/:id/reject.  The body must carry a
// non-blank reason.
func (h *BookingHandler) Reject(c echo.Context) error {
	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "", "invalid JSON body")
	}
	m := h.manager(c)
	b, err := m.Reject(c.Request().Context(), c.Param("id"), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	h.publish(b, middleware.UserID(c), m.Now())
	return c.JSON(http.StatusOK, b)
}

// ListDecisions handles GET /v1/bookings/:id/decisions from the audit store.
func (h *BookingHandler) ListDecisions(c echo.Context) error {
	if h.Decisions == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "decision audit is not configured"})
	}
	id := strings.TrimSpace(c.Param("id"))
	list, err := h.Decisions.ListByBooking(c.Request().Context(), id)
	if err != nil {
		c.Logger().Errorf("handler: list decisions %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load decisions"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list, "count": len(list)})
}

// publish announces a decision.  A broker failure never fails the request;
// the decision is already persisted by the booking service.
func (h *BookingHandler) publish(b model.Booking, decidedBy string, at time.Time) {
	if h.Publisher == nil {
		return
	}
	timeout := h.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := h.Publisher.PublishDecided(ctx, queue.NewDecidedEvent(b, decidedBy, at)); err != nil {
		log.Printf("booking-events: publish %s for %s failed: %v", b.Status, b.ID, err)
	}
}
