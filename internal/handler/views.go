package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-booking/internal/booking"
	"github.com/iliyamo/lab-booking/internal/labdir"
	"github.com/iliyamo/lab-booking/internal/middleware"
	"github.com/iliyamo/lab-booking/internal/model"
)

// upcomingLimit is how many approved bookings the dashboard lists.
const upcomingLimit = 5

// Calendar handles GET /v1/calendar?week=YYYY-MM-DD&labId=.  The grid covers
// the Monday-first week containing week (default: this week).  Rejected and
// cancelled bookings do not occupy cells.
func (h *BookingHandler) Calendar(c echo.Context) error {
	m := h.manager(c)
	ref := m.Now()
	if s := strings.TrimSpace(c.QueryParam("week")); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, ref.Location())
		if err != nil {
			return badRequest(c, "week", "week must be YYYY-MM-DD")
		}
		ref = t
	}
	list, err := m.List(c.Request().Context(), model.Filter{LabID: strings.TrimSpace(c.QueryParam("labId"))})
	if err != nil {
		return respondError(c, err)
	}
	occupying := list[:0]
	for _, b := range list {
		if b.Status != model.StatusRejected && b.Status != model.StatusCancelled {
			occupying = append(occupying, b)
		}
	}
	days := booking.WeekDays(ref)
	return c.JSON(http.StatusOK, echo.Map{
		"weekStart": days[0].Format("2006-01-02"),
		"hours":     booking.DefaultHourLabels,
		"days":      booking.CalendarGrid(occupying, days, booking.DefaultHourLabels),
	})
}

// Dashboard handles GET /v1/dashboard: the caller's booking counts and next
// approved bookings, plus the approval counters for approvers.
func (h *BookingHandler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	uid := middleware.UserID(c)
	m := h.manager(c)
	mine, err := m.List(ctx, model.Filter{UserID: uid})
	if err != nil {
		return respondError(c, err)
	}
	mine = booking.MyBookings(mine, uid)
	now := m.Now()

	counts := map[model.Status]int{}
	for _, b := range mine {
		counts[b.Status]++
	}
	out := echo.Map{
		"total":    len(mine),
		"byStatus": counts,
		"upcoming": labdir.Join(ctx, h.Labs, booking.UpcomingApproved(mine, now, upcomingLimit)),
	}
	if h.isApprover(c) {
		pending, err := m.ListPending(ctx)
		if err != nil {
			return respondError(c, err)
		}
		out["approvals"] = booking.Stats(pending, now)
	}
	return c.JSON(http.StatusOK, out)
}

// Lab handles GET /v1/labs/:id.
func (h *BookingHandler) Lab(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	lab, err := h.Labs.Lab(c.Request().Context(), id)
	if err != nil {
		var ne *booking.NotFoundError
		if err = booking.Classify(err, id, "failed to load lab"); errors.Is(err, labdir.ErrUnknownLab) || errors.As(err, &ne) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lab not found"})
		}
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, lab)
}

// Slots lists the fixed periods a booking can be made for by slotId.
func (h *BookingHandler) Slots(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"items": booking.DefaultSlots})
}
