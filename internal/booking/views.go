package booking

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/lab-booking/internal/model"
)

// urgentWithin is how close to its start a booking counts as urgent.
const urgentWithin = 24 * time.Hour

// Window selects a time range over the approval queue.
type Window string

const (
	WindowAll      Window = "all"
	WindowToday    Window = "today"
	WindowThisWeek Window = "this_week"
)

// ParseWindow validates a window name.  The empty string means all.
func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case "", WindowAll:
		return WindowAll, nil
	case WindowToday, WindowThisWeek:
		return w, nil
	}
	return "", &ValidationError{Field: "window", Message: fmt.Sprintf("unknown window %q", s)}
}

// MyBookings returns the bookings requested by userID, newest first by
// creation time.  Bookings created at the same instant keep their input
// order.
func MyBookings(bookings []model.Booking, userID string) []model.Booking {
	out := []model.Booking{}
	if userID == "" {
		return out
	}
	for _, b := range bookings {
		if b.RequesterID == userID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// FilterByWindow keeps the bookings that start inside the window and sorts
// them by start time ascending.  today compares calendar dates in now's
// location; this_week keeps starts in [now, now+7d].  Unknown windows
// behave like all.
func FilterByWindow(bookings []model.Booking, w Window, now time.Time) []model.Booking {
	out := make([]model.Booking, 0, len(bookings))
	weekEnd := now.Add(7 * 24 * time.Hour)
	for _, b := range bookings {
		switch w {
		case WindowToday:
			if !sameDay(b.StartTime, now) {
				continue
			}
		case WindowThisWeek:
			if b.StartTime.Before(now) || b.StartTime.After(weekEnd) {
				continue
			}
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// IsUrgent reports whether a non-terminal booking starts less than 24 hours
// from now.  Bookings whose start has already passed are urgent too.
func IsUrgent(b model.Booking, now time.Time) bool {
	return b.StartTime.Sub(now) < urgentWithin && !b.Status.IsTerminal()
}

// ApprovalStats are the counters shown above the approval queue.
type ApprovalStats struct {
	Pending int `json:"pending"`
	Urgent  int `json:"urgent"`
	Today   int `json:"today"`
}

// Stats counts the pending bookings, the urgent ones and those starting
// today.
func Stats(pending []model.Booking, now time.Time) ApprovalStats {
	s := ApprovalStats{Pending: len(pending)}
	for _, b := range pending {
		if IsUrgent(b, now) {
			s.Urgent++
		}
		if sameDay(b.StartTime, now) {
			s.Today++
		}
	}
	return s
}

// UpcomingApproved returns approved bookings starting after now, soonest
// first, at most limit of them (limit <= 0 means no limit).
func UpcomingApproved(bookings []model.Booking, now time.Time, limit int) []model.Booking {
	out := []model.Booking{}
	for _, b := range bookings {
		if b.Status == model.StatusApproved && b.StartTime.After(now) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// sameDay compares calendar dates, reading t in ref's location.
func sameDay(t, ref time.Time) bool {
	if t.IsZero() {
		return false
	}
	ty, tm, td := t.In(ref.Location()).Date()
	ry, rm, rd := ref.Date()
	return ty == ry && tm == rm && td == rd
}
