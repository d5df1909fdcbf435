package booking

import (
	"fmt"
	"strings"
	"time"
)

// Slot is one of the fixed teaching periods labs are booked by.  Start and
// End are HH:MM wall-clock times.
type Slot struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// DefaultSlots are the daily periods offered on the booking form.
var DefaultSlots = []Slot{
	{ID: "slot1", Label: "Slot 1: 07:00 - 09:15", Start: "07:00", End: "09:15"},
	{ID: "slot2", Label: "Slot 2: 09:30 - 11:45", Start: "09:30", End: "11:45"},
	{ID: "slot3", Label: "Slot 3: 12:30 - 14:45", Start: "12:30", End: "14:45"},
	{ID: "slot4", Label: "Slot 4: 15:00 - 17:15", Start: "15:00", End: "17:15"},
}

// FindSlot looks a slot up by id, ignoring case and surrounding space.
func FindSlot(id string) (Slot, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, s := range DefaultSlots {
		if s.ID == id {
			return s, true
		}
	}
	return Slot{}, false
}

// On returns the slot's interval on date (YYYY-MM-DD) in loc.
func (s Slot) On(date string, loc *time.Location) (time.Time, time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, time.Time{}, &ValidationError{Field: "bookingDate", Message: "booking date is required"}
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "bookingDate", Message: fmt.Sprintf("invalid date %q", date)}
	}
	start, err := atClock(day, s.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := atClock(day, s.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func atClock(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("slot time %q: %w", hhmm, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
