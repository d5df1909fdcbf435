package booking

import (
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/lab-booking/internal/model"
)

// DefaultHourLabels are the rows of the weekly calendar.
var DefaultHourLabels = []string{
	"07:00", "08:00", "09:00", "10:00", "11:00", "12:00",
	"13:00", "14:00", "15:00", "16:00", "17:00", "18:00",
	"19:00", "20:00", "21:00", "22:00",
}

// SlotOccupant is the booking shown in one calendar cell.  The cell at the
// booking's start hour is the origin; later cells in its range are
// continuations that reference the same booking.
type SlotOccupant struct {
	Booking      model.Booking `json:"booking"`
	Continuation bool          `json:"continuation"`
}

// CalendarSlotOccupant finds the first booking on day whose
// [startHour, endHour) range contains the hour of hourLabel ("HH:MM" or
// "HH").  Hours are read in day's location.  The bookings are not modified.
func CalendarSlotOccupant(bookings []model.Booking, day time.Time, hourLabel string) (SlotOccupant, bool) {
	hour, ok := parseHourLabel(hourLabel)
	if !ok {
		return SlotOccupant{}, false
	}
	loc := day.Location()
	for _, b := range bookings {
		if !sameDay(b.StartTime, day) {
			continue
		}
		startHour := b.StartTime.In(loc).Hour()
		end := b.EndTime.In(loc)
		endHour := end.Hour()
		if !sameDay(b.EndTime, day) && end.After(b.StartTime) {
			endHour = 24
		}
		if hour >= startHour && hour < endHour {
			return SlotOccupant{Booking: b, Continuation: hour != startHour}, true
		}
	}
	return SlotOccupant{}, false
}

func parseHourLabel(label string) (int, bool) {
	label = strings.TrimSpace(label)
	if i := strings.IndexByte(label, ':'); i >= 0 {
		label = label[:i]
	}
	h, err := strconv.Atoi(label)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// WeekDays returns the seven days (at midnight) of the Monday-first week
// containing ref, in ref's location.
func WeekDays(ref time.Time) []time.Time {
	y, m, d := ref.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, ref.Location())
	offset := (int(midnight.Weekday()) + 6) % 7
	monday := midnight.AddDate(0, 0, -offset)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = monday.AddDate(0, 0, i)
	}
	return days
}

// CalendarCell is one hour of one day.
type CalendarCell struct {
	Hour     string        `json:"hour"`
	Occupant *SlotOccupant `json:"occupant,omitempty"`
}

// CalendarDay is one column of the weekly calendar.
type CalendarDay struct {
	Date  string         `json:"date"`
	Cells []CalendarCell `json:"cells"`
}

// CalendarGrid lays the bookings out over the given days and hour labels.
func CalendarGrid(bookings []model.Booking, days []time.Time, hours []string) []CalendarDay {
	grid := make([]CalendarDay, 0, len(days))
	for _, day := range days {
		col := CalendarDay{Date: day.Format("2006-01-02"), Cells: make([]CalendarCell, 0, len(hours))}
		for _, h := range hours {
			cell := CalendarCell{Hour: h}
			if occ, ok := CalendarSlotOccupant(bookings, day, h); ok {
				occ := occ
				cell.Occupant = &occ
			}
			col.Cells = append(col.Cells, cell)
		}
		grid = append(grid, col)
	}
	return grid
}
