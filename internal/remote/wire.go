package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/lab-booking/internal/model"
)

// Different versions of the remote API disagree on field names (camelCase
// vs snake_case, bookingId vs id, nested requester objects) and on whether
// ids are strings or numbers.  Everything below folds those variants into
// the canonical model types so that no code past this package branches on
// payload shape.

// flexString decodes a JSON string, number or null into a string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// ref is a foreign key that may arrive as a bare id or as an embedded
// object carrying an id.
type ref struct {
	ID flexString
}

func (r *ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			ID flexString `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		r.ID = obj.ID
		return nil
	}
	return r.ID.UnmarshalJSON(b)
}

type wireBooking struct {
	ID             flexString `json:"id"`
	BookingID      flexString `json:"bookingId"`
	BookingIDSnake flexString `json:"booking_id"`

	LabID      flexString `json:"labId"`
	LabIDSnake flexString `json:"lab_id"`
	Lab        *ref       `json:"lab"`

	RequesterID      flexString `json:"requesterId"`
	RequesterIDSnake flexString `json:"requester_id"`
	UserID           flexString `json:"userId"`
	UserIDSnake      flexString `json:"user_id"`
	Requester        *ref       `json:"requester"`
	User             *ref       `json:"user"`

	StartTime      flexString `json:"startTime"`
	StartTimeSnake flexString `json:"start_time"`
	EndTime        flexString `json:"endTime"`
	EndTimeSnake   flexString `json:"end_time"`
	CreatedAt      flexString `json:"createdAt"`
	CreatedAtSnake flexString `json:"created_at"`
	UpdatedAt      flexString `json:"updatedAt"`
	UpdatedAtSnake flexString `json:"updated_at"`

	Purpose string     `json:"purpose"`
	Status  flexString `json:"status"`

	RejectedReason      string `json:"rejectedReason"`
	RejectedReasonSnake string `json:"rejected_reason"`
	RejectionReason     string `json:"rejectionReason"`
	Reason              string `json:"reason"`
}

func first(vals ...flexString) string {
	for _, v := range vals {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

func refID(r *ref) flexString {
	if r == nil {
		return ""
	}
	return r.ID
}

func firstText(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// timeLayouts are tried in order for timestamps that are not RFC 3339.
// They carry no zone and are read in the client's location.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTime accepts RFC 3339, the zone-less layouts above and epoch
// milliseconds.  An empty string yields the zero time.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (w wireBooking) normalize(loc *time.Location) (model.Booking, error) {
	b := model.Booking{
		ID:          first(w.ID, w.BookingID, w.BookingIDSnake),
		LabID:       first(w.LabID, w.LabIDSnake, refID(w.Lab)),
		RequesterID: first(w.RequesterID, w.RequesterIDSnake, w.UserID, w.UserIDSnake, refID(w.Requester), refID(w.User)),
		Purpose:     w.Purpose,
	}

	var err error
	if b.StartTime, err = parseTime(first(w.StartTime, w.StartTimeSnake), loc); err != nil {
		return model.Booking{}, fmt.Errorf("booking %s startTime: %w", b.ID, err)
	}
	if b.EndTime, err = parseTime(first(w.EndTime, w.EndTimeSnake), loc); err != nil {
		return model.Booking{}, fmt.Errorf("booking %s endTime: %w", b.ID, err)
	}
	if b.CreatedAt, err = parseTime(first(w.CreatedAt, w.CreatedAtSnake), loc); err != nil {
		return model.Booking{}, fmt.Errorf("booking %s createdAt: %w", b.ID, err)
	}
	if b.UpdatedAt, err = parseTime(first(w.UpdatedAt, w.UpdatedAtSnake), loc); err != nil {
		return model.Booking{}, fmt.Errorf("booking %s updatedAt: %w", b.ID, err)
	}

	// Unknown values are kept verbatim (lower-cased).  A missing status stays
	// empty: a sparse update or get response must not reset the record.
	if raw := strings.TrimSpace(string(w.Status)); raw != "" {
		if s, perr := model.ParseStatus(raw); perr == nil {
			b.Status = s
		} else {
			b.Status = model.Status(strings.ToLower(raw))
		}
	}

	if b.Status == model.StatusRejected {
		b.RejectedReason = firstText(w.RejectedReason, w.RejectedReasonSnake, w.RejectionReason, w.Reason)
	}
	return b, nil
}

// unwrap returns the payload nested under one of the envelope keys the
// service is known to use, or the input unchanged.
func unwrap(data []byte, keys ...string) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return trimmed
	}
	for _, k := range keys {
		if inner, ok := env[k]; ok {
			inner = bytes.TrimSpace(inner)
			if len(inner) > 0 && (inner[0] == '{' || inner[0] == '[') {
				return inner
			}
		}
	}
	return trimmed
}

// decodeBooking decodes a single booking.  An empty body yields a zero
// Booking and no error; callers treat an empty ID as "no record returned".
func decodeBooking(data []byte, loc *time.Location) (model.Booking, error) {
	payload := unwrap(data, "data", "booking")
	if len(payload) == 0 {
		return model.Booking{}, nil
	}
	var w wireBooking
	if err := json.Unmarshal(payload, &w); err != nil {
		return model.Booking{}, fmt.Errorf("decode booking: %w", err)
	}
	return w.normalize(loc)
}

// decodeBookings decodes a booking collection sent either as a bare array
// or wrapped in a data/items/bookings envelope.  Listed records without a
// status are pending.
func decodeBookings(data []byte, loc *time.Location) ([]model.Booking, error) {
	payload := unwrap(data, "data", "items", "bookings", "content")
	if len(payload) == 0 {
		return []model.Booking{}, nil
	}
	var ws []wireBooking
	if err := json.Unmarshal(payload, &ws); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	out := make([]model.Booking, 0, len(ws))
	for _, w := range ws {
		b, err := w.normalize(loc)
		if err != nil {
			return nil, err
		}
		if b.Status == "" {
			b.Status = model.StatusPending
		}
		out = append(out, b)
	}
	return out, nil
}

type wireLab struct {
	ID               flexString `json:"id"`
	LabID            flexString `json:"labId"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Location         string     `json:"location"`
	Capacity         int        `json:"capacity"`
	IsAvailable      *bool      `json:"isAvailable"`
	IsAvailableSnake *bool      `json:"is_available"`
	OperatingHours   *struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"operatingHours"`
}

func (w wireLab) normalize() model.Lab {
	lab := model.Lab{
		ID:          first(w.ID, w.LabID),
		Name:        w.Name,
		Description: w.Description,
		Location:    w.Location,
		Capacity:    w.Capacity,
		IsAvailable: true,
	}
	if w.IsAvailable != nil {
		lab.IsAvailable = *w.IsAvailable
	} else if w.IsAvailableSnake != nil {
		lab.IsAvailable = *w.IsAvailableSnake
	}
	if w.OperatingHours != nil {
		lab.OperatingHours = model.OperatingHours{Start: w.OperatingHours.Start, End: w.OperatingHours.End}
	}
	return lab
}

func decodeLab(data []byte) (model.Lab, error) {
	var w wireLab
	if err := json.Unmarshal(unwrap(data, "data", "lab"), &w); err != nil {
		return model.Lab{}, fmt.Errorf("decode lab: %w", err)
	}
	return w.normalize(), nil
}

func decodeLabs(data []byte) ([]model.Lab, error) {
	payload := unwrap(data, "data", "items", "labs")
	if len(payload) == 0 {
		return []model.Lab{}, nil
	}
	var ws []wireLab
	if err := json.Unmarshal(payload, &ws); err != nil {
		return nil, fmt.Errorf("decode labs: %w", err)
	}
	out := make([]model.Lab, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.normalize())
	}
	return out, nil
}
