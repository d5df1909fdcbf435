package handler

import (
	"strings"
	"time"

	"github.com/iliyamo/lab-booking/internal/booking"
	"github.com/iliyamo/lab-booking/internal/model"
)

// inputLayouts are accepted for times typed into forms.  Layouts without an
// offset are read in the server's zone.
var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseInputTime(field, s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &booking.ValidationError{Field: field, Message: "invalid time " + s}
}

type createRequest struct {
	LabID       string `json:"labId"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Purpose     string `json:"purpose"`
	SlotID      string `json:"slotId"`
	BookingDate string `json:"bookingDate"`
}

// toNewBooking resolves the interval.  Explicit times win; without them a
// slotId on bookingDate sets both ends.
func (r createRequest) toNewBooking(requester string, loc *time.Location) (model.NewBooking, error) {
	in := model.NewBooking{
		LabID:       r.LabID,
		RequesterID: requester,
		Purpose:     r.Purpose,
		SlotID:      strings.TrimSpace(r.SlotID),
	}
	if strings.TrimSpace(r.StartTime) == "" && strings.TrimSpace(r.EndTime) == "" && in.SlotID != "" {
		slot, ok := booking.FindSlot(in.SlotID)
		if !ok {
			return model.NewBooking{}, &booking.ValidationError{Field: "slotId", Message: "unknown slot " + in.SlotID}
		}
		start, end, err := slot.On(r.BookingDate, loc)
		if err != nil {
			return model.NewBooking{}, err
		}
		in.SlotID, in.StartTime, in.EndTime = slot.ID, start, end
		return in, nil
	}

	var err error
	if in.StartTime, err = parseInputTime("startTime", r.StartTime, loc); err != nil {
		return model.NewBooking{}, err
	}
	if in.EndTime, err = parseInputTime("endTime", r.EndTime, loc); err != nil {
		return model.NewBooking{}, err
	}
	return in, nil
}

type updateRequest struct {
	LabID          *string `json:"labId"`
	StartTime      *string `json:"startTime"`
	EndTime        *string `json:"endTime"`
	Purpose        *string `json:"purpose"`
	Status         *string `json:"status"`
	RejectedReason *string `json:"rejectedReason"`
}

func (r updateRequest) toPatch(loc *time.Location) (model.Patch, error) {
	p := model.Patch{LabID: r.LabID, Purpose: r.Purpose, RejectedReason: r.RejectedReason}
	if r.StartTime != nil {
		t, err := parseInputTime("startTime", *r.StartTime, loc)
		if err != nil {
			return model.Patch{}, err
		}
		p.StartTime = &t
	}
	if r.EndTime != nil {
		t, err := parseInputTime("endTime", *r.EndTime, loc)
		if err != nil {
			return model.Patch{}, err
		}
		p.EndTime = &t
	}
	if r.Status != nil {
		st, err := model.ParseStatus(*r.Status)
		if err != nil {
			return model.Patch{}, &booking.ValidationError{Field: "status", Message: err.Error()}
		}
		p.Status = &st
	}
	return p, nil
}

type approveRequest struct {
	Notes string `json:"notes"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}
