// Package queue carries booking decisions over RabbitMQ from the API server
// to the auditor.
package queue

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/lab-booking/internal/model"
)

// BookingDecidedEvent is published after a booking is approved or rejected.
// It carries enough of the booking for the auditor to write a row without
// calling the booking service.
type BookingDecidedEvent struct {
	EventID     string `json:"event_id"`
	BookingID   string `json:"booking_id"`
	LabID       string `json:"lab_id"`
	RequesterID string `json:"requester_id"`
	Decision    string `json:"decision"`
	Reason      string `json:"reason,omitempty"`
	DecidedBy   string `json:"decided_by"`
	DecidedAt   string `json:"decided_at"` // RFC3339, UTC
}

// NewDecidedEvent builds the event for a booking that has just been decided.
func NewDecidedEvent(b model.Booking, decidedBy string, at time.Time) BookingDecidedEvent {
	return BookingDecidedEvent{
		EventID:     uuid.NewString(),
		BookingID:   b.ID,
		LabID:       b.LabID,
		RequesterID: b.RequesterID,
		Decision:    string(b.Status),
		Reason:      b.RejectedReason,
		DecidedBy:   decidedBy,
		DecidedAt:   at.UTC().Format(time.RFC3339),
	}
}

// ToDecision converts the event into an audit row.
func (ev BookingDecidedEvent) ToDecision() (model.Decision, error) {
	if strings.TrimSpace(ev.EventID) == "" || strings.TrimSpace(ev.BookingID) == "" {
		return model.Decision{}, errors.New("event_id and booking_id are required")
	}
	st, err := model.ParseStatus(ev.Decision)
	if err != nil || (st != model.StatusApproved && st != model.StatusRejected) {
		return model.Decision{}, errors.New("decision must be approved or rejected")
	}
	at, err := time.Parse(time.RFC3339, ev.DecidedAt)
	if err != nil {
		return model.Decision{}, errors.New("decided_at must be RFC3339")
	}
	return model.Decision{
		EventID:     ev.EventID,
		BookingID:   ev.BookingID,
		LabID:       ev.LabID,
		RequesterID: ev.RequesterID,
		Decision:    st,
		Reason:      ev.Reason,
		DecidedBy:   ev.DecidedBy,
		DecidedAt:   at.UTC(),
	}, nil
}
