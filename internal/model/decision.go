package model

import "time"

// Decision records one approval or rejection taken through the service.
// Rows live in the booking_decisions table and are written by the auditor
// from queued decision events.
type Decision struct {
	ID          uint64    `json:"id"`
	EventID     string    `json:"eventId"` // unique per row
	BookingID   string    `json:"bookingId"`
	LabID       string    `json:"labId"`
	RequesterID string    `json:"requesterId"`
	Decision    Status    `json:"decision"` // approved or rejected
	Reason      string    `json:"reason,omitempty"`
	DecidedBy   string    `json:"decidedBy"`
	DecidedAt   time.Time `json:"decidedAt"`
}
