package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a booking.  Values match the strings
// exchanged with the remote booking service.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions lists, for each non-terminal state, the states it may move to.
// Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCompleted, StatusCancelled},
}

// ParseStatus converts a raw status string into a Status.  Matching is
// case-insensitive and tolerates the British/American spelling of
// "cancelled".
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "approved":
		return StatusApproved, nil
	case "rejected":
		return StatusRejected, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown booking status %q", s)
}

// IsTerminal reports whether no transition may leave the status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving from s to
// next.  Staying in the same state is not a transition and returns false.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Booking is one request to use a lab for an interval.  Every payload
// variant returned by the remote service is normalized into it at the
// client boundary.
type Booking struct {
	ID             string    `json:"id"` // assigned by the remote service
	LabID          string    `json:"labId"`
	RequesterID    string    `json:"requesterId"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"` // after StartTime
	Purpose        string    `json:"purpose"`
	Status         Status    `json:"status"`
	RejectedReason string    `json:"rejectedReason,omitempty"` // only when rejected
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewBooking carries the fields a requester supplies when creating a booking.
type NewBooking struct {
	LabID       string    `json:"labId"`
	RequesterID string    `json:"requesterId"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Purpose     string    `json:"purpose"`
	SlotID      string    `json:"slotId,omitempty"`
}

// Patch is a partial update.  Nil fields are left untouched.
type Patch struct {
	LabID          *string    `json:"labId,omitempty"`
	RequesterID    *string    `json:"requesterId,omitempty"`
	StartTime      *time.Time `json:"startTime,omitempty"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	Purpose        *string    `json:"purpose,omitempty"`
	Status         *Status    `json:"status,omitempty"`
	RejectedReason *string    `json:"rejectedReason,omitempty"`
}

// Apply returns a copy of b with the non-nil patch fields applied.
func (p Patch) Apply(b Booking) Booking {
	if p.LabID != nil {
		b.LabID = *p.LabID
	}
	if p.RequesterID != nil {
		b.RequesterID = *p.RequesterID
	}
	if p.StartTime != nil {
		b.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		b.EndTime = *p.EndTime
	}
	if p.Purpose != nil {
		b.Purpose = *p.Purpose
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.RejectedReason != nil {
		b.RejectedReason = *p.RejectedReason
	}
	return b
}

// Filter narrows a booking listing.  Filtering is performed by the remote
// service; empty fields are omitted from the query string.
type Filter struct {
	UserID string
	LabID  string
	Status Status
	Date   string // YYYY-MM-DD
}

// ApproveData is the optional body of an approve call.
type ApproveData struct {
	ApproverID string `json:"approverId,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// RejectData is the body of a reject call.
type RejectData struct {
	Reason     string `json:"reason"`
	RejectorID string `json:"rejectorId,omitempty"`
}
