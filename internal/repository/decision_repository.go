package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/lab-booking/internal/model"
)

// DecisionRepo reads and writes the booking_decisions table.  Timestamps are
// stored in UTC.
type DecisionRepo struct {
	db *sql.DB
}

func NewDecisionRepo(db *sql.DB) *DecisionRepo { return &DecisionRepo{db: db} }

// Insert stores d and fills its ID.  A second row for the same event id
// returns ErrConflict.
func (r *DecisionRepo) Insert(ctx context.Context, d *model.Decision) error {
	const q = `INSERT INTO booking_decisions
		(event_id, booking_id, lab_id, requester_id, decision, reason, decided_by, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		d.EventID, d.BookingID, d.LabID, d.RequesterID, string(d.Decision),
		nullable(d.Reason), d.DecidedBy, d.DecidedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	return nil
}

// RecordDecision inserts d, treating a replayed event as already recorded.
func (r *DecisionRepo) RecordDecision(ctx context.Context, d model.Decision) error {
	if err := r.Insert(ctx, &d); err != nil && !errors.Is(err, ErrConflict) {
		return err
	}
	return nil
}

// ListByBooking returns the decisions taken on a booking, oldest first.
func (r *DecisionRepo) ListByBooking(ctx context.Context, bookingID string) ([]model.Decision, error) {
	const q = `SELECT id, event_id, booking_id, lab_id, requester_id, decision, reason, decided_by, decided_at
		FROM booking_decisions WHERE booking_id = ? ORDER BY decided_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Decision{}
	for rows.Next() {
		var (
			d        model.Decision
			decision string
			reason   sql.NullString
			at       time.Time
		)
		if err := rows.Scan(&d.ID, &d.EventID, &d.BookingID, &d.LabID, &d.RequesterID,
			&decision, &reason, &d.DecidedBy, &at); err != nil {
			return nil, err
		}
		d.Decision = model.Status(decision)
		d.Reason = reason.String
		d.DecidedAt = at.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetByEvent fetches the decision written for an event.
func (r *DecisionRepo) GetByEvent(ctx context.Context, eventID string) (model.Decision, error) {
	const q = `SELECT id, event_id, booking_id, lab_id, requester_id, decision, reason, decided_by, decided_at
		FROM booking_decisions WHERE event_id = ? LIMIT 1`
	var (
		d        model.Decision
		decision string
		reason   sql.NullString
		at       time.Time
	)
	err := r.db.QueryRowContext(ctx, q, eventID).Scan(&d.ID, &d.EventID, &d.BookingID, &d.LabID,
		&d.RequesterID, &decision, &reason, &d.DecidedBy, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Decision{}, ErrNotFound
	}
	if err != nil {
		return model.Decision{}, err
	}
	d.Decision = model.Status(decision)
	d.Reason = reason.String
	d.DecidedAt = at.UTC()
	return d, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
