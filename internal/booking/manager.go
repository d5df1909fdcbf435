// Package booking owns the booking lifecycle as seen by a client of the
// remote booking service: the full booking collection, the pending-approval
// projection, the commands that mutate them and the pure views derived from
// them for display.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/lab-booking/internal/auth"
	"github.com/iliyamo/lab-booking/internal/clock"
	"github.com/iliyamo/lab-booking/internal/model"
)

// Remote is the subset of the remote booking service used by the manager.
// *remote.Client implements it.
type Remote interface {
	ListBookings(ctx context.Context, f model.Filter) ([]model.Booking, error)
	ListPendingBookings(ctx context.Context) ([]model.Booking, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	CreateBooking(ctx context.Context, in model.NewBooking) (model.Booking, error)
	UpdateBooking(ctx context.Context, id string, p model.Patch) (model.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	ApproveBooking(ctx context.Context, id string, in model.ApproveData) (model.Booking, error)
	RejectBooking(ctx context.Context, id string, in model.RejectData) (model.Booking, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for the future-start check and the
// timestamp views.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithAuth sets the auth collaborator.  Its user id fills approver and
// rejector ids and backs Mine.
func WithAuth(p auth.Provider) Option {
	return func(m *Manager) { m.auth = p }
}

// Manager keeps the full booking collection and the pending projection in
// step with the remote service.  Each command performs exactly one remote
// call and then reconciles local state; the lock is never held across the
// network call, so overlapping commands resolve last-write-wins locally
// while the remote service decides the persisted outcome.
type Manager struct {
	remote Remote
	clock  clock.Clock
	auth   auth.Provider

	mu       sync.RWMutex
	bookings []model.Booking
	pending  []model.Booking
}

// NewManager returns an empty manager backed by r.
func NewManager(r Remote, opts ...Option) *Manager {
	m := &Manager{
		remote:   r,
		clock:    clock.NewSystem(time.UTC),
		bookings: []model.Booking{},
		pending:  []model.Booking{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bookings returns a copy of the full collection.
func (m *Manager) Bookings() []model.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneBookings(m.bookings)
}

// Pending returns a copy of the pending projection.
func (m *Manager) Pending() []model.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneBookings(m.pending)
}

// Find looks a booking up in the full collection, then the pending
// projection.
func (m *Manager) Find(id string) (model.Booking, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLocked(id)
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time { return m.clock.Now() }

// MyBookings returns the user's bookings from the full collection, newest
// first.
func (m *Manager) MyBookings(userID string) []model.Booking {
	return MyBookings(m.Bookings(), userID)
}

// Mine is MyBookings for the user of the auth provider.
func (m *Manager) Mine() []model.Booking {
	return m.MyBookings(m.currentUser())
}

// PendingInWindow applies FilterByWindow to the pending projection.
func (m *Manager) PendingInWindow(w Window) []model.Booking {
	return FilterByWindow(m.Pending(), w, m.clock.Now())
}

// Create validates the request, submits it and prepends the created booking
// to the full collection (and to the pending projection when the server
// reports it pending).
func (m *Manager) Create(ctx context.Context, in model.NewBooking) (model.Booking, error) {
	in.LabID = strings.TrimSpace(in.LabID)
	in.RequesterID = strings.TrimSpace(in.RequesterID)
	in.Purpose = strings.TrimSpace(in.Purpose)
	if err := validateNew(in, m.clock.Now()); err != nil {
		return model.Booking{}, err
	}

	created, err := m.remote.CreateBooking(ctx, in)
	if err != nil {
		return model.Booking{}, Classify(err, "", "failed to create booking")
	}
	if created.ID == "" {
		return model.Booking{}, &RemoteError{Message: "failed to create booking: response carried no booking id"}
	}
	if created.Status == "" {
		created.Status = model.StatusPending
	}

	m.mu.Lock()
	m.reconcileLocked(created)
	m.mu.Unlock()
	return created, nil
}

// Approve moves a pending booking to approved.  Approving an already
// approved booking still reaches the remote service, which detects
// conflicts; approving a booking known locally to be in a state that
// cannot become approved is refused before any remote call.
func (m *Manager) Approve(ctx context.Context, id string, data model.ApproveData) (model.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Booking{}, &ValidationError{Field: "id", Message: "booking id is required"}
	}
	if err := m.checkTransition(id, model.StatusApproved); err != nil {
		return model.Booking{}, err
	}
	if data.ApproverID == "" {
		data.ApproverID = m.currentUser()
	}

	resp, err := m.remote.ApproveBooking(ctx, id, data)
	if err != nil {
		return model.Booking{}, Classify(err, id, "failed to approve booking")
	}
	return m.applyDecision(id, resp, model.StatusApproved, ""), nil
}

// Reject moves a pending booking to rejected with a reason.  A blank reason
// is refused without contacting the remote service.
func (m *Manager) Reject(ctx context.Context, id, reason string) (model.Booking, error) {
	id = strings.TrimSpace(id)
	reason = strings.TrimSpace(reason)
	if id == "" {
		return model.Booking{}, &ValidationError{Field: "id", Message: "booking id is required"}
	}
	if reason == "" {
		return model.Booking{}, &ValidationError{Field: "reason", Message: "rejection reason is required"}
	}
	if err := m.checkTransition(id, model.StatusRejected); err != nil {
		return model.Booking{}, err
	}

	resp, err := m.remote.RejectBooking(ctx, id, model.RejectData{Reason: reason, RejectorID: m.currentUser()})
	if err != nil {
		return model.Booking{}, Classify(err, id, "failed to reject booking")
	}
	return m.applyDecision(id, resp, model.StatusRejected, reason), nil
}

// Update sends an arbitrary patch.  Afterwards the booking is in the
// pending projection if and only if its resulting status is pending.
func (m *Manager) Update(ctx context.Context, id string, p model.Patch) (model.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Booking{}, &ValidationError{Field: "id", Message: "booking id is required"}
	}
	if err := m.validatePatch(id, &p); err != nil {
		return model.Booking{}, err
	}

	resp, err := m.remote.UpdateBooking(ctx, id, p)
	if err != nil {
		return model.Booking{}, Classify(err, id, "failed to update booking")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	base, ok := m.findLocked(id)
	if !ok {
		base = model.Booking{ID: id}
	}
	updated := p.Apply(base)
	if resp.ID != "" {
		updated = overlay(updated, resp)
	}
	updated.ID = id
	if updated.Status == "" {
		updated.Status = model.StatusPending
	}
	if updated.Status != model.StatusRejected {
		updated.RejectedReason = ""
	}
	if resp.UpdatedAt.IsZero() {
		updated.UpdatedAt = m.clock.Now()
	}
	m.reconcileLocked(updated)
	return updated, nil
}

// Delete removes the booking remotely and from both local collections.  A
// booking that is already gone, locally or remotely, is not an error.
func (m *Manager) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return &ValidationError{Field: "id", Message: "booking id is required"}
	}
	if err := m.remote.DeleteBooking(ctx, id); err != nil {
		cerr := Classify(err, id, "failed to delete booking")
		var nf *NotFoundError
		if !errors.As(cerr, &nf) {
			return cerr
		}
	}

	m.mu.Lock()
	m.bookings = removeByID(m.bookings, id)
	m.pending = removeByID(m.pending, id)
	m.mu.Unlock()
	return nil
}

// List fetches the full collection and replaces the local copy entirely.
// Filters are applied by the remote service.
func (m *Manager) List(ctx context.Context, f model.Filter) ([]model.Booking, error) {
	list, err := m.remote.ListBookings(ctx, f)
	if err != nil {
		return nil, Classify(err, "", "failed to load bookings")
	}
	list = dedupe(list)

	m.mu.Lock()
	m.bookings = list
	m.mu.Unlock()
	return cloneBookings(list), nil
}

// ListPending fetches the pending projection from its dedicated endpoint
// and replaces the local copy entirely.  Records the endpoint returns in a
// non-pending state are dropped.
func (m *Manager) ListPending(ctx context.Context) ([]model.Booking, error) {
	list, err := m.remote.ListPendingBookings(ctx)
	if err != nil {
		return nil, Classify(err, "", "failed to load pending bookings")
	}
	list = dedupe(list)
	pending := list[:0]
	for _, b := range list {
		if b.Status == model.StatusPending {
			pending = append(pending, b)
		}
	}

	m.mu.Lock()
	m.pending = pending
	m.mu.Unlock()
	return cloneBookings(pending), nil
}

// Get fetches one booking and reconciles it into the local collections.
func (m *Manager) Get(ctx context.Context, id string) (model.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Booking{}, &ValidationError{Field: "id", Message: "booking id is required"}
	}
	b, err := m.remote.GetBooking(ctx, id)
	if err != nil {
		return model.Booking{}, Classify(err, id, "failed to load booking")
	}
	if b.ID == "" {
		return model.Booking{}, &NotFoundError{ID: id}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b.Status == "" {
		b.Status = model.StatusPending
		if known, ok := m.findLocked(id); ok && known.Status != "" {
			b.Status = known.Status
		}
	}
	m.reconcileLocked(b)
	return b, nil
}

func (m *Manager) currentUser() string {
	if m.auth == nil {
		return ""
	}
	return m.auth.UserID()
}

// applyDecision records an approve/reject outcome.  The response is
// overlaid on the local record when the server returned one; the target
// status and reason are then forced.
func (m *Manager) applyDecision(id string, resp model.Booking, status model.Status, reason string) model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.findLocked(id)
	if !ok {
		b = model.Booking{ID: id}
	}
	if resp.ID != "" {
		b = overlay(b, resp)
	}
	b.ID = id
	b.Status = status
	b.RejectedReason = reason
	if resp.UpdatedAt.IsZero() {
		b.UpdatedAt = m.clock.Now()
	}
	m.reconcileLocked(b)
	return b
}

// reconcileLocked upserts b into the full collection and keeps the pending
// projection equal to the pending subset.  New records go to the front.
func (m *Manager) reconcileLocked(b model.Booking) {
	m.bookings = upsertFront(m.bookings, b)
	if b.Status == model.StatusPending {
		m.pending = upsertFront(m.pending, b)
	} else {
		m.pending = removeByID(m.pending, b.ID)
	}
}

func (m *Manager) findLocked(id string) (model.Booking, bool) {
	if i := indexByID(m.bookings, id); i >= 0 {
		return m.bookings[i], true
	}
	if i := indexByID(m.pending, id); i >= 0 {
		return m.pending[i], true
	}
	return model.Booking{}, false
}

// checkTransition refuses a move the state machine forbids from the
// locally known status.  Unknown bookings and same-state moves are left to
// the remote service.
func (m *Manager) checkTransition(id string, to model.Status) error {
	m.mu.RLock()
	b, ok := m.findLocked(id)
	m.mu.RUnlock()
	if !ok || b.Status == to || b.Status.CanTransition(to) {
		return nil
	}
	return &ValidationError{
		Field:   "status",
		Message: fmt.Sprintf("booking %s is %s and cannot become %s", id, b.Status, to),
	}
}

// validatePatch checks p against the locally known record and replaces a
// status given in any case with its canonical form.
func (m *Manager) validatePatch(id string, p *model.Patch) error {
	if p.LabID != nil && strings.TrimSpace(*p.LabID) == "" {
		return &ValidationError{Field: "labId", Message: "lab is required"}
	}
	if p.RequesterID != nil && strings.TrimSpace(*p.RequesterID) == "" {
		return &ValidationError{Field: "requesterId", Message: "requester is required"}
	}
	if p.Purpose != nil && strings.TrimSpace(*p.Purpose) == "" {
		return &ValidationError{Field: "purpose", Message: "purpose must not be blank"}
	}
	if p.Status != nil {
		s, err := model.ParseStatus(string(*p.Status))
		if err != nil {
			return &ValidationError{Field: "status", Message: err.Error()}
		}
		if s == model.StatusRejected && (p.RejectedReason == nil || strings.TrimSpace(*p.RejectedReason) == "") {
			return &ValidationError{Field: "rejectedReason", Message: "rejection reason is required"}
		}
		if err := m.checkTransition(id, s); err != nil {
			return err
		}
		p.Status = &s
	}

	m.mu.RLock()
	base, _ := m.findLocked(id)
	m.mu.RUnlock()
	merged := p.Apply(base)
	if !merged.StartTime.IsZero() && !merged.EndTime.IsZero() && !merged.StartTime.Before(merged.EndTime) {
		return &ValidationError{Field: "endTime", Message: "startTime must be before endTime"}
	}
	return nil
}

func validateNew(in model.NewBooking, now time.Time) error {
	switch {
	case in.LabID == "":
		return &ValidationError{Field: "labId", Message: "lab is required"}
	case in.RequesterID == "":
		return &ValidationError{Field: "requesterId", Message: "requester is required"}
	case in.StartTime.IsZero():
		return &ValidationError{Field: "startTime", Message: "start time is required"}
	case in.EndTime.IsZero():
		return &ValidationError{Field: "endTime", Message: "end time is required"}
	case in.Purpose == "":
		return &ValidationError{Field: "purpose", Message: "purpose is required"}
	case !in.StartTime.Before(in.EndTime):
		return &ValidationError{Field: "endTime", Message: "startTime must be before endTime"}
	case !in.StartTime.After(now):
		return &ValidationError{Field: "startTime", Message: "start time must be in the future"}
	}
	return nil
}

// overlay copies every non-zero field of over onto base.
func overlay(base, over model.Booking) model.Booking {
	if over.ID != "" {
		base.ID = over.ID
	}
	if over.LabID != "" {
		base.LabID = over.LabID
	}
	if over.RequesterID != "" {
		base.RequesterID = over.RequesterID
	}
	if !over.StartTime.IsZero() {
		base.StartTime = over.StartTime
	}
	if !over.EndTime.IsZero() {
		base.EndTime = over.EndTime
	}
	if over.Purpose != "" {
		base.Purpose = over.Purpose
	}
	if over.Status != "" {
		base.Status = over.Status
	}
	if over.RejectedReason != "" {
		base.RejectedReason = over.RejectedReason
	}
	if !over.CreatedAt.IsZero() {
		base.CreatedAt = over.CreatedAt
	}
	if !over.UpdatedAt.IsZero() {
		base.UpdatedAt = over.UpdatedAt
	}
	return base
}

func indexByID(list []model.Booking, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// upsertFront replaces the record with b's id in place, or prepends b.
func upsertFront(list []model.Booking, b model.Booking) []model.Booking {
	if i := indexByID(list, b.ID); i >= 0 {
		out := cloneBookings(list)
		out[i] = b
		return out
	}
	out := make([]model.Booking, 0, len(list)+1)
	out = append(out, b)
	return append(out, list...)
}

func removeByID(list []model.Booking, id string) []model.Booking {
	out := make([]model.Booking, 0, len(list))
	for _, b := range list {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

// dedupe keeps the first record for every id so the collection never holds
// two records with the same id.
func dedupe(list []model.Booking) []model.Booking {
	seen := make(map[string]struct{}, len(list))
	out := make([]model.Booking, 0, len(list))
	for _, b := range list {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out
}

func cloneBookings(list []model.Booking) []model.Booking {
	out := make([]model.Booking, len(list))
	copy(out, list)
	return out
}
