package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/iliyamo/lab-booking/internal/model"
)

// ListBookings performs GET /bookings with the non-empty filter fields as
// query parameters.
func (c *Client) ListBookings(ctx context.Context, f model.Filter) ([]model.Booking, error) {
	q := url.Values{}
	if f.UserID != "" {
		q.Set("userId", f.UserID)
	}
	if f.LabID != "" {
		q.Set("labId", f.LabID)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Date != "" {
		q.Set("date", f.Date)
	}
	data, err := c.do(ctx, http.MethodGet, "/bookings", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeBookings(data, c.loc)
}

// ListPendingBookings performs GET /bookings/pending.
func (c *Client) ListPendingBookings(ctx context.Context) ([]model.Booking, error) {
	data, err := c.do(ctx, http.MethodGet, "/bookings/pending", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeBookings(data, c.loc)
}

// GetBooking performs GET /bookings/{id}.
func (c *Client) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	data, err := c.do(ctx, http.MethodGet, "/bookings/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return model.Booking{}, err
	}
	return decodeBooking(data, c.loc)
}

// CreateBooking performs POST /bookings.
func (c *Client) CreateBooking(ctx context.Context, in model.NewBooking) (model.Booking, error) {
	data, err := c.do(ctx, http.MethodPost, "/bookings", nil, in)
	if err != nil {
		return model.Booking{}, err
	}
	return decodeBooking(data, c.loc)
}

// UpdateBooking performs PUT /bookings/{id} with the patch as body.
func (c *Client) UpdateBooking(ctx context.Context, id string, p model.Patch) (model.Booking, error) {
	data, err := c.do(ctx, http.MethodPut, "/bookings/"+url.PathEscape(id), nil, p)
	if err != nil {
		return model.Booking{}, err
	}
	return decodeBooking(data, c.loc)
}

// DeleteBooking performs DELETE /bookings/{id}.
func (c *Client) DeleteBooking(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/bookings/"+url.PathEscape(id), nil, nil)
	return err
}

// ApproveBooking performs PATCH /bookings/{id}/approve.
func (c *Client) ApproveBooking(ctx context.Context, id string, in model.ApproveData) (model.Booking, error) {
	data, err := c.do(ctx, http.MethodPatch, "/bookings/"+url.PathEscape(id)+"/approve", nil, in)
	if err != nil {
		return model.Booking{}, err
	}
	return decodeBooking(data, c.loc)
}

// RejectBooking performs PATCH /bookings/{id}/reject.
func (c *Client) RejectBooking(ctx context.Context, id string, in model.RejectData) (model.Booking, error) {
	data, err := c.do(ctx, http.MethodPatch, "/bookings/"+url.PathEscape(id)+"/reject", nil, in)
	if err != nil {
		return model.Booking{}, err
	}
	return decodeBooking(data, c.loc)
}
