package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/iliyamo/lab-booking/internal/remote"
)

// ValidationError reports a local precondition violation.  It is raised
// before any remote call and is never worth retrying.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports that the remote service does not know the booking.
type NotFoundError struct {
	ID      string
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("booking %s not found", e.ID)
}

// AuthError reports a 401 or 403 from the remote service.  On 401 the auth
// provider has already been told to invalidate its session.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status == http.StatusForbidden {
		return "forbidden"
	}
	return "unauthorized"
}

// Unauthenticated reports whether the session itself was rejected (401)
// rather than the action being forbidden (403).
func (e *AuthError) Unauthenticated() bool { return e.Status == http.StatusUnauthorized }

// RemoteError covers every other failure: non-2xx answers, transport
// errors, timeouts and malformed payloads.  Message is the remote-provided
// message when there was one, otherwise a generic description of the
// operation that failed.
type RemoteError struct {
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.Err }

// Classify folds an error returned by the remote client into the booking
// error taxonomy.  Errors already in the taxonomy pass through unchanged.
// fallback is used as the message when the remote sent none.
func Classify(err error, id, fallback string) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		ne *NotFoundError
		ae *AuthError
		re *RemoteError
	)
	if errors.As(err, &ve) || errors.As(err, &ne) || errors.As(err, &ae) || errors.As(err, &re) {
		return err
	}

	var se *remote.StatusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusNotFound:
			return &NotFoundError{ID: id, Message: se.Message}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthError{Status: se.Status, Message: se.Message}
		}
		msg := se.Message
		if msg == "" {
			msg = fallback
		}
		return &RemoteError{Status: se.Status, Message: msg, Err: err}
	}

	msg := fallback
	if errors.Is(err, context.DeadlineExceeded) {
		msg = fallback + ": request timed out"
	}
	return &RemoteError{Message: msg, Err: err}
}
