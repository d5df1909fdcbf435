package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-booking/internal/booking"
)

// respondError translates the booking error taxonomy into an HTTP answer.
// Validation failures are 400, unknown bookings 404, auth failures keep the
// remote 401/403 and any other remote failure is a 502.
func respondError(c echo.Context, err error) error {
	var (
		ve *booking.ValidationError
		ne *booking.NotFoundError
		ae *booking.AuthError
		re *booking.RemoteError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Message, "field": ve.Field})
	case errors.As(err, &ne):
		return c.JSON(http.StatusNotFound, echo.Map{"error": ne.Error()})
	case errors.As(err, &ae):
		status := http.StatusForbidden
		if ae.Unauthenticated() {
			status = http.StatusUnauthorized
		}
		return c.JSON(status, echo.Map{"error": ae.Error()})
	case errors.As(err, &re):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": re.Message})
	}
	c.Logger().Errorf("handler: unexpected error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, field, msg string) error {
	return respondError(c, &booking.ValidationError{Field: field, Message: msg})
}
