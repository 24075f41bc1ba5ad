package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
)

// errorResponse is the canonical error envelope. Code carries a stable
// machine-readable identifier; it is omitted for plain validation and
// routing errors.
type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"error,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their status codes and stable error codes.
//   - Logs unexpected errors with request context.
//   - Renders a consistent JSON envelope: {"message": ..., "error": <code>}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Message: fmt.Sprintf("%v", he.Message)}
	}

	// Known domain errors → deterministic statuses and codes.
	switch {
	case errors.Is(err, domain.ErrEmailExists):
		return http.StatusConflict, errorResponse{Message: "User with this email already exists", Code: "EMAIL_EXISTS"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Message: "Invalid email or password", Code: "INVALID_CREDENTIALS"}
	case errors.Is(err, domain.ErrAccountInactive):
		return http.StatusUnauthorized, errorResponse{Message: "Account is inactive. Please contact support.", Code: "ACCOUNT_INACTIVE"}
	case errors.Is(err, domain.ErrInvalidPassword):
		return http.StatusUnauthorized, errorResponse{Message: "Current password is incorrect", Code: "INVALID_PASSWORD"}
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, errorResponse{Message: "Token expired.", Code: "TOKEN_EXPIRED"}
	case errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusUnauthorized, errorResponse{Message: "Invalid token.", Code: "INVALID_TOKEN"}
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, errorResponse{Message: "User not found"}
	case errors.Is(err, domain.ErrTimesheetNotFound):
		return http.StatusNotFound, errorResponse{Message: "Timesheet not found"}
	case errors.Is(err, domain.ErrInvalidDateRange):
		return http.StatusBadRequest, errorResponse{Message: "startDate must be before endDate"}
	}

	// Unexpected error: log with request context. The message passes
	// through to the client, matching the services' historical contract.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Message: err.Error()}
}
