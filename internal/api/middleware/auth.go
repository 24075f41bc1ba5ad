package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
	"github.com/chronoworks/timesheet-system/internal/core/ports"
)

type authError struct {
	Message string `json:"message"`
	Code    string `json:"error"`
}

// Auth verifies the bearer token, loads the user, and injects it into the
// request context under "user". Missing, malformed, expired, and
// inactive-account failures are reported as distinct error codes.
func Auth(authService ports.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, authError{
					Message: "Access denied. No token provided.",
					Code:    "UNAUTHORIZED",
				})
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return c.JSON(http.StatusUnauthorized, authError{
					Message: "Invalid authorization header.",
					Code:    "INVALID_TOKEN",
				})
			}

			user, err := authService.Authenticate(c.Request().Context(), parts[1])
			if err != nil {
				return c.JSON(http.StatusUnauthorized, resolveAuthError(err))
			}

			c.Set("user", user)
			return next(c)
		}
	}
}

func resolveAuthError(err error) authError {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return authError{Message: "Token expired.", Code: "TOKEN_EXPIRED"}
	case errors.Is(err, domain.ErrAccountInactive):
		return authError{Message: "Account is inactive.", Code: "ACCOUNT_INACTIVE"}
	case errors.Is(err, domain.ErrUserNotFound):
		return authError{Message: "Invalid token. User not found.", Code: "UNAUTHORIZED"}
	default:
		return authError{Message: "Invalid token.", Code: "INVALID_TOKEN"}
	}
}
