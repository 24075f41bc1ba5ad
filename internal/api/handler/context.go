package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
)

// userContextKey is where the auth middleware stores the authenticated user.
const userContextKey = "user"

// ctxUser extracts the user injected by the Auth middleware. Its presence
// proves the middleware ran; a protected handler reached without it is a
// routing mistake, rejected with 401.
func ctxUser(c echo.Context) (*domain.User, error) {
	user, _ := c.Get(userContextKey).(*domain.User)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return user, nil
}
