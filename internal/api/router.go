package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/chronoworks/timesheet-system/internal/api/handler"
	"github.com/chronoworks/timesheet-system/internal/api/middleware"
	"github.com/chronoworks/timesheet-system/internal/core/ports"
)

// newEcho builds an Echo instance with the middleware and error handling
// shared by all four services.
func newEcho(serviceName string, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.CORS())
	e.Use(echoprometheus.NewMiddleware(serviceName))

	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}

// notFound returns the catch-all handler: a 404 with the service's valid
// endpoints so a caller who forgot the path prefix can self-correct.
func notFound(prefix string, endpoints []string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]any{
			"error":              "Route not found",
			"message":            fmt.Sprintf("%s %s is not defined", c.Request().Method, c.Request().URL.Path),
			"hint":               fmt.Sprintf("Make sure to include the %s prefix in your URL", prefix),
			"availableEndpoints": endpoints,
		})
	}
}

// NewAuthRouter wires the auth service's routes under /auth-service.
func NewAuthRouter(h *handler.AuthHandler, authService ports.AuthService, log zerolog.Logger) *echo.Echo {
	e := newEcho("auth_service", log)
	auth := middleware.Auth(authService)

	g := e.Group("/auth-service")
	g.GET("/health", h.Health)
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.GET("/profile", h.Profile, auth)
	g.PUT("/profile", h.UpdateProfile, auth)
	g.PUT("/change-password", h.ChangePassword, auth)
	g.GET("/verify-token", h.VerifyToken, auth)
	g.GET("/users", h.Users, auth)
	g.GET("/users/:id", h.UserByID, auth)

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	endpoints := []string{
		"GET  /auth-service/health",
		"POST /auth-service/register",
		"POST /auth-service/login",
		"GET  /auth-service/profile (protected)",
		"PUT  /auth-service/profile (protected)",
		"PUT  /auth-service/change-password (protected)",
		"GET  /auth-service/verify-token (protected)",
		"GET  /auth-service/users (protected)",
		"GET  /auth-service/users/:id (protected)",
	}
	e.GET("/", serviceIndex("Timesheet Authentication Service", endpoints))
	e.RouteNotFound("/*", notFound("/auth-service", endpoints))

	return e
}

// NewSubmitRouter wires the submit service's routes under /submit-service.
func NewSubmitRouter(h *handler.TimesheetHandler, log zerolog.Logger) *echo.Echo {
	e := newEcho("submit_service", log)

	g := e.Group("/submit-service")
	g.GET("/health", h.Health)
	g.POST("/timesheets", h.Submit)

	endpoints := []string{
		"GET  /submit-service/health",
		"POST /submit-service/timesheets",
	}
	e.GET("/", serviceIndex("Timesheet Submit Service", endpoints))
	e.RouteNotFound("/*", notFound("/submit-service", endpoints))

	return e
}

// NewSaveRouter wires the save service's routes under /save-service.
func NewSaveRouter(h *handler.TimesheetHandler, log zerolog.Logger) *echo.Echo {
	e := newEcho("save_service", log)

	g := e.Group("/save-service")
	g.GET("/health", h.Health)
	g.GET("/timesheets", h.List)
	g.GET("/timesheets/:id", h.Get)
	g.POST("/timesheets", h.Save)
	g.POST("/timesheets/weekly", h.SaveWeekly)

	endpoints := []string{
		"GET  /save-service/health",
		"GET  /save-service/timesheets",
		"GET  /save-service/timesheets/:id",
		"POST /save-service/timesheets",
		"POST /save-service/timesheets/weekly",
	}
	e.GET("/", serviceIndex("Timesheet Save Service", endpoints))
	e.RouteNotFound("/*", notFound("/save-service", endpoints))

	return e
}

// NewNotificationRouter wires the notification service's routes. Unlike
// the other services, its operational endpoints live at the root.
func NewNotificationRouter(h *handler.NotificationHandler, log zerolog.Logger) *echo.Echo {
	e := newEcho("notification_service", log)

	e.GET("/health", h.Health)
	e.GET("/stats", h.Stats)
	e.POST("/test/publish", h.TestPublish)

	endpoints := []string{
		"GET  /health - Health check",
		"GET  /stats - Queue statistics",
		"POST /test/publish - Publish a test message",
	}
	e.GET("/", serviceIndex("Timesheet Notification Service", endpoints))
	e.RouteNotFound("/*", notFound("/", endpoints))

	return e
}

func serviceIndex(name string, endpoints []string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"message":            name,
			"version":            "1.0.0",
			"availableEndpoints": endpoints,
		})
	}
}
