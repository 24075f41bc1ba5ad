package handler

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
	"github.com/chronoworks/timesheet-system/internal/infrastructure/queue"
)

// NotificationHandler exposes the notification service's health, queue
// statistics, and a manual publish endpoint for debugging. The transport
// may be nil when the broker never came up; every endpoint reports that as
// a 503 rather than failing the process.
type NotificationHandler struct {
	transport queue.Transport
}

func NewNotificationHandler(transport queue.Transport) *NotificationHandler {
	return &NotificationHandler{transport: transport}
}

type notificationHealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Queue     string `json:"queue"`
	Timestamp string `json:"timestamp"`
}

type statsResponse struct {
	Message   string                 `json:"message"`
	Stats     map[string]queue.Stats `json:"stats"`
	Timestamp string                 `json:"timestamp"`
}

type testPublishRequest struct {
	Queue   string          `json:"queue"   validate:"required"`
	Message json.RawMessage `json:"message" validate:"required"`
}

type testPublishResponse struct {
	Message string          `json:"message"`
	Queue   string          `json:"queue"`
	Data    json.RawMessage `json:"data"`
}

// Health reports liveness plus broker connectivity.
func (h *NotificationHandler) Health(c echo.Context) error {
	status, brokerState, code := "OK", "connected", http.StatusOK
	if h.transport == nil {
		status, brokerState, code = "Unhealthy", "disconnected", http.StatusServiceUnavailable
	}
	return c.JSON(code, notificationHealthResponse{
		Status:    status,
		Service:   "notification-service",
		Queue:     brokerState,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Stats reports depth and consumer count for every declared queue.
func (h *NotificationHandler) Stats(c echo.Context) error {
	if h.transport == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "queue not connected")
	}

	stats := make(map[string]queue.Stats, len(domain.Queues()))
	for _, name := range domain.Queues() {
		s, err := h.transport.Stats(c.Request().Context(), name)
		if err != nil {
			return err
		}
		stats[name] = s
	}

	return c.JSON(http.StatusOK, statsResponse{
		Message:   "Queue statistics",
		Stats:     stats,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// TestPublish enqueues an arbitrary payload, for manual end-to-end checks.
func (h *NotificationHandler) TestPublish(c echo.Context) error {
	if h.transport == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "queue not connected")
	}

	var req testPublishRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !slices.Contains(domain.Queues(), req.Queue) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid queue name")
	}

	if err := h.transport.Publish(c.Request().Context(), req.Queue, "test", req.Message); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, testPublishResponse{
		Message: "Test message published successfully",
		Queue:   req.Queue,
		Data:    req.Message,
	})
}
