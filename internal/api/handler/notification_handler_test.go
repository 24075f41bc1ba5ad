package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
	"github.com/chronoworks/timesheet-system/internal/infrastructure/queue"
)

type stubTransport struct {
	statsFn   func(ctx context.Context, name string) (queue.Stats, error)
	publishFn func(ctx context.Context, name, eventType string, payload any) error
}

func (s *stubTransport) Declare(ctx context.Context, name string, opts queue.DeclareOptions) error {
	return nil
}

func (s *stubTransport) Publish(ctx context.Context, name, eventType string, payload any) error {
	return s.publishFn(ctx, name, eventType, payload)
}

func (s *stubTransport) Consume(ctx context.Context, name string, h queue.Handler) error {
	panic("not used")
}

func (s *stubTransport) Stats(ctx context.Context, name string) (queue.Stats, error) {
	return s.statsFn(ctx, name)
}

func (s *stubTransport) Close() error { return nil }

func TestNotificationHandler_Health_Connected(t *testing.T) {
	h := NewNotificationHandler(&stubTransport{})

	c, rec := newTestContext(t, http.MethodGet, "/health", "")
	require.NoError(t, h.Health(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp["status"])
	assert.Equal(t, "connected", resp["queue"])
	assert.Equal(t, "notification-service", resp["service"])
}

func TestNotificationHandler_Health_Disconnected(t *testing.T) {
	h := NewNotificationHandler(nil)

	c, rec := newTestContext(t, http.MethodGet, "/health", "")
	require.NoError(t, h.Health(c))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Unhealthy", resp["status"])
	assert.Equal(t, "disconnected", resp["queue"])
}

func TestNotificationHandler_Stats(t *testing.T) {
	tr := &stubTransport{
		statsFn: func(ctx context.Context, name string) (queue.Stats, error) {
			return queue.Stats{Queue: name, Messages: 4, Consumers: 1}, nil
		},
	}
	h := NewNotificationHandler(tr)

	c, rec := newTestContext(t, http.MethodGet, "/stats", "")
	require.NoError(t, h.Stats(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Message string                 `json:"message"`
		Stats   map[string]queue.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Stats, len(domain.Queues()))
	for _, name := range domain.Queues() {
		assert.Equal(t, int64(4), resp.Stats[name].Messages, "queue %s", name)
	}
}

func TestNotificationHandler_Stats_BrokerErrorPropagates(t *testing.T) {
	broken := errors.New("broker unavailable")
	h := NewNotificationHandler(&stubTransport{
		statsFn: func(ctx context.Context, name string) (queue.Stats, error) {
			return queue.Stats{}, broken
		},
	})

	c, _ := newTestContext(t, http.MethodGet, "/stats", "")
	assert.ErrorIs(t, h.Stats(c), broken)
}

func TestNotificationHandler_TestPublish(t *testing.T) {
	var published struct {
		queue   string
		payload any
	}
	tr := &stubTransport{
		publishFn: func(ctx context.Context, name, eventType string, payload any) error {
			published.queue = name
			published.payload = payload
			return nil
		},
	}
	h := NewNotificationHandler(tr)

	c, rec := newTestContext(t, http.MethodPost, "/test/publish",
		`{"queue":"timesheet.saved","message":{"employeeId":"EMP123456","hours":8}}`)
	require.NoError(t, h.TestPublish(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.QueueTimesheetSaved, published.queue)

	// The payload must survive byte for byte.
	raw, ok := published.payload.(json.RawMessage)
	require.True(t, ok, "payload type %T", published.payload)
	assert.JSONEq(t, `{"employeeId":"EMP123456","hours":8}`, string(raw))
}

func TestNotificationHandler_TestPublish_UnknownQueue(t *testing.T) {
	h := NewNotificationHandler(&stubTransport{
		publishFn: func(ctx context.Context, name, eventType string, payload any) error {
			t.Fatal("publish must not be called")
			return nil
		},
	})

	c, _ := newTestContext(t, http.MethodPost, "/test/publish",
		`{"queue":"no.such.queue","message":{"k":"v"}}`)
	err := h.TestPublish(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestNotificationHandler_TestPublish_Disconnected(t *testing.T) {
	h := NewNotificationHandler(nil)

	c, _ := newTestContext(t, http.MethodPost, "/test/publish",
		`{"queue":"timesheet.saved","message":{"k":"v"}}`)
	err := h.TestPublish(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}
