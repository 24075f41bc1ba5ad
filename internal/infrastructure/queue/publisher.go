package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/chronoworks/timesheet-system/internal/api/metrics"
	"github.com/chronoworks/timesheet-system/internal/core/domain"
	"github.com/chronoworks/timesheet-system/internal/core/ports"
)

// Publisher emits domain events to their queues. A nil transport is a
// valid degraded state: publishes are logged and skipped so the HTTP path
// never fails on broker trouble.
type Publisher struct {
	transport Transport
	log       zerolog.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

func NewPublisher(transport Transport, log zerolog.Logger) *Publisher {
	return &Publisher{transport: transport, log: log}
}

// DeclareQueues declares every queue the services publish to, with the
// shared retention bounds.
func (p *Publisher) DeclareQueues(ctx context.Context, opts DeclareOptions) error {
	if p.transport == nil {
		return ErrNotConnected
	}
	for _, name := range domain.Queues() {
		if err := p.transport.Declare(ctx, name, opts); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) TimesheetSubmitted(ctx context.Context, ts *domain.Timesheet) error {
	event := timesheetEvent(ts)
	return p.publish(ctx, domain.QueueTimesheetSubmitted, "timesheet.submitted", event)
}

func (p *Publisher) TimesheetSaved(ctx context.Context, ts *domain.Timesheet) error {
	event := timesheetEvent(ts)
	return p.publish(ctx, domain.QueueTimesheetSaved, "timesheet.saved", event)
}

func (p *Publisher) UserRegistered(ctx context.Context, user *domain.User) error {
	event := domain.UserRegisteredEvent{
		EmployeeID: user.EmployeeID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Timestamp:  time.Now().UTC(),
	}
	return p.publish(ctx, domain.QueueUserRegistered, "user.registered", event)
}

func (p *Publisher) publish(ctx context.Context, queue, eventType string, payload any) error {
	if p.transport == nil {
		metrics.EventsPublishFailuresTotal.WithLabelValues(queue).Inc()
		p.log.Warn().Str("queue", queue).Str("type", eventType).Msg("queue unavailable, event skipped")
		return ErrNotConnected
	}
	return p.transport.Publish(ctx, queue, eventType, payload)
}

func timesheetEvent(ts *domain.Timesheet) domain.TimesheetEvent {
	return domain.TimesheetEvent{
		EmployeeID: ts.EmployeeID,
		Date:       ts.Date,
		Hours:      ts.Hours,
		TotalHours: ts.Hours,
		RecordType: ts.RecordType,
		WFH:        ts.WFH,
		Timestamp:  time.Now().UTC(),
	}
}
