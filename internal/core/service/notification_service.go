package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
)

// Per-event processing delays standing in for real I/O (email provider,
// analytics sink, audit log).
const (
	submittedDelay  = 100 * time.Millisecond
	savedDelay      = 50 * time.Millisecond
	registeredDelay = 200 * time.Millisecond
)

// NotificationService executes the side effect for each consumed event.
// The side effects are simulated with log lines plus a bounded delay; a
// production build would swap the bodies for real integrations while keeping
// the ack/requeue contract of the caller.
type NotificationService struct {
	log zerolog.Logger
}

func NewNotificationService(log zerolog.Logger) *NotificationService {
	return &NotificationService{log: log}
}

// HandleTimesheetSubmitted notifies the manager of a submitted timesheet.
func (s *NotificationService) HandleTimesheetSubmitted(ctx context.Context, ev domain.TimesheetEvent) error {
	s.log.Info().
		Str("employee_id", ev.EmployeeID).
		Time("date", ev.Date).
		Float64("total_hours", ev.TotalHours).
		Msg("sending manager notification for submitted timesheet")
	return simulateWork(ctx, submittedDelay)
}

// HandleTimesheetSaved records autosave bookkeeping.
func (s *NotificationService) HandleTimesheetSaved(ctx context.Context, ev domain.TimesheetEvent) error {
	s.log.Info().
		Str("employee_id", ev.EmployeeID).
		Time("date", ev.Date).
		Float64("hours", ev.Hours).
		Msg("timesheet autosaved")
	return simulateWork(ctx, savedDelay)
}

// HandleUserRegistered sends the welcome email.
func (s *NotificationService) HandleUserRegistered(ctx context.Context, ev domain.UserRegisteredEvent) error {
	s.log.Info().
		Str("employee_id", ev.EmployeeID).
		Str("email", ev.Email).
		Str("name", ev.FirstName+" "+ev.LastName).
		Msg("sending welcome email")
	return simulateWork(ctx, registeredDelay)
}

func simulateWork(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
