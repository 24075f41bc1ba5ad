package ports

import (
	"context"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
)

// EventPublisher pushes domain events onto their queues. Delivery is
// best-effort: callers log failures but never fail the primary write over
// a publish error.
type EventPublisher interface {
	TimesheetSubmitted(ctx context.Context, ts *domain.Timesheet) error
	TimesheetSaved(ctx context.Context, ts *domain.Timesheet) error
	UserRegistered(ctx context.Context, user *domain.User) error
}
