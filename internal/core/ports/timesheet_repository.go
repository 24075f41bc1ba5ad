package ports

import (
	"context"
	"time"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
)

// TimesheetFilter narrows List results. Zero values are ignored.
type TimesheetFilter struct {
	EmployeeID string
	StartDate  time.Time
	EndDate    time.Time
}

// TimesheetRepository defines the persistence interface for timesheet rows.
//
// The two upsert operations key on different natural keys on purpose: the
// submit path has always keyed on (date, employeeId) while the save path
// keys on (date, employeeId, recordType). Callers pick the behavior they
// need; neither is "the" key.
type TimesheetRepository interface {
	// UpsertByEmployeeDate atomically updates or inserts the row keyed by
	// (date, employeeId) and returns the persisted document.
	UpsertByEmployeeDate(ctx context.Context, ts *domain.Timesheet) (*domain.Timesheet, error)
	// UpsertByEmployeeDateType atomically updates or inserts the row keyed
	// by (date, employeeId, recordType) and returns the persisted document.
	UpsertByEmployeeDateType(ctx context.Context, ts *domain.Timesheet) (*domain.Timesheet, error)
	FindByID(ctx context.Context, id string) (*domain.Timesheet, error)
	List(ctx context.Context, f TimesheetFilter) ([]domain.Timesheet, error)
}
