package ports

import (
	"context"
	"time"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
)

// TimesheetInput carries one day of work to be written.
type TimesheetInput struct {
	Date       time.Time
	Hours      float64
	EmployeeID string
	ProjectID  string
	TaskID     string
	RecordType string
	WFH        bool
}

// WeeklyInput carries a bulk upsert over a closed date interval.
type WeeklyInput struct {
	StartDate  time.Time
	EndDate    time.Time
	Hours      float64
	EmployeeID string
	ProjectID  string
	TaskID     string
	RecordType string
	WFH        bool
}

// WeeklyResult is returned by SaveWeekly.
type WeeklyResult struct {
	StartDate time.Time
	EndDate   time.Time
	Sheets    []domain.Timesheet
}

// TimesheetService defines the submit and save use cases.
type TimesheetService interface {
	// Submit upserts by (date, employeeId) with status Submitted and
	// publishes a timesheet.submitted event best-effort.
	Submit(ctx context.Context, in TimesheetInput) (*domain.Timesheet, error)
	// Save upserts by (date, employeeId, recordType) with status Saved and
	// publishes a timesheet.saved event best-effort.
	Save(ctx context.Context, in TimesheetInput) (*domain.Timesheet, error)
	// SaveWeekly performs one Save-keyed upsert per calendar day in the
	// closed interval [StartDate, EndDate].
	SaveWeekly(ctx context.Context, in WeeklyInput) (*WeeklyResult, error)
	Get(ctx context.Context, id string) (*domain.Timesheet, error)
	List(ctx context.Context, f TimesheetFilter) ([]domain.Timesheet, error)
}
