package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
	"github.com/chronoworks/timesheet-system/internal/core/ports"
)

// TimesheetService implements the submit and save write paths. Every write
// is an atomic upsert; event publishing is best-effort and never fails the
// primary write.
type TimesheetService struct {
	repo      ports.TimesheetRepository
	publisher ports.EventPublisher
	log       zerolog.Logger
}

func NewTimesheetService(repo ports.TimesheetRepository, publisher ports.EventPublisher, log zerolog.Logger) *TimesheetService {
	return &TimesheetService{repo: repo, publisher: publisher, log: log}
}

func (s *TimesheetService) Submit(ctx context.Context, in ports.TimesheetInput) (*domain.Timesheet, error) {
	sheet, err := s.repo.UpsertByEmployeeDate(ctx, inputToSheet(in, domain.StatusSubmitted))
	if err != nil {
		return nil, fmt.Errorf("submit timesheet: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.TimesheetSubmitted(ctx, sheet); err != nil {
			s.log.Warn().Err(err).
				Str("employee_id", sheet.EmployeeID).
				Time("date", sheet.Date).
				Msg("timesheet.submitted publish failed")
		}
	}
	return sheet, nil
}

func (s *TimesheetService) Save(ctx context.Context, in ports.TimesheetInput) (*domain.Timesheet, error) {
	sheet, err := s.repo.UpsertByEmployeeDateType(ctx, inputToSheet(in, domain.StatusSaved))
	if err != nil {
		return nil, fmt.Errorf("save timesheet: %w", err)
	}

	s.publishSaved(ctx, sheet)
	return sheet, nil
}

func (s *TimesheetService) SaveWeekly(ctx context.Context, in ports.WeeklyInput) (*ports.WeeklyResult, error) {
	start := truncateToDay(in.StartDate)
	end := truncateToDay(in.EndDate)
	if start.After(end) {
		return nil, domain.ErrInvalidDateRange
	}

	result := &ports.WeeklyResult{StartDate: start, EndDate: end}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		sheet, err := s.repo.UpsertByEmployeeDateType(ctx, inputToSheet(ports.TimesheetInput{
			Date:       day,
			Hours:      in.Hours,
			EmployeeID: in.EmployeeID,
			ProjectID:  in.ProjectID,
			TaskID:     in.TaskID,
			RecordType: in.RecordType,
			WFH:        in.WFH,
		}, domain.StatusSaved))
		if err != nil {
			return nil, fmt.Errorf("save weekly %s: %w", day.Format("2006-01-02"), err)
		}
		s.publishSaved(ctx, sheet)
		result.Sheets = append(result.Sheets, *sheet)
	}
	return result, nil
}

func (s *TimesheetService) Get(ctx context.Context, id string) (*domain.Timesheet, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *TimesheetService) List(ctx context.Context, f ports.TimesheetFilter) ([]domain.Timesheet, error) {
	return s.repo.List(ctx, f)
}

func (s *TimesheetService) publishSaved(ctx context.Context, sheet *domain.Timesheet) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.TimesheetSaved(ctx, sheet); err != nil {
		s.log.Warn().Err(err).
			Str("employee_id", sheet.EmployeeID).
			Time("date", sheet.Date).
			Msg("timesheet.saved publish failed")
	}
}

func inputToSheet(in ports.TimesheetInput, status string) *domain.Timesheet {
	now := time.Now().UTC()
	return &domain.Timesheet{
		Date:       truncateToDay(in.Date),
		Hours:      in.Hours,
		EmployeeID: in.EmployeeID,
		ProjectID:  in.ProjectID,
		TaskID:     in.TaskID,
		RecordType: in.RecordType,
		WFH:        in.WFH,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// truncateToDay normalizes a timestamp to midnight UTC so the upsert keys
// compare equal regardless of the submitted time-of-day.
func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
