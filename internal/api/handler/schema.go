package handler

import (
	"fmt"
	"time"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
)

// --- Auth requests ---

type registerRequest struct {
	FirstName       string `json:"firstName"       validate:"required,min=2,max=50"`
	LastName        string `json:"lastName"        validate:"required,min=2,max=50"`
	Email           string `json:"email"           validate:"required,email"`
	Password        string `json:"password"        validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	FirstName string `json:"firstName" validate:"omitempty,min=2,max=50"`
	LastName  string `json:"lastName"  validate:"omitempty,min=2,max=50"`
	Email     string `json:"email"     validate:"omitempty,email"`
}

type changePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"    validate:"required"`
	NewPassword        string `json:"newPassword"        validate:"required,min=8"`
	ConfirmNewPassword string `json:"confirmNewPassword" validate:"eqfield=NewPassword"`
}

// --- Auth responses ---

type authResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token,omitempty"`
	User    *domain.User `json:"user,omitempty"`
}

type paginationResponse struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type usersResponse struct {
	Message    string             `json:"message"`
	Users      []domain.User      `json:"users"`
	Pagination paginationResponse `json:"pagination"`
}

// --- Timesheet requests ---

type timesheetRequest struct {
	Date       string  `json:"date"       validate:"required"`
	Hours      float64 `json:"hours"      validate:"required,gte=0"`
	EmployeeID string  `json:"employeeId" validate:"required"`
	ProjectID  string  `json:"projectId"  validate:"required"`
	TaskID     string  `json:"taskId"     validate:"required"`
	RecordType string  `json:"recordType" validate:"required"`
	WFH        bool    `json:"wfh"`
}

type weeklyTimesheetRequest struct {
	StartDate  string  `json:"startDate"  validate:"required"`
	EndDate    string  `json:"endDate"    validate:"required"`
	Hours      float64 `json:"hours"      validate:"required,gte=0"`
	EmployeeID string  `json:"employeeId" validate:"required"`
	ProjectID  string  `json:"projectId"  validate:"required"`
	TaskID     string  `json:"taskId"     validate:"required"`
	RecordType string  `json:"recordType" validate:"required"`
	WFH        bool    `json:"wfh"`
}

// --- Timesheet responses ---

type timesheetResponse struct {
	Message string            `json:"message"`
	Data    *domain.Timesheet `json:"data"`
	Action  string            `json:"action"`
}

type timesheetListResponse struct {
	Message string             `json:"message"`
	Count   int                `json:"count"`
	Data    []domain.Timesheet `json:"data"`
}

type weeklyTimesheetResponse struct {
	Message   string             `json:"message"`
	Count     int                `json:"count"`
	StartDate string             `json:"startDate"`
	EndDate   string             `json:"endDate"`
	Data      []domain.Timesheet `json:"data"`
	Action    string             `json:"action"`
}

// --- Shared ---

type messageResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

const dateLayout = "2006-01-02"

// parseDate accepts the wire formats clients actually send: a bare
// calendar date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}
