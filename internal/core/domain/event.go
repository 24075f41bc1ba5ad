package domain

import "time"

// Queue names, one per domain event type.
const (
	QueueTimesheetSubmitted = "timesheet.submitted"
	QueueTimesheetSaved     = "timesheet.saved"
	QueueUserRegistered     = "user.registered"
)

// Queues returns every queue the notification service drains.
func Queues() []string {
	return []string{QueueTimesheetSubmitted, QueueTimesheetSaved, QueueUserRegistered}
}

// TimesheetEvent is published on timesheet.submitted and timesheet.saved.
type TimesheetEvent struct {
	EmployeeID string    `json:"employeeId"`
	Date       time.Time `json:"date"`
	Hours      float64   `json:"hours"`
	TotalHours float64   `json:"totalHours"`
	RecordType string    `json:"recordType"`
	WFH        bool      `json:"wfh"`
	Timestamp  time.Time `json:"timestamp"`
}

// UserRegisteredEvent is published on user.registered.
type UserRegisteredEvent struct {
	EmployeeID string    `json:"employeeId"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Timestamp  time.Time `json:"timestamp"`
}
