package domain

import "time"

// Timesheet statuses are free text on the wire; these are the values the
// submit and save paths write.
const (
	StatusSaved     = "Saved"
	StatusSubmitted = "Submitted"
)

// Timesheet is one day of recorded work for an employee.
//
// Two natural keys are in effect: the submit path upserts on
// (date, employeeId) while the save path upserts on
// (date, employeeId, recordType). Both are kept as distinct repository
// operations; see UpsertByEmployeeDate and UpsertByEmployeeDateType.
type Timesheet struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	Date       time.Time `json:"date" bson:"date"`
	Hours      float64   `json:"hours" bson:"hours"`
	EmployeeID string    `json:"employeeId" bson:"employeeId"`
	ProjectID  string    `json:"projectId" bson:"projectId"`
	TaskID     string    `json:"taskId" bson:"taskId"`
	RecordType string    `json:"recordType" bson:"recordType"`
	WFH        bool      `json:"wfh" bson:"wfh"`
	Status     string    `json:"status" bson:"status"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}
