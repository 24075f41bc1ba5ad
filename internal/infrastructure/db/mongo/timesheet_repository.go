package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
	"github.com/chronoworks/timesheet-system/internal/core/ports"
)

const timesheetsCollection = "timesheets"

// TimesheetRepository persists timesheet rows in the timesheets collection.
type TimesheetRepository struct {
	coll *mongo.Collection
}

func NewTimesheetRepository(db *mongo.Database) *TimesheetRepository {
	return &TimesheetRepository{coll: db.Collection(timesheetsCollection)}
}

type timesheetDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Date       time.Time          `bson:"date"`
	Hours      float64            `bson:"hours"`
	EmployeeID string             `bson:"employeeId"`
	ProjectID  string             `bson:"projectId"`
	TaskID     string             `bson:"taskId"`
	RecordType string             `bson:"recordType"`
	WFH        *bool              `bson:"wfh,omitempty"`
	Status     string             `bson:"status"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

func (d *timesheetDoc) toDomain() *domain.Timesheet {
	// Rows written before the wfh field existed decode as nil; they read
	// back as false.
	wfh := false
	if d.WFH != nil {
		wfh = *d.WFH
	}
	return &domain.Timesheet{
		ID:         d.ID.Hex(),
		Date:       d.Date,
		Hours:      d.Hours,
		EmployeeID: d.EmployeeID,
		ProjectID:  d.ProjectID,
		TaskID:     d.TaskID,
		RecordType: d.RecordType,
		WFH:        wfh,
		Status:     d.Status,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// UpsertByEmployeeDate updates or inserts the row keyed by (date,
// employeeId). This is the submit path's legacy key: recordType is written
// but not part of the match, so submissions overwrite across record types.
func (r *TimesheetRepository) UpsertByEmployeeDate(ctx context.Context, ts *domain.Timesheet) (*domain.Timesheet, error) {
	filter := bson.M{"date": ts.Date, "employeeId": ts.EmployeeID}
	return r.upsert(ctx, filter, submitUpdate(ts, time.Now().UTC()))
}

// UpsertByEmployeeDateType updates or inserts the row keyed by (date,
// employeeId, recordType), the save path's key.
func (r *TimesheetRepository) UpsertByEmployeeDateType(ctx context.Context, ts *domain.Timesheet) (*domain.Timesheet, error) {
	filter := bson.M{"date": ts.Date, "employeeId": ts.EmployeeID, "recordType": ts.RecordType}
	return r.upsert(ctx, filter, saveUpdate(ts, time.Now().UTC()))
}

// submitUpdate builds the submit path's write set. Status is forced on
// every write; wfh is never touched, because the submit path predates the
// field and a value set through the save path must survive a later
// submission.
func submitUpdate(ts *domain.Timesheet, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"hours":      ts.Hours,
			"projectId":  ts.ProjectID,
			"taskId":     ts.TaskID,
			"recordType": ts.RecordType,
			"status":     ts.Status,
			"updatedAt":  now,
		},
		"$setOnInsert": bson.M{
			"date":       ts.Date,
			"employeeId": ts.EmployeeID,
			"createdAt":  now,
		},
	}
}

// saveUpdate builds the save/weekly write set. Wfh is written on every
// save; status only seeds new rows, so a row already marked "Submitted"
// keeps that status when re-saved under the same key.
func saveUpdate(ts *domain.Timesheet, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"hours":      ts.Hours,
			"projectId":  ts.ProjectID,
			"taskId":     ts.TaskID,
			"recordType": ts.RecordType,
			"wfh":        ts.WFH,
			"updatedAt":  now,
		},
		"$setOnInsert": bson.M{
			"date":       ts.Date,
			"employeeId": ts.EmployeeID,
			"status":     ts.Status,
			"createdAt":  now,
		},
	}
}

// upsert performs a single-round-trip find-one-and-update so concurrent
// writers for the same natural key cannot create duplicate rows.
func (r *TimesheetRepository) upsert(ctx context.Context, filter, update bson.M) (*domain.Timesheet, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc timesheetDoc
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("upsert timesheet: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *TimesheetRepository) FindByID(ctx context.Context, id string) (*domain.Timesheet, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrTimesheetNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc timesheetDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTimesheetNotFound
		}
		return nil, fmt.Errorf("find timesheet: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *TimesheetRepository) List(ctx context.Context, f ports.TimesheetFilter) ([]domain.Timesheet, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.EmployeeID != "" {
		filter["employeeId"] = f.EmployeeID
	}
	dateRange := bson.M{}
	if !f.StartDate.IsZero() {
		dateRange["$gte"] = f.StartDate
	}
	if !f.EndDate.IsZero() {
		dateRange["$lte"] = f.EndDate
	}
	if len(dateRange) > 0 {
		filter["date"] = dateRange
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list timesheets: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []timesheetDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode timesheets: %w", err)
	}

	sheets := make([]domain.Timesheet, 0, len(docs))
	for i := range docs {
		sheets = append(sheets, *docs[i].toDomain())
	}
	return sheets, nil
}

// EnsureIndexes creates the indexes backing both upsert keys and the list
// filters.
func (r *TimesheetRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: 1}, {Key: "employeeId", Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: 1}, {Key: "employeeId", Value: 1}, {Key: "recordType", Value: 1}}},
		{Keys: bson.D{{Key: "employeeId", Value: 1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
