// Package ledger is the task ledger: per-worker, per-day logged hours records.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/zulandar/timekeeper/internal/apperr"
	"github.com/zulandar/timekeeper/internal/models"
	"github.com/zulandar/timekeeper/internal/worker"
	"gorm.io/gorm"
)

// DateLayout is the calendar-day format used for record and alert dates.
const DateLayout = "2006-01-02"

// Bounds on the hours a single record may carry.
var (
	MinHours = decimal.RequireFromString("0.5")
	MaxHours = decimal.NewFromInt(12)
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateOpts holds parameters for creating a task record.
type CreateOpts struct {
	WorkerID    string `validate:"required"`
	Description string `validate:"required"`
	Category    string `validate:"required"`
	Hours       decimal.Decimal
	Date        string `validate:"required"`
}

// Patch holds the fields an update may change. Nil fields are left alone.
type Patch struct {
	Description *string
	Category    *string
	Hours       *decimal.Decimal
	Date        *string
}

// ListFilters holds optional filters for listing records. Dates are inclusive.
type ListFilters struct {
	WorkerID string
	DateFrom string
	DateTo   string
}

// ValidateHours rejects hours outside [MinHours, MaxHours].
func ValidateHours(h decimal.Decimal) error {
	if h.LessThan(MinHours) || h.GreaterThan(MaxHours) {
		return apperr.Invalid("hours", "must be between %s and %s, got %s", MinHours, MaxHours, h)
	}
	return nil
}

// ParseHours parses a decimal hours value and checks its range.
func ParseHours(s string) (decimal.Decimal, error) {
	h, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Invalid("hours", "must be numeric, got %q", s)
	}
	return h, ValidateHours(h)
}

// ParseDate validates a YYYY-MM-DD calendar day.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, apperr.Invalid("date", "must be YYYY-MM-DD, got %q", s)
	}
	return d, nil
}

// TimeRangeOf derives the wall-clock span of a record from the worker's shift start.
func TimeRangeOf(w *models.Worker, r *models.TaskRecord) (models.TimeRange, error) {
	start, err := worker.ParseShiftStart(w.ShiftStart)
	if err != nil {
		return models.TimeRange{}, err
	}
	minutes := r.Hours.Mul(decimal.NewFromInt(60)).Round(0).IntPart()
	end := start.Add(time.Duration(minutes) * time.Minute)
	return models.TimeRange{Start: start.Format("15:04"), End: end.Format("15:04")}, nil
}

// Create validates and stores a new task record.
func Create(db *gorm.DB, opts CreateOpts) (*models.TaskRecord, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("ledger: create: %w", validationError(err))
	}
	if err := ValidateHours(opts.Hours); err != nil {
		return nil, fmt.Errorf("ledger: create: %w", err)
	}
	if _, err := ParseDate(opts.Date); err != nil {
		return nil, fmt.Errorf("ledger: create: %w", err)
	}
	w, err := worker.Get(db, opts.WorkerID)
	if err != nil {
		return nil, err
	}
	if err := checkCategory(db, w.Department, opts.Category); err != nil {
		return nil, err
	}

	rec := models.TaskRecord{
		WorkerID:    opts.WorkerID,
		Description: opts.Description,
		Category:    opts.Category,
		Hours:       opts.Hours,
		Date:        opts.Date,
	}
	if err := db.Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("ledger: create: %w", err)
	}
	return &rec, nil
}

// Get retrieves a task record by ID.
func Get(db *gorm.DB, id uint) (*models.TaskRecord, error) {
	var rec models.TaskRecord
	if err := db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ledger: %w", apperr.NotFound("task record", id))
		}
		return nil, fmt.Errorf("ledger: get %d: %w", id, err)
	}
	return &rec, nil
}

// List returns records matching the filters, ordered by date then ID.
func List(db *gorm.DB, filters ListFilters) ([]models.TaskRecord, error) {
	q := db.Model(&models.TaskRecord{})
	if filters.WorkerID != "" {
		q = q.Where("worker_id = ?", filters.WorkerID)
	}
	if filters.DateFrom != "" {
		q = q.Where("date >= ?", filters.DateFrom)
	}
	if filters.DateTo != "" {
		q = q.Where("date <= ?", filters.DateTo)
	}

	var recs []models.TaskRecord
	if err := q.Order("date ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	return recs, nil
}

// Update applies a patch to an existing record after validating every changed field.
func Update(db *gorm.DB, id uint, p Patch) (*models.TaskRecord, error) {
	rec, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if p.Description != nil {
		if *p.Description == "" {
			return nil, fmt.Errorf("ledger: update: %w", apperr.Invalid("description", "is required"))
		}
		updates["description"] = *p.Description
	}
	if p.Category != nil {
		w, err := worker.Get(db, rec.WorkerID)
		if err != nil {
			return nil, err
		}
		if err := checkCategory(db, w.Department, *p.Category); err != nil {
			return nil, err
		}
		updates["category"] = *p.Category
	}
	if p.Hours != nil {
		if err := ValidateHours(*p.Hours); err != nil {
			return nil, fmt.Errorf("ledger: update: %w", err)
		}
		updates["hours"] = *p.Hours
	}
	if p.Date != nil {
		if _, err := ParseDate(*p.Date); err != nil {
			return nil, fmt.Errorf("ledger: update: %w", err)
		}
		updates["date"] = *p.Date
	}
	if len(updates) == 0 {
		return rec, nil
	}

	if err := db.Model(&models.TaskRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ledger: update %d: %w", id, err)
	}
	return Get(db, id)
}

// SetHours overwrites a record's hours. Used by timer flushes.
func SetHours(db *gorm.DB, id uint, hours decimal.Decimal) error {
	if err := ValidateHours(hours); err != nil {
		return fmt.Errorf("ledger: set hours: %w", err)
	}
	result := db.Model(&models.TaskRecord{}).Where("id = ?", id).Update("hours", hours)
	if result.Error != nil {
		return fmt.Errorf("ledger: set hours %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("ledger: %w", apperr.NotFound("task record", id))
	}
	return nil
}

// Delete removes a record.
func Delete(db *gorm.DB, id uint) error {
	result := db.Where("id = ?", id).Delete(&models.TaskRecord{})
	if result.Error != nil {
		return fmt.Errorf("ledger: delete %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("ledger: %w", apperr.NotFound("task record", id))
	}
	return nil
}

// checkCategory ensures category belongs to the department's category set.
func checkCategory(db *gorm.DB, department, category string) error {
	var count int64
	if err := db.Model(&models.Category{}).
		Where("department = ? AND name = ?", department, category).
		Count(&count).Error; err != nil {
		return fmt.Errorf("ledger: check category %s: %w", category, err)
	}
	if count == 0 {
		return fmt.Errorf("ledger: %w", apperr.Invalid("category", "%q is not a %s category", category, department))
	}
	return nil
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return apperr.Invalid(ve[0].Field(), "is required")
	}
	return apperr.Invalid("", "%v", err)
}
