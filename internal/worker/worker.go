// Package worker provides worker lifecycle operations.
package worker

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/zulandar/timekeeper/internal/apperr"
	"github.com/zulandar/timekeeper/internal/models"
	"gorm.io/gorm"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var maxTarget = decimal.NewFromInt(24)

// CreateOpts holds parameters for creating a new worker.
type CreateOpts struct {
	Name              string `validate:"required"`
	Department        string `validate:"required"`
	Role              string `validate:"omitempty,oneof=standard supervisor"`
	TargetHoursPerDay decimal.Decimal
	ShiftStart        string `validate:"required"`
}

// ListFilters holds optional filters for listing workers.
type ListFilters struct {
	Department string
	Role       string
}

// GenerateID creates a unique worker ID in wkr-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("worker: generate ID: %w", err)
	}
	return "wkr-" + hex.EncodeToString(b)[:5], nil
}

// ValidateTarget rejects a daily target that is not in (0, 24].
func ValidateTarget(d decimal.Decimal) error {
	if !d.IsPositive() {
		return apperr.Invalid("target_hours_per_day", "must be positive")
	}
	if d.GreaterThan(maxTarget) {
		return apperr.Invalid("target_hours_per_day", "must not exceed 24")
	}
	return nil
}

// ParseShiftStart validates an HH:MM time of day.
func ParseShiftStart(s string) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, apperr.Invalid("shift_start", "must be HH:MM, got %q", s)
	}
	return t, nil
}

// Create creates a new worker with an auto-generated ID.
func Create(db *gorm.DB, opts CreateOpts) (*models.Worker, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("worker: create: %w", validationError(err))
	}
	if err := ValidateTarget(opts.TargetHoursPerDay); err != nil {
		return nil, fmt.Errorf("worker: create: %w", err)
	}
	if _, err := ParseShiftStart(opts.ShiftStart); err != nil {
		return nil, fmt.Errorf("worker: create: %w", err)
	}
	if err := checkDepartment(db, opts.Department); err != nil {
		return nil, err
	}
	if opts.Role == "" {
		opts.Role = models.RoleStandard
	}

	id, err := generateUniqueID(db)
	if err != nil {
		return nil, err
	}

	w := models.Worker{
		ID:                id,
		Name:              opts.Name,
		Department:        opts.Department,
		Role:              opts.Role,
		TargetHoursPerDay: opts.TargetHoursPerDay,
		ShiftStart:        opts.ShiftStart,
	}
	if err := db.Create(&w).Error; err != nil {
		return nil, fmt.Errorf("worker: create: %w", err)
	}
	return &w, nil
}

// Get retrieves a worker by ID.
func Get(db *gorm.DB, id string) (*models.Worker, error) {
	var w models.Worker
	if err := db.Where("id = ?", id).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("worker: %w", apperr.NotFound("worker", id))
		}
		return nil, fmt.Errorf("worker: get %s: %w", id, err)
	}
	return &w, nil
}

// List returns workers matching the given filters, ordered by name then ID.
func List(db *gorm.DB, filters ListFilters) ([]models.Worker, error) {
	q := db.Model(&models.Worker{})
	if filters.Department != "" {
		q = q.Where("department = ?", filters.Department)
	}
	if filters.Role != "" {
		q = q.Where("role = ?", filters.Role)
	}

	var workers []models.Worker
	if err := q.Order("name ASC, id ASC").Find(&workers).Error; err != nil {
		return nil, fmt.Errorf("worker: list: %w", err)
	}
	return workers, nil
}

// Update modifies worker fields. Supported keys: name, department, role,
// target_hours_per_day (decimal.Decimal), shift_start. Moving a worker to
// another department is rejected while any of their records use a category
// the new department does not have.
func Update(db *gorm.DB, id string, updates map[string]interface{}) (*models.Worker, error) {
	w, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	for k, v := range updates {
		switch k {
		case "name":
			if s, _ := v.(string); s == "" {
				return nil, fmt.Errorf("worker: update: %w", apperr.Invalid("name", "is required"))
			}
		case "department":
			s, _ := v.(string)
			if s == w.Department {
				continue
			}
			if err := checkDepartment(db, s); err != nil {
				return nil, err
			}
			if err := checkRecordCategories(db, id, s); err != nil {
				return nil, err
			}
		case "role":
			if s, _ := v.(string); s != models.RoleStandard && s != models.RoleSupervisor {
				return nil, fmt.Errorf("worker: update: %w", apperr.Invalid("role", "must be standard or supervisor"))
			}
		case "target_hours_per_day":
			d, ok := v.(decimal.Decimal)
			if !ok {
				return nil, fmt.Errorf("worker: update: %w", apperr.Invalid("target_hours_per_day", "must be a decimal"))
			}
			if err := ValidateTarget(d); err != nil {
				return nil, fmt.Errorf("worker: update: %w", err)
			}
		case "shift_start":
			s, _ := v.(string)
			if _, err := ParseShiftStart(s); err != nil {
				return nil, fmt.Errorf("worker: update: %w", err)
			}
		default:
			return nil, fmt.Errorf("worker: update: %w", apperr.Invalid(k, "is not updatable"))
		}
	}
	if len(updates) == 0 {
		return w, nil
	}

	if err := db.Model(&models.Worker{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("worker: update %s: %w", id, err)
	}
	return Get(db, id)
}

// checkRecordCategories ensures every category the worker has logged exists
// in department.
func checkRecordCategories(db *gorm.DB, id, department string) error {
	var stray []string
	err := db.Model(&models.TaskRecord{}).
		Distinct("category").
		Where("worker_id = ?", id).
		Where("category NOT IN (?)", db.Model(&models.Category{}).Select("name").Where("department = ?", department)).
		Order("category ASC").
		Pluck("category", &stray).Error
	if err != nil {
		return fmt.Errorf("worker: check record categories of %s: %w", id, err)
	}
	if len(stray) > 0 {
		return fmt.Errorf("worker: update: %w", apperr.Invalid("department",
			"%s has no category %q used by existing records", department, stray[0]))
	}
	return nil
}

// Delete removes a worker together with its task records and justifications.
func Delete(db *gorm.DB, id string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := Get(tx, id); err != nil {
			return err
		}
		if err := tx.Where("worker_id = ?", id).Delete(&models.TaskRecord{}).Error; err != nil {
			return fmt.Errorf("worker: delete tasks of %s: %w", id, err)
		}
		if err := tx.Where("worker_id = ?", id).Delete(&models.Justification{}).Error; err != nil {
			return fmt.Errorf("worker: delete justifications of %s: %w", id, err)
		}
		if err := tx.Where("worker_id = ?", id).Delete(&models.AlertStatus{}).Error; err != nil {
			return fmt.Errorf("worker: delete alert statuses of %s: %w", id, err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Worker{}).Error; err != nil {
			return fmt.Errorf("worker: delete %s: %w", id, err)
		}
		return nil
	})
}

// checkDepartment ensures the department has been seeded.
func checkDepartment(db *gorm.DB, name string) error {
	var count int64
	if err := db.Model(&models.Department{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return fmt.Errorf("worker: check department %s: %w", name, err)
	}
	if count == 0 {
		return fmt.Errorf("worker: %w", apperr.NotFound("department", name))
	}
	return nil
}

// generateUniqueID generates an ID and retries once on collision.
func generateUniqueID(db *gorm.DB) (string, error) {
	for i := 0; i < 2; i++ {
		id, err := GenerateID()
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(&models.Worker{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", fmt.Errorf("worker: check ID uniqueness: %w", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("worker: failed to generate unique ID after retries")
}

// validationError converts the first validator failure into an apperr.ValidationError.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		switch fe.Tag() {
		case "required":
			return apperr.Invalid(fe.Field(), "is required")
		case "oneof":
			return apperr.Invalid(fe.Field(), "must be one of [%s]", fe.Param())
		default:
			return apperr.Invalid(fe.Field(), "failed %s validation", fe.Tag())
		}
	}
	return apperr.Invalid("", "%v", err)
}
