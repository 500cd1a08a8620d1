// Package justification stores per-day exception records. Each worker may
// hold at most one justification per calendar day.
package justification

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/timekeeper/internal/apperr"
	"github.com/zulandar/timekeeper/internal/ledger"
	"github.com/zulandar/timekeeper/internal/models"
	"github.com/zulandar/timekeeper/internal/worker"
	"gorm.io/gorm"
)

// ValidTransitions maps each review status to the statuses it may move to.
var ValidTransitions = map[string][]string{
	models.JustificationPending: {models.JustificationApproved, models.JustificationRejected},
}

// Key renders the (worker, date) identity used in duplicate errors.
func Key(workerID, date string) string {
	return workerID + "/" + date
}

// Create records a holiday/vacation justification for a worker and day. The
// check and insert run in one transaction and the unique index on
// (worker_id, date) backs them, so concurrent creates for the same key
// yield exactly one row and DuplicateKeyError for the rest.
func Create(db *gorm.DB, workerID, date string) (*models.Justification, error) {
	if _, err := ledger.ParseDate(date); err != nil {
		return nil, fmt.Errorf("justification: create: %w", err)
	}
	if _, err := worker.Get(db, workerID); err != nil {
		return nil, err
	}

	j := &models.Justification{
		WorkerID: workerID,
		Date:     date,
		Type:     models.JustificationHolidayVacation,
		Status:   models.JustificationPending,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Justification{}).
			Where("worker_id = ? AND date = ?", workerID, date).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check existing: %w", err)
		}
		if count > 0 {
			return apperr.Duplicate("justification", Key(workerID, date))
		}
		if err := tx.Create(j).Error; err != nil {
			if isDuplicateKey(err) {
				return apperr.Duplicate("justification", Key(workerID, date))
			}
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("justification: create: %w", err)
	}
	return j, nil
}

// Exists reports whether a justification is recorded for the worker and day.
func Exists(db *gorm.DB, workerID, date string) (bool, error) {
	var count int64
	if err := db.Model(&models.Justification{}).
		Where("worker_id = ? AND date = ?", workerID, date).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("justification: exists %s: %w", Key(workerID, date), err)
	}
	return count > 0, nil
}

// List returns justifications, optionally for one worker, newest day first.
func List(db *gorm.DB, workerID string) ([]models.Justification, error) {
	q := db.Model(&models.Justification{})
	if workerID != "" {
		q = q.Where("worker_id = ?", workerID)
	}
	var out []models.Justification
	if err := q.Order("date DESC, worker_id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("justification: list: %w", err)
	}
	return out, nil
}

// StatusIndex returns the review status of every justification in the
// inclusive date range, keyed by Key(worker, date).
func StatusIndex(db *gorm.DB, dateFrom, dateTo string) (map[string]string, error) {
	var rows []models.Justification
	if err := db.Where("date >= ? AND date <= ?", dateFrom, dateTo).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("justification: status index: %w", err)
	}
	idx := make(map[string]string, len(rows))
	for _, r := range rows {
		idx[Key(r.WorkerID, r.Date)] = r.Status
	}
	return idx, nil
}

// SetStatus moves a justification through review.
func SetStatus(db *gorm.DB, id uint, status string) error {
	var j models.Justification
	if err := db.Where("id = ?", id).First(&j).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("justification: %w", apperr.NotFound("justification", id))
		}
		return fmt.Errorf("justification: get %d: %w", id, err)
	}
	if !isValidTransition(j.Status, status) {
		return fmt.Errorf("justification: %w", apperr.Invalid("status",
			"cannot move from %q to %q; valid transitions: %v", j.Status, status, ValidTransitions[j.Status]))
	}
	if err := db.Model(&models.Justification{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return fmt.Errorf("justification: set status %d: %w", id, err)
	}
	return nil
}

func isValidTransition(from, to string) bool {
	for _, v := range ValidTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

// isDuplicateKey recognizes unique-constraint violations from either driver,
// translated or raw.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
