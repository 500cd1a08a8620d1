package alert

import (
	"fmt"
	"time"

	"github.com/zulandar/timekeeper/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Result reports the outcome of one key in a bulk archive or restore.
type Result struct {
	Key Key   `json:"key"`
	Err error `json:"-"`
}

// StatusOf returns the overlay status of key, active when nothing is recorded.
func StatusOf(db *gorm.DB, key Key) (string, error) {
	var row models.AlertStatus
	err := db.Where("worker_id = ? AND date = ? AND severity = ?", key.WorkerID, key.Date, key.Severity).
		Limit(1).Find(&row).Error
	if err != nil {
		return "", fmt.Errorf("alert: status of %s: %w", key, err)
	}
	if row.Status == "" {
		return models.AlertActive, nil
	}
	return row.Status, nil
}

// Archive records key as archived. Archiving an already archived key is a no-op.
func Archive(db *gorm.DB, key Key) error {
	return setStatus(db, key, models.AlertArchived)
}

// Restore flips an archived key back to active. Unknown keys succeed without writing.
func Restore(db *gorm.DB, key Key) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("alert: restore: %w", err)
	}
	err := db.Model(&models.AlertStatus{}).
		Where("worker_id = ? AND date = ? AND severity = ?", key.WorkerID, key.Date, key.Severity).
		Updates(map[string]interface{}{"status": models.AlertActive, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("alert: restore %s: %w", key, err)
	}
	return nil
}

// ArchiveMany archives each key on its own; one failure does not undo the others.
func ArchiveMany(db *gorm.DB, keys []Key) []Result {
	return each(keys, func(k Key) error { return Archive(db, k) })
}

// RestoreMany restores each key on its own; one failure does not undo the others.
func RestoreMany(db *gorm.DB, keys []Key) []Result {
	return each(keys, func(k Key) error { return Restore(db, k) })
}

// Merge stamps each derived alert with its overlay status. Alerts without an
// overlay row stay active.
func Merge(db *gorm.DB, alerts []Alert) ([]Alert, error) {
	if len(alerts) == 0 {
		return alerts, nil
	}
	from, to := alerts[0].Date, alerts[0].Date
	for _, a := range alerts[1:] {
		if a.Date < from {
			from = a.Date
		}
		if a.Date > to {
			to = a.Date
		}
	}

	var rows []models.AlertStatus
	if err := db.Where("date >= ? AND date <= ?", from, to).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("alert: merge overlay: %w", err)
	}
	status := make(map[Key]string, len(rows))
	for _, r := range rows {
		status[Key{WorkerID: r.WorkerID, Date: r.Date, Severity: r.Severity}] = r.Status
	}

	merged := make([]Alert, len(alerts))
	for i, a := range alerts {
		if s, ok := status[a.Key()]; ok {
			a.Status = s
		} else {
			a.Status = models.AlertActive
		}
		merged[i] = a
	}
	return merged, nil
}

// Prune deletes overlay rows whose key is not among the live alerts and
// returns how many were removed.
func Prune(db *gorm.DB, live []Alert) (int, error) {
	keep := make(map[Key]bool, len(live))
	for _, a := range live {
		keep[a.Key()] = true
	}

	var rows []models.AlertStatus
	if err := db.Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("alert: prune load: %w", err)
	}
	removed := 0
	for _, r := range rows {
		k := Key{WorkerID: r.WorkerID, Date: r.Date, Severity: r.Severity}
		if keep[k] {
			continue
		}
		if err := db.Where("worker_id = ? AND date = ? AND severity = ?", k.WorkerID, k.Date, k.Severity).
			Delete(&models.AlertStatus{}).Error; err != nil {
			return removed, fmt.Errorf("alert: prune %s: %w", k, err)
		}
		removed++
	}
	return removed, nil
}

func setStatus(db *gorm.DB, key Key, status string) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("alert: set status: %w", err)
	}
	row := models.AlertStatus{
		WorkerID:  key.WorkerID,
		Date:      key.Date,
		Severity:  key.Severity,
		Status:    status,
		UpdatedAt: time.Now(),
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "worker_id"}, {Name: "date"}, {Name: "severity"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("alert: set %s %s: %w", key, status, err)
	}
	return nil
}

func each(keys []Key, fn func(Key) error) []Result {
	results := make([]Result, len(keys))
	for i, k := range keys {
		results[i] = Result{Key: k, Err: fn(k)}
	}
	return results
}
