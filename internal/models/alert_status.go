package models

import "time"

// Alert statuses.
const (
	AlertActive   = "active"
	AlertArchived = "archived"
)

// AlertStatus is an overlay row: the archive decision for one derived alert key.
type AlertStatus struct {
	WorkerID  string `gorm:"primaryKey;size:32"`
	Date      string `gorm:"primaryKey;size:10"`
	Severity  string `gorm:"primaryKey;size:16"`
	Status    string `gorm:"size:16;not null;default:active;index"`
	UpdatedAt time.Time
}
