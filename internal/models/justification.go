package models

import "time"

// Justification types and review statuses.
const (
	JustificationHolidayVacation = "holiday_vacation"

	JustificationPending  = "pending"
	JustificationApproved = "approved"
	JustificationRejected = "rejected"
)

// Justification records a worker's explanation for a day. At most one exists per worker and date.
type Justification struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	WorkerID  string `gorm:"size:32;not null;uniqueIndex:idx_worker_day"`
	Date      string `gorm:"size:10;not null;uniqueIndex:idx_worker_day"`
	Type      string `gorm:"size:32;default:holiday_vacation"`
	Status    string `gorm:"size:16;default:pending;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
