package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskRecord is one worker's logged hours against a category on a calendar day.
type TaskRecord struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"`
	WorkerID    string          `gorm:"size:32;not null;index:idx_worker_date"`
	Description string          `gorm:"type:text;not null"`
	Category    string          `gorm:"size:64;not null"`
	Hours       decimal.Decimal `gorm:"type:decimal(8,6);not null"`
	Date        string          `gorm:"size:10;not null;index:idx_worker_date"` // YYYY-MM-DD
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TimeRange is the derived wall-clock span of a task record, anchored at the worker's shift start.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}
