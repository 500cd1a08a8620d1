package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Worker roles.
const (
	RoleStandard   = "standard"
	RoleSupervisor = "supervisor"
)

// Worker is a person whose daily logged hours are tracked against a target.
type Worker struct {
	ID                string          `gorm:"primaryKey;size:32"`
	Name              string          `gorm:"size:128;not null"`
	Department        string          `gorm:"size:64;not null;index"`
	Role              string          `gorm:"size:16;default:standard"`
	TargetHoursPerDay decimal.Decimal `gorm:"type:decimal(8,6);not null"`
	ShiftStart        string          `gorm:"size:5;not null"` // HH:MM
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Tasks          []TaskRecord    `gorm:"foreignKey:WorkerID;constraint:OnDelete:CASCADE"`
	Justifications []Justification `gorm:"foreignKey:WorkerID;constraint:OnDelete:CASCADE"`
}

// IsSupervisor reports whether the worker is excluded from alert derivation.
func (w *Worker) IsSupervisor() bool {
	return w.Role == RoleSupervisor
}
