package models

import "time"

// TimerClaimSlot is the fixed primary key of the running-timer row. A single
// key means a single running timer for every process sharing the database.
const TimerClaimSlot = 1

// TimerClaim records which task is being timed, by whom, and how far it has
// got. The owning process advances ElapsedSeconds and HeartbeatAt each tick.
type TimerClaim struct {
	ID             uint   `gorm:"primaryKey;autoIncrement:false"`
	TaskID         uint   `gorm:"not null;index"`
	Owner          string `gorm:"size:64;not null"`
	ElapsedSeconds int64  `gorm:"not null"`
	StartedAt      time.Time
	HeartbeatAt    time.Time
}
