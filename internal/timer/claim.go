package timer

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zulandar/timekeeper/internal/apperr"
	"github.com/zulandar/timekeeper/internal/ledger"
	"github.com/zulandar/timekeeper/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultStaleAfter is how long a claim may go without a heartbeat before
// it no longer counts as running.
const DefaultStaleAfter = 30 * time.Second

// loadClaim reads the claim row with a write lock where the dialect
// supports one. A nil claim means no timer is running.
func loadClaim(tx *gorm.DB) (*models.TimerClaim, error) {
	var c models.TimerClaim
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", models.TimerClaimSlot).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load claim: %w", err)
	}
	return &c, nil
}

// flushClaim writes the claim's elapsed time to its record. A record that
// no longer exists is reported as gone rather than as an error.
func flushClaim(tx *gorm.DB, c *models.TimerClaim) (gone bool, err error) {
	err = ledger.SetHours(tx, c.TaskID, ToHours(c.ElapsedSeconds))
	if apperr.IsNotFound(err) {
		return true, nil
	}
	return false, err
}

func dropClaimRow(tx *gorm.DB) error {
	if err := tx.Where("id = ?", models.TimerClaimSlot).Delete(&models.TimerClaim{}).Error; err != nil {
		return fmt.Errorf("drop claim: %w", err)
	}
	return nil
}

// acquire claims the timer slot for taskID on behalf of owner. A claim on
// the same task is adopted with its elapsed time; a claim on any other task
// is flushed and replaced. displaced is the claim that was replaced, if any.
func acquire(db *gorm.DB, owner string, taskID uint, now time.Time) (claim, displaced *models.TimerClaim, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		cur, err := loadClaim(tx)
		if err != nil {
			return err
		}
		if cur != nil && cur.TaskID == taskID {
			if cur.Owner != owner {
				displaced = &models.TimerClaim{}
				*displaced = *cur
			}
			cur.Owner = owner
			cur.HeartbeatAt = now
			if err := tx.Save(cur).Error; err != nil {
				return fmt.Errorf("adopt claim: %w", err)
			}
			claim = cur
			return nil
		}

		rec, err := ledger.Get(tx, taskID)
		if err != nil {
			return err
		}
		if cur != nil {
			if _, err := flushClaim(tx, cur); err != nil {
				return err
			}
			displaced = cur
		}
		claim = &models.TimerClaim{
			ID:             models.TimerClaimSlot,
			TaskID:         taskID,
			Owner:          owner,
			ElapsedSeconds: ToSeconds(rec.Hours),
			StartedAt:      now,
			HeartbeatAt:    now,
		}
		if err := tx.Save(claim).Error; err != nil {
			return fmt.Errorf("save claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return claim, displaced, nil
}

// advance adds one second to owner's claim on taskID and refreshes its
// heartbeat. held is false when the claim was taken over, stopped elsewhere,
// or its record was deleted; nothing is written in that case.
func advance(db *gorm.DB, owner string, taskID uint, flushEvery, maxElapsed int64, now time.Time) (ev TickEvent, held bool, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		c, err := loadClaim(tx)
		if err != nil {
			return err
		}
		if c == nil || c.TaskID != taskID || c.Owner != owner {
			return nil
		}
		held = true
		c.ElapsedSeconds++
		c.HeartbeatAt = now
		ev = TickEvent{TaskID: c.TaskID}

		switch {
		case c.ElapsedSeconds >= maxElapsed:
			c.ElapsedSeconds = maxElapsed
			ev.Flushed, ev.Stopped = true, true
			if _, err := flushClaim(tx, c); err != nil {
				return err
			}
			ev.ElapsedSeconds = c.ElapsedSeconds
			return dropClaimRow(tx)
		case c.ElapsedSeconds%flushEvery == 0:
			gone, err := flushClaim(tx, c)
			if err != nil {
				return err
			}
			if gone {
				held = false
				return dropClaimRow(tx)
			}
			ev.Flushed = true
		}
		ev.ElapsedSeconds = c.ElapsedSeconds
		return tx.Model(&models.TimerClaim{}).
			Where("id = ? AND owner = ?", models.TimerClaimSlot, owner).
			Updates(map[string]interface{}{
				"elapsed_seconds": c.ElapsedSeconds,
				"heartbeat_at":    c.HeartbeatAt,
			}).Error
	})
	if err != nil {
		return TickEvent{}, false, err
	}
	return ev, held, nil
}

// release flushes and removes the claim on taskID. An empty owner releases
// the claim whoever holds it.
func release(db *gorm.DB, owner string, taskID uint) (*models.TimerClaim, bool, error) {
	var released *models.TimerClaim
	err := db.Transaction(func(tx *gorm.DB) error {
		c, err := loadClaim(tx)
		if err != nil {
			return err
		}
		if c == nil || c.TaskID != taskID || (owner != "" && c.Owner != owner) {
			return nil
		}
		if _, err := flushClaim(tx, c); err != nil {
			return err
		}
		released = c
		return dropClaimRow(tx)
	})
	if err != nil {
		return nil, false, err
	}
	return released, released != nil, nil
}

// CurrentClaim returns the claim row, or nil when no timer is running.
func CurrentClaim(db *gorm.DB) (*models.TimerClaim, error) {
	c, err := loadClaim(db)
	if err != nil {
		return nil, fmt.Errorf("timer: %w", err)
	}
	return c, nil
}

// ReseedClaim replaces the elapsed time of a running timer on taskID after
// its record's hours were edited by hand. Run it in the same transaction as
// the edit so no flush can land between the two.
func ReseedClaim(db *gorm.DB, taskID uint, hours decimal.Decimal) (bool, error) {
	result := db.Model(&models.TimerClaim{}).
		Where("id = ? AND task_id = ?", models.TimerClaimSlot, taskID).
		Update("elapsed_seconds", ToSeconds(hours))
	if result.Error != nil {
		return false, fmt.Errorf("timer: reseed %d: %w", taskID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DropClaim removes a running timer on taskID without flushing, for when its
// record is about to be deleted.
func DropClaim(db *gorm.DB, taskID uint) (bool, error) {
	result := db.Where("id = ? AND task_id = ?", models.TimerClaimSlot, taskID).
		Delete(&models.TimerClaim{})
	if result.Error != nil {
		return false, fmt.Errorf("timer: drop %d: %w", taskID, result.Error)
	}
	return result.RowsAffected > 0, nil
}
