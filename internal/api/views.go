package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/zulandar/timekeeper/internal/ledger"
	"github.com/zulandar/timekeeper/internal/models"
)

type workerView struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Department        string          `json:"department"`
	Role              string          `json:"role"`
	TargetHoursPerDay decimal.Decimal `json:"target_hours_per_day"`
	ShiftStart        string          `json:"shift_start"`
	CreatedAt         time.Time       `json:"created_at"`
}

func newWorkerView(w *models.Worker) workerView {
	return workerView{
		ID:                w.ID,
		Name:              w.Name,
		Department:        w.Department,
		Role:              w.Role,
		TargetHoursPerDay: w.TargetHoursPerDay,
		ShiftStart:        w.ShiftStart,
		CreatedAt:         w.CreatedAt,
	}
}

type recordView struct {
	ID          uint              `json:"id"`
	WorkerID    string            `json:"worker_id"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Hours       decimal.Decimal   `json:"hours"`
	Date        string            `json:"date"`
	TimeRange   *models.TimeRange `json:"time_range,omitempty"`
}

func newRecordView(r *models.TaskRecord, w *models.Worker) recordView {
	v := recordView{
		ID:          r.ID,
		WorkerID:    r.WorkerID,
		Description: r.Description,
		Category:    r.Category,
		Hours:       r.Hours,
		Date:        r.Date,
	}
	if w != nil {
		if tr, err := ledger.TimeRangeOf(w, r); err == nil {
			v.TimeRange = &tr
		}
	}
	return v
}

type justificationView struct {
	ID        uint      `json:"id"`
	WorkerID  string    `json:"worker_id"`
	Date      string    `json:"date"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func newJustificationView(j *models.Justification) justificationView {
	return justificationView{
		ID:        j.ID,
		WorkerID:  j.WorkerID,
		Date:      j.Date,
		Type:      j.Type,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
	}
}
