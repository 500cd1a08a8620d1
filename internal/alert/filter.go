package alert

import (
	"time"

	"github.com/zulandar/timekeeper/internal/apperr"
	"github.com/zulandar/timekeeper/internal/models"
)

// All matches every value of an option.
const All = "all"

// Criteria narrows an alert list. Empty fields and All impose no constraint;
// DateFrom and DateTo are inclusive YYYY-MM-DD bounds.
type Criteria struct {
	WorkerID string `json:"worker_id" form:"worker_id"`
	Severity string `json:"severity" form:"severity"`
	Status   string `json:"status" form:"status"`
	DateFrom string `json:"date_from" form:"date_from"`
	DateTo   string `json:"date_to" form:"date_to"`
}

// Validate rejects unrecognized option values.
func (c Criteria) Validate() error {
	if c.Severity != "" && c.Severity != All && !validSeverity(c.Severity) {
		return apperr.Invalid("severity", "must be critical, moderate, minor or all, got %q", c.Severity)
	}
	switch c.Status {
	case "", All, models.AlertActive, models.AlertArchived:
	default:
		return apperr.Invalid("status", "must be active, archived or all, got %q", c.Status)
	}
	for _, f := range [][2]string{{"date_from", c.DateFrom}, {"date_to", c.DateTo}} {
		if f[1] == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, f[1]); err != nil {
			return apperr.Invalid(f[0], "must be YYYY-MM-DD, got %q", f[1])
		}
	}
	if c.DateFrom != "" && c.DateTo != "" && c.DateFrom > c.DateTo {
		return apperr.Invalid("date_from", "must not be after date_to")
	}
	return nil
}

// Matches reports whether a single alert satisfies every set option.
func (c Criteria) Matches(a Alert) bool {
	if c.WorkerID != "" && c.WorkerID != All && a.WorkerID != c.WorkerID {
		return false
	}
	if c.Severity != "" && c.Severity != All && a.Severity != c.Severity {
		return false
	}
	if c.Status != "" && c.Status != All && a.Status != c.Status {
		return false
	}
	if c.DateFrom != "" && a.Date < c.DateFrom {
		return false
	}
	if c.DateTo != "" && a.Date > c.DateTo {
		return false
	}
	return true
}

// Filter returns the alerts matching c, preserving input order. The input is not modified.
func Filter(alerts []Alert, c Criteria) []Alert {
	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if c.Matches(a) {
			out = append(out, a)
		}
	}
	return out
}
