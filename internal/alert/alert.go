// Package alert derives compliance alerts from logged hours, reconciles them
// with persisted archive decisions, and narrows them for display.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zulandar/timekeeper/internal/apperr"
)

// Alert kinds.
const (
	KindNoRecords     = "no_records"
	KindIncompleteDay = "incomplete_day"
)

// Alert severities.
const (
	SeverityCritical = "critical"
	SeverityModerate = "moderate"
	SeverityMinor    = "minor"
)

// Key is the stable identity of a derived alert.
type Key struct {
	WorkerID string `json:"worker_id"`
	Date     string `json:"date"`
	Severity string `json:"severity"`
}

// String renders the key as worker/date/severity.
func (k Key) String() string {
	return k.WorkerID + "/" + k.Date + "/" + k.Severity
}

// Validate checks that the key names a worker, a real calendar day and a
// known severity.
func (k Key) Validate() error {
	if k.WorkerID == "" {
		return apperr.Invalid("key", "worker is required in %q", k.String())
	}
	if _, err := time.Parse(dateLayout, k.Date); err != nil {
		return apperr.Invalid("key", "date must be YYYY-MM-DD, got %q", k.Date)
	}
	if !validSeverity(k.Severity) {
		return apperr.Invalid("key", "unknown severity %q", k.Severity)
	}
	return nil
}

// ParseKey parses the worker/date/severity form produced by Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Key{}, apperr.Invalid("key", "must be worker/date/severity, got %q", s)
	}
	k := Key{WorkerID: parts[0], Date: parts[1], Severity: parts[2]}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Alert is one worker-day that fails the logged-hours rule.
type Alert struct {
	WorkerID      string          `json:"worker_id"`
	WorkerName    string          `json:"worker_name"`
	Department    string          `json:"department"`
	Date          string          `json:"date"`
	Kind          string          `json:"kind"`
	Severity      string          `json:"severity"`
	TargetHours   decimal.Decimal `json:"target_hours"`
	LoggedHours   decimal.Decimal `json:"logged_hours"`
	DeficitHours  decimal.Decimal `json:"deficit_hours"`
	Status        string          `json:"status"`
	Justification string          `json:"justification,omitempty"` // review status of the day's justification, if any
}

// Key returns the alert's overlay identity.
func (a Alert) Key() Key {
	return Key{WorkerID: a.WorkerID, Date: a.Date, Severity: a.Severity}
}

func (a Alert) String() string {
	return fmt.Sprintf("%s %s %s (%s): logged %s of %s", a.Date, a.WorkerName, a.Severity, a.Kind, a.LoggedHours, a.TargetHours)
}

func validSeverity(s string) bool {
	switch s {
	case SeverityCritical, SeverityModerate, SeverityMinor:
		return true
	}
	return false
}
