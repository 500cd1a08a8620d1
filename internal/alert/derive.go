package alert

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zulandar/timekeeper/internal/models"
)

// DefaultWindowDays is the number of days before the reference date that are checked.
const DefaultWindowDays = 30

const dateLayout = "2006-01-02"

// Classification thresholds on the daily deficit.
var (
	IncompleteThreshold = decimal.RequireFromString("0.5")
	ModerateThreshold   = decimal.NewFromInt(2)
)

// DeriveOpts tunes a derivation run.
type DeriveOpts struct {
	WindowDays int

	// Justifications maps justification.Key(worker, date) to review status.
	// Matching alerts carry the status as an annotation.
	Justifications map[string]string

	// SuppressJustified drops alerts for days with an approved justification.
	SuppressJustified bool
}

// Window returns the first and last day (inclusive) checked for a reference date.
// The reference day itself is excluded.
func Window(ref time.Time, days int) (from, to string) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	day := truncateDay(ref)
	return day.AddDate(0, 0, -days).Format(dateLayout), day.AddDate(0, 0, -1).Format(dateLayout)
}

// Classify applies the logged-hours rule. ok is false for a compliant day.
func Classify(target, logged decimal.Decimal) (kind, severity string, ok bool) {
	if logged.IsZero() {
		return KindNoRecords, SeverityCritical, true
	}
	deficit := target.Sub(logged)
	if deficit.GreaterThanOrEqual(IncompleteThreshold) {
		if deficit.GreaterThanOrEqual(ModerateThreshold) {
			return KindIncompleteDay, SeverityModerate, true
		}
		return KindIncompleteDay, SeverityMinor, true
	}
	return "", "", false
}

// Derive computes the alert set for the window before ref. It is pure:
// records outside the window and supervisors are ignored, and every
// returned alert is active. Alerts are ordered newest day first, then by
// worker name and ID.
func Derive(workers []models.Worker, records []models.TaskRecord, ref time.Time, opts DeriveOpts) []Alert {
	days := opts.WindowDays
	if days <= 0 {
		days = DefaultWindowDays
	}
	from, to := Window(ref, days)

	logged := make(map[string]map[string]decimal.Decimal)
	for _, r := range records {
		if r.Date < from || r.Date > to {
			continue
		}
		byDay, ok := logged[r.WorkerID]
		if !ok {
			byDay = make(map[string]decimal.Decimal)
			logged[r.WorkerID] = byDay
		}
		byDay[r.Date] = byDay[r.Date].Add(r.Hours)
	}

	staff := make([]models.Worker, 0, len(workers))
	for _, w := range workers {
		if !w.IsSupervisor() {
			staff = append(staff, w)
		}
	}
	sort.Slice(staff, func(i, j int) bool {
		if staff[i].Name != staff[j].Name {
			return staff[i].Name < staff[j].Name
		}
		return staff[i].ID < staff[j].ID
	})

	var alerts []Alert
	day := truncateDay(ref)
	for i := 1; i <= days; i++ {
		date := day.AddDate(0, 0, -i).Format(dateLayout)
		for _, w := range staff {
			got := logged[w.ID][date]
			kind, severity, ok := Classify(w.TargetHoursPerDay, got)
			if !ok {
				continue
			}
			just := opts.Justifications[justificationKey(w.ID, date)]
			if opts.SuppressJustified && just == models.JustificationApproved {
				continue
			}
			alerts = append(alerts, Alert{
				WorkerID:      w.ID,
				WorkerName:    w.Name,
				Department:    w.Department,
				Date:          date,
				Kind:          kind,
				Severity:      severity,
				TargetHours:   w.TargetHoursPerDay,
				LoggedHours:   got,
				DeficitHours:  w.TargetHoursPerDay.Sub(got),
				Status:        models.AlertActive,
				Justification: just,
			})
		}
	}
	return alerts
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// justificationKey matches justification.Key without importing the storage package.
func justificationKey(workerID, date string) string {
	return workerID + "/" + date
}
