// Package tracker is the service layer callers use. It owns the lock that
// serializes every task-record write, timer tick and alert derivation within
// a process. Writes that touch a running timer go through the timer's claim
// row in the same transaction, so edits from other processes and timer
// flushes never interleave either.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/timekeeper/internal/alert"
	"github.com/zulandar/timekeeper/internal/config"
	"github.com/zulandar/timekeeper/internal/justification"
	"github.com/zulandar/timekeeper/internal/ledger"
	"github.com/zulandar/timekeeper/internal/models"
	"github.com/zulandar/timekeeper/internal/timer"
	"github.com/zulandar/timekeeper/internal/worker"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service exposes alert, timer and record operations over one database.
type Service struct {
	mu     sync.Mutex
	db     *gorm.DB
	alerts config.AlertsConfig
	log    *zap.Logger
	timers *timer.Manager
}

// Opts configures a Service.
type Opts struct {
	DB     *gorm.DB
	Config *config.Config
	Logger *zap.Logger
}

// New builds a Service. Call Run to start the timer tick loop.
func New(opts Opts) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	s := &Service{
		db:     opts.DB,
		alerts: cfg.Alerts,
		log:    opts.Logger,
	}
	s.timers = timer.New(timer.Opts{
		DB:           opts.DB,
		Logger:       opts.Logger.Named("timer"),
		TickInterval: cfg.Timer.TickInterval,
		FlushEvery:   cfg.Timer.FlushEvery,
		Lock:         &s.mu,
	})
	return s
}

// DB returns the underlying connection for reads that need no serialization.
func (s *Service) DB() *gorm.DB {
	return s.db
}

// Run drives the timer until ctx is cancelled, then stops and flushes the
// timer this process is running, if any.
func (s *Service) Run(ctx context.Context) {
	s.timers.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, _, err := s.timers.Shutdown(); err != nil {
		s.log.Error("flush timer on shutdown", zap.Error(err))
	}
}

// DeriveAlerts recomputes the alert set for the window before ref and
// stamps each alert with its archive status.
func (s *Service) DeriveAlerts(ctx context.Context, ref time.Time) ([]alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.derive(ctx, ref)
}

// FilterAlerts derives alerts for ref and narrows them by c.
func (s *Service) FilterAlerts(ctx context.Context, ref time.Time, c alert.Criteria) ([]alert.Alert, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("tracker: filter alerts: %w", err)
	}
	alerts, err := s.DeriveAlerts(ctx, ref)
	if err != nil {
		return nil, err
	}
	return alert.Filter(alerts, c), nil
}

// PruneAlerts drops archive decisions for alerts that are no longer derived
// for the window before ref.
func (s *Service) PruneAlerts(ctx context.Context, ref time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, err := s.derive(ctx, ref)
	if err != nil {
		return 0, err
	}
	n, err := alert.Prune(s.db.WithContext(ctx), live)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.log.Info("pruned stale alert statuses", zap.Int("count", n))
	}
	return n, nil
}

// ArchiveAlert marks one alert archived.
func (s *Service) ArchiveAlert(key alert.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := alert.Archive(s.db, key); err != nil {
		return err
	}
	s.log.Info("alert archived", zap.Stringer("key", key))
	return nil
}

// RestoreAlert marks one alert active again.
func (s *Service) RestoreAlert(key alert.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := alert.Restore(s.db, key); err != nil {
		return err
	}
	s.log.Info("alert restored", zap.Stringer("key", key))
	return nil
}

// ArchiveAlerts archives each key independently and reports every outcome.
func (s *Service) ArchiveAlerts(keys []alert.Key) []alert.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := alert.ArchiveMany(s.db, keys)
	s.logBulk("archive", results)
	return results
}

// RestoreAlerts restores each key independently and reports every outcome.
func (s *Service) RestoreAlerts(keys []alert.Key) []alert.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := alert.RestoreMany(s.db, keys)
	s.logBulk("restore", results)
	return results
}

// StartTimer starts the timer for a task record in this process, stopping
// any other timer wherever it runs.
func (s *Service) StartTimer(taskID uint) (timer.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers.Start(taskID)
}

// StopTimer stops the task's timer and flushes it. stopped is false when the
// task exists but was not running.
func (s *Service) StopTimer(taskID uint) (st timer.State, stopped bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := ledger.Get(s.db, taskID); err != nil {
		return timer.State{}, false, err
	}
	return s.timers.Stop(taskID)
}

// ActiveTimer returns the running timer, if any, whichever process owns it.
func (s *Service) ActiveTimer() (timer.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers.Active()
}

// OnTick subscribes fn to timer ticks. fn must not block.
func (s *Service) OnTick(fn func(timer.TickEvent)) (cancel func()) {
	return s.timers.OnTick(fn)
}

// CreateRecord stores a task record.
func (s *Service) CreateRecord(opts ledger.CreateOpts) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.Create(s.db, opts)
}

// UpdateRecord patches a task record. A running timer on the record picks
// up hand-edited hours so the next flush does not overwrite them.
func (s *Service) UpdateRecord(id uint, p ledger.Patch) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rec *models.TaskRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if p.Hours != nil {
			if _, err := timer.ReseedClaim(tx, id, *p.Hours); err != nil {
				return err
			}
		}
		var err error
		rec, err = ledger.Update(tx, id, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteRecord removes a task record, discarding its timer if running.
func (s *Service) DeleteRecord(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if dropped, err = timer.DropClaim(tx, id); err != nil {
			return err
		}
		return ledger.Delete(tx, id)
	})
	if err != nil {
		return err
	}
	if dropped {
		s.log.Info("timer discarded with its record", zap.Uint("task_id", id))
	}
	return nil
}

// UpdateWorker changes a worker's profile. See worker.Update for the keys.
func (s *Service) UpdateWorker(id string, updates map[string]interface{}) (*models.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := worker.Update(s.db, id, updates)
	if err != nil {
		return nil, err
	}
	s.log.Info("worker updated", zap.String("worker_id", id))
	return w, nil
}

// DeleteWorker removes a worker and everything recorded against them.
func (s *Service) DeleteWorker(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		c, err := timer.CurrentClaim(tx)
		if err != nil {
			return err
		}
		if c != nil {
			if rec, err := ledger.Get(tx, c.TaskID); err == nil && rec.WorkerID == id {
				if _, err := timer.DropClaim(tx, c.TaskID); err != nil {
					return err
				}
				dropped = c.TaskID
			}
		}
		return worker.Delete(tx, id)
	})
	if err != nil {
		return err
	}
	if dropped != 0 {
		s.log.Info("timer discarded with its worker", zap.Uint("task_id", dropped))
	}
	s.log.Info("worker deleted", zap.String("worker_id", id))
	return nil
}

// CreateJustification records a holiday/vacation justification.
func (s *Service) CreateJustification(workerID, date string) (*models.Justification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return justification.Create(s.db, workerID, date)
}

// ReviewJustification approves or rejects a pending justification.
func (s *Service) ReviewJustification(id uint, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return justification.SetStatus(s.db, id, status)
}

func (s *Service) derive(ctx context.Context, ref time.Time) ([]alert.Alert, error) {
	db := s.db.WithContext(ctx)
	from, to := alert.Window(ref, s.alerts.WindowDays)

	workers, err := worker.List(db, worker.ListFilters{})
	if err != nil {
		return nil, fmt.Errorf("tracker: derive: %w", err)
	}
	records, err := ledger.List(db, ledger.ListFilters{DateFrom: from, DateTo: to})
	if err != nil {
		return nil, fmt.Errorf("tracker: derive: %w", err)
	}
	just, err := justification.StatusIndex(db, from, to)
	if err != nil {
		return nil, fmt.Errorf("tracker: derive: %w", err)
	}

	alerts := alert.Derive(workers, records, ref, alert.DeriveOpts{
		WindowDays:        s.alerts.WindowDays,
		Justifications:    just,
		SuppressJustified: s.alerts.SuppressJustified,
	})
	return alert.Merge(db, alerts)
}

func (s *Service) logBulk(op string, results []alert.Result) {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			s.log.Warn("bulk "+op+" key failed", zap.Stringer("key", r.Key), zap.Error(r.Err))
		}
	}
	s.log.Info("bulk "+op, zap.Int("keys", len(results)), zap.Int("failed", failed))
}
