// Package digest posts a scheduled summary of newly active compliance alerts.
package digest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/timekeeper/internal/alert"
	"github.com/zulandar/timekeeper/internal/models"
	"github.com/zulandar/timekeeper/internal/notify"
	"go.uber.org/zap"
)

// cronParser accepts standard 5-field expressions (minute, hour, dom, month, dow)
// and descriptors such as @daily, matching config validation.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Source derives the current alert set.
type Source interface {
	DeriveAlerts(ctx context.Context, ref time.Time) ([]alert.Alert, error)
}

// Opts configures a Scheduler.
type Opts struct {
	Source   Source
	Notifier notify.Notifier
	Logger   *zap.Logger
	Spec     string // cron expression
	Now      func() time.Time
}

// Scheduler runs the digest on a cron schedule. Each run reports active
// alerts that were not active in the previous successful run.
type Scheduler struct {
	src      Source
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
	sched    cron.Schedule
	spec     string

	mu   sync.Mutex
	seen map[alert.Key]bool
}

// New validates the schedule and builds a Scheduler.
func New(opts Opts) (*Scheduler, error) {
	if opts.Source == nil || opts.Notifier == nil {
		return nil, fmt.Errorf("digest: source and notifier are required")
	}
	sched, err := cronParser.Parse(opts.Spec)
	if err != nil {
		return nil, fmt.Errorf("digest: parse schedule %q: %w", opts.Spec, err)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		src:      opts.Source,
		notifier: opts.Notifier,
		log:      opts.Logger,
		now:      opts.Now,
		sched:    sched,
		spec:     opts.Spec,
		seen:     make(map[alert.Key]bool),
	}, nil
}

// Next returns the next fire time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.sched.Next(t)
}

// RunOnce derives alerts for today and notifies the ones not reported
// before. It returns how many alerts were sent.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	alerts, err := s.src.DeriveAlerts(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("digest: derive: %w", err)
	}

	active := make(map[alert.Key]bool)
	var fresh []alert.Alert
	for _, a := range alerts {
		if a.Status != models.AlertActive {
			continue
		}
		active[a.Key()] = true
		if !s.seen[a.Key()] {
			fresh = append(fresh, a)
		}
	}
	if len(fresh) == 0 {
		s.seen = active
		return 0, nil
	}

	title := fmt.Sprintf("Timekeeper digest %s", now.Format("2006-01-02"))
	if err := s.notifier.Notify(ctx, notify.FormatDigest(title, fresh)); err != nil {
		return 0, fmt.Errorf("digest: notify %s: %w", s.notifier.Name(), err)
	}
	s.seen = active
	return len(fresh), nil
}

// Run fires RunOnce on the schedule until ctx is cancelled. Failures are
// logged, not returned.
func (s *Scheduler) Run(ctx context.Context) {
	c := cron.New()
	c.Schedule(s.sched, cron.FuncJob(func() {
		n, err := s.RunOnce(ctx)
		if err != nil {
			s.log.Error("digest run failed", zap.Error(err))
			return
		}
		s.log.Info("digest sent", zap.Int("alerts", n), zap.String("notifier", s.notifier.Name()))
	}))
	c.Start()
	s.log.Info("digest scheduled", zap.String("spec", s.spec), zap.Time("next", s.Next(time.Now())))

	<-ctx.Done()
	<-c.Stop().Done()
}
