// Package timer measures live work time against a task record. At most one
// timer runs across every process sharing the database: the running timer is
// a single claim row, and starting a timer flushes and replaces whatever held
// it. The owning process advances the claim once per tick, which doubles as
// its heartbeat.
package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zulandar/timekeeper/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Defaults for the tick loop and flush cadence.
const (
	DefaultTickInterval = time.Second
	DefaultFlushEvery   = 30 * time.Minute
	MaxElapsed          = 12 * time.Hour
)

var secondsPerHour = decimal.NewFromInt(3600)

// State is a snapshot of the running timer.
type State struct {
	TaskID         uint      `json:"task_id"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	StartedAt      time.Time `json:"started_at"`
	Owner          string    `json:"owner"`
}

// Hours converts the elapsed seconds to hours.
func (s State) Hours() decimal.Decimal {
	return ToHours(s.ElapsedSeconds)
}

func stateOf(c *models.TimerClaim) State {
	return State{TaskID: c.TaskID, ElapsedSeconds: c.ElapsedSeconds, StartedAt: c.StartedAt, Owner: c.Owner}
}

// TickEvent is published after every tick of the running timer. Released
// means another process took the timer over or it was stopped elsewhere.
type TickEvent struct {
	TaskID         uint  `json:"task_id"`
	ElapsedSeconds int64 `json:"elapsed_seconds"`
	Flushed        bool  `json:"flushed"`
	Stopped        bool  `json:"stopped"`
	Released       bool  `json:"released"`
}

// Opts configures a Manager.
type Opts struct {
	DB           *gorm.DB
	Logger       *zap.Logger
	TickInterval time.Duration
	FlushEvery   time.Duration
	StaleAfter   time.Duration

	// Owner identifies this process on the claim row. Generated when empty.
	Owner string

	// Lock is held around every tick. Pass the lock that serializes record
	// writes in this process. Start, Stop and the other mutating methods
	// expect the caller to hold it already.
	Lock sync.Locker

	// Now overrides the clock used for heartbeats.
	Now func() time.Time
}

// Manager ticks the claim this process holds.
type Manager struct {
	db         *gorm.DB
	log        *zap.Logger
	owner      string
	interval   time.Duration
	flushEvery int64
	maxElapsed int64
	staleAfter time.Duration
	lock       sync.Locker
	now        func() time.Time

	// ticking is the task this process holds the claim for, or 0.
	ticking uint

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(TickEvent)
}

// New builds a Manager with defaults applied.
func New(opts Opts) *Manager {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.FlushEvery < time.Second {
		opts.FlushEvery = DefaultFlushEvery
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Lock == nil {
		opts.Lock = &sync.Mutex{}
	}
	if opts.Owner == "" {
		opts.Owner = uuid.NewString()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		db:         opts.DB,
		log:        opts.Logger.With(zap.String("owner", opts.Owner)),
		owner:      opts.Owner,
		interval:   opts.TickInterval,
		flushEvery: int64(opts.FlushEvery / time.Second),
		maxElapsed: int64(MaxElapsed / time.Second),
		staleAfter: opts.StaleAfter,
		lock:       opts.Lock,
		now:        opts.Now,
		subs:       make(map[int]func(TickEvent)),
	}
}

// Owner returns the identity this Manager claims the timer under.
func (m *Manager) Owner() string {
	return m.owner
}

// ToSeconds converts persisted hours to whole elapsed seconds.
func ToSeconds(hours decimal.Decimal) int64 {
	return hours.Mul(secondsPerHour).Round(0).IntPart()
}

// ToHours converts elapsed seconds to hours at storage precision.
func ToHours(seconds int64) decimal.Decimal {
	return decimal.NewFromInt(seconds).DivRound(secondsPerHour, 6)
}

// Active returns the running timer, if any. A claim whose owner stopped
// heartbeating is not reported.
func (m *Manager) Active() (State, bool, error) {
	c, err := CurrentClaim(m.db)
	if err != nil {
		return State{}, false, err
	}
	if c == nil {
		return State{}, false, nil
	}
	if c.Owner != m.owner && m.now().Sub(c.HeartbeatAt) > m.staleAfter {
		return State{}, false, nil
	}
	return stateOf(c), true, nil
}

// Start runs a timer for taskID in this process. Any other running timer,
// in this process or another, is stopped and flushed first. Starting the
// task that is already running keeps its elapsed time.
func (m *Manager) Start(taskID uint) (State, error) {
	c, displaced, err := acquire(m.db, m.owner, taskID, m.now())
	if err != nil {
		return State{}, fmt.Errorf("timer: start %d: %w", taskID, err)
	}
	if displaced != nil {
		m.log.Info("timer taken over",
			zap.Uint("task_id", displaced.TaskID),
			zap.String("previous_owner", displaced.Owner),
			zap.Int64("elapsed_seconds", displaced.ElapsedSeconds))
	}
	m.ticking = taskID
	m.log.Info("timer started", zap.Uint("task_id", taskID), zap.Int64("elapsed_seconds", c.ElapsedSeconds))
	return stateOf(c), nil
}

// Stop stops the timer for taskID and flushes its elapsed time, whichever
// process was ticking it. Stopping a task that is not running returns
// ok=false and writes nothing.
func (m *Manager) Stop(taskID uint) (State, bool, error) {
	c, ok, err := release(m.db, "", taskID)
	if m.ticking == taskID {
		m.ticking = 0
	}
	if err != nil {
		return State{}, false, fmt.Errorf("timer: stop %d: %w", taskID, err)
	}
	if !ok {
		return State{}, false, nil
	}
	m.log.Info("timer stopped", zap.Uint("task_id", taskID), zap.Int64("elapsed_seconds", c.ElapsedSeconds))
	return stateOf(c), true, nil
}

// Shutdown flushes and releases the claim this process holds, if any.
func (m *Manager) Shutdown() (State, bool, error) {
	if m.ticking == 0 {
		return State{}, false, nil
	}
	taskID := m.ticking
	m.ticking = 0
	c, ok, err := release(m.db, m.owner, taskID)
	if err != nil {
		return State{}, false, fmt.Errorf("timer: shutdown %d: %w", taskID, err)
	}
	if !ok {
		return State{}, false, nil
	}
	m.log.Info("timer stopped on shutdown", zap.Uint("task_id", taskID), zap.Int64("elapsed_seconds", c.ElapsedSeconds))
	return stateOf(c), true, nil
}

// Tick advances this process's timer by one second. The timer is flushed
// every FlushEvery seconds of elapsed time and stopped once it reaches
// MaxElapsed. A claim lost to another process is dropped locally and
// published as Released.
func (m *Manager) Tick() error {
	if m.ticking == 0 {
		return nil
	}
	taskID := m.ticking
	ev, held, err := advance(m.db, m.owner, taskID, m.flushEvery, m.maxElapsed, m.now())
	if err != nil {
		return fmt.Errorf("timer: tick %d: %w", taskID, err)
	}
	if !held {
		m.ticking = 0
		m.log.Info("timer released elsewhere", zap.Uint("task_id", taskID))
		m.publish(TickEvent{TaskID: taskID, Released: true})
		return nil
	}
	if ev.Stopped {
		m.ticking = 0
		m.log.Warn("timer reached maximum, stopped", zap.Uint("task_id", taskID))
	}
	m.publish(ev)
	return nil
}

// OnTick registers fn for every TickEvent and returns a function that
// unregisters it. fn runs under the tick lock and must not block.
func (m *Manager) OnTick(fn func(TickEvent)) (cancel func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

// Run drives Tick on the configured interval until ctx is cancelled. Tick
// failures are logged and the loop keeps going.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.lock.Lock()
			err := m.Tick()
			m.lock.Unlock()
			if err != nil {
				m.log.Error("timer tick failed", zap.Error(err))
			}
		}
	}
}

func (m *Manager) publish(ev TickEvent) {
	m.subMu.Lock()
	fns := make([]func(TickEvent), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
