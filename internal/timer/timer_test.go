package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zulandar/timekeeper/internal/config"
	"github.com/zulandar/timekeeper/internal/db"
	"github.com/zulandar/timekeeper/internal/ledger"
	"github.com/zulandar/timekeeper/internal/worker"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	cfg := &config.Config{Departments: []config.DepartmentConfig{{Name: "engineering", Categories: []string{"development"}}}}
	if err := db.Init(gormDB, cfg); err != nil {
		t.Fatalf("init test db: %v", err)
	}
	return gormDB
}

// seedRecords creates one record per hours value and returns their IDs.
func seedRecords(t *testing.T, gormDB *gorm.DB, hours ...string) []uint {
	t.Helper()
	w, err := worker.Create(gormDB, worker.CreateOpts{
		Name:              "Ada",
		Department:        "engineering",
		TargetHoursPerDay: decimal.NewFromInt(8),
		ShiftStart:        "09:00",
	})
	if err != nil {
		t.Fatalf("create worker: %v", err)
	}
	ids := make([]uint, 0, len(hours))
	for _, h := range hours {
		rec, err := ledger.Create(gormDB, ledger.CreateOpts{
			WorkerID:    w.ID,
			Description: "work",
			Category:    "development",
			Hours:       decimal.RequireFromString(h),
			Date:        "2024-01-14",
		})
		if err != nil {
			t.Fatalf("create record: %v", err)
		}
		ids = append(ids, rec.ID)
	}
	return ids
}

func hoursOf(t *testing.T, gormDB *gorm.DB, id uint) string {
	t.Helper()
	rec, err := ledger.Get(gormDB, id)
	if err != nil {
		t.Fatalf("get record %d: %v", id, err)
	}
	return rec.Hours.String()
}

func tickN(t *testing.T, m *Manager, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := m.Tick(); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}
}

func TestConversions(t *testing.T) {
	if got := ToSeconds(decimal.RequireFromString("1.5")); got != 5400 {
		t.Errorf("ToSeconds(1.5) = %d, want 5400", got)
	}
	if got := ToSeconds(decimal.RequireFromString("0.333333")); got != 1200 {
		t.Errorf("ToSeconds(0.333333) = %d, want 1200", got)
	}
	if got := ToHours(5400).String(); got != "1.5" {
		t.Errorf("ToHours(5400) = %s, want 1.5", got)
	}
	if got := ToHours(1801).String(); got != "0.500278" {
		t.Errorf("ToHours(1801) = %s, want 0.500278", got)
	}
}

func TestStart_SeedsFromPersistedHours(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "1.25")
	m := New(Opts{DB: gormDB, Owner: "a"})

	st, err := m.Start(ids[0])
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st.ElapsedSeconds != 4500 {
		t.Errorf("ElapsedSeconds = %d, want 4500", st.ElapsedSeconds)
	}
	active, ok, err := m.Active()
	if err != nil || !ok || active.TaskID != ids[0] || active.Owner != "a" {
		t.Errorf("Active = %+v, %v, %v", active, ok, err)
	}
}

func TestStart_UnknownTask(t *testing.T) {
	gormDB := openTestDB(t)
	m := New(Opts{DB: gormDB})
	if _, err := m.Start(9); err == nil {
		t.Fatal("expected error for unknown task")
	}
	if _, ok, _ := m.Active(); ok {
		t.Error("no timer should be running")
	}
}

func TestStart_StopsAndFlushesPrevious(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "1", "2")
	m := New(Opts{DB: gormDB})

	if _, err := m.Start(ids[0]); err != nil {
		t.Fatalf("Start(first): %v", err)
	}
	tickN(t, m, 90)
	if _, err := m.Start(ids[1]); err != nil {
		t.Fatalf("Start(second): %v", err)
	}

	active, _, _ := m.Active()
	if active.TaskID != ids[1] || active.ElapsedSeconds != 7200 {
		t.Errorf("Active = %+v, want second task at 7200s", active)
	}
	if got := hoursOf(t, gormDB, ids[0]); got != "1.025" {
		t.Errorf("first task hours = %s, want 1.025", got)
	}
}

func TestStart_SameTaskKeepsElapsed(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "1")
	m := New(Opts{DB: gormDB})
	m.Start(ids[0])
	tickN(t, m, 1)

	st, err := m.Start(ids[0])
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st.ElapsedSeconds != 3601 {
		t.Errorf("ElapsedSeconds = %d, want 3601 (not reseeded)", st.ElapsedSeconds)
	}
	if got := hoursOf(t, gormDB, ids[0]); got != "1" {
		t.Errorf("hours = %s, restart must not flush", got)
	}
}

func TestStart_TakesOverAcrossManagers(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "1", "2")
	a := New(Opts{DB: gormDB, Owner: "a"})
	b := New(Opts{DB: gormDB, Owner: "b"})

	a.Start(ids[0])
	tickN(t, a, 36)
	if _, err := b.Start(ids[1]); err != nil {
		t.Fatalf("b.Start: %v", err)
	}
	if got := hoursOf(t, gormDB, ids[0]); got != "1.01" {
		t.Errorf("first task hours after takeover = %s, want 1.01", got)
	}

	var last TickEvent
	a.OnTick(func(ev TickEvent) { last = ev })
	tickN(t, a, 1)
	if !last.Released || last.TaskID != ids[0] {
		t.Errorf("a's tick after takeover = %+v, want released", last)
	}
	tickN(t, b, 1)

	for _, m := range []*Manager{a, b} {
		st, ok, _ := m.Active()
		if !ok || st.TaskID != ids[1] || st.Owner != "b" || st.ElapsedSeconds != 7201 {
			t.Errorf("%s sees Active = %+v, %v; want second task owned by b at 7201s", m.Owner(), st, ok)
		}
	}
	if got := hoursOf(t, gormDB, ids[0]); got != "1.01" {
		t.Errorf("released timer wrote to first task: %s", got)
	}
}

func TestStart_AdoptsClaimOnSameTask(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "1")
	a := New(Opts{DB: gormDB, Owner: "a"})
	b := New(Opts{DB: gormDB, Owner: "b"})

	a.Start(ids[0])
	tickN(t, a, 5)
	st, err := b.Start(ids[0])
	if err != nil {
		t.Fatalf("b.Start: %v", err)
	}
	if st.Owner != "b" || st.ElapsedSeconds != 3605 {
		t.Errorf("adopted = %+v, want b at 3605s", st)
	}
	tickN(t, a, 1)
	tickN(t, b, 1)
	if st, _, _ := b.Active(); st.ElapsedSeconds != 3606 {
		t.Errorf("elapsed = %d, want 3606 (one tick from the new owner only)", st.ElapsedSeconds)
	}
}

func TestActive_IgnoresStaleClaim(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "1")
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	a := New(Opts{DB: gormDB, Owner: "a", Now: func() time.Time { return now }})
	a.Start(ids[0])

	later := now.Add(time.Minute)
	b := New(Opts{DB: gormDB, Owner: "b", StaleAfter: 30 * time.Second, Now: func() time.Time { return later }})
	if _, ok, _ := b.Active(); ok {
		t.Error("claim without a heartbeat for a minute should not count as running")
	}
	if _, ok, _ := a.Active(); !ok {
		t.Error("owner should still see its own claim")
	}
}

func TestTick_FlushesOnHalfHourMultiples(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "0.5")
	m := New(Opts{DB: gormDB})
	m.Start(ids[0])

	var flushedAt []int64
	cancel := m.OnTick(func(ev TickEvent) {
		if ev.Flushed {
			flushedAt = append(flushedAt, ev.ElapsedSeconds)
		}
	})
	defer cancel()

	tickN(t, m, 1800)
	if got := hoursOf(t, gormDB, ids[0]); got != "1" {
		t.Errorf("hours after first flush = %s, want 1", got)
	}
	tickN(t, m, 1800)
	if len(flushedAt) != 2 || flushedAt[0] != 3600 || flushedAt[1] != 5400 {
		t.Errorf("flushed at %v, want [3600 5400]", flushedAt)
	}
	if got := hoursOf(t, gormDB, ids[0]); got != "1.5" {
		t.Errorf("hours after second flush = %s, want 1.5", got)
	}
	if _, ok, _ := m.Active(); !ok {
		t.Error("periodic flush must not stop the timer")
	}
}

func TestTick_NoTimerIsNoop(t *testing.T) {
	m := New(Opts{DB: openTestDB(t)})
	events := 0
	m.OnTick(func(TickEvent) { events++ })
	tickN(t, m, 1)
	if events != 0 {
		t.Errorf("events = %d, want 0", events)
	}
}

func TestTick_AutoStopsAtMaximum(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "11.999")
	m := New(Opts{DB: gormDB})
	m.Start(ids[0])

	var last TickEvent
	m.OnTick(func(ev TickEvent) { last = ev })
	tickN(t, m, 10)
	if _, ok, _ := m.Active(); ok {
		t.Fatal("timer should stop at the maximum")
	}
	if !last.Stopped || last.ElapsedSeconds != 43200 {
		t.Errorf("last event = %+v, want stopped at 43200", last)
	}
	if got := hoursOf(t, gormDB, ids[0]); got != "12" {
		t.Errorf("hours = %s, want 12", got)
	}
}

func TestTick_RecordDeletedUnderTimer(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "0.5")
	m := New(Opts{DB: gormDB, FlushEvery: time.Second})
	m.Start(ids[0])
	if err := ledger.Delete(gormDB, ids[0]); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var last TickEvent
	m.OnTick(func(ev TickEvent) { last = ev })
	tickN(t, m, 1)
	if !last.Released {
		t.Errorf("event = %+v, want released", last)
	}
	if c, _ := CurrentClaim(gormDB); c != nil {
		t.Errorf("claim left behind: %+v", c)
	}
}

func TestStop_FlushesUnconditionally(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "2")
	m := New(Opts{DB: gormDB})
	m.Start(ids[0])
	tickN(t, m, 36)

	st, ok, err := m.Stop(ids[0])
	if err != nil || !ok {
		t.Fatalf("Stop = %v, %v", ok, err)
	}
	if st.ElapsedSeconds != 7236 {
		t.Errorf("ElapsedSeconds = %d, want 7236", st.ElapsedSeconds)
	}
	if got := hoursOf(t, gormDB, ids[0]); got != "2.01" {
		t.Errorf("hours = %s, want 2.01", got)
	}
	if _, ok, _ := m.Active(); ok {
		t.Error("timer still active after Stop")
	}
}

func TestStop_FromAnotherManager(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "2")
	a := New(Opts{DB: gormDB, Owner: "a"})
	b := New(Opts{DB: gormDB, Owner: "b"})
	a.Start(ids[0])
	tickN(t, a, 36)

	if _, ok, err := b.Stop(ids[0]); !ok || err != nil {
		t.Fatalf("b.Stop = %v, %v", ok, err)
	}
	tickN(t, a, 5)
	if got := hoursOf(t, gormDB, ids[0]); got != "2.01" {
		t.Errorf("hours = %s, want 2.01 with no ticks after the stop", got)
	}
}

func TestStop_NotRunning(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "2", "1")
	m := New(Opts{DB: gormDB})
	m.Start(ids[0])
	if _, ok, err := m.Stop(ids[1]); ok || err != nil {
		t.Errorf("Stop(other) = %v, %v; want false, nil", ok, err)
	}
	if _, ok, _ := m.Active(); !ok {
		t.Error("stopping another task must not stop the running timer")
	}
}

func TestShutdown_ReleasesOwnClaimOnly(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "1")
	a := New(Opts{DB: gormDB, Owner: "a"})
	b := New(Opts{DB: gormDB, Owner: "b"})
	a.Start(ids[0])
	b.Start(ids[0])

	if _, ok, err := a.Shutdown(); ok || err != nil {
		t.Errorf("a.Shutdown = %v, %v; want nothing to release", ok, err)
	}
	if _, ok, _ := b.Active(); !ok {
		t.Fatal("b's claim must survive a's shutdown")
	}
	tickN(t, b, 1800)
	if _, ok, err := b.Shutdown(); !ok || err != nil {
		t.Fatalf("b.Shutdown = %v, %v", ok, err)
	}
	if got := hoursOf(t, gormDB, ids[0]); got != "1.5" {
		t.Errorf("hours = %s, want 1.5", got)
	}
}

func TestReseedAndDropClaim(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "2", "1")
	m := New(Opts{DB: gormDB})
	m.Start(ids[0])

	if ok, _ := ReseedClaim(gormDB, ids[1], decimal.NewFromInt(5)); ok {
		t.Error("ReseedClaim of a task that is not running reported a change")
	}
	if ok, err := ReseedClaim(gormDB, ids[0], decimal.RequireFromString("3.5")); !ok || err != nil {
		t.Fatalf("ReseedClaim = %v, %v", ok, err)
	}
	if st, _, _ := m.Active(); st.ElapsedSeconds != 12600 {
		t.Errorf("ElapsedSeconds after reseed = %d, want 12600", st.ElapsedSeconds)
	}
	if ok, err := DropClaim(gormDB, ids[0]); !ok || err != nil {
		t.Fatalf("DropClaim = %v, %v", ok, err)
	}
	if got := hoursOf(t, gormDB, ids[0]); got != "2" {
		t.Errorf("DropClaim must not flush: hours = %s", got)
	}
	if _, ok, _ := m.Active(); ok {
		t.Error("timer still active after DropClaim")
	}
}

func TestOnTick_Cancel(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "1")
	m := New(Opts{DB: gormDB})
	m.Start(ids[0])
	n := 0
	cancel := m.OnTick(func(TickEvent) { n++ })
	tickN(t, m, 1)
	cancel()
	tickN(t, m, 1)
	if n != 1 {
		t.Errorf("events after cancel = %d, want 1", n)
	}
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	gormDB := openTestDB(t)
	ids := seedRecords(t, gormDB, "1")
	var mu sync.Mutex
	m := New(Opts{DB: gormDB, TickInterval: 5 * time.Millisecond, Lock: &mu})
	mu.Lock()
	m.Start(ids[0])
	mu.Unlock()

	ticks := make(chan TickEvent, 64)
	m.OnTick(func(ev TickEvent) {
		select {
		case ticks <- ev:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	select {
	case ev := <-ticks:
		if ev.TaskID != ids[0] || ev.ElapsedSeconds <= 3600 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick within 2s")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
