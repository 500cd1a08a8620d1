package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/timekeeper/internal/alert"
	"github.com/zulandar/timekeeper/internal/models"
	"github.com/zulandar/timekeeper/internal/notify"
)

type fakeSource struct {
	alerts []alert.Alert
	err    error
	refs   []time.Time
}

func (f *fakeSource) DeriveAlerts(_ context.Context, ref time.Time) ([]alert.Alert, error) {
	f.refs = append(f.refs, ref)
	return f.alerts, f.err
}

type fakeNotifier struct {
	msgs []notify.Message
	err  error
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Notify(_ context.Context, msg notify.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func active(workerID, date string) alert.Alert {
	return alert.Alert{WorkerID: workerID, WorkerName: workerID, Date: date, Severity: alert.SeverityCritical, Status: models.AlertActive}
}

var fixedNow = func() time.Time { return time.Date(2024, 1, 15, 7, 0, 0, 0, time.UTC) }

func TestNew_RejectsBadSpec(t *testing.T) {
	_, err := New(Opts{Source: &fakeSource{}, Notifier: &fakeNotifier{}, Spec: "every morning"})
	if err == nil || !strings.Contains(err.Error(), "parse schedule") {
		t.Errorf("err = %v, want parse schedule error", err)
	}
	if _, err := New(Opts{Spec: "0 7 * * *"}); err == nil {
		t.Error("expected error without source and notifier")
	}
}

func TestNext(t *testing.T) {
	s, err := New(Opts{Source: &fakeSource{}, Notifier: &fakeNotifier{}, Spec: "0 7 * * 1-5"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Saturday 2024-01-13 → Monday 2024-01-15 07:00.
	got := s.Next(time.Date(2024, 1, 13, 12, 0, 0, 0, time.UTC))
	want := time.Date(2024, 1, 15, 7, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Next = %s, want %s", got, want)
	}
}

func TestRunOnce_ReportsOnlyNewAlerts(t *testing.T) {
	src := &fakeSource{alerts: []alert.Alert{active("wkr-a", "2024-01-14"), active("wkr-b", "2024-01-14")}}
	archived := active("wkr-c", "2024-01-14")
	archived.Status = models.AlertArchived
	src.alerts = append(src.alerts, archived)
	n := &fakeNotifier{}
	s, _ := New(Opts{Source: src, Notifier: n, Spec: "0 7 * * *", Now: fixedNow})
	ctx := context.Background()

	sent, err := s.RunOnce(ctx)
	if err != nil || sent != 2 {
		t.Fatalf("first run = %d, %v; want 2", sent, err)
	}
	if !src.refs[0].Equal(fixedNow()) {
		t.Errorf("ref = %s", src.refs[0])
	}
	if !strings.HasPrefix(n.msgs[0].Text, "Timekeeper digest 2024-01-15") {
		t.Errorf("text = %q", n.msgs[0].Text)
	}

	sent, _ = s.RunOnce(ctx)
	if sent != 0 || len(n.msgs) != 1 {
		t.Errorf("second run sent %d (messages %d), want nothing new", sent, len(n.msgs))
	}

	src.alerts = append(src.alerts, active("wkr-a", "2024-01-13"))
	sent, _ = s.RunOnce(ctx)
	if sent != 1 {
		t.Errorf("third run sent %d, want 1", sent)
	}
}

func TestRunOnce_FailedNotifyIsRetried(t *testing.T) {
	src := &fakeSource{alerts: []alert.Alert{active("wkr-a", "2024-01-14")}}
	n := &fakeNotifier{err: errors.New("offline")}
	s, _ := New(Opts{Source: src, Notifier: n, Spec: "0 7 * * *", Now: fixedNow})

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected notify error")
	}
	n.err = nil
	sent, err := s.RunOnce(context.Background())
	if err != nil || sent != 1 {
		t.Errorf("retry run = %d, %v; want 1", sent, err)
	}
}

func TestRunOnce_DeriveError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	s, _ := New(Opts{Source: src, Notifier: &fakeNotifier{}, Spec: "0 7 * * *"})
	if _, err := s.RunOnce(context.Background()); err == nil || !strings.Contains(err.Error(), "digest: derive") {
		t.Errorf("err = %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, _ := New(Opts{Source: &fakeSource{}, Notifier: &fakeNotifier{}, Spec: "0 7 * * *"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
