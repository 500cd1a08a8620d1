package slack

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/timekeeper/internal/notify"
)

type mockSlackClient struct {
	mu     sync.Mutex
	posted []postedMessage
	errs   []error // returned in order, one per call
	calls  int
}

type postedMessage struct {
	channelID string
	options   []slackapi.MsgOption
}

func (m *mockSlackClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return "", "", err
		}
	}
	m.posted = append(m.posted, postedMessage{channelID: channelID, options: options})
	return channelID, "1700000000.000100", nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "C1"}); err == nil {
		t.Error("expected error without token or client")
	}
	if _, err := New(Opts{BotToken: "xoxb-1"}); err == nil {
		t.Error("expected error without channel")
	}
	if _, err := New(Opts{BotToken: "xoxb-1", ChannelID: "C1"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNotify_PostsToChannel(t *testing.T) {
	client := &mockSlackClient{}
	n, err := New(Opts{ChannelID: "C_ALERTS", Client: client})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	msg := notify.Message{
		Text:  "digest",
		Items: []notify.Item{{Title: "Ada (engineering)", Body: "2024-01-14 critical", Color: notify.ColorCritical}},
	}
	if err := n.Notify(context.Background(), msg); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(client.posted) != 1 || client.posted[0].channelID != "C_ALERTS" {
		t.Fatalf("posted = %+v", client.posted)
	}
	if len(client.posted[0].options) != 2 {
		t.Errorf("options = %d, want text + attachments", len(client.posted[0].options))
	}
	if n.Name() != "slack" {
		t.Errorf("Name = %q", n.Name())
	}
}

func TestNotify_SplitsLongDigests(t *testing.T) {
	client := &mockSlackClient{}
	n, _ := New(Opts{ChannelID: "C1", Client: client})
	msg := notify.Message{Text: "digest", Items: make([]notify.Item, maxAttachments+1)}
	if err := n.Notify(context.Background(), msg); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(client.posted) != 2 {
		t.Errorf("posts = %d, want 2", len(client.posted))
	}
}

func TestNotify_RetriesRateLimit(t *testing.T) {
	client := &mockSlackClient{errs: []error{&slackapi.RateLimitedError{RetryAfter: time.Millisecond}}}
	n, _ := New(Opts{ChannelID: "C1", Client: client})
	if err := n.Notify(context.Background(), notify.Message{Text: "hi"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want 2", client.calls)
	}
}

func TestNotify_OtherErrorsAreNotRetried(t *testing.T) {
	client := &mockSlackClient{errs: []error{errors.New("channel_not_found")}}
	n, _ := New(Opts{ChannelID: "C1", Client: client})
	if err := n.Notify(context.Background(), notify.Message{Text: "hi"}); err == nil {
		t.Fatal("expected error")
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1", client.calls)
	}
}

func TestItemToAttachment(t *testing.T) {
	att := itemToAttachment(notify.Item{
		Title:  "Ada",
		Body:   "details",
		Color:  notify.ColorMinor,
		Fields: []notify.Field{{Name: "minor", Value: "2", Short: true}},
	})
	if att.Title != "Ada" || att.Fallback != "Ada" || att.Color != notify.ColorMinor {
		t.Errorf("attachment = %+v", att)
	}
	if len(att.Fields) != 1 || !att.Fields[0].Short || att.Fields[0].Value != "2" {
		t.Errorf("fields = %+v", att.Fields)
	}
}
