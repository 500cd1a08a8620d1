package discord

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/timekeeper/internal/notify"
)

type mockSession struct {
	sent  []*discordgo.MessageSend
	errs  []error
	calls int
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	m.sent = append(m.sent, data)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "1"}); err == nil {
		t.Error("expected error without token or session")
	}
	if _, err := New(Opts{Session: &mockSession{}}); err == nil {
		t.Error("expected error without channel")
	}
}

func TestNotify_SplitsAtEmbedLimit(t *testing.T) {
	sess := &mockSession{}
	n, err := New(Opts{ChannelID: "123", Session: sess})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	items := make([]notify.Item, maxEmbeds+3)
	for i := range items {
		items[i] = notify.Item{Title: "w", Color: notify.ColorModerate}
	}
	if err := n.Notify(context.Background(), notify.Message{Text: "digest", Items: items}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sess.sent) != 2 {
		t.Fatalf("messages = %d, want 2", len(sess.sent))
	}
	if sess.sent[0].Content != "digest" || len(sess.sent[0].Embeds) != maxEmbeds {
		t.Errorf("first message = %q with %d embeds", sess.sent[0].Content, len(sess.sent[0].Embeds))
	}
	if sess.sent[1].Content != "" || len(sess.sent[1].Embeds) != 3 {
		t.Errorf("second message = %q with %d embeds", sess.sent[1].Content, len(sess.sent[1].Embeds))
	}
	if sess.sent[0].Embeds[0].Color != 0xff9800 {
		t.Errorf("embed color = %x, want ff9800", sess.sent[0].Embeds[0].Color)
	}
}

func TestNotify_RetriesTooManyRequests(t *testing.T) {
	rateLimited := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
	sess := &mockSession{errs: []error{rateLimited}}
	n, _ := New(Opts{ChannelID: "123", Session: sess})
	n.baseBackoff = time.Millisecond

	if err := n.Notify(context.Background(), notify.Message{Text: "hi"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sess.calls != 2 {
		t.Errorf("calls = %d, want 2", sess.calls)
	}
}

func TestNotify_GivesUpOnOtherErrors(t *testing.T) {
	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	sess := &mockSession{errs: []error{forbidden}}
	n, _ := New(Opts{ChannelID: "123", Session: sess})
	if err := n.Notify(context.Background(), notify.Message{Text: "hi"}); err == nil {
		t.Fatal("expected error")
	}
	if sess.calls != 1 {
		t.Errorf("calls = %d, want 1", sess.calls)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := map[string]int{"#e53935": 0xe53935, "36a64f": 0x36a64f, "nope": 0}
	for in, want := range tests {
		if got := parseHexColor(in); got != want {
			t.Errorf("parseHexColor(%q) = %x, want %x", in, got, want)
		}
	}
}
