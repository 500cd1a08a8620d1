// Package slack posts alert digests to a Slack channel.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/timekeeper/internal/notify"
)

const (
	maxRetries = 3
	// maxAttachments keeps each post well under Slack's attachment limit.
	maxAttachments = 20
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts digests with one attachment per item.
type Notifier struct {
	client    slackClient
	channelID string
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	BotToken  string // xoxb-... bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &Notifier{client: client, channelID: opts.ChannelID}, nil
}

// Name implements notify.Notifier.
func (n *Notifier) Name() string { return "slack" }

// Notify posts msg, splitting long digests across several posts.
func (n *Notifier) Notify(ctx context.Context, msg notify.Message) error {
	for i, batch := range notify.Chunk(msg.Items, maxAttachments) {
		text := msg.Text
		if i > 0 {
			text = fmt.Sprintf("%s (continued)", msg.Text)
		}
		options := buildMessageOptions(text, batch)
		err := retryOnRateLimit(ctx, func() error {
			_, _, postErr := n.client.PostMessage(n.channelID, options...)
			return postErr
		})
		if err != nil {
			return fmt.Errorf("slack: post message: %w", err)
		}
	}
	return nil
}

func buildMessageOptions(text string, items []notify.Item) []slackapi.MsgOption {
	options := []slackapi.MsgOption{slackapi.MsgOptionText(text, false)}
	if len(items) > 0 {
		attachments := make([]slackapi.Attachment, 0, len(items))
		for _, it := range items {
			attachments = append(attachments, itemToAttachment(it))
		}
		options = append(options, slackapi.MsgOptionAttachments(attachments...))
	}
	return options
}

func itemToAttachment(it notify.Item) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    it.Title,
		Text:     it.Body,
		Color:    it.Color,
		Fallback: it.Title,
	}
	for _, f := range it.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}

// retryOnRateLimit retries fn when Slack answers with a rate limit, waiting
// for the advertised Retry-After or an exponential backoff.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}
		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
