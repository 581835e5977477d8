package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/parley-ai/parley/internal/bus"
	"github.com/parley-ai/parley/internal/config"
)

// topicPrefix namespaces Slack conversations in the topic id space:
// topic "slack:C0123" maps to Slack channel C0123.
const topicPrefix = "slack:"

// SlackChannel runs a Slack Socket Mode client. Inbound messages for
// mapped conversations are submitted to the pipeline; completed
// responses from the event bus are posted back.
type SlackChannel struct {
	cfg    config.SlackConfig
	submit Submitter
	events *bus.EventBus

	api    *slack.Client
	sock   *socketmode.Client
	cancel context.CancelFunc
}

// NewSlackChannel creates a Slack channel adapter.
func NewSlackChannel(cfg config.SlackConfig, submit Submitter, events *bus.EventBus) *SlackChannel {
	return &SlackChannel{
		cfg:    cfg,
		submit: submit,
		events: events,
	}
}

func (c *SlackChannel) Name() string { return "slack" }

// Start connects the Socket Mode client and runs its event loop until
// the context is cancelled.
func (c *SlackChannel) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	if c.cfg.BotToken == "" || c.cfg.AppToken == "" {
		return fmt.Errorf("slack channel: botToken and appToken required")
	}

	ctx, c.cancel = context.WithCancel(ctx)

	c.api = slack.New(c.cfg.BotToken, slack.OptionAppLevelToken(c.cfg.AppToken))
	c.sock = socketmode.New(c.api)

	// Mirror completed responses back to the originating conversation.
	c.events.Subscribe(func(evt bus.Event) {
		if evt.Type != bus.EventMessage || evt.Phase != bus.PhaseComplete {
			return
		}
		channelID, ok := strings.CutPrefix(evt.TopicID, topicPrefix)
		if !ok || evt.Text == "" {
			return
		}
		go func() {
			_, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(evt.Text, false))
			if err != nil {
				slog.Warn("slack post failed", "channel", channelID, "error", err)
			}
		}()
	})

	go c.runEventLoop(ctx)
	return c.sock.RunContext(ctx)
}

func (c *SlackChannel) runEventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.sock.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			if evt.Request != nil {
				c.sock.Ack(*evt.Request)
			}
			ev, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok || ev.Type != slackevents.CallbackEvent {
				continue
			}
			switch in := ev.InnerEvent.Data.(type) {
			case *slackevents.MessageEvent:
				if in == nil || in.BotID != "" || in.SubType != "" {
					continue
				}
				c.handleInbound(ctx, in.Channel, in.User, in.Text)
			case *slackevents.AppMentionEvent:
				if in == nil {
					continue
				}
				c.handleInbound(ctx, in.Channel, in.User, in.Text)
			}
		}
	}
}

func (c *SlackChannel) handleInbound(ctx context.Context, channelID, userID, text string) {
	if !c.allowed(userID) {
		slog.Debug("slack sender not in allow list", "user", userID)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	c.submit.Submit(ctx, topicPrefix+channelID, text, "slack:"+userID)
}

func (c *SlackChannel) allowed(userID string) bool {
	if len(c.cfg.AllowFrom) == 0 {
		return true
	}
	for _, allowed := range c.cfg.AllowFrom {
		if allowed == userID {
			return true
		}
	}
	return false
}

func (c *SlackChannel) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}
