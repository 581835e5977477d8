package channels

import (
	"context"
	"testing"

	"github.com/parley-ai/parley/internal/bus"
	"github.com/parley-ai/parley/internal/config"
)

type captureSubmitter struct {
	topicID  string
	text     string
	senderID string
	calls    int
}

func (c *captureSubmitter) Submit(ctx context.Context, topicID, text, senderID string) {
	c.topicID, c.text, c.senderID = topicID, text, senderID
	c.calls++
}

func TestHandleInbound_MapsToTopicAndSender(t *testing.T) {
	sub := &captureSubmitter{}
	ch := NewSlackChannel(config.SlackConfig{Enabled: true}, sub, bus.NewEventBus())

	ch.handleInbound(context.Background(), "C0123", "U0456", "  hello there  ")

	if sub.calls != 1 {
		t.Fatalf("Submit called %d times, want 1", sub.calls)
	}
	if sub.topicID != "slack:C0123" {
		t.Errorf("topicID = %q, want slack:C0123", sub.topicID)
	}
	if sub.senderID != "slack:U0456" {
		t.Errorf("senderID = %q, want slack:U0456", sub.senderID)
	}
	if sub.text != "hello there" {
		t.Errorf("text = %q, want trimmed", sub.text)
	}
}

func TestHandleInbound_DropsEmptyText(t *testing.T) {
	sub := &captureSubmitter{}
	ch := NewSlackChannel(config.SlackConfig{Enabled: true}, sub, bus.NewEventBus())

	ch.handleInbound(context.Background(), "C0123", "U0456", "   ")
	if sub.calls != 0 {
		t.Errorf("Submit called %d times for blank text, want 0", sub.calls)
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		name      string
		allowFrom []string
		user      string
		want      bool
	}{
		{"empty list allows everyone", nil, "U1", true},
		{"listed user allowed", []string{"U1", "U2"}, "U2", true},
		{"unlisted user denied", []string{"U1"}, "U9", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewSlackChannel(config.SlackConfig{AllowFrom: tt.allowFrom}, nil, bus.NewEventBus())
			if got := ch.allowed(tt.user); got != tt.want {
				t.Errorf("allowed(%q) = %v, want %v", tt.user, got, tt.want)
			}
		})
	}
}

func TestHandleInbound_AllowListEnforced(t *testing.T) {
	sub := &captureSubmitter{}
	ch := NewSlackChannel(config.SlackConfig{Enabled: true, AllowFrom: []string{"U1"}}, sub, bus.NewEventBus())

	ch.handleInbound(context.Background(), "C0123", "U9", "hi")
	if sub.calls != 0 {
		t.Errorf("Submit called for denied user")
	}
}
