// Package relay mirrors observer events onto a Kafka topic and feeds
// remote inbound messages into the pipeline.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/parley-ai/parley/internal/bus"
	"github.com/parley-ai/parley/internal/config"
)

// Submitter accepts inbound messages for a topic. Implemented by
// pipeline.Pipeline.
type Submitter interface {
	Submit(ctx context.Context, topicID, text, senderID string)
}

// InboundEnvelope is the wire format consumed from the inbound topic.
type InboundEnvelope struct {
	TopicID  string `json:"topic_id"`
	Text     string `json:"text"`
	SenderID string `json:"sender_id"`
}

// Relay connects the event bus to Kafka.
type Relay struct {
	cfg     config.RelayConfig
	events  *bus.EventBus
	submit  Submitter
	writer  *kafka.Writer
	reader  *kafka.Reader
	pending chan bus.Event
}

// New creates a relay. Call Start to begin publishing/consuming.
func New(cfg config.RelayConfig, events *bus.EventBus, submit Submitter) *Relay {
	return &Relay{
		cfg:     cfg,
		events:  events,
		submit:  submit,
		pending: make(chan bus.Event, 256),
	}
}

// Start wires the relay into the bus and launches the producer and
// consumer loops. No-op when the relay is not configured.
func (r *Relay) Start(ctx context.Context) error {
	if !r.cfg.Enabled() {
		return nil
	}
	brokers := strings.Split(r.cfg.Brokers, ",")

	r.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        r.cfg.EventTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	// Bus callbacks must not block; buffer and publish from our own
	// goroutine, dropping on overflow.
	r.events.Subscribe(func(evt bus.Event) {
		select {
		case r.pending <- evt:
		default:
			slog.Warn("relay buffer full, dropping event", "type", evt.Type)
		}
	})
	go r.produceLoop(ctx)

	if r.cfg.InboundTopic != "" && r.submit != nil {
		r.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    r.cfg.InboundTopic,
			GroupID:  r.cfg.Group,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
		go r.consumeLoop(ctx)
	}
	return nil
}

func (r *Relay) produceLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-r.pending:
			value, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = r.writer.WriteMessages(writeCtx, kafka.Message{
				Key:   []byte(evt.TopicID),
				Value: value,
				Time:  evt.Timestamp,
			})
			cancel()
			if err != nil && ctx.Err() == nil {
				slog.Warn("relay produce failed", "type", evt.Type, "error", err)
			}
		}
	}
}

func (r *Relay) consumeLoop(ctx context.Context) {
	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("relay consume failed", "error", err)
			continue
		}
		var env InboundEnvelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			slog.Warn("relay: malformed inbound envelope", "error", err)
			continue
		}
		if env.TopicID == "" || env.Text == "" {
			continue
		}
		r.submit.Submit(ctx, env.TopicID, env.Text, env.SenderID)
	}
}

// Stop closes the Kafka writer and reader.
func (r *Relay) Stop() error {
	var firstErr error
	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			firstErr = err
		}
	}
	if r.reader != nil {
		if err := r.reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
