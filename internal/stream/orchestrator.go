// Package stream wraps a single completion-provider invocation in a
// typed event stream with an exactly-once terminal event and
// consolidated finalization.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/analysis"
	"github.com/parley-ai/parley/internal/bus"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/store"
)

// EventType identifies a session event.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventText      EventType = "text"
	EventReasoning EventType = "reasoning"
	EventAnalysis  EventType = "analysis"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Session phases.
const (
	PhaseResponding = "responding"
	PhaseStreaming  = "streaming"
	PhaseAnalyzing  = "analyzing"
	PhaseComplete   = "complete"
	PhaseError      = "error"
)

// Event is one occurrence in a streaming session. Exactly one of the
// terminal types (EventCompleted, EventFailed) closes every session.
type Event struct {
	Type     EventType
	Status   string             // EventProgress
	Chunk    string             // EventText / EventReasoning delta
	Analysis *provider.Analysis // EventAnalysis
	Result   *Result            // EventCompleted
	Err      error              // EventFailed
}

// Result is the consolidated outcome of a completed session.
type Result struct {
	MessageID string
	Text      string
	Reasoning string
	Analysis  *provider.Analysis
	Usage     provider.Usage
}

// Persister appends a finalized message to the durable topic record.
type Persister interface {
	AppendMessage(rec *store.MessageRecord) error
}

// AnalysisSink receives extracted signals on a non-blocking path.
type AnalysisSink interface {
	Ingest(job analysis.Job)
}

// Orchestrator runs streaming sessions against a completion provider.
type Orchestrator struct {
	provider     provider.CompletionProvider
	persister    Persister
	analysisSink AnalysisSink
	events       *bus.EventBus
	maxTokens    int
	temperature  float64
}

// Options configures an orchestrator.
type Options struct {
	Provider     provider.CompletionProvider
	Persister    Persister
	AnalysisSink AnalysisSink
	Events       *bus.EventBus
	MaxTokens    int
	Temperature  float64
}

// New creates an orchestrator. Persister, AnalysisSink, and Events may
// be nil; the corresponding finalization steps are skipped.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		provider:     opts.Provider,
		persister:    opts.Persister,
		analysisSink: opts.AnalysisSink,
		events:       opts.Events,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
	}
}

// RunInput describes one response generation.
type RunInput struct {
	TopicID     string
	ResponderID string // persona the message speaks as
	AuthorID    string // concrete model identity that produced it
	Model       string // provider-facing model name
	History     []provider.Message
}

// Session is the observable lifecycle of one provider invocation.
type Session struct {
	ID        string
	MessageID string

	events chan Event
	once   sync.Once
	done   chan struct{}

	mu     sync.Mutex
	result *Result
	err    error
}

// Events returns the session's event channel. The channel is closed
// after the terminal event.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Wait blocks until the terminal event and returns the outcome.
func (s *Session) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// emit delivers a non-terminal event, dropping it when the consumer
// has fallen behind. Terminal delivery goes through finalize only.
func (s *Session) emit(evt Event) {
	select {
	case s.events <- evt:
	default:
	}
}

// finalize records the outcome and delivers the terminal event exactly
// once, then closes the event channel.
func (s *Session) finalize(evt Event, result *Result, err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.result = result
		s.err = err
		s.mu.Unlock()

		// Make room for the terminal event if the buffer is saturated.
		for {
			select {
			case s.events <- evt:
				close(s.events)
				close(s.done)
				return
			default:
				select {
				case <-s.events:
				default:
				}
			}
		}
	})
}

// Run starts a streaming session and returns immediately. The caller
// observes progress through the session's event channel or Wait.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		MessageID: uuid.NewString(),
		events:    make(chan Event, 256),
		done:      make(chan struct{}),
	}
	go o.run(ctx, in, sess)
	return sess
}

func (o *Orchestrator) run(ctx context.Context, in RunInput, sess *Session) {
	defer func() {
		if r := recover(); r != nil {
			o.fail(in, sess, fmt.Errorf("provider panic: %v", r))
		}
	}()

	sess.emit(Event{Type: EventProgress, Status: PhaseResponding})
	o.publish(bus.Event{Type: bus.EventProgress, TopicID: in.TopicID, MessageID: sess.MessageID, Phase: bus.PhaseResponding})

	var accumulated []byte
	cb := provider.StreamCallbacks{
		OnProgress: func(status string) {
			sess.emit(Event{Type: EventProgress, Status: status})
		},
		OnText: func(chunk string) {
			accumulated = append(accumulated, chunk...)
			sess.emit(Event{Type: EventText, Chunk: chunk})
			o.publish(bus.Event{
				Type:      bus.EventMessage,
				TopicID:   in.TopicID,
				MessageID: sess.MessageID,
				Text:      string(accumulated),
				Phase:     bus.PhaseStreaming,
			})
		},
		OnReasoning: func(chunk string) {
			sess.emit(Event{Type: EventReasoning, Chunk: chunk})
			o.publish(bus.Event{
				Type:      bus.EventReasoning,
				TopicID:   in.TopicID,
				MessageID: sess.MessageID,
				Text:      chunk,
			})
		},
		OnAnalysis: func(a provider.Analysis) {
			sess.emit(Event{Type: EventAnalysis, Analysis: &a})
		},
	}

	req := &provider.CompletionRequest{
		Messages:    in.History,
		Model:       in.Model,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	}
	res, err := o.provider.Invoke(ctx, req, cb)
	if err != nil {
		o.fail(in, sess, err)
		return
	}

	o.complete(in, sess, res)
}

// complete runs the single finalization step: persist, hand off
// analysis, and deliver the terminal event.
func (o *Orchestrator) complete(in RunInput, sess *Session, res *provider.CompletionResult) {
	sess.emit(Event{Type: EventProgress, Status: PhaseAnalyzing})
	o.publish(bus.Event{Type: bus.EventProgress, TopicID: in.TopicID, MessageID: sess.MessageID, Phase: bus.PhaseAnalyzing})

	if o.persister != nil {
		err := o.persister.AppendMessage(&store.MessageRecord{
			MessageID: sess.MessageID,
			TopicID:   in.TopicID,
			SenderID:  in.ResponderID,
			AuthorID:  in.AuthorID,
			Body:      res.Text,
			Reasoning: res.Reasoning,
		})
		if err != nil {
			// The response was already streamed; losing the write is
			// data loss but not a generation failure. Keep the two
			// distinguishable for operators.
			slog.Error("finalized message persistence failed", "topic", in.TopicID, "message", sess.MessageID, "error", err)
			o.publish(bus.Event{
				Type:    bus.EventError,
				TopicID: in.TopicID,
				Kind:    bus.ErrorKindPersistence,
				Err:     err.Error(),
			})
		}
	}

	if o.analysisSink != nil && res.Analysis != nil && !res.Analysis.Empty() {
		o.analysisSink.Ingest(analysis.Job{
			TopicID:     in.TopicID,
			Keywords:    res.Analysis.Keywords,
			Description: res.Analysis.Description,
			Summary:     res.Analysis.Summary,
			Confidence:  res.Analysis.Confidence,
		})
		o.publish(bus.Event{Type: bus.EventAnalysis, TopicID: in.TopicID, Kind: "subjects"})
	}

	result := &Result{
		MessageID: sess.MessageID,
		Text:      res.Text,
		Reasoning: res.Reasoning,
		Analysis:  res.Analysis,
		Usage:     res.Usage,
	}
	o.publish(bus.Event{
		Type:      bus.EventMessage,
		TopicID:   in.TopicID,
		MessageID: sess.MessageID,
		Text:      res.Text,
		Phase:     bus.PhaseComplete,
	})
	sess.finalize(Event{Type: EventCompleted, Result: result}, result, nil)
}

func (o *Orchestrator) fail(in RunInput, sess *Session, err error) {
	slog.Warn("streaming session failed", "topic", in.TopicID, "session", sess.ID, "error", err)
	o.publish(bus.Event{
		Type:    bus.EventError,
		TopicID: in.TopicID,
		Kind:    bus.ErrorKindProvider,
		Err:     err.Error(),
	})
	o.publish(bus.Event{
		Type:      bus.EventMessage,
		TopicID:   in.TopicID,
		MessageID: sess.MessageID,
		Phase:     bus.PhaseError,
	})
	sess.finalize(Event{Type: EventFailed, Err: err}, nil, err)
}

func (o *Orchestrator) publish(evt bus.Event) {
	if o.events != nil {
		o.events.Publish(evt)
	}
}
