// Package pipeline implements the per-topic message state machine:
// accepting inbound messages, deferring them while a topic
// initializes, and dispatching them to the completion provider in
// priority order.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/bus"
	"github.com/parley-ai/parley/internal/history"
	"github.com/parley-ai/parley/internal/identity"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/registry"
	"github.com/parley-ai/parley/internal/store"
	"github.com/parley-ai/parley/internal/stream"
)

// ResponderInvoker is the capability the pipeline uses to generate
// responses. Implemented by stream.Orchestrator.
type ResponderInvoker interface {
	Run(ctx context.Context, in stream.RunInput) *stream.Session
}

// Persister appends inbound user turns to the durable topic record.
type Persister interface {
	AppendMessage(rec *store.MessageRecord) error
}

// Options configures a pipeline.
type Options struct {
	Registry      *registry.Registry
	Resolver      *identity.Resolver
	Invoker       ResponderInvoker
	History       *history.Manager
	Persister     Persister
	Events        *bus.EventBus
	HistoryWindow int
}

// Pipeline is the per-topic message state machine.
type Pipeline struct {
	registry      *registry.Registry
	resolver      *identity.Resolver
	invoker       ResponderInvoker
	history       *history.Manager
	persister     Persister
	events        *bus.EventBus
	historyWindow int

	mu     sync.Mutex
	topics map[string]*topicState
	seq    uint64
}

type topicState struct {
	queue []QueuedMessage
	// slot serializes provider calls for the topic so conversational
	// turn order stays sane.
	slot chan struct{}
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	window := opts.HistoryWindow
	if window <= 0 {
		window = 40
	}
	return &Pipeline{
		registry:      opts.Registry,
		resolver:      opts.Resolver,
		invoker:       opts.Invoker,
		history:       opts.History,
		persister:     opts.Persister,
		events:        opts.Events,
		historyWindow: window,
		topics:        make(map[string]*topicState),
	}
}

func (p *Pipeline) state(topicID string) *topicState {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.topics[topicID]
	if !ok {
		ts = &topicState{slot: make(chan struct{}, 1)}
		p.topics[topicID] = ts
	}
	return ts
}

// Submit accepts an inbound message for a topic. It never blocks:
// messages for initializing topics are queued, everything else is
// dispatched fire-and-forget. Messages for unregistered topics are
// silently ignored (not an AI-backed topic).
func (p *Pipeline) Submit(ctx context.Context, topicID, text, senderID string) {
	if _, ok := p.registry.Responder(topicID); !ok {
		slog.Debug("ignoring message for unregistered topic", "topic", topicID)
		return
	}

	ts := p.state(topicID)
	p.mu.Lock()
	if p.registry.IsLoading(topicID) {
		p.seq++
		ts.queue = append(ts.queue, QueuedMessage{
			TopicID:    topicID,
			Text:       text,
			SenderID:   senderID,
			Priority:   p.registry.Priority(topicID),
			EnqueuedAt: time.Now(),
			seq:        p.seq,
		})
		p.mu.Unlock()
		slog.Debug("topic initializing, message queued", "topic", topicID, "queued", len(ts.queue))
		return
	}
	p.mu.Unlock()

	go func() {
		if _, err := p.dispatch(ctx, topicID, text, senderID); err != nil {
			slog.Warn("dispatch failed", "topic", topicID, "error", err)
		}
	}()
}

// BeginInitialization marks the topic as initializing, generates the
// responder's welcome message, and on success or failure returns the
// topic to ready and drains anything queued meanwhile.
func (p *Pipeline) BeginInitialization(ctx context.Context, topicID, responderID string) error {
	p.registry.Register(topicID, responderID)
	p.registry.SetLoading(topicID, true)

	defer func() {
		p.registry.SetLoading(topicID, false)
		p.drainQueue(ctx, topicID)
	}()

	return p.generateWelcome(ctx, topicID, responderID)
}

func (p *Pipeline) generateWelcome(ctx context.Context, topicID, responderID string) error {
	responder, model, err := p.resolveResponder(topicID, responderID)
	if err != nil {
		return err
	}

	msgs := []provider.Message{
		{Role: "system", Content: systemPrompt(responder.Name)},
		{Role: "user", Content: welcomeInstruction},
	}
	return p.runSession(ctx, topicID, responder, model, msgs)
}

// drainQueue dispatches all deferred messages in (priority desc,
// enqueue order asc) order, each provider call completing before the
// next starts.
func (p *Pipeline) drainQueue(ctx context.Context, topicID string) {
	ts := p.state(topicID)
	p.mu.Lock()
	pending := ts.queue
	ts.queue = nil
	p.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	orderQueue(pending)

	for _, msg := range pending {
		if _, err := p.dispatch(ctx, topicID, msg.Text, msg.SenderID); err != nil {
			slog.Warn("queued dispatch failed", "topic", topicID, "error", err)
		}
	}
}

// dispatch resolves the responder, runs one streaming session, and
// waits for its terminal event. Returns the result for callers that
// need the generated text (CLI chat).
func (p *Pipeline) dispatch(ctx context.Context, topicID, text, senderID string) (*stream.Result, error) {
	responderID, ok := p.registry.Responder(topicID)
	if !ok {
		return nil, nil
	}

	responder, model, err := p.resolveResponder(topicID, responderID)
	if err != nil {
		return nil, err
	}

	// Self-message suppression: never answer our own output.
	if senderID == responderID || senderID == model.ID {
		slog.Debug("dropping self message", "topic", topicID, "sender", senderID)
		return nil, nil
	}

	transcript := p.history.GetOrCreate(topicID, responderID)
	transcript.Append("user", senderID, text)
	if p.persister != nil {
		err := p.persister.AppendMessage(&store.MessageRecord{
			MessageID: uuid.NewString(),
			TopicID:   topicID,
			SenderID:  senderID,
			AuthorID:  senderID,
			Body:      text,
		})
		if err != nil {
			slog.Warn("inbound message persistence failed", "topic", topicID, "error", err)
		}
	}

	msgs := make([]provider.Message, 0, p.historyWindow+1)
	msgs = append(msgs, provider.Message{Role: "system", Content: systemPrompt(responder.Name)})
	msgs = append(msgs, transcript.Window(p.historyWindow)...)

	return p.runSessionResult(ctx, topicID, responder, model, msgs)
}

func (p *Pipeline) resolveResponder(topicID, responderID string) (identity.Identity, identity.Identity, error) {
	responder, ok := p.resolver.Lookup(responderID)
	if !ok {
		err := &identity.UnknownIdentityError{ID: responderID}
		p.publishDispatchError(topicID, err)
		return identity.Identity{}, identity.Identity{}, err
	}
	model, err := p.resolver.ResolveModel(responderID)
	if err != nil {
		slog.Error("responder resolution failed", "topic", topicID, "responder", responderID, "error", err)
		p.publishDispatchError(topicID, err)
		return identity.Identity{}, identity.Identity{}, err
	}
	return responder, model, nil
}

func (p *Pipeline) runSession(ctx context.Context, topicID string, responder, model identity.Identity, msgs []provider.Message) error {
	_, err := p.runSessionResult(ctx, topicID, responder, model, msgs)
	return err
}

func (p *Pipeline) runSessionResult(ctx context.Context, topicID string, responder, model identity.Identity, msgs []provider.Message) (*stream.Result, error) {
	ts := p.state(topicID)

	// One provider call per topic at a time.
	select {
	case ts.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-ts.slot }()

	sess := p.invoker.Run(ctx, stream.RunInput{
		TopicID:     topicID,
		ResponderID: responder.ID,
		AuthorID:    model.ID,
		Model:       model.Name,
		History:     msgs,
	})
	result, err := sess.Wait(ctx)
	if err != nil {
		return nil, err
	}
	p.history.GetOrCreate(topicID, responder.ID).Append("assistant", responder.ID, result.Text)
	return result, nil
}

// Ask dispatches one message and waits for the generated response.
// Used by the CLI chat surface.
func (p *Pipeline) Ask(ctx context.Context, topicID, text, senderID string) (*stream.Result, error) {
	return p.dispatch(ctx, topicID, text, senderID)
}

// QueueDepth returns the number of deferred messages for a topic.
func (p *Pipeline) QueueDepth(topicID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ts, ok := p.topics[topicID]; ok {
		return len(ts.queue)
	}
	return 0
}

func (p *Pipeline) publishDispatchError(topicID string, err error) {
	if p.events == nil {
		return
	}
	p.events.Publish(bus.Event{
		Type:    bus.EventError,
		TopicID: topicID,
		Kind:    bus.ErrorKindDispatch,
		Err:     err.Error(),
	})
}
