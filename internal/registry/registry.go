// Package registry maps topics to their responder identity, priority,
// and initialization state. Consulted on every inbound message.
package registry

import (
	"errors"
	"sync"
)

// DefaultPriority is assigned to topics that never had SetPriority called.
const DefaultPriority = 50

// ErrNotRegistered is returned when an operation requires a topic that
// was never registered.
var ErrNotRegistered = errors.New("registry: topic not registered")

type entry struct {
	responderID string
	priority    int
	loading     bool
}

// Registry is the in-memory topic table. All lookups are O(1).
type Registry struct {
	mu     sync.RWMutex
	topics map[string]*entry
}

// TopicInfo is a read-only snapshot of one registered topic.
type TopicInfo struct {
	TopicID     string
	ResponderID string
	Priority    int
	Loading     bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{topics: make(map[string]*entry)}
}

// Register binds a topic to its responder identity. Registering an
// existing topic replaces the responder and keeps priority/state.
func (r *Registry) Register(topicID, responderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.topics[topicID]; ok {
		e.responderID = responderID
		return
	}
	r.topics[topicID] = &entry{responderID: responderID, priority: DefaultPriority}
}

// Unregister removes a topic.
func (r *Registry) Unregister(topicID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.topics, topicID)
}

// Responder returns the responder identity for a topic.
func (r *Registry) Responder(topicID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.topics[topicID]
	if !ok {
		return "", false
	}
	return e.responderID, true
}

// SwitchResponder replaces the responder of an already-registered topic.
func (r *Registry) SwitchResponder(topicID, responderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.topics[topicID]
	if !ok {
		return ErrNotRegistered
	}
	e.responderID = responderID
	return nil
}

// SetPriority sets a topic's priority. Unknown topics are ignored.
func (r *Registry) SetPriority(topicID string, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.topics[topicID]; ok {
		e.priority = priority
	}
}

// Priority returns a topic's priority, or DefaultPriority when unknown.
func (r *Registry) Priority(topicID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.topics[topicID]; ok {
		return e.priority
	}
	return DefaultPriority
}

// SetLoading marks a topic as initializing (welcome generation in
// flight) or ready.
func (r *Registry) SetLoading(topicID string, loading bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.topics[topicID]; ok {
		e.loading = loading
	}
}

// IsLoading reports whether a topic is initializing.
func (r *Registry) IsLoading(topicID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.topics[topicID]; ok {
		return e.loading
	}
	return false
}

// Topics returns a snapshot of all registered topics.
func (r *Registry) Topics() []TopicInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TopicInfo, 0, len(r.topics))
	for id, e := range r.topics {
		out = append(out, TopicInfo{
			TopicID:     id,
			ResponderID: e.responderID,
			Priority:    e.priority,
			Loading:     e.loading,
		})
	}
	return out
}
