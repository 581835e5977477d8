// Package history keeps in-memory per-topic transcripts used to build
// provider conversation history.
package history

import (
	"sync"
	"time"

	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/store"
)

// Turn is a single transcript entry.
type Turn struct {
	Role      string    `json:"role"` // user or assistant
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Transcript holds the recent turns of one topic.
type Transcript struct {
	TopicID   string
	Turns     []Turn
	UpdatedAt time.Time
	mu        sync.RWMutex
}

// Append adds a turn to the transcript.
func (t *Transcript) Append(role, senderID, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Turns = append(t.Turns, Turn{
		Role:      role,
		SenderID:  senderID,
		Content:   content,
		Timestamp: time.Now(),
	})
	t.UpdatedAt = time.Now()
}

// Window returns up to maxTurns of the most recent turns as provider
// messages, oldest first.
func (t *Transcript) Window(maxTurns int) []provider.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	turns := t.Turns
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	out := make([]provider.Message, len(turns))
	for i, turn := range turns {
		out[i] = provider.Message{Role: turn.Role, Content: turn.Content}
	}
	return out
}

// Len returns the number of turns held.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.Turns)
}

// Manager caches transcripts per topic, hydrating them from the store
// on first access.
type Manager struct {
	st    *store.Store
	mu    sync.Mutex
	cache map[string]*Transcript
}

// NewManager creates a transcript manager. st may be nil for purely
// in-memory use.
func NewManager(st *store.Store) *Manager {
	return &Manager{
		st:    st,
		cache: make(map[string]*Transcript),
	}
}

// GetOrCreate returns the transcript for a topic, loading persisted
// messages the first time the topic is seen.
func (m *Manager) GetOrCreate(topicID string, responderID string) *Transcript {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.cache[topicID]; ok {
		return t
	}

	t := &Transcript{TopicID: topicID}
	if m.st != nil {
		if recs, err := m.st.Messages(topicID, 0); err == nil {
			for _, rec := range recs {
				role := "user"
				if rec.SenderID == responderID {
					role = "assistant"
				}
				t.Turns = append(t.Turns, Turn{
					Role:      role,
					SenderID:  rec.SenderID,
					Content:   rec.Body,
					Timestamp: rec.CreatedAt,
				})
			}
		}
	}
	m.cache[topicID] = t
	return t
}

// Drop discards the cached transcript for a topic.
func (m *Manager) Drop(topicID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, topicID)
}
