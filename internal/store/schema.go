package store

import (
	"time"
)

// Identity kinds.
const (
	KindAssistant = "assistant"
	KindModel     = "model"
)

// IdentityRecord is a persisted assistant or model identity.
type IdentityRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`                   // assistant or model
	DelegatesTo string    `json:"delegates_to,omitempty"` // empty on models
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// TopicRecord is a persisted conversation topic.
type TopicRecord struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	ResponderID string    `json:"responder_id"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
}

// MessageRecord is a finalized message in a topic.
type MessageRecord struct {
	ID        int64     `json:"id"`
	MessageID string    `json:"message_id"`
	TopicID   string    `json:"topic_id"`
	SenderID  string    `json:"sender_id"` // participant the message speaks as
	AuthorID  string    `json:"author_id"` // concrete identity that produced it
	Body      string    `json:"body"`
	Reasoning string    `json:"reasoning,omitempty"` // thinking trace attachment
	CreatedAt time.Time `json:"created_at"`
}

// SubjectRecord is a detected topical cluster within a topic.
type SubjectRecord struct {
	ID          string    `json:"id"` // derived from the sorted keyword set
	TopicID     string    `json:"topic_id"`
	KeySet      string    `json:"key_set"` // sorted, "+"-joined keywords
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}

// KeywordLink ties a keyword term to a subject with usage metadata.
type KeywordLink struct {
	SubjectID string    `json:"subject_id"`
	Term      string    `json:"term"`
	Frequency int       `json:"frequency"`
	LastSeen  time.Time `json:"last_seen"`
}

// SummaryRecord is a prose condensation of a superseded subject.
type SummaryRecord struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	TopicID   string    `json:"topic_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Schema is the sqlite schema applied on open.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	delegates_to TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS topics (
	id TEXT PRIMARY KEY,
	label TEXT NOT NULL DEFAULT '',
	responder_id TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 50,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT UNIQUE NOT NULL,
	topic_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	author_id TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	reasoning TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_topic ON messages(topic_id, id);

CREATE TABLE IF NOT EXISTS subjects (
	id TEXT PRIMARY KEY,
	topic_id TEXT NOT NULL,
	key_set TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_subjects_topic ON subjects(topic_id, created_at);

CREATE TABLE IF NOT EXISTS subject_keywords (
	subject_id TEXT NOT NULL,
	term TEXT NOT NULL,
	frequency INTEGER NOT NULL DEFAULT 1,
	last_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (subject_id, term)
);

CREATE TABLE IF NOT EXISTS summaries (
	id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	topic_id TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_summaries_topic ON summaries(topic_id);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
