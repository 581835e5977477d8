// Package store provides sqlite persistence for identities, topics,
// messages, and the analysis subject timeline.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at dbPath and applies
// the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for databases created before these columns existed.
	_, _ = db.Exec(`ALTER TABLE messages ADD COLUMN reasoning TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE subjects ADD COLUMN confidence REAL NOT NULL DEFAULT 0`)
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Identities
// ---------------------------------------------------------------------------

// UpsertIdentity inserts or replaces an identity record.
func (s *Store) UpsertIdentity(rec *IdentityRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO identities (id, name, kind, delegates_to, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			delegates_to = excluded.delegates_to,
			active = excluded.active
	`, rec.ID, rec.Name, rec.Kind, rec.DelegatesTo, rec.Active, rec.CreatedAt)
	return err
}

// GetIdentity returns an identity by id.
func (s *Store) GetIdentity(id string) (*IdentityRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, name, kind, delegates_to, active, created_at
		FROM identities WHERE id = ?
	`, id)
	var rec IdentityRecord
	err := row.Scan(&rec.ID, &rec.Name, &rec.Kind, &rec.DelegatesTo, &rec.Active, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListIdentities returns all identity records.
func (s *Store) ListIdentities() ([]IdentityRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, name, kind, delegates_to, active, created_at
		FROM identities ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []IdentityRecord
	for rows.Next() {
		var rec IdentityRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Kind, &rec.DelegatesTo, &rec.Active, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// UpdateDelegation updates the delegation target of an identity.
func (s *Store) UpdateDelegation(id, target string) error {
	res, err := s.db.Exec(`UPDATE identities SET delegates_to = ? WHERE id = ?`, target, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Topics
// ---------------------------------------------------------------------------

// UpsertTopic inserts or replaces a topic record.
func (s *Store) UpsertTopic(rec *TopicRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO topics (id, label, responder_id, priority, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			responder_id = excluded.responder_id,
			priority = excluded.priority
	`, rec.ID, rec.Label, rec.ResponderID, rec.Priority, rec.CreatedAt)
	return err
}

// GetTopic returns a topic by id.
func (s *Store) GetTopic(id string) (*TopicRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, label, responder_id, priority, created_at FROM topics WHERE id = ?
	`, id)
	var rec TopicRecord
	err := row.Scan(&rec.ID, &rec.Label, &rec.ResponderID, &rec.Priority, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListTopics returns all topic records.
func (s *Store) ListTopics() ([]TopicRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, label, responder_id, priority, created_at FROM topics ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []TopicRecord
	for rows.Next() {
		var rec TopicRecord
		if err := rows.Scan(&rec.ID, &rec.Label, &rec.ResponderID, &rec.Priority, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// SetTopicPriority persists a topic priority change.
func (s *Store) SetTopicPriority(id string, priority int) error {
	_, err := s.db.Exec(`UPDATE topics SET priority = ? WHERE id = ?`, priority, id)
	return err
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// AppendMessage persists a finalized message.
func (s *Store) AppendMessage(rec *MessageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO messages (message_id, topic_id, sender_id, author_id, body, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.MessageID, rec.TopicID, rec.SenderID, rec.AuthorID, rec.Body, rec.Reasoning, rec.CreatedAt)
	if err != nil {
		return err
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// Messages returns up to limit messages for a topic in insertion order.
// A limit of 0 returns everything.
func (s *Store) Messages(topicID string, limit int) ([]MessageRecord, error) {
	query := `
		SELECT id, message_id, topic_id, sender_id, author_id, body, reasoning, created_at
		FROM messages WHERE topic_id = ? ORDER BY id
	`
	args := []interface{}{topicID}
	if limit > 0 {
		// Window of the most recent rows, still returned oldest-first.
		query = `
			SELECT id, message_id, topic_id, sender_id, author_id, body, reasoning, created_at
			FROM (
				SELECT id, message_id, topic_id, sender_id, author_id, body, reasoning, created_at
				FROM messages WHERE topic_id = ? ORDER BY id DESC LIMIT ?
			) ORDER BY id
		`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []MessageRecord
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(&rec.ID, &rec.MessageID, &rec.TopicID, &rec.SenderID, &rec.AuthorID, &rec.Body, &rec.Reasoning, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ---------------------------------------------------------------------------
// Subjects, keywords, summaries
// ---------------------------------------------------------------------------

// UpsertSubject inserts a subject if its id is new; an existing subject
// keeps its original description and creation time.
func (s *Store) UpsertSubject(rec *SubjectRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO subjects (id, topic_id, key_set, description, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.TopicID, rec.KeySet, rec.Description, rec.Confidence, rec.CreatedAt)
	return err
}

// GetSubject returns a subject by id.
func (s *Store) GetSubject(id string) (*SubjectRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, topic_id, key_set, description, confidence, created_at FROM subjects WHERE id = ?
	`, id)
	var rec SubjectRecord
	err := row.Scan(&rec.ID, &rec.TopicID, &rec.KeySet, &rec.Description, &rec.Confidence, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestSubject returns the most recently created subject for a topic.
func (s *Store) LatestSubject(topicID string) (*SubjectRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, topic_id, key_set, description, confidence, created_at
		FROM subjects WHERE topic_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, topicID)
	var rec SubjectRecord
	err := row.Scan(&rec.ID, &rec.TopicID, &rec.KeySet, &rec.Description, &rec.Confidence, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListSubjects returns all subjects for a topic, oldest first.
func (s *Store) ListSubjects(topicID string) ([]SubjectRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, topic_id, key_set, description, confidence, created_at
		FROM subjects WHERE topic_id = ? ORDER BY created_at, rowid
	`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []SubjectRecord
	for rows.Next() {
		var rec SubjectRecord
		if err := rows.Scan(&rec.ID, &rec.TopicID, &rec.KeySet, &rec.Description, &rec.Confidence, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LinkKeyword ties a term to a subject, bumping frequency and recency
// when the link already exists.
func (s *Store) LinkKeyword(subjectID, term string) error {
	_, err := s.db.Exec(`
		INSERT INTO subject_keywords (subject_id, term, frequency, last_seen)
		VALUES (?, ?, 1, datetime('now'))
		ON CONFLICT(subject_id, term) DO UPDATE SET
			frequency = frequency + 1,
			last_seen = datetime('now')
	`, subjectID, term)
	return err
}

// Keywords returns the keyword links for a subject.
func (s *Store) Keywords(subjectID string) ([]KeywordLink, error) {
	rows, err := s.db.Query(`
		SELECT subject_id, term, frequency, last_seen
		FROM subject_keywords WHERE subject_id = ? ORDER BY term
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []KeywordLink
	for rows.Next() {
		var l KeywordLink
		if err := rows.Scan(&l.SubjectID, &l.Term, &l.Frequency, &l.LastSeen); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// InsertSummary persists a summary for a superseded subject.
func (s *Store) InsertSummary(rec *SummaryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO summaries (id, subject_id, topic_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.SubjectID, rec.TopicID, rec.Content, rec.CreatedAt)
	return err
}

// Summaries returns all summaries for a topic, oldest first.
func (s *Store) Summaries(topicID string) ([]SummaryRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, subject_id, topic_id, content, created_at
		FROM summaries WHERE topic_id = ? ORDER BY created_at, rowid
	`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []SummaryRecord
	for rows.Next() {
		var rec SummaryRecord
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.TopicID, &rec.Content, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns a setting value by key.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetSetting persists a setting value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}
