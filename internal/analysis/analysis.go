// Package analysis maintains each topic's subject/keyword timeline
// from completed exchanges. It never blocks the response path: jobs
// are queued and processed by a background worker, and individual
// failures are logged and skipped.
package analysis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/store"
)

// DefaultDescription is used when a continuation arrives before any
// subject exists for the topic.
const DefaultDescription = "initial conversation topic"

// Storage is the durable backing consumed by the pipeline.
type Storage interface {
	UpsertSubject(rec *store.SubjectRecord) error
	LatestSubject(topicID string) (*store.SubjectRecord, error)
	LinkKeyword(subjectID, term string) error
	InsertSummary(rec *store.SummaryRecord) error
}

// Job is one ingestion request from a completed exchange.
type Job struct {
	TopicID     string
	Keywords    []string
	Description string  // present: topic shift; absent: continuation
	Summary     string  // prose for the previous subject on a shift
	Confidence  float64
}

type envelope struct {
	job  Job
	done chan struct{} // non-nil marks a flush barrier
}

// Pipeline is the background analysis worker.
type Pipeline struct {
	storage Storage
	jobs    chan envelope
}

// New creates an analysis pipeline with the given queue size.
func New(storage Storage, queueSize int) *Pipeline {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pipeline{
		storage: storage,
		jobs:    make(chan envelope, queueSize),
	}
}

// Ingest enqueues a job. It never blocks: when the queue is full the
// job is dropped with a warning (losing one analysis pass is
// preferable to stalling the response path).
func (p *Pipeline) Ingest(job Job) {
	select {
	case p.jobs <- envelope{job: job}:
	default:
		slog.Warn("analysis queue full, dropping job", "topic", job.TopicID)
	}
}

// Flush blocks until every job enqueued before the call is processed.
func (p *Pipeline) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case p.jobs <- envelope{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes jobs until the context is cancelled. This should be
// run as a goroutine.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-p.jobs:
			if env.done != nil {
				close(env.done)
				continue
			}
			p.process(env.job)
		}
	}
}

// process applies one job. Best-effort: each step runs through
// nonfatal so a single failure never aborts the rest.
func (p *Pipeline) process(job Job) {
	keywords := normalizeKeywords(job.Keywords)
	if len(keywords) == 0 {
		return
	}

	if job.Description != "" {
		p.topicShift(job, keywords)
		return
	}
	p.continuation(job, keywords)
}

// topicShift closes out the previous subject (summarizing it when
// prose was supplied) and opens a new one.
func (p *Pipeline) topicShift(job Job, keywords []string) {
	if job.Summary != "" {
		var prev *store.SubjectRecord
		p.nonfatal(job.TopicID, "load previous subject", func() error {
			rec, err := p.storage.LatestSubject(job.TopicID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			prev = rec
			return err
		})
		if prev != nil {
			p.nonfatal(job.TopicID, "summarize previous subject", func() error {
				return p.storage.InsertSummary(&store.SummaryRecord{
					ID:        uuid.NewString(),
					SubjectID: prev.ID,
					TopicID:   job.TopicID,
					Content:   job.Summary,
				})
			})
		}
	}

	subjectID := SubjectID(keywords)
	p.nonfatal(job.TopicID, "create subject", func() error {
		return p.storage.UpsertSubject(&store.SubjectRecord{
			ID:          subjectID,
			TopicID:     job.TopicID,
			KeySet:      keySet(keywords),
			Description: job.Description,
			Confidence:  job.Confidence,
		})
	})
	p.linkAll(job.TopicID, subjectID, keywords)
}

// continuation extends the current subject, creating one with the
// default description when the topic has none yet.
func (p *Pipeline) continuation(job Job, keywords []string) {
	var current *store.SubjectRecord
	p.nonfatal(job.TopicID, "load current subject", func() error {
		rec, err := p.storage.LatestSubject(job.TopicID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		current = rec
		return err
	})

	subjectID := ""
	if current != nil {
		subjectID = current.ID
	} else {
		subjectID = SubjectID(keywords)
		ok := p.nonfatal(job.TopicID, "create initial subject", func() error {
			return p.storage.UpsertSubject(&store.SubjectRecord{
				ID:          subjectID,
				TopicID:     job.TopicID,
				KeySet:      keySet(keywords),
				Description: DefaultDescription,
				Confidence:  job.Confidence,
			})
		})
		if !ok {
			return
		}
	}
	p.linkAll(job.TopicID, subjectID, keywords)
}

func (p *Pipeline) linkAll(topicID, subjectID string, keywords []string) {
	for _, term := range keywords {
		term := term
		p.nonfatal(topicID, "link keyword "+term, func() error {
			return p.storage.LinkKeyword(subjectID, term)
		})
	}
}

// nonfatal runs one step of the pipeline, logging and swallowing its
// error. Returns false when the step failed.
func (p *Pipeline) nonfatal(topicID, step string, fn func() error) bool {
	if err := fn(); err != nil {
		slog.Warn("analysis step failed", "topic", topicID, "step", step, "error", err)
		return false
	}
	return true
}

// SubjectID derives the deterministic subject id for a keyword set, so
// repeated identical sets resolve to the same subject.
func SubjectID(keywords []string) string {
	sum := sha1.Sum([]byte(keySet(keywords)))
	return hex.EncodeToString(sum[:])
}

// keySet returns the sorted, "+"-joined canonical form of a keyword set.
func keySet(keywords []string) string {
	sorted := make([]string, len(keywords))
	copy(sorted, keywords)
	sort.Strings(sorted)
	return strings.Join(sorted, "+")
}

// normalizeKeywords trims, lowercases, and de-duplicates while keeping
// first-seen order.
func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	var out []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
