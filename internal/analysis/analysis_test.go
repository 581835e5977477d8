package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parley-ai/parley/internal/store"
)

// ---------------------------------------------------------------------------
// fake storage
// ---------------------------------------------------------------------------

type memStorage struct {
	mu        sync.Mutex
	subjects  []*store.SubjectRecord
	keywords  map[string]map[string]int // subjectID -> term -> frequency
	summaries []*store.SummaryRecord
	linkErr   error
}

func newMemStorage() *memStorage {
	return &memStorage{keywords: make(map[string]map[string]int)}
}

func (m *memStorage) UpsertSubject(rec *store.SubjectRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subjects {
		if s.ID == rec.ID {
			return nil
		}
	}
	cp := *rec
	m.subjects = append(m.subjects, &cp)
	return nil
}

func (m *memStorage) LatestSubject(topicID string) (*store.SubjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.subjects) - 1; i >= 0; i-- {
		if m.subjects[i].TopicID == topicID {
			cp := *m.subjects[i]
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStorage) LinkKeyword(subjectID, term string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.linkErr != nil {
		return m.linkErr
	}
	if m.keywords[subjectID] == nil {
		m.keywords[subjectID] = make(map[string]int)
	}
	m.keywords[subjectID][term]++
	return nil
}

func (m *memStorage) InsertSummary(rec *store.SummaryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.summaries = append(m.summaries, &cp)
	return nil
}

// runPipeline processes the given jobs through a live worker and waits
// for the queue to drain.
func runPipeline(t *testing.T, storage *memStorage, jobs ...Job) *Pipeline {
	t.Helper()
	p := New(storage, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go p.Run(ctx)

	for _, job := range jobs {
		p.Ingest(job)
	}
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := p.Flush(flushCtx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return p
}

// ---------------------------------------------------------------------------
// job processing
// ---------------------------------------------------------------------------

func TestProcess_EmptyKeywordsIsNoop(t *testing.T) {
	storage := newMemStorage()
	runPipeline(t, storage, Job{TopicID: "t1", Description: "something"})

	if len(storage.subjects) != 0 {
		t.Errorf("subjects = %d, want 0 for empty keyword set", len(storage.subjects))
	}
}

func TestProcess_ContinuationCreatesDefaultSubject(t *testing.T) {
	storage := newMemStorage()
	runPipeline(t, storage, Job{TopicID: "t1", Keywords: []string{"go", "channels"}})

	if len(storage.subjects) != 1 {
		t.Fatalf("subjects = %d, want 1", len(storage.subjects))
	}
	subj := storage.subjects[0]
	if subj.Description != DefaultDescription {
		t.Errorf("description = %q, want %q", subj.Description, DefaultDescription)
	}
	if subj.KeySet != "channels+go" {
		t.Errorf("key set = %q, want channels+go", subj.KeySet)
	}
	if storage.keywords[subj.ID]["go"] != 1 || storage.keywords[subj.ID]["channels"] != 1 {
		t.Errorf("keywords not linked: %v", storage.keywords[subj.ID])
	}
}

func TestProcess_ContinuationExtendsCurrentSubject(t *testing.T) {
	storage := newMemStorage()
	runPipeline(t, storage,
		Job{TopicID: "t1", Keywords: []string{"go"}, Description: "go basics"},
		Job{TopicID: "t1", Keywords: []string{"go", "generics"}},
	)

	if len(storage.subjects) != 1 {
		t.Fatalf("subjects = %d, want 1 (continuation must not open a subject)", len(storage.subjects))
	}
	subj := storage.subjects[0]
	if storage.keywords[subj.ID]["go"] != 2 {
		t.Errorf("go frequency = %d, want 2", storage.keywords[subj.ID]["go"])
	}
	if storage.keywords[subj.ID]["generics"] != 1 {
		t.Errorf("generics frequency = %d, want 1", storage.keywords[subj.ID]["generics"])
	}
}

func TestProcess_TopicShiftOpensSubjectAndSummarizesPrevious(t *testing.T) {
	storage := newMemStorage()
	runPipeline(t, storage,
		Job{TopicID: "t1", Keywords: []string{"go"}, Description: "go basics"},
		Job{TopicID: "t1", Keywords: []string{"rust"}, Description: "rust ownership", Summary: "covered goroutines and channels"},
	)

	if len(storage.subjects) != 2 {
		t.Fatalf("subjects = %d, want 2", len(storage.subjects))
	}
	if len(storage.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(storage.summaries))
	}
	sum := storage.summaries[0]
	if sum.SubjectID != storage.subjects[0].ID {
		t.Errorf("summary attached to %q, want previous subject %q", sum.SubjectID, storage.subjects[0].ID)
	}
	if sum.Content != "covered goroutines and channels" {
		t.Errorf("summary content = %q", sum.Content)
	}
}

func TestProcess_ShiftWithoutPreviousSubjectSkipsSummary(t *testing.T) {
	storage := newMemStorage()
	runPipeline(t, storage, Job{
		TopicID: "t1", Keywords: []string{"go"}, Description: "go basics", Summary: "orphan summary",
	})

	if len(storage.summaries) != 0 {
		t.Errorf("summaries = %d, want 0 when no previous subject exists", len(storage.summaries))
	}
	if len(storage.subjects) != 1 {
		t.Errorf("subjects = %d, want 1", len(storage.subjects))
	}
}

func TestProcess_RepeatedKeySetIsIdempotent(t *testing.T) {
	storage := newMemStorage()
	runPipeline(t, storage,
		Job{TopicID: "t1", Keywords: []string{"go", "channels"}, Description: "go channels"},
		Job{TopicID: "t1", Keywords: []string{"channels", "go"}, Description: "go channels again"},
	)

	if len(storage.subjects) != 1 {
		t.Fatalf("subjects = %d, want 1 for identical keyword sets", len(storage.subjects))
	}
	subj := storage.subjects[0]
	if storage.keywords[subj.ID]["go"] != 2 {
		t.Errorf("go frequency = %d, want 2", storage.keywords[subj.ID]["go"])
	}
}

func TestProcess_LinkFailureDoesNotAbortRemaining(t *testing.T) {
	storage := newMemStorage()
	storage.linkErr = errors.New("constraint violation")
	runPipeline(t, storage, Job{TopicID: "t1", Keywords: []string{"go"}, Description: "go basics"})

	// The subject itself must still have been written.
	if len(storage.subjects) != 1 {
		t.Errorf("subjects = %d, want 1 despite link failures", len(storage.subjects))
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func TestSubjectID_OrderInsensitive(t *testing.T) {
	a := SubjectID([]string{"go", "channels", "select"})
	b := SubjectID([]string{"select", "go", "channels"})
	if a != b {
		t.Errorf("SubjectID differs for reordered sets: %q vs %q", a, b)
	}
	c := SubjectID([]string{"go", "channels"})
	if a == c {
		t.Error("SubjectID should differ for different sets")
	}
}

func TestNormalizeKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"lowercases", []string{"Go", "CHANNELS"}, []string{"go", "channels"}},
		{"trims", []string{"  go  ", "channels"}, []string{"go", "channels"}},
		{"dedupes keeping first", []string{"go", "Go", "channels", "go"}, []string{"go", "channels"}},
		{"drops empties", []string{"", "  ", "go"}, []string{"go"}},
		{"all empty", []string{"", " "}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeKeywords(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("normalizeKeywords(%v) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("normalizeKeywords(%v)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestIngest_DropsWhenQueueFull(t *testing.T) {
	// No worker running: the queue fills and further jobs drop without
	// blocking the caller.
	p := New(newMemStorage(), 2)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Ingest(Job{TopicID: "t1", Keywords: []string{"go"}})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Ingest blocked on a full queue")
	}
}
