// Package identity implements the assistant/model identity directory
// and the delegation resolver.
package identity

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/store"
)

// Identity kinds.
const (
	KindAssistant = store.KindAssistant
	KindModel     = store.KindModel
)

// Identity is an addressable conversational persona. Assistants may
// delegate to another identity; models are terminal and never do.
type Identity struct {
	ID          string
	Name        string
	Kind        string
	DelegatesTo string // empty when terminal
	Active      bool
	CreatedAt   time.Time
}

// IsModel reports whether the identity is a terminal model persona.
func (i Identity) IsModel() bool { return i.Kind == KindModel }

// Storage is the durable backing consumed by the directory.
type Storage interface {
	UpsertIdentity(rec *store.IdentityRecord) error
	ListIdentities() ([]store.IdentityRecord, error)
	UpdateDelegation(id, target string) error
}

// Directory is the in-memory identity table. All resolver lookups hit
// this map; writes go through to storage.
type Directory struct {
	storage Storage
	mu      sync.RWMutex
	byID    map[string]Identity
}

// NewDirectory creates an empty directory over the given storage.
// Storage may be nil for purely in-memory use (tests).
func NewDirectory(storage Storage) *Directory {
	return &Directory{
		storage: storage,
		byID:    make(map[string]Identity),
	}
}

// Load populates the directory from storage. Called once at startup.
func (d *Directory) Load() error {
	if d.storage == nil {
		return nil
	}
	recs, err := d.storage.ListIdentities()
	if err != nil {
		return fmt.Errorf("load identities: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, rec := range recs {
		d.byID[rec.ID] = Identity{
			ID:          rec.ID,
			Name:        rec.Name,
			Kind:        rec.Kind,
			DelegatesTo: rec.DelegatesTo,
			Active:      rec.Active,
			CreatedAt:   rec.CreatedAt,
		}
	}
	return nil
}

// Get returns an identity by id.
func (d *Directory) Get(id string) (Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ident, ok := d.byID[id]
	return ident, ok
}

// List returns all identities sorted by creation time.
func (d *Directory) List() []Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Identity, 0, len(d.byID))
	for _, ident := range d.byID {
		out = append(out, ident)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// CreateModel provisions a terminal model identity.
func (d *Directory) CreateModel(name string) (Identity, error) {
	return d.create(name, KindModel, "")
}

// CreateAssistant provisions an assistant identity delegating to target.
func (d *Directory) CreateAssistant(name, target string) (Identity, error) {
	if target != "" {
		if _, ok := d.Get(target); !ok {
			return Identity{}, &UnknownIdentityError{ID: target}
		}
	}
	return d.create(name, KindAssistant, target)
}

func (d *Directory) create(name, kind, target string) (Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Identity{}, fmt.Errorf("identity name required")
	}
	ident := Identity{
		ID:          uuid.NewString(),
		Name:        name,
		Kind:        kind,
		DelegatesTo: target,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if d.storage != nil {
		err := d.storage.UpsertIdentity(&store.IdentityRecord{
			ID:          ident.ID,
			Name:        ident.Name,
			Kind:        ident.Kind,
			DelegatesTo: ident.DelegatesTo,
			Active:      ident.Active,
			CreatedAt:   ident.CreatedAt,
		})
		if err != nil {
			return Identity{}, err
		}
	}
	d.mu.Lock()
	d.byID[ident.ID] = ident
	d.mu.Unlock()
	return ident, nil
}

// put replaces an identity in the map. Used by delegation updates.
func (d *Directory) put(ident Identity) {
	d.mu.Lock()
	d.byID[ident.ID] = ident
	d.mu.Unlock()
}
