package identity

import (
	"fmt"
	"strings"
)

// DefaultMaxHops bounds delegation chains during resolution.
const DefaultMaxHops = 10

// UnknownIdentityError is returned when resolution references an
// identity that is not in the directory.
type UnknownIdentityError struct {
	ID string
}

func (e *UnknownIdentityError) Error() string {
	return fmt.Sprintf("unknown identity %q", e.ID)
}

// CircularDelegationError is returned when a delegation chain revisits
// an identity. This indicates a data-integrity bug upstream: the
// delegation write that closed the cycle should have been rejected.
type CircularDelegationError struct {
	ID    string
	Chain []string
}

func (e *CircularDelegationError) Error() string {
	return fmt.Sprintf("circular delegation at %q (chain: %s)", e.ID, strings.Join(e.Chain, " -> "))
}

// ChainTooDeepError is returned when a delegation chain exceeds the
// hop bound without terminating.
type ChainTooDeepError struct {
	Start   string
	MaxHops int
}

func (e *ChainTooDeepError) Error() string {
	return fmt.Sprintf("delegation chain from %q exceeds %d hops", e.Start, e.MaxHops)
}

// Resolver turns an assistant identity into the concrete model that
// must generate the next response.
type Resolver struct {
	dir     *Directory
	maxHops int
}

// NewResolver creates a resolver over the directory. maxHops <= 0
// selects DefaultMaxHops.
func NewResolver(dir *Directory, maxHops int) *Resolver {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	return &Resolver{dir: dir, maxHops: maxHops}
}

// Lookup returns an identity from the directory without traversal.
func (r *Resolver) Lookup(id string) (Identity, bool) {
	return r.dir.Get(id)
}

// ResolveModel follows delegation targets from id until a terminal
// identity is reached. Pure lookup, no side effects.
func (r *Resolver) ResolveModel(id string) (Identity, error) {
	visited := make(map[string]bool, 4)
	chain := make([]string, 0, 4)
	current := id

	for hops := 0; ; hops++ {
		if hops > r.maxHops {
			return Identity{}, &ChainTooDeepError{Start: id, MaxHops: r.maxHops}
		}
		if visited[current] {
			return Identity{}, &CircularDelegationError{ID: current, Chain: append(chain, current)}
		}
		ident, ok := r.dir.Get(current)
		if !ok {
			return Identity{}, &UnknownIdentityError{ID: current}
		}
		if ident.DelegatesTo == "" {
			return ident, nil
		}
		visited[current] = true
		chain = append(chain, current)
		current = ident.DelegatesTo
	}
}

// SetDelegation updates an identity's delegation target (model
// switching). Self-delegation and unknown identities are rejected
// immediately; longer cycles are caught lazily at resolve time.
func (r *Resolver) SetDelegation(id, target string) error {
	if id == target {
		return &CircularDelegationError{ID: id, Chain: []string{id, id}}
	}
	ident, ok := r.dir.Get(id)
	if !ok {
		return &UnknownIdentityError{ID: id}
	}
	if ident.IsModel() && target != "" {
		return fmt.Errorf("model identity %q cannot delegate", id)
	}
	if target != "" {
		if _, ok := r.dir.Get(target); !ok {
			return &UnknownIdentityError{ID: target}
		}
	}
	if r.dir.storage != nil {
		if err := r.dir.storage.UpdateDelegation(id, target); err != nil {
			return fmt.Errorf("persist delegation: %w", err)
		}
	}
	ident.DelegatesTo = target
	r.dir.put(ident)
	return nil
}
