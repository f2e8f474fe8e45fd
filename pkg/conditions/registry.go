// Package conditions provides the registry of named predicates used by
// condition steps to pick a branch.
package conditions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dukex/journeys/pkg/models"
)

// ErrUnknownPredicate is returned when a condition names a predicate kind
// nobody registered. Callers route such conditions to the "no" branch.
var ErrUnknownPredicate = errors.New("unknown predicate")

// Predicate is a read-only boolean test over a contact and the step settings.
// Evaluating it must not have side effects.
type Predicate func(ctx context.Context, contactID int64, settings models.Settings) (bool, error)

// Registry maps predicate kinds to their implementation.
type Registry struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		predicates: make(map[string]Predicate),
	}
}

// NewDefaultRegistry creates a registry with the built-in predicates.
func NewDefaultRegistry(history OpenHistory) *Registry {
	registry := NewRegistry()
	registry.Register(KindCampaignOpened, CampaignOpened(history))

	return registry
}

// Register adds or replaces the predicate for kind.
func (r *Registry) Register(kind string, predicate Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.predicates[kind] = predicate
}

// Kinds returns the registered predicate kinds in lexical order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.predicates))
	for kind := range r.predicates {
		kinds = append(kinds, kind)
	}

	sort.Strings(kinds)

	return kinds
}

// Evaluate runs the predicate registered for kind.
func (r *Registry) Evaluate(ctx context.Context, kind string, contactID int64, settings models.Settings) (bool, error) {
	r.mu.RLock()
	predicate, ok := r.predicates[kind]
	r.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownPredicate, kind)
	}

	return predicate(ctx, contactID, settings)
}

// IsUnknownPredicate checks if an error indicates an unregistered predicate kind.
func IsUnknownPredicate(err error) bool {
	return errors.Is(err, ErrUnknownPredicate)
}
