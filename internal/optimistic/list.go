// Package optimistic applies local changes to an in-memory list of entities
// before the matching remote call completes, rolling them back when it fails.
//
// Each entity may have at most one mutation in flight. A second mutation on
// the same id, whatever its kind, is rejected with ErrPending rather than
// interleaved with the first.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrPending is returned when the entity already has a mutation in flight.
	ErrPending = errors.New("another update is already in progress")

	// ErrNotFound is returned when the entity is not in the list.
	ErrNotFound = errors.New("entity not found")

	errReloaded = errors.New("list reloaded while mutation was in flight")
)

// Transform rewrites the list. It runs with the list locked and must not
// call back into the List.
type Transform[T any] func(items []T) ([]T, error)

// Remote performs the network call for a mutation. A non-nil result is the
// server's representation of the entity and replaces the local copy.
type Remote[T any] func(ctx context.Context) (*T, error)

// Mutation describes one optimistic change.
type Mutation[T any] struct {
	// Kind names the operation class (like, delete, edit...) for logs and metrics.
	Kind     string
	Local    Transform[T]
	Remote   Remote[T]
	Rollback Transform[T]
}

// Outcome is how a mutation ended.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeRejected   Outcome = "rejected"
)

// Observer is told about every finished mutation.
type Observer interface {
	MutationFinished(ctx context.Context, kind string, outcome Outcome, elapsed time.Duration)
}

// List is an ordered list of entities with a pending-operation set.
type List[T any] struct {
	mu       sync.RWMutex
	items    []T
	idOf     func(T) int64
	pending  map[int64]string
	observer Observer

	// gen counts Reset calls; rollbacks captured under an older gen are stale.
	gen uint64
}

// Option configures a List.
type Option[T any] func(*List[T])

// WithObserver reports mutation outcomes to o.
func WithObserver[T any](o Observer) Option[T] {
	return func(l *List[T]) {
		l.observer = o
	}
}

// NewList creates a list keyed by idOf.
func NewList[T any](idOf func(T) int64, opts ...Option[T]) *List[T] {
	l := &List[T]{
		idOf:    idOf,
		pending: make(map[int64]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Apply runs the mutation for the entity with the given id:
//  1. reject with ErrPending if id already has a mutation in flight
//  2. mark id pending and apply Local
//  3. call Remote; on failure apply Rollback and return the remote error,
//     on success replace the entity with the server's copy if one was returned
//  4. clear the pending mark whatever happened
func (l *List[T]) Apply(ctx context.Context, id int64, m Mutation[T]) error {
	started := time.Now()
	logger := log.With().
		Str("op", uuid.Must(uuid.NewV7()).String()).
		Str("kind", m.Kind).
		Int64("id", id).
		Logger()

	l.mu.Lock()
	if kind, busy := l.pending[id]; busy {
		l.mu.Unlock()
		logger.Debug().Str("inFlight", kind).Msg("mutation rejected")
		l.observe(ctx, m.Kind, OutcomeRejected, started)
		return fmt.Errorf("%w (%s)", ErrPending, kind)
	}

	if m.Local != nil {
		items, err := m.Local(l.items)
		if err != nil {
			l.mu.Unlock()
			logger.Debug().Err(err).Msg("mutation refused locally")
			l.observe(ctx, m.Kind, OutcomeRejected, started)
			return err
		}
		l.items = items
	}
	l.pending[id] = m.Kind
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.pending, id)
		l.mu.Unlock()
	}()

	server, err := m.Remote(ctx)
	if err != nil {
		l.mu.Lock()
		if m.Rollback != nil {
			items, rbErr := m.Rollback(l.items)
			if rbErr != nil {
				logger.Warn().Err(rbErr).Msg("rollback skipped")
			} else {
				l.items = items
			}
		}
		l.mu.Unlock()

		logger.Debug().Err(err).Dur("elapsed", time.Since(started)).Msg("mutation rolled back")
		l.observe(ctx, m.Kind, OutcomeRolledBack, started)
		return err
	}

	if server != nil {
		if !l.Replace(*server) {
			logger.Debug().Msg("server copy dropped, entity no longer listed")
		}
	}

	logger.Debug().Dur("elapsed", time.Since(started)).Msg("mutation applied")
	l.observe(ctx, m.Kind, OutcomeApplied, started)
	return nil
}

// Update applies fn to a copy of the entity, stores it, and restores the
// pre-mutation copy if the remote call fails.
func (l *List[T]) Update(ctx context.Context, kind string, id int64, fn func(*T) error, remote Remote[T]) error {
	var (
		before T
		gen    uint64
	)

	return l.Apply(ctx, id, Mutation[T]{
		Kind: kind,
		Local: func(items []T) ([]T, error) {
			idx := l.index(items, id)
			if idx < 0 {
				return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
			}
			gen = l.gen
			before = items[idx]
			next := items[idx]
			if err := fn(&next); err != nil {
				return nil, err
			}
			items[idx] = next
			return items, nil
		},
		Remote: remote,
		Rollback: func(items []T) ([]T, error) {
			if l.gen != gen {
				return nil, errReloaded
			}
			idx := l.index(items, id)
			if idx < 0 {
				return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
			}
			items[idx] = before
			return items, nil
		},
	})
}

// Remove drops the entity immediately and puts it back at its original
// position if the remote call fails.
func (l *List[T]) Remove(ctx context.Context, kind string, id int64, remote func(ctx context.Context) error) error {
	var (
		removed T
		at      int
		gen     uint64
	)

	return l.Apply(ctx, id, Mutation[T]{
		Kind: kind,
		Local: func(items []T) ([]T, error) {
			at = l.index(items, id)
			if at < 0 {
				return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
			}
			gen = l.gen
			removed = items[at]
			return slices.Delete(items, at, at+1), nil
		},
		Remote: func(ctx context.Context) (*T, error) {
			return nil, remote(ctx)
		},
		Rollback: func(items []T) ([]T, error) {
			if l.gen != gen {
				return nil, errReloaded
			}
			if l.index(items, id) >= 0 {
				return items, nil
			}
			return slices.Insert(items, min(at, len(items)), removed), nil
		},
	})
}

// Prepend inserts an entity at the front, replacing any entity with the same id.
func (l *List[T]) Prepend(item T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if idx := l.index(l.items, l.idOf(item)); idx >= 0 {
		l.items = slices.Delete(l.items, idx, idx+1)
	}
	l.items = slices.Insert(l.items, 0, item)
}

// Replace swaps in a new copy of an entity. It reports false when the entity
// is not listed, in which case nothing changes.
func (l *List[T]) Replace(item T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.index(l.items, l.idOf(item))
	if idx < 0 {
		return false
	}
	l.items[idx] = item
	return true
}

// Reset replaces the whole list, typically after a fetch. Mutations already in
// flight keep the fetched copy instead of rolling back over it.
func (l *List[T]) Reset(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = slices.Clone(items)
	l.gen++
}

// Items returns a copy of the list.
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// Sorted returns a copy of the list ordered by cmp.
func (l *List[T]) Sorted(cmp func(a, b T) int) []T {
	items := l.Items()
	slices.SortStableFunc(items, cmp)
	return items
}

// Get returns the entity with the given id.
func (l *List[T]) Get(id int64) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := l.index(l.items, id)
	if idx < 0 {
		var zero T
		return zero, false
	}
	return l.items[idx], true
}

// Len returns the number of entities.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// IsPending reports whether the entity has a mutation in flight.
func (l *List[T]) IsPending(id int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.pending[id]
	return ok
}

// Pending returns the ids with a mutation in flight.
func (l *List[T]) Pending() []int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]int64, 0, len(l.pending))
	for id := range l.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (l *List[T]) index(items []T, id int64) int {
	return slices.IndexFunc(items, func(item T) bool {
		return l.idOf(item) == id
	})
}

func (l *List[T]) observe(ctx context.Context, kind string, outcome Outcome, started time.Time) {
	if l.observer != nil {
		l.observer.MutationFinished(ctx, kind, outcome, time.Since(started))
	}
}
