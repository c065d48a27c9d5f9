// Package store keeps the last-fetched collection of each domain entity
// together with loading and error flags, and reconciles it locally after
// every successful mutation.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/observable"
)

// State is a snapshot of a store. Loading is true while at least one gateway
// call issued by the store is in flight.
type State[T models.Entity] struct {
	Items   []T    `json:"items"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`

	inflight int
}

// Store is the reactive container for one entity type T, created from C and
// patched with P.
type Store[T models.Entity, C any, P any] struct {
	name   string
	table  gateway.Table
	gw     gateway.Data
	logger *slog.Logger
	state  *observable.Value[State[T]]

	// fetchSeq numbers list requests; a response is applied only if no newer
	// list request has been issued since.
	fetchSeq atomic.Uint64
}

// New creates a store for t. name is used in log lines and fallback error messages.
func New[T models.Entity, C any, P any](gw gateway.Data, t gateway.Table, name string, logger *slog.Logger) *Store[T, C, P] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store[T, C, P]{
		name:   name,
		table:  t,
		gw:     gw,
		logger: logger.With(slog.String("store", name)),
		state:  observable.New(State[T]{Items: []T{}}),
	}
}

// Name returns the store's display name.
func (s *Store[T, C, P]) Name() string { return s.name }

// Snapshot returns a copy of the current state.
func (s *Store[T, C, P]) Snapshot() State[T] {
	st := s.state.Get()
	st.Items = slices.Clone(st.Items)
	return st
}

// Items returns a copy of the held collection.
func (s *Store[T, C, P]) Items() []T { return s.Snapshot().Items }

// Loading reports whether a call is in flight.
func (s *Store[T, C, P]) Loading() bool { return s.state.Get().Loading }

// Err returns the message of the last failed call, or "".
func (s *Store[T, C, P]) Err() string { return s.state.Get().Error }

// Subscribe calls fn with a snapshot after every state change.
func (s *Store[T, C, P]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	return s.state.Subscribe(func(st State[T]) {
		st.Items = slices.Clone(st.Items)
		fn(st)
	})
}

// FetchAll replaces the held collection with every row, newest first.
func (s *Store[T, C, P]) FetchAll(ctx context.Context) error {
	return s.FetchWhere(ctx)
}

// FetchWhere replaces the held collection with the rows matching filters,
// newest first. A failure is logged and recorded in the state, the collection
// is left as it was and nil is returned, so callers render whatever is held.
// A response superseded by a later fetch is dropped.
func (s *Store[T, C, P]) FetchWhere(ctx context.Context, filters ...gateway.Filter) error {
	seq := s.fetchSeq.Add(1)
	s.begin()

	items, err := gateway.List[T](ctx, s.gw, s.table, gateway.NewestFirst(filters...))

	stale := seq != s.fetchSeq.Load()
	if stale {
		s.logger.Debug("discarding superseded fetch", slog.Uint64("seq", seq))
		s.end(nil)
		return nil
	}
	if err != nil {
		s.logger.Error("fetch failed", slog.String("error", err.Error()))
		s.fail(err, "fetch")
		return nil
	}
	s.end(func(st State[T]) State[T] {
		st.Items = items
		return st
	})
	return nil
}

// Get fetches one entity without touching the held collection.
func (s *Store[T, C, P]) Get(ctx context.Context, id int64) (T, error) {
	s.begin()
	v, err := gateway.Get[T](ctx, s.gw, s.table, id)
	if err != nil {
		s.fail(err, "get")
		return v, err
	}
	s.end(nil)
	return v, nil
}

// Create persists in and prepends the stored entity to the collection.
func (s *Store[T, C, P]) Create(ctx context.Context, in C) (T, error) {
	s.begin()
	v, err := gateway.Insert[T](ctx, s.gw, s.table, in)
	if err != nil {
		s.fail(err, "create")
		return v, err
	}
	s.end(func(st State[T]) State[T] {
		st.Items = append([]T{v}, st.Items...)
		return st
	})
	return v, nil
}

// Update applies patch remotely and replaces the matching held entry with the
// stored entity. An id not held locally is not reflected until the next fetch.
func (s *Store[T, C, P]) Update(ctx context.Context, id int64, patch P) (T, error) {
	s.begin()
	v, err := gateway.Update[T](ctx, s.gw, s.table, id, patch)
	if err != nil {
		s.fail(err, "update")
		return v, err
	}
	s.end(func(st State[T]) State[T] {
		i := slices.IndexFunc(st.Items, func(it T) bool { return it.Identity() == id })
		if i >= 0 {
			items := slices.Clone(st.Items)
			items[i] = v
			st.Items = items
		}
		return st
	})
	return v, nil
}

// Delete removes the entity remotely and filters it out of the collection.
func (s *Store[T, C, P]) Delete(ctx context.Context, id int64) error {
	s.begin()
	if err := s.gw.Delete(ctx, s.table, id); err != nil {
		s.fail(err, "delete")
		return err
	}
	s.end(func(st State[T]) State[T] {
		st.Items = slices.DeleteFunc(slices.Clone(st.Items), func(it T) bool { return it.Identity() == id })
		return st
	})
	return nil
}

func (s *Store[T, C, P]) begin() {
	s.state.Update(func(st State[T]) State[T] {
		st.inflight++
		st.Loading = true
		st.Error = ""
		return st
	})
}

// end releases one in-flight slot and applies fn, if any, in the same update.
func (s *Store[T, C, P]) end(fn func(State[T]) State[T]) {
	s.state.Update(func(st State[T]) State[T] {
		if fn != nil {
			st = fn(st)
		}
		st.inflight--
		st.Loading = st.inflight > 0
		return st
	})
}

func (s *Store[T, C, P]) fail(err error, op string) {
	msg := apperr.Message(err, fmt.Sprintf("failed to %s %s", op, s.name))
	if op != "fetch" {
		s.logger.Warn(op+" failed", slog.String("error", err.Error()))
	}
	s.end(func(st State[T]) State[T] {
		st.Error = msg
		return st
	})
}
