package flowutil

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/0xVanfer/tg-flow/flow"
)

// Staging collects pending edits in flow data until they are committed.
// Values are kept under a single key as a map from item id to value.
type Staging[T any] struct {
	s   *flow.State
	key string
}

// NewStaging creates a staging area stored under key.
func NewStaging[T any](s *flow.State, key string) *Staging[T] {
	return &Staging[T]{s: s, key: key}
}

func (st *Staging[T]) load() map[string]T {
	v, _ := st.s.Get(st.key)
	m, _ := v.(map[string]T)
	return m
}

// Stage adds or replaces the value of id.
func (st *Staging[T]) Stage(id string, value T) {
	m := maps.Clone(st.load())
	if m == nil {
		m = make(map[string]T)
	}
	m[id] = value
	st.s.Set(st.key, m)
}

// Unstage drops id.
func (st *Staging[T]) Unstage(id string) {
	m := maps.Clone(st.load())
	delete(m, id)
	st.s.Set(st.key, m)
}

// Clear drops everything staged.
func (st *Staging[T]) Clear() {
	st.s.Set(st.key, map[string]T{})
}

// Get returns the staged value of id.
func (st *Staging[T]) Get(id string) (T, bool) {
	v, ok := st.load()[id]
	return v, ok
}

// Staged returns a copy of everything staged.
func (st *Staging[T]) Staged() map[string]T {
	m := maps.Clone(st.load())
	if m == nil {
		m = make(map[string]T)
	}
	return m
}

// HasChanges reports whether anything is staged.
func (st *Staging[T]) HasChanges() bool {
	return len(st.load()) > 0
}

// Commit applies staged values in id order. Each applied value is unstaged right away, so
// after a failure only the values that were not applied remain staged.
func (st *Staging[T]) Commit(ctx context.Context, apply func(ctx context.Context, id string, value T) error) error {
	staged := st.Staged()
	for _, id := range slices.Sorted(maps.Keys(staged)) {
		if err := apply(ctx, id, staged[id]); err != nil {
			return fmt.Errorf("commit %q: %w", id, err)
		}
		st.Unstage(id)
	}
	return nil
}
