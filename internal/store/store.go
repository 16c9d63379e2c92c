// Package store keeps the client-side cache of remote entities and tracks
// optimistic mutations until the server confirms or rejects them.
package store

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned when an optimistic operation does not
// apply to the entry's current state.
var ErrInvalidTransition = errors.New("invalid state transition")

type State int

const (
	Absent State = iota
	Present
	PendingCreate
	PendingMutation
	PendingDestroy
)

func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case PendingCreate:
		return "pendingCreate"
	case PendingMutation:
		return "pendingMutation"
	case PendingDestroy:
		return "pendingDestroy"
	default:
		return "absent"
	}
}

// Entry is one cached entity. Key is the server id, or the creation id while
// the entity is PendingCreate.
type Entry[T any] struct {
	Key   string
	Value T
	State State

	prior T
}

// Store maps ids to entity snapshots. A refresh replaces the whole map at
// once; readers never see a partially replaced store.
type Store[T any] struct {
	mu      sync.RWMutex
	keyOf   func(T) string
	entries map[string]*Entry[T]
	order   []string

	nextEpoch    uint64
	appliedEpoch uint64
}

// New returns an empty store; keyOf extracts the server id of an entity.
func New[T any](keyOf func(T) string) *Store[T] {
	return &Store[T]{
		keyOf:   keyOf,
		entries: make(map[string]*Entry[T]),
	}
}

// NextEpoch reserves a refresh token. Reserve it before dispatching the
// refresh so that replies arriving out of order can be told apart.
func (s *Store[T]) NextEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEpoch++
	return s.nextEpoch
}

// Replace installs items as the authoritative contents, dropping every
// optimistic entry. It reports false and changes nothing when a refresh with
// a newer epoch has already been applied.
func (s *Store[T]) Replace(epoch uint64, items []T) bool {
	entries := make(map[string]*Entry[T], len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		key := s.keyOf(item)
		if _, dup := entries[key]; !dup {
			order = append(order, key)
		}
		entries[key] = &Entry[T]{Key: key, Value: item, State: Present}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch < s.appliedEpoch {
		return false
	}
	s.appliedEpoch = epoch
	s.entries = entries
	s.order = order
	return true
}

// AppliedEpoch is the epoch of the refresh currently installed.
func (s *Store[T]) AppliedEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appliedEpoch
}

// BeginCreate adds value under creationID as PendingCreate.
func (s *Store[T]) BeginCreate(creationID string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[creationID]; exists {
		return fmt.Errorf("create %s: key already in use: %w", creationID, ErrInvalidTransition)
	}
	s.put(&Entry[T]{Key: creationID, Value: value, State: PendingCreate})
	return nil
}

// ConfirmCreate re-keys the pending entry to its server id. It reports false
// when the entry is no longer pending, e.g. after a refresh.
func (s *Store[T]) ConfirmCreate(creationID, id string, value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[creationID]
	if !ok || e.State != PendingCreate {
		return false
	}
	s.remove(creationID)
	if existing, ok := s.entries[id]; ok {
		existing.Value = value
		existing.State = Present
		return true
	}
	s.put(&Entry[T]{Key: id, Value: value, State: Present})
	return true
}

// FailCreate drops the pending entry.
func (s *Store[T]) FailCreate(creationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[creationID]
	if !ok || e.State != PendingCreate {
		return false
	}
	s.remove(creationID)
	return true
}

// BeginUpdate shows next in place of the present entry id until the server
// answers. The snapshot taken by the first pending update is the one a
// revert restores.
func (s *Store[T]) BeginUpdate(id string, next T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("update %s: not present: %w", id, ErrInvalidTransition)
	}
	switch e.State {
	case Present:
		e.prior = e.Value
	case PendingMutation:
	default:
		return fmt.Errorf("update %s: entry is %s: %w", id, e.State, ErrInvalidTransition)
	}
	e.Value = next
	e.State = PendingMutation
	return nil
}

// ConfirmUpdate installs the confirmed value.
func (s *Store[T]) ConfirmUpdate(id string, value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.State != PendingMutation {
		return false
	}
	e.Value = value
	e.State = Present
	return true
}

// RevertUpdate restores the snapshot taken by BeginUpdate.
func (s *Store[T]) RevertUpdate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.State != PendingMutation {
		return false
	}
	e.Value = e.prior
	e.State = Present
	return true
}

// BeginDestroy flags the present entry id as PendingDestroy.
func (s *Store[T]) BeginDestroy(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.State != Present {
		state := Absent
		if ok {
			state = e.State
		}
		return fmt.Errorf("destroy %s: entry is %s: %w", id, state, ErrInvalidTransition)
	}
	e.State = PendingDestroy
	return nil
}

// ConfirmDestroy removes the flagged entry.
func (s *Store[T]) ConfirmDestroy(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.State != PendingDestroy {
		return false
	}
	s.remove(id)
	return true
}

// RevertDestroy clears the flag.
func (s *Store[T]) RevertDestroy(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.State != PendingDestroy {
		return false
	}
	e.State = Present
	return true
}

// Get returns a copy of the entry under key.
func (s *Store[T]) Get(key string) (Entry[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return Entry[T]{Key: key, State: Absent}, false
	}
	return *e, true
}

// State is the state of key, Absent when unknown.
func (s *Store[T]) State(key string) State {
	e, _ := s.Get(key)
	return e.State
}

// Entries returns copies of all entries in insertion order.
func (s *Store[T]) Entries() []Entry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry[T], 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.entries[key])
	}
	return out
}

// Values returns the entities a reader should display: everything except
// entries pending destruction.
func (s *Store[T]) Values() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.order))
	for _, key := range s.order {
		if e := s.entries[key]; e.State != PendingDestroy {
			out = append(out, e.Value)
		}
	}
	return out
}

// Len counts every entry, pending ones included.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store[T]) put(e *Entry[T]) {
	s.entries[e.Key] = e
	s.order = append(s.order, e.Key)
}

func (s *Store[T]) remove(key string) {
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			return
		}
	}
}
