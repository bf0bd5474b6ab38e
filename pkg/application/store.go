// Package application runs the board pipeline: it owns the board state
// container and drives moves through persistence and reconciliation.
package application

import (
	"sort"
	"sync"

	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

// Store holds the current board state. Every transition goes through the
// pure board.Reduce, one at a time.
type Store struct {
	mu    sync.Mutex
	state board.State

	subMu sync.Mutex
	subs  map[int]func(board.State)
	next  int
}

// NewStore creates a store holding initial.
func NewStore(initial board.State) *Store {
	return &Store{state: initial, subs: make(map[int]func(board.State))}
}

// State returns the current snapshot. Snapshots are immutable and may be
// read from any goroutine.
func (s *Store) State() board.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies an action and returns the new state.
func (s *Store) Dispatch(a board.Action) board.State {
	_, after := s.Update(a)
	return after
}

// Update applies an action and returns the states on both sides of it.
// Subscribers are notified in transition order before Update returns.
func (s *Store) Update(a board.Action) (before, after board.State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.mu.Lock()
	before = s.state
	after = board.Reduce(before, a)
	s.state = after
	s.mu.Unlock()

	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s.subs[id](after)
	}
	return before, after
}

// Subscribe registers fn to receive every new state. Subscribers must not
// dispatch from inside fn.
func (s *Store) Subscribe(fn func(board.State)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}
