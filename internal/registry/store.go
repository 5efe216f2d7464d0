package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"positionRegistry/internal/model"
)

// Store holds live positions by token id and owns the id sequence.
type Store struct {
	mu        sync.RWMutex
	positions map[uint64]*model.Position
	seq       atomic.Uint64
}

func NewStore() *Store {
	return &Store{positions: make(map[uint64]*model.Position)}
}

// NextTokenID returns the next id in the monotonic sequence, starting at 1.
func (s *Store) NextTokenID() uint64 {
	return s.seq.Add(1)
}

// Create inserts a new position. Fails if the token id is already present.
func (s *Store) Create(pos *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[pos.TokenID]; ok {
		return fmt.Errorf("token %d: %w", pos.TokenID, model.ErrExists)
	}
	s.positions[pos.TokenID] = pos
	return nil
}

// Get returns the live position record. Mutations through the returned
// pointer are the update path; callers outside the lifecycle controller must
// clone first.
func (s *Store) Get(tokenID uint64) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[tokenID]
	if !ok {
		return nil, fmt.Errorf("token %d: %w", tokenID, model.ErrNotFound)
	}
	return pos, nil
}

// Delete removes the entry entirely; a deleted id reads as NotFound.
func (s *Store) Delete(tokenID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[tokenID]; !ok {
		return fmt.Errorf("token %d: %w", tokenID, model.ErrNotFound)
	}
	delete(s.positions, tokenID)
	return nil
}

// List returns clones of every live position, in no particular order.
func (s *Store) List() []*model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, pos.Clone())
	}
	return out
}

// Len reports the number of live positions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// Snapshot captures the full store state and returns a restore func.
func (s *Store) Snapshot() func() {
	s.mu.RLock()
	saved := make(map[uint64]*model.Position, len(s.positions))
	for id, pos := range s.positions {
		saved[id] = pos.Clone()
	}
	seq := s.seq.Load()
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		s.positions = saved
		s.mu.Unlock()
		s.seq.Store(seq)
	}
}
