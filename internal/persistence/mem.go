package persistence

import (
	"sync"

	"github.com/google/uuid"
)

// MemStore keeps the index in process memory. It survives store reopen
// within one process but not a restart.
type MemStore struct {
	mu        sync.RWMutex
	storeID   uuid.UUID
	hasID     bool
	lastID    int32
	locations map[int32]Location
}

func NewMemStore() *MemStore {
	return &MemStore{
		locations: make(map[int32]Location),
	}
}

func (s *MemStore) Load() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasID {
		return nil, ErrNotFound
	}

	locations := make(map[int32]Location, len(s.locations))
	for id, loc := range s.locations {
		locations[id] = loc
	}
	return &Snapshot{
		StoreID:   s.storeID,
		LastID:    s.lastID,
		Locations: locations,
	}, nil
}

func (s *MemStore) Reset(storeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.storeID = storeID
	s.hasID = true
	s.lastID = 0
	s.locations = make(map[int32]Location)
	return nil
}

func (s *MemStore) PutLocation(id int32, loc Location, lastID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locations[id] = loc
	s.lastID = lastID
	return nil
}

func (s *MemStore) PutLastID(lastID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID = lastID
	return nil
}

func (s *MemStore) DeleteLocation(id int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locations, id)
	return nil
}

func (s *MemStore) Close() error {
	return nil
}
