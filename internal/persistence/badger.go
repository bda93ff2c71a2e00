package persistence

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type BadgerStore struct {
	db *badger.DB
	mu sync.Mutex
}

// NewBadgerStore opens the index database at path. An empty path keeps the
// database in memory.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{Locations: make(map[int32]Location)}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeIDKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		err = item.Value(func(val []byte) error {
			id, err := uuid.FromBytes(val)
			if err != nil {
				return fmt.Errorf("decode store id: %w", err)
			}
			snap.StoreID = id
			return nil
		})
		if err != nil {
			return err
		}

		item, err = txn.Get(lastIDKey)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			err = item.Value(func(val []byte) error {
				last, err := decodeLastID(val)
				snap.LastID = last
				return err
			})
			if err != nil {
				return err
			}
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(locationPrefix); it.ValidForPrefix(locationPrefix); it.Next() {
			item := it.Item()
			id, err := decodeLocationKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				loc, err := decodeLocation(val)
				if err != nil {
					return err
				}
				snap.Locations[id] = loc
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *BadgerStore) Reset(storeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(storeIDKey, storeID[:])
	})
}

func (s *BadgerStore) PutLocation(id int32, loc Location, lastID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(locationKey(id), encodeLocation(loc)); err != nil {
			return err
		}
		return txn.Set(lastIDKey, encodeLastID(lastID))
	})
}

func (s *BadgerStore) PutLastID(lastID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(lastIDKey, encodeLastID(lastID))
	})
}

func (s *BadgerStore) DeleteLocation(id int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(locationKey(id))
	})
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}
