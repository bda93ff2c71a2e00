package persistence

import (
	"github.com/google/uuid"
	platformerrors "github.com/jmgilman/go/errors"
)

// ErrNotFound is returned by Load when nothing has been persisted yet.
var ErrNotFound = platformerrors.New(platformerrors.CodeNotFound, "no persisted index")

// Location is where a record of an entry lives on the medium. Version changes
// on every append of the entry and survives relocation by reclaim.
type Location struct {
	Offset  int64
	Length  int64
	Version uint64
}

func (l Location) End() int64 {
	return l.Offset + l.Length
}

// Snapshot is the persisted state of a log store index.
type Snapshot struct {
	StoreID   uuid.UUID
	LastID    int32
	Locations map[int32]Location
}

// Store keeps the id to location index durable. Every mutation is atomic
// on its own: after a crash a location is either the old or the new one.
type Store interface {
	Load() (*Snapshot, error)
	Reset(storeID uuid.UUID) error
	PutLocation(id int32, loc Location, lastID int32) error
	PutLastID(lastID int32) error
	DeleteLocation(id int32) error
	Close() error
}
