package flashcache

import (
	"context"
	"fmt"
	"math"

	"github.com/sekai02/flashcache/internal/entry"
	"github.com/sekai02/flashcache/internal/logstore"
)

type EntryAPI interface {
	CreateEntry(ctx context.Context) (*entry.Entry, error)
	OpenEntry(ctx context.Context, id int32) (*entry.Entry, error)
	DeleteEntry(ctx context.Context, id int32) error
	CopyEntry(ctx context.Context, id int32) (int32, error)
}

type StreamAPI interface {
	ReadStream(ctx context.Context, id int32, index int) ([]byte, error)
	WriteStream(ctx context.Context, id int32, index int, data []byte) error
}

type MaintenanceAPI interface {
	Reclaim(ctx context.Context) (logstore.ReclaimStats, error)
	Stats(ctx context.Context) (logstore.Stats, error)
}

type API interface {
	EntryAPI
	StreamAPI
	MaintenanceAPI
	Close() error
}

func EntryIDFromInt64(v int64) (int32, error) {
	if v <= 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("entry id %d out of range", v)
	}
	return int32(v), nil
}

func EntryIDToInt64(id int32) int64 {
	return int64(id)
}
