package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/sekai02/flashcache/internal/config"
	"github.com/sekai02/flashcache/internal/entry"
	"github.com/sekai02/flashcache/internal/logstore"
	"github.com/sekai02/flashcache/internal/persistence"
	"github.com/sekai02/flashcache/internal/storage"
	"github.com/sekai02/flashcache/pkg/flashcache"
)

var _ flashcache.API = (*Service)(nil)

type Service struct {
	cfg   config.Config
	store *logstore.Store
}

// NewService opens the flash file and its index as described by cfg.
func NewService(cfg config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.DataPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	raw, err := storage.New(cfg.DataPath, cfg.Geometry())
	if err != nil {
		return nil, err
	}
	if err := raw.Init(); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	var meta persistence.Store
	if cfg.IndexPath == "" {
		meta = persistence.NewMemStore()
	} else {
		meta, err = persistence.NewBadgerStore(cfg.IndexPath)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("open index: %w", err)
		}
	}

	store, err := logstore.Open(raw, meta, cfg.StoreOptions())
	if err != nil {
		meta.Close()
		raw.Close()
		return nil, fmt.Errorf("open log store: %w", err)
	}

	stats := store.Stats()
	slog.Info("Flash cache opened",
		"path", cfg.DataPath,
		"capacity", humanize.IBytes(uint64(stats.Capacity)),
		"entries", stats.Entries,
		"live", humanize.IBytes(uint64(stats.LiveBytes)),
		"stale", humanize.IBytes(uint64(stats.StaleBytes)),
		"store_id", stats.StoreID)

	return &Service{cfg: cfg, store: store}, nil
}

func (s *Service) CreateEntry(ctx context.Context) (*entry.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, err := entry.New(s.store, s.cfg.StreamCount)
	if err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	if err := e.Init(); err != nil {
		return nil, fmt.Errorf("init entry %d: %w", e.ID(), err)
	}
	return e, nil
}

func (s *Service) OpenEntry(ctx context.Context, id int32) (*entry.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := entry.Reopen(s.store, id, s.cfg.StreamCount)
	if err := e.Init(); err != nil {
		if errors.Is(err, entry.ErrCorrupt) {
			slog.Warn("Corrupt entry record", "id", id, "error", err)
		}
		return nil, fmt.Errorf("open entry %d: %w", id, err)
	}
	return e, nil
}

func (s *Service) DeleteEntry(ctx context.Context, id int32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.store.Delete(id); err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	return nil
}

// CopyEntry stores the streams of id under a new id.
func (s *Service) CopyEntry(ctx context.Context, id int32) (int32, error) {
	src, err := s.OpenEntry(ctx, id)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := s.CreateEntry(ctx)
	if err != nil {
		return 0, err
	}

	for i := 0; i < src.StreamCount(); i++ {
		size, err := src.GetDataSize(i)
		if err != nil {
			return 0, err
		}
		if size == 0 {
			continue
		}
		buf := make([]byte, size)
		if _, err := src.ReadData(i, 0, buf); err != nil {
			return 0, fmt.Errorf("read source stream %d: %w", i, err)
		}
		if _, err := dst.WriteData(i, 0, buf); err != nil {
			return 0, fmt.Errorf("write destination stream %d: %w", i, err)
		}
	}

	if err := dst.Close(); err != nil {
		return 0, fmt.Errorf("save copy of entry %d: %w", id, err)
	}
	return dst.ID(), nil
}

func (s *Service) ReadStream(ctx context.Context, id int32, index int) ([]byte, error) {
	e, err := s.OpenEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	defer e.Close()

	size, err := e.GetDataSize(index)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := e.ReadData(index, 0, buf); err != nil {
		return nil, fmt.Errorf("read entry %d stream %d: %w", id, index, err)
	}
	return buf, nil
}

// WriteStream replaces the content of one stream of an existing entry.
func (s *Service) WriteStream(ctx context.Context, id int32, index int, data []byte) error {
	e, err := s.OpenEntry(ctx, id)
	if err != nil {
		return err
	}

	if err := e.Truncate(index, len(data)); err != nil {
		return fmt.Errorf("resize entry %d stream %d: %w", id, index, err)
	}
	if _, err := e.WriteData(index, 0, data); err != nil {
		return fmt.Errorf("write entry %d stream %d: %w", id, index, err)
	}
	if err := e.Close(); err != nil {
		slog.Error("Failed to save entry", "id", id, "error", err)
		return err
	}
	return nil
}

func (s *Service) Reclaim(ctx context.Context) (logstore.ReclaimStats, error) {
	if err := ctx.Err(); err != nil {
		return logstore.ReclaimStats{}, err
	}

	stats, err := s.store.Reclaim()
	if err != nil {
		slog.Error("Failed to reclaim log space", "error", err)
		return stats, fmt.Errorf("reclaim: %w", err)
	}

	slog.Info("Reclaimed log space",
		"moved", stats.Moved,
		"moved_bytes", humanize.IBytes(uint64(stats.MovedBytes)),
		"freed", humanize.IBytes(uint64(stats.Freed)))
	return stats, nil
}

func (s *Service) Stats(ctx context.Context) (logstore.Stats, error) {
	if err := ctx.Err(); err != nil {
		return logstore.Stats{}, err
	}
	return s.store.Stats(), nil
}

func (s *Service) Close() error {
	return s.store.Close()
}
