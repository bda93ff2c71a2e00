package config

import (
	"fmt"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/sekai02/flashcache/internal/logstore"
	"github.com/sekai02/flashcache/internal/storage"
	"github.com/sekai02/flashcache/internal/sys"
)

type Config struct {
	// DataPath is the flash cache file.
	DataPath string
	// IndexPath is the badger directory holding the entry index. Empty keeps
	// the index in memory, so entries do not survive a restart.
	IndexPath string

	Capacity  int64
	PageSize  int64
	BlockSize int64

	StreamCount int

	ReclaimThreshold float64
	MinReclaimBytes  int64

	ListenAddr string
}

func Default() Config {
	return Config{
		DataPath:         "./data/cache.flash",
		IndexPath:        "./data/index",
		Capacity:         sys.DefaultCapacity,
		PageSize:         sys.PageSize,
		BlockSize:        sys.BlockSize,
		StreamCount:      sys.StreamCount,
		ReclaimThreshold: logstore.DefaultOptions().ReclaimThreshold,
		ListenAddr:       ":8080",
	}
}

func (c Config) Geometry() storage.Geometry {
	return storage.Geometry{
		Capacity:  c.Capacity,
		PageSize:  c.PageSize,
		BlockSize: c.BlockSize,
	}
}

func (c Config) StoreOptions() logstore.Options {
	return logstore.Options{
		ReclaimThreshold: c.ReclaimThreshold,
		MinReclaimBytes:  c.MinReclaimBytes,
	}
}

func (c Config) Validate() error {
	if c.DataPath == "" {
		return platformerrors.New(platformerrors.CodeInvalidConfig, "data path is required")
	}
	if err := c.Geometry().Validate(); err != nil {
		return err
	}
	if c.StreamCount <= 0 {
		return platformerrors.Newf(platformerrors.CodeInvalidConfig, "stream count must be positive, got %d", c.StreamCount)
	}
	if c.ReclaimThreshold <= 0 || c.ReclaimThreshold > 1 {
		return platformerrors.Newf(platformerrors.CodeInvalidConfig, "reclaim threshold must be in (0, 1], got %v", c.ReclaimThreshold)
	}
	if c.MinReclaimBytes < 0 {
		return platformerrors.Newf(platformerrors.CodeInvalidConfig, "min reclaim bytes must not be negative, got %d", c.MinReclaimBytes)
	}
	if overhead := int64(sys.RecordOverhead(c.StreamCount)); overhead > c.Capacity-c.PageSize {
		return fmt.Errorf("record header of %d bytes does not fit capacity %d: %w",
			overhead, c.Capacity, storage.ErrInvalidGeometry)
	}
	return nil
}
