package storage

import (
	"fmt"
	"os"
	"sync"

	"github.com/sekai02/flashcache/internal/sys"
)

// Geometry describes the flash layout of a storage file. Capacity must be a
// whole number of blocks and a block a whole number of pages.
type Geometry struct {
	Capacity  int64
	PageSize  int64
	BlockSize int64
}

func DefaultGeometry() Geometry {
	return Geometry{
		Capacity:  sys.DefaultCapacity,
		PageSize:  sys.PageSize,
		BlockSize: sys.BlockSize,
	}
}

func (g Geometry) Validate() error {
	switch {
	case g.PageSize <= 0 || g.BlockSize <= 0 || g.Capacity <= 0:
		return fmt.Errorf("%w: sizes must be positive (capacity=%d page=%d block=%d)",
			ErrInvalidGeometry, g.Capacity, g.PageSize, g.BlockSize)
	case g.PageSize%2 != 0:
		return fmt.Errorf("%w: page size %d is odd", ErrInvalidGeometry, g.PageSize)
	case g.BlockSize%g.PageSize != 0:
		return fmt.Errorf("%w: block size %d is not a multiple of page size %d",
			ErrInvalidGeometry, g.BlockSize, g.PageSize)
	case g.Capacity%g.BlockSize != 0:
		return fmt.Errorf("%w: capacity %d is not a multiple of block size %d",
			ErrInvalidGeometry, g.Capacity, g.BlockSize)
	}
	return nil
}

// Storage is a fixed-capacity file addressed by byte offset. It does no
// buffering: every Read and Write is a single positional I/O call. Alignment
// is the caller's concern; Storage only enforces bounds.
type Storage struct {
	mu   sync.RWMutex
	path string
	geo  Geometry
	file *os.File
}

func New(path string, geo Geometry) (*Storage, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	return &Storage{path: path, geo: geo}, nil
}

// Init opens or creates the backing file and reserves the full capacity
// where the platform allows it.
func (s *Storage) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return nil
	}

	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("open storage %s: %w", s.path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat storage %s: %w", s.path, err)
	}

	if info.Size() < s.geo.Capacity {
		if err := preallocate(file, s.geo.Capacity); err != nil {
			// Fall back to a sparse file.
			if err := file.Truncate(s.geo.Capacity); err != nil {
				file.Close()
				return fmt.Errorf("size storage %s: %w", s.path, err)
			}
		}
	}

	s.file = file
	return nil
}

func (s *Storage) checkRange(n int, offset int64) error {
	if offset < 0 || int64(n) > s.geo.Capacity-offset {
		return fmt.Errorf("%w: offset=%d length=%d capacity=%d", ErrOutOfBounds, offset, n, s.geo.Capacity)
	}
	return nil
}

// Read fills p from offset. A short read is a failure.
func (s *Storage) Read(p []byte, offset int64) error {
	if err := s.checkRange(len(p), offset); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.file == nil {
		return ErrNotOpen
	}

	n, err := s.file.ReadAt(p, offset)
	if n != len(p) {
		if err != nil {
			return fmt.Errorf("%w: read %d of %d bytes at %d: %v", ErrShortIO, n, len(p), offset, err)
		}
		return fmt.Errorf("%w: read %d of %d bytes at %d", ErrShortIO, n, len(p), offset)
	}
	return nil
}

// Write stores p at offset. A short write is a failure.
func (s *Storage) Write(p []byte, offset int64) error {
	if err := s.checkRange(len(p), offset); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.file == nil {
		return ErrNotOpen
	}

	n, err := s.file.WriteAt(p, offset)
	if n != len(p) {
		if err != nil {
			return fmt.Errorf("%w: wrote %d of %d bytes at %d: %v", ErrShortIO, n, len(p), offset, err)
		}
		return fmt.Errorf("%w: wrote %d of %d bytes at %d", ErrShortIO, n, len(p), offset)
	}
	if err != nil {
		return fmt.Errorf("write storage at %d: %w", offset, err)
	}
	return nil
}

func (s *Storage) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.file == nil {
		return ErrNotOpen
	}
	return s.file.Sync()
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Storage) Path() string { return s.path }

func (s *Storage) Capacity() int64 { return s.geo.Capacity }

func (s *Storage) PageSize() int64 { return s.geo.PageSize }

func (s *Storage) BlockSize() int64 { return s.geo.BlockSize }

func (s *Storage) Geometry() Geometry { return s.geo }
