package logstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sekai02/flashcache/internal/ids"
	"github.com/sekai02/flashcache/internal/persistence"
	"github.com/sekai02/flashcache/internal/sys"
)

type Location = persistence.Location

// Medium is the raw, bounds-checked storage the log is written to.
// *storage.Storage implements it.
type Medium interface {
	Read(p []byte, offset int64) error
	Write(p []byte, offset int64) error
	Sync() error
	Close() error
	Capacity() int64
	PageSize() int64
	BlockSize() int64
}

type Options struct {
	// ReclaimThreshold is the fraction of the data region past which an
	// append first reclaims stale space, provided at least MinReclaimBytes
	// are stale. An append that would not fit at all always reclaims.
	ReclaimThreshold float64
	// MinReclaimBytes defaults to one erase block.
	MinReclaimBytes int64
}

func DefaultOptions() Options {
	return Options{
		ReclaimThreshold: 0.9,
	}
}

type extent struct {
	offset int64
	length int64
}

// Store is an append-only log of entry records over a Medium. New versions
// of an entry are always appended at the page-aligned write cursor; the old
// extent becomes stale and is recovered by Reclaim.
type Store struct {
	mu        sync.RWMutex
	medium    Medium
	meta      persistence.Store
	opts      Options
	storeID   uuid.UUID
	idGen     *ids.Generator
	index     map[int32]Location
	free      []extent
	stale     int64
	cursor    int64
	dataStart int64
	version   uint64
	reclaims  int64
	closed    bool
}

// Open formats a blank medium or validates an existing one, then loads the
// persisted index. An index that belongs to another medium is discarded.
func Open(medium Medium, meta persistence.Store, opts Options) (*Store, error) {
	if opts.ReclaimThreshold <= 0 || opts.ReclaimThreshold > 1 {
		opts.ReclaimThreshold = DefaultOptions().ReclaimThreshold
	}
	if opts.MinReclaimBytes <= 0 {
		opts.MinReclaimBytes = medium.BlockSize()
	}

	s := &Store{
		medium:    medium,
		meta:      meta,
		opts:      opts,
		idGen:     ids.NewGenerator(),
		index:     make(map[int32]Location),
		dataStart: sys.AlignUp(sys.SuperblockSize, medium.PageSize()),
	}
	if s.dataStart >= medium.Capacity() {
		return nil, fmt.Errorf("%w: capacity %d leaves no data region", ErrGeometryMismatch, medium.Capacity())
	}

	buf := make([]byte, sys.SuperblockSize)
	if err := medium.Read(buf, 0); err != nil {
		return nil, fmt.Errorf("read superblock: %w", err)
	}

	sb, err := decodeSuperblock(buf)
	switch {
	case errors.Is(err, errBlankMedium):
		return s.format()
	case err != nil:
		return nil, err
	}
	if err := sb.matches(medium); err != nil {
		return nil, err
	}
	s.storeID = sb.StoreID

	snap, err := meta.Load()
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		snap = nil
	case err != nil:
		return nil, fmt.Errorf("load index: %w", err)
	case snap.StoreID != sb.StoreID:
		snap = nil
	}

	if snap == nil {
		if err := meta.Reset(s.storeID); err != nil {
			return nil, fmt.Errorf("reset index: %w", err)
		}
		s.cursor = s.dataStart
		return s, nil
	}

	if err := s.load(snap); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) format() (*Store, error) {
	s.storeID = uuid.New()
	sb := superblock{
		PageSize:  s.medium.PageSize(),
		BlockSize: s.medium.BlockSize(),
		Capacity:  s.medium.Capacity(),
		StoreID:   s.storeID,
	}
	if err := s.medium.Write(sb.encode(), 0); err != nil {
		return nil, fmt.Errorf("write superblock: %w", err)
	}
	if err := s.medium.Sync(); err != nil {
		return nil, fmt.Errorf("sync superblock: %w", err)
	}
	if err := s.meta.Reset(s.storeID); err != nil {
		return nil, fmt.Errorf("reset index: %w", err)
	}
	s.cursor = s.dataStart
	return s, nil
}

func (s *Store) load(snap *persistence.Snapshot) error {
	s.idGen.Restore(ids.GeneratorSnapshot{EntryCounter: int64(snap.LastID)})

	for id, loc := range snap.Locations {
		if id <= 0 || loc.Length <= 0 || loc.Offset < s.dataStart ||
			loc.Offset%s.medium.PageSize() != 0 || loc.End() > s.medium.Capacity() {
			return fmt.Errorf("%w: entry %d indexed at offset=%d length=%d", ErrCorrupt, id, loc.Offset, loc.Length)
		}
		s.index[id] = loc
		s.idGen.Observe(id)
		if loc.Version > s.version {
			s.version = loc.Version
		}
	}

	return s.rebuildExtents()
}

// rebuildExtents derives the cursor and the stale extents from the index.
func (s *Store) rebuildExtents() error {
	live := s.liveByOffset()

	s.free = s.free[:0]
	s.stale = 0
	pos := s.dataStart
	for _, r := range live {
		if r.loc.Offset < pos {
			return fmt.Errorf("%w: entry %d at offset %d overlaps previous record ending at %d",
				ErrCorrupt, r.id, r.loc.Offset, pos)
		}
		if r.loc.Offset > pos {
			s.free = append(s.free, extent{offset: pos, length: r.loc.Offset - pos})
			s.stale += r.loc.Offset - pos
		}
		pos = r.loc.Offset + s.aligned(r.loc.Length)
	}
	s.cursor = pos
	return nil
}

type liveRecord struct {
	id  int32
	loc Location
}

func (s *Store) liveByOffset() []liveRecord {
	live := make([]liveRecord, 0, len(s.index))
	for id, loc := range s.index {
		live = append(live, liveRecord{id: id, loc: loc})
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].loc.Offset < live[j].loc.Offset
	})
	return live
}

func (s *Store) aligned(n int64) int64 {
	return sys.AlignUp(n, s.medium.PageSize())
}

// Allocate returns an id that has never been handed out by this store, also
// across restarts.
func (s *Store) Allocate() (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	id, err := s.idGen.NextEntry()
	if err != nil {
		return 0, err
	}
	if err := s.meta.PutLastID(s.lastID()); err != nil {
		return 0, fmt.Errorf("persist allocated id %d: %w", id, err)
	}
	return id, nil
}

func (s *Store) lastID() int32 {
	return int32(s.idGen.Snapshot().EntryCounter)
}

// Append writes record as the newest version of id. The record is synced to
// the medium before its location is persisted, and the index is updated only
// after both succeed, so a failure leaves the previous version in place.
func (s *Store) Append(id int32, record []byte) (Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Location{}, ErrClosed
	}
	return s.append(id, record)
}

// Replace appends record as the next version of id only while version is
// still the live one. It fails with ErrStale once id was rewritten or deleted.
func (s *Store) Replace(id int32, version uint64, record []byte) (Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Location{}, ErrClosed
	}
	if cur, ok := s.index[id]; !ok || cur.Version != version {
		return Location{}, fmt.Errorf("%w: id %d is no longer at version %d", ErrStale, id, version)
	}
	return s.append(id, record)
}

func (s *Store) append(id int32, record []byte) (Location, error) {
	if id <= 0 || len(record) == 0 {
		return Location{}, fmt.Errorf("%w: id=%d length=%d", ErrInvalidRecord, id, len(record))
	}

	length := int64(len(record))
	need := s.aligned(length)
	if need > s.medium.Capacity()-s.dataStart {
		return Location{}, fmt.Errorf("%w: record of %d bytes exceeds data capacity %d",
			ErrNoSpace, length, s.medium.Capacity()-s.dataStart)
	}

	if s.shouldReclaim(need) {
		if _, err := s.reclaim(); err != nil {
			return Location{}, fmt.Errorf("reclaim before append: %w", err)
		}
	}
	if s.cursor+need > s.medium.Capacity() {
		return Location{}, fmt.Errorf("%w: need %d bytes at cursor %d, capacity %d",
			ErrNoSpace, need, s.cursor, s.medium.Capacity())
	}

	offset := s.cursor
	if err := s.medium.Write(record, offset); err != nil {
		return Location{}, fmt.Errorf("append entry %d: %w", id, err)
	}
	if err := s.medium.Sync(); err != nil {
		return Location{}, fmt.Errorf("sync entry %d: %w", id, err)
	}

	s.idGen.Observe(id)
	loc := Location{Offset: offset, Length: length, Version: s.version + 1}
	if err := s.meta.PutLocation(id, loc, s.lastID()); err != nil {
		return Location{}, fmt.Errorf("persist entry %d: %w", id, err)
	}

	s.version = loc.Version
	s.cursor += need
	if old, ok := s.index[id]; ok {
		s.markStale(old)
	}
	s.index[id] = loc
	return loc, nil
}

func (s *Store) shouldReclaim(need int64) bool {
	if s.stale == 0 {
		return false
	}
	end := s.cursor + need
	if end > s.medium.Capacity() {
		return true
	}
	dataSize := s.medium.Capacity() - s.dataStart
	threshold := s.dataStart + int64(float64(dataSize)*s.opts.ReclaimThreshold)
	return end > threshold && s.stale >= s.opts.MinReclaimBytes
}

func (s *Store) markStale(loc Location) {
	n := s.aligned(loc.Length)
	s.free = append(s.free, extent{offset: loc.Offset, length: n})
	s.stale += n
}

func (s *Store) Locate(id int32) (Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Location{}, ErrClosed
	}
	loc, ok := s.index[id]
	if !ok {
		return Location{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return loc, nil
}

// ReadRecord reads len(p) bytes at off within the record of id. It fails
// with ErrStale when the live record is no longer the given version.
func (s *Store) ReadRecord(id int32, version uint64, off int64, p []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	loc, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrStale, id)
	}
	if loc.Version != version {
		return fmt.Errorf("%w: id %d is at version %d, not %d", ErrStale, id, loc.Version, version)
	}
	if off < 0 || int64(len(p)) > loc.Length-off {
		return fmt.Errorf("%w: offset=%d length=%d record=%d", ErrOutOfRange, off, len(p), loc.Length)
	}
	return s.medium.Read(p, loc.Offset+off)
}

// Delete drops id from the index. Its extent becomes reclaimable.
func (s *Store) Delete(id int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	loc, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err := s.meta.DeleteLocation(id); err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	delete(s.index, id)
	s.markStale(loc)
	return nil
}

type ReclaimStats struct {
	Moved      int
	MovedBytes int64
	Freed      int64
}

// Reclaim compacts live records to the front of the data region. Appends
// and reads wait for it to finish. A record whose move would overlap its own
// indexed copy is staged past the cursor first, or left in place when there
// is no room to stage it.
func (s *Store) Reclaim() (ReclaimStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ReclaimStats{}, ErrClosed
	}
	return s.reclaim()
}

func (s *Store) reclaim() (ReclaimStats, error) {
	var stats ReclaimStats
	before := s.cursor
	staging := s.cursor
	lastID := s.lastID()

	dst := s.dataStart
	for _, r := range s.liveByOffset() {
		size := s.aligned(r.loc.Length)
		if r.loc.Offset == dst {
			dst += size
			continue
		}

		loc := r.loc
		if dst+loc.Length > loc.Offset {
			// The move would overwrite the only indexed copy, so the record
			// is first published past every live record.
			if staging+size > s.medium.Capacity() {
				dst = loc.Offset + size
				continue
			}
			staged, err := s.relocate(r.id, loc, staging, lastID)
			if err != nil {
				return stats, s.abortReclaim(err)
			}
			loc = staged
		}

		if _, err := s.relocate(r.id, loc, dst, lastID); err != nil {
			return stats, s.abortReclaim(err)
		}
		stats.Moved++
		stats.MovedBytes += loc.Length
		dst += size
	}

	if err := s.rebuildExtents(); err != nil {
		return stats, err
	}
	s.reclaims++
	stats.Freed = before - s.cursor
	return stats, nil
}

// relocate copies the record of id to offset, syncs it and publishes the new
// location. The version is kept.
func (s *Store) relocate(id int32, loc Location, offset int64, lastID int32) (Location, error) {
	buf := make([]byte, loc.Length)
	if err := s.medium.Read(buf, loc.Offset); err != nil {
		return Location{}, fmt.Errorf("relocate entry %d: %w", id, err)
	}
	if err := s.medium.Write(buf, offset); err != nil {
		return Location{}, fmt.Errorf("relocate entry %d: %w", id, err)
	}
	if err := s.medium.Sync(); err != nil {
		return Location{}, fmt.Errorf("sync relocated entry %d: %w", id, err)
	}

	moved := Location{Offset: offset, Length: loc.Length, Version: loc.Version}
	if err := s.meta.PutLocation(id, moved, lastID); err != nil {
		return Location{}, fmt.Errorf("persist relocated entry %d: %w", id, err)
	}
	s.index[id] = moved
	return moved, nil
}

// abortReclaim recomputes the cursor and free list from the index, which is
// consistent after every relocated record.
func (s *Store) abortReclaim(err error) error {
	if rerr := s.rebuildExtents(); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

type Stats struct {
	StoreID     uuid.UUID
	Capacity    int64
	DataStart   int64
	Cursor      int64
	Entries     int
	LiveBytes   int64
	StaleBytes  int64
	FreeExtents int
	Reclaims    int64
	LastID      int32
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var live int64
	for _, loc := range s.index {
		live += loc.Length
	}
	return Stats{
		StoreID:     s.storeID,
		Capacity:    s.medium.Capacity(),
		DataStart:   s.dataStart,
		Cursor:      s.cursor,
		Entries:     len(s.index),
		LiveBytes:   live,
		StaleBytes:  s.stale,
		FreeExtents: len(s.free),
		Reclaims:    s.reclaims,
		LastID:      s.lastID(),
	}
}

// MaxRecordSize is the largest record Append can ever accept.
func (s *Store) MaxRecordSize() int64 {
	return s.medium.Capacity() - s.dataStart
}

// Close releases the medium and the index store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.meta.Close(), s.medium.Close())
}
