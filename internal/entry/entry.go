package entry

import (
	"fmt"
	"math"

	"github.com/sekai02/flashcache/internal/logstore"
	"github.com/sekai02/flashcache/internal/sys"
)

// Log is the part of the log store an entry persists through.
type Log interface {
	Allocate() (int32, error)
	Append(id int32, record []byte) (logstore.Location, error)
	Replace(id int32, version uint64, record []byte) (logstore.Location, error)
	Locate(id int32) (logstore.Location, error)
	ReadRecord(id int32, version uint64, off int64, p []byte) error
	MaxRecordSize() int64
}

type State int

const (
	Uninitialized State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type stream struct {
	offset int32
	size   int32
	buf    []byte
	dirty  bool
}

// Entry is a view of one cache record. Writes are buffered per stream and
// appended to the log as a single record by Close. An Entry is not safe for
// concurrent use.
type Entry struct {
	log     Log
	id      int32
	fresh   bool
	onDisk  bool
	version uint64
	state   State
	streams []stream
}

// New allocates a fresh id from log.
func New(log Log, streams int) (*Entry, error) {
	if streams <= 0 {
		streams = sys.StreamCount
	}
	id, err := log.Allocate()
	if err != nil {
		return nil, fmt.Errorf("allocate entry id: %w", err)
	}
	return &Entry{
		log:     log,
		id:      id,
		fresh:   true,
		streams: make([]stream, streams),
	}, nil
}

// Reopen returns a handle to an entry already stored under id.
func Reopen(log Log, id int32, streams int) *Entry {
	if streams <= 0 {
		streams = sys.StreamCount
	}
	return &Entry{
		log:     log,
		id:      id,
		streams: make([]stream, streams),
	}
}

func (e *Entry) ID() int32 { return e.id }

func (e *Entry) State() State { return e.state }

func (e *Entry) StreamCount() int { return len(e.streams) }

// Init prepares empty streams for a fresh entry, or loads and validates the
// stream table of a stored one.
func (e *Entry) Init() error {
	if e.state != Uninitialized {
		return fmt.Errorf("%w: init entry %d in state %s", ErrInvalidState, e.id, e.state)
	}

	if e.fresh {
		e.state = Open
		return nil
	}

	loc, err := e.log.Locate(e.id)
	if err != nil {
		return fmt.Errorf("locate entry %d: %w", e.id, err)
	}

	buf := make([]byte, loc.Length)
	if err := e.log.ReadRecord(e.id, loc.Version, 0, buf); err != nil {
		return fmt.Errorf("read entry %d: %w", e.id, err)
	}

	table, err := decodeRecord(buf, e.id, len(e.streams))
	if err != nil {
		return fmt.Errorf("load entry %d: %w", e.id, err)
	}

	e.commit(table, loc.Version)
	e.state = Open
	return nil
}

func (e *Entry) commit(table []streamEntry, version uint64) {
	for i := range e.streams {
		e.streams[i] = stream{offset: table[i].offset, size: table[i].size}
	}
	e.version = version
	e.onDisk = true
}

func (e *Entry) check(index int) error {
	if e.state != Open {
		return fmt.Errorf("%w: entry %d is %s", ErrInvalidState, e.id, e.state)
	}
	if index < 0 || index >= len(e.streams) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidStream, index, len(e.streams))
	}
	return nil
}

func (s *stream) length() int32 {
	if s.dirty {
		return int32(len(s.buf))
	}
	return s.size
}

// GetDataSize returns the size of a stream, including writes not yet saved.
func (e *Entry) GetDataSize(index int) (int32, error) {
	if err := e.check(index); err != nil {
		return 0, err
	}
	return e.streams[index].length(), nil
}

// ReadData reads len(p) bytes of a stream starting at offset. The range
// must lie within the stream.
func (e *Entry) ReadData(index, offset int, p []byte) (int, error) {
	if err := e.check(index); err != nil {
		return 0, err
	}

	s := &e.streams[index]
	if offset < 0 || int64(offset)+int64(len(p)) > int64(s.length()) {
		return 0, fmt.Errorf("%w: offset=%d length=%d stream size=%d", ErrOutOfRange, offset, len(p), s.length())
	}
	if len(p) == 0 {
		return 0, nil
	}

	if s.dirty {
		return copy(p, s.buf[offset:]), nil
	}

	if err := e.log.ReadRecord(e.id, e.version, int64(s.offset)+int64(offset), p); err != nil {
		return 0, fmt.Errorf("read entry %d stream %d: %w", e.id, index, err)
	}
	return len(p), nil
}

// WriteData writes p into a stream at offset. Writing past the end grows the
// stream, zero-filling any gap. Nothing reaches the log until Close.
func (e *Entry) WriteData(index, offset int, p []byte) (int, error) {
	if err := e.check(index); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrOutOfRange, offset)
	}

	s := &e.streams[index]
	end := int64(offset) + int64(len(p))
	grown := int64(s.length())
	if end > grown {
		grown = end
	}
	if total := e.size() - int64(s.length()) + grown; total > e.maxSize() {
		return 0, fmt.Errorf("%w: entry %d would be %d bytes, limit %d", ErrTooLarge, e.id, total, e.maxSize())
	}

	if !s.dirty {
		buf, err := e.committed(index)
		if err != nil {
			return 0, err
		}
		s.buf = buf
		s.dirty = true
	}

	if end > int64(len(s.buf)) {
		s.buf = append(s.buf, make([]byte, end-int64(len(s.buf)))...)
	}
	return copy(s.buf[offset:], p), nil
}

// Truncate sets the length of a stream, dropping bytes past size or
// zero-filling up to it.
func (e *Entry) Truncate(index, size int) error {
	if err := e.check(index); err != nil {
		return err
	}
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrOutOfRange, size)
	}

	s := &e.streams[index]
	if int64(size) == int64(s.length()) {
		return nil
	}
	if total := e.size() - int64(s.length()) + int64(size); total > e.maxSize() {
		return fmt.Errorf("%w: entry %d would be %d bytes, limit %d", ErrTooLarge, e.id, total, e.maxSize())
	}

	if !s.dirty {
		buf, err := e.committed(index)
		if err != nil {
			return err
		}
		s.buf = buf
		s.dirty = true
	}

	if size <= len(s.buf) {
		s.buf = s.buf[:size]
	} else {
		s.buf = append(s.buf, make([]byte, size-len(s.buf))...)
	}
	return nil
}

// committed returns a copy of the saved bytes of a stream.
func (e *Entry) committed(index int) ([]byte, error) {
	s := &e.streams[index]
	if !e.onDisk || s.size == 0 {
		return nil, nil
	}
	buf := make([]byte, s.size)
	if err := e.log.ReadRecord(e.id, e.version, int64(s.offset), buf); err != nil {
		return nil, fmt.Errorf("load entry %d stream %d: %w", e.id, index, err)
	}
	return buf, nil
}

func (e *Entry) dirty() bool {
	for i := range e.streams {
		if e.streams[i].dirty {
			return true
		}
	}
	return false
}

func (e *Entry) size() int64 {
	total := int64(sys.RecordOverhead(len(e.streams)))
	for i := range e.streams {
		total += int64(e.streams[i].length())
	}
	return total
}

func (e *Entry) maxSize() int64 {
	limit := e.log.MaxRecordSize()
	if limit > math.MaxInt32 {
		limit = math.MaxInt32
	}
	return limit
}

// Close saves pending writes and closes the entry. If saving fails the entry
// stays open and unchanged.
func (e *Entry) Close() error {
	if e.state != Open {
		return fmt.Errorf("%w: close entry %d in state %s", ErrInvalidState, e.id, e.state)
	}
	if e.dirty() {
		if err := e.save(); err != nil {
			return err
		}
	}
	e.state = Closed
	return nil
}

func (e *Entry) save() error {
	if total := e.size(); total > e.maxSize() {
		return fmt.Errorf("%w: entry %d is %d bytes, limit %d", ErrTooLarge, e.id, total, e.maxSize())
	}

	payloads := make([][]byte, len(e.streams))
	for i := range e.streams {
		if e.streams[i].dirty {
			payloads[i] = e.streams[i].buf
			continue
		}
		buf, err := e.committed(i)
		if err != nil {
			return err
		}
		payloads[i] = buf
	}

	record, table := encodeRecord(e.id, payloads)
	var (
		loc logstore.Location
		err error
	)
	if e.onDisk {
		loc, err = e.log.Replace(e.id, e.version, record)
	} else {
		loc, err = e.log.Append(e.id, record)
	}
	if err != nil {
		return fmt.Errorf("save entry %d: %w", e.id, err)
	}
	e.commit(table, loc.Version)
	return nil
}
