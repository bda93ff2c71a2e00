package entry

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/sekai02/flashcache/internal/sys"
)

// Record format (little endian):
//
//	0  magic     uint32
//	4  id        int32
//	8  streams   uint32
//	12 checksum  uint64   xxhash64 of everything after the fixed header
//	20 table     streams x {offset uint32, size uint32}, offsets from record start
//	   payload   stream 0, stream 1, ...
type streamEntry struct {
	offset int32
	size   int32
}

func encodeRecord(id int32, payloads [][]byte) ([]byte, []streamEntry) {
	size := sys.RecordOverhead(len(payloads))
	for _, p := range payloads {
		size += len(p)
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:], sys.RecordMagic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(id))
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(payloads)))

	table := make([]streamEntry, len(payloads))
	off := sys.RecordOverhead(len(payloads))
	for i, p := range payloads {
		slot := sys.RecordHeaderSize + i*sys.StreamEntrySize
		binary.LittleEndian.PutUint32(buf[slot:], uint32(off))
		binary.LittleEndian.PutUint32(buf[slot+4:], uint32(len(p)))
		copy(buf[off:], p)
		table[i] = streamEntry{offset: int32(off), size: int32(len(p))}
		off += len(p)
	}

	binary.LittleEndian.PutUint64(buf[12:], xxhash.Sum64(buf[sys.RecordHeaderSize:]))
	return buf, table
}

func decodeRecord(buf []byte, id int32, streams int) ([]streamEntry, error) {
	if len(buf) < sys.RecordHeaderSize {
		return nil, fmt.Errorf("%w: record of %d bytes is shorter than its header", ErrCorrupt, len(buf))
	}
	if magic := binary.LittleEndian.Uint32(buf[0:]); magic != sys.RecordMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrCorrupt, magic)
	}
	if got := int32(binary.LittleEndian.Uint32(buf[4:])); got != id {
		return nil, fmt.Errorf("%w: record belongs to entry %d, not %d", ErrCorrupt, got, id)
	}
	if n := binary.LittleEndian.Uint32(buf[8:]); n != uint32(streams) {
		return nil, fmt.Errorf("%w: record has %d streams, want %d", ErrCorrupt, n, streams)
	}

	overhead := sys.RecordOverhead(streams)
	if len(buf) < overhead || len(buf) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: record length %d", ErrCorrupt, len(buf))
	}
	if sum := binary.LittleEndian.Uint64(buf[12:]); sum != xxhash.Sum64(buf[sys.RecordHeaderSize:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	table := make([]streamEntry, streams)
	var total int64
	for i := range table {
		slot := sys.RecordHeaderSize + i*sys.StreamEntrySize
		off := int64(binary.LittleEndian.Uint32(buf[slot:]))
		size := int64(binary.LittleEndian.Uint32(buf[slot+4:]))
		if off < int64(overhead) || off+size > int64(len(buf)) {
			return nil, fmt.Errorf("%w: stream %d at offset=%d size=%d outside record of %d bytes",
				ErrCorrupt, i, off, size, len(buf))
		}
		total += size
		table[i] = streamEntry{offset: int32(off), size: int32(size)}
	}
	if total > int64(len(buf)-overhead) {
		return nil, fmt.Errorf("%w: stream sizes sum to %d, payload is %d bytes",
			ErrCorrupt, total, len(buf)-overhead)
	}

	return table, nil
}
