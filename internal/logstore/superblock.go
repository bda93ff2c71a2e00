package logstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/sekai02/flashcache/internal/sys"
)

// Superblock occupies the first page of the medium.
//
//	0  magic      uint32
//	4  version    uint16
//	6  reserved   uint16
//	8  pageSize   uint32
//	12 blockSize  uint32
//	16 capacity   uint64
//	24 storeID    [16]byte
//	40 reserved   [16]byte
//	56 checksum   uint64   xxhash64 of bytes [0, 56)
type superblock struct {
	PageSize  int64
	BlockSize int64
	Capacity  int64
	StoreID   uuid.UUID
}

const superblockChecksumOffset = sys.SuperblockSize - 8

var errBlankMedium = fmt.Errorf("medium has no superblock")

func (sb superblock) encode() []byte {
	buf := make([]byte, sys.SuperblockSize)
	binary.LittleEndian.PutUint32(buf[0:], sys.SuperblockMagic)
	binary.LittleEndian.PutUint16(buf[4:], sys.SuperblockVersion)
	binary.LittleEndian.PutUint32(buf[8:], uint32(sb.PageSize))
	binary.LittleEndian.PutUint32(buf[12:], uint32(sb.BlockSize))
	binary.LittleEndian.PutUint64(buf[16:], uint64(sb.Capacity))
	copy(buf[24:40], sb.StoreID[:])
	binary.LittleEndian.PutUint64(buf[superblockChecksumOffset:], xxhash.Sum64(buf[:superblockChecksumOffset]))
	return buf
}

func decodeSuperblock(buf []byte) (superblock, error) {
	if len(buf) < sys.SuperblockSize {
		return superblock{}, fmt.Errorf("%w: superblock of %d bytes", ErrCorrupt, len(buf))
	}
	buf = buf[:sys.SuperblockSize]

	if bytes.Equal(buf, make([]byte, sys.SuperblockSize)) {
		return superblock{}, errBlankMedium
	}

	if magic := binary.LittleEndian.Uint32(buf[0:]); magic != sys.SuperblockMagic {
		return superblock{}, fmt.Errorf("%w: bad superblock magic %#x", ErrCorrupt, magic)
	}
	if version := binary.LittleEndian.Uint16(buf[4:]); version != sys.SuperblockVersion {
		return superblock{}, fmt.Errorf("%w: unsupported superblock version %d", ErrCorrupt, version)
	}
	sum := binary.LittleEndian.Uint64(buf[superblockChecksumOffset:])
	if sum != xxhash.Sum64(buf[:superblockChecksumOffset]) {
		return superblock{}, fmt.Errorf("%w: superblock checksum mismatch", ErrCorrupt)
	}

	sb := superblock{
		PageSize:  int64(binary.LittleEndian.Uint32(buf[8:])),
		BlockSize: int64(binary.LittleEndian.Uint32(buf[12:])),
		Capacity:  int64(binary.LittleEndian.Uint64(buf[16:])),
	}
	copy(sb.StoreID[:], buf[24:40])
	return sb, nil
}

func (sb superblock) matches(m Medium) error {
	if sb.PageSize != m.PageSize() || sb.BlockSize != m.BlockSize() || sb.Capacity != m.Capacity() {
		return fmt.Errorf("%w: formatted as capacity=%d page=%d block=%d, opened as capacity=%d page=%d block=%d",
			ErrGeometryMismatch, sb.Capacity, sb.PageSize, sb.BlockSize, m.Capacity(), m.PageSize(), m.BlockSize())
	}
	return nil
}
