package sys

// Flash geometry defaults. Writes are page granular, erases block granular.
const (
	PageSize  = 8 * 1024
	BlockSize = 512 * PageSize

	DefaultCapacity = 64 * BlockSize
)

// StreamCount is the number of streams in every cache entry unless a store
// is configured otherwise.
const StreamCount = 4

const (
	RecordMagic      uint32 = 0x46434531 // "FCE1"
	RecordHeaderSize        = 20
	StreamEntrySize         = 8

	SuperblockMagic   uint32 = 0x46435342 // "FCSB"
	SuperblockVersion uint16 = 1
	SuperblockSize           = 64
)

// RecordOverhead returns the serialized header size for an entry with n
// streams.
func RecordOverhead(n int) int {
	return RecordHeaderSize + n*StreamEntrySize
}

// AlignUp rounds n up to the next multiple of align.
func AlignUp(n, align int64) int64 {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}
