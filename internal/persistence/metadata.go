package persistence

import (
	"encoding/binary"
	"fmt"
)

const locationSize = 24

var (
	locationPrefix = []byte("idx/")
	lastIDKey      = []byte("meta/last_id")
	storeIDKey     = []byte("meta/store_id")
)

func locationKey(id int32) []byte {
	key := make([]byte, len(locationPrefix)+4)
	copy(key, locationPrefix)
	binary.BigEndian.PutUint32(key[len(locationPrefix):], uint32(id))
	return key
}

func decodeLocationKey(key []byte) (int32, error) {
	if len(key) != len(locationPrefix)+4 {
		return 0, fmt.Errorf("malformed index key %q", key)
	}
	return int32(binary.BigEndian.Uint32(key[len(locationPrefix):])), nil
}

func encodeLocation(loc Location) []byte {
	buf := make([]byte, locationSize)
	binary.BigEndian.PutUint64(buf[0:], uint64(loc.Offset))
	binary.BigEndian.PutUint64(buf[8:], uint64(loc.Length))
	binary.BigEndian.PutUint64(buf[16:], loc.Version)
	return buf
}

func decodeLocation(val []byte) (Location, error) {
	if len(val) != locationSize {
		return Location{}, fmt.Errorf("malformed index value of %d bytes", len(val))
	}
	return Location{
		Offset:  int64(binary.BigEndian.Uint64(val[0:])),
		Length:  int64(binary.BigEndian.Uint64(val[8:])),
		Version: binary.BigEndian.Uint64(val[16:]),
	}, nil
}

func encodeLastID(last int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(last))
	return buf
}

func decodeLastID(val []byte) (int32, error) {
	if len(val) != 4 {
		return 0, fmt.Errorf("malformed last id of %d bytes", len(val))
	}
	return int32(binary.BigEndian.Uint32(val)), nil
}
