package store

import (
	"strconv"
	"sync"
)

// Key prefixes, one per table.
const (
	identityPrefix     = "identity:"
	userPrefix         = "user:"
	labelPrefix        = "label:"
	availabilityPrefix = "avail:"
	sequencePrefix     = "seq:"
)

// idWidth zero-pads numeric ids so keys sort in id order.
const idWidth = 10

// keyPool provides reusable byte slices for building database keys.
var keyPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 128)
	},
}

// buildIndexKey constructs prefix+"idx:"+name+":"+value in a pooled buffer.
// Callers MUST call releaseKey when done with the key.
func buildIndexKey(prefix, indexName, value string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, "idx:"...)
	buf = append(buf, indexName...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	return buf
}

// releaseKey returns a key buffer to the pool for reuse.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}

// formatID renders a numeric id as a fixed-width key component.
func formatID(id uint32) string {
	s := strconv.FormatUint(uint64(id), 10)
	for len(s) < idWidth {
		s = "0" + s
	}
	return s
}

// parseID is the inverse of formatID.
func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

// onlineUserKey is the composite (online, user_id) index value.
func onlineUserKey(online bool, userID uint32) string {
	if online {
		return "1:" + formatID(userID)
	}
	return "0:" + formatID(userID)
}
