package hash

import (
	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// Hash returns the murmur3 64-bit hash of data.
func Hash(data []byte) uint64 {
	return murmur3.Sum64(data)
}

// FastHash returns the xxhash of s.
func FastHash(s string) uint64 {
	return xxhash.Sum64String(s)
}
