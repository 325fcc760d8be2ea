// Package stablehash produces the deterministic identifiers used on the
// wire. Message ids and RPC function hashes are 16-bit reductions of a
// 32-bit FNV-1a over the UTF-8 bytes of a canonical name; both reductions
// are pinned for wire compatibility and must never change. Collisions
// between unrelated names are possible at 16 bits and are an accepted
// inherited trade-off.
package stablehash

import "github.com/cespare/xxhash/v2"

const (
	fnvOffset = 0x811c9dc5
	fnvPrime  = 0x01000193
)

// Hash32 returns the 32-bit FNV-1a hash of s.
func Hash32(s string) uint32 {
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h = (h ^ uint32(s[i])) * fnvPrime
	}
	return h
}

// MessageID folds Hash32 into the 16-bit message envelope id.
func MessageID(s string) uint16 {
	h := Hash32(s)
	return uint16((h >> 16) ^ h)
}

// FunctionHash truncates Hash32 to the 16-bit RPC function hash.
func FunctionHash(s string) uint16 {
	return uint16(Hash32(s))
}

// ID64 derives a stable 64-bit identifier from a name, used for scene and
// asset ids that never cross the 16-bit hash paths.
func ID64(s string) uint64 {
	return xxhash.Sum64String(s)
}
