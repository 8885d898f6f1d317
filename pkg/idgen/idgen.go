// Package idgen derives the deterministic node ids the data model requires
// (spec §3): chunk ids from content_hash plus chunk index, entity ids from
// surface text. Using the first 8 bytes of a SHA-256 digest needs nothing
// beyond the standard library.
package idgen

import (
	"crypto/sha256"
	"encoding/binary"
)

// ChunkID derives a chunk node id from a content hash and its chunk index.
func ChunkID(contentHash []byte, index int) uint64 {
	var idxBytes [8]byte
	binary.LittleEndian.PutUint64(idxBytes[:], uint64(index))
	h := sha256.New()
	h.Write(contentHash)
	h.Write(idxBytes[:])
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// EntityID derives an entity node id from its surface text.
func EntityID(text string) uint64 {
	sum := sha256.Sum256([]byte(text))
	return binary.BigEndian.Uint64(sum[:8])
}

// ContentHash computes SHA-256 over a domain-separator tag and
// variant-specific bytes, per the ingestion pipeline's content hashing
// step.
func ContentHash(tag string, parts ...[]byte) []byte {
	h := sha256.New()
	h.Write([]byte(tag))
	for _, p := range parts {
		h.Write(p)
	}
	sum := h.Sum(nil)
	return sum
}
