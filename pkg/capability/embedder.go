package capability

import (
	"crypto/sha256"
	"encoding/binary"
)

// DeterministicEmbedder implements Embedder via a SHA-256(model_id ∥ text)
// seed stream, each output byte normalized to byte/127.5 - 1.0 (spec §9).
// It needs no model weights and is reproducible across processes, which is
// what lets the query engine re-embed a query under the same model_id an
// ingest used and get a comparable vector.
type DeterministicEmbedder struct {
	Dimension int
}

// NewDeterministicEmbedder returns an embedder producing vectors of dim
// dimensions, clamped to at least 1.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	if dim < 1 {
		dim = 1
	}
	return &DeterministicEmbedder{Dimension: dim}
}

// Embed never errors; it is included in the signature to satisfy Embedder
// and to leave room for implementations that call out to a real model.
func (e *DeterministicEmbedder) Embed(modelID, text string) ([]float32, error) {
	seed := sha256.Sum256([]byte(modelID + text))
	out := make([]float32, e.Dimension)
	stream := expandSeed(seed[:], e.Dimension)
	for i := 0; i < e.Dimension; i++ {
		out[i] = float32(stream[i])/127.5 - 1.0
	}
	return out, nil
}

// expandSeed stretches a 32-byte seed into n bytes by re-hashing the seed
// concatenated with a little-endian block counter, the way a stream cipher
// keystream is derived from a block cipher in counter mode.
func expandSeed(seed []byte, n int) []byte {
	out := make([]byte, 0, n)
	var counter uint64
	for len(out) < n {
		var ctr [8]byte
		binary.LittleEndian.PutUint64(ctr[:], counter)
		block := sha256.Sum256(append(append([]byte{}, seed...), ctr[:]...))
		out = append(out, block[:]...)
		counter++
	}
	return out[:n]
}
