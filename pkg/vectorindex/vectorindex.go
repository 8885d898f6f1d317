// Package vectorindex implements the id->embedding map and top-k cosine
// search described in spec §4.3. At spec scale a linear scan is sufficient
// (a learned ANN index is an explicit non-goal); the index is otherwise
// shaped like cuemby-warren's in-memory bucket maps (pkg/storage) — a plain
// mutex-guarded map, no external dependency.
package vectorindex

import (
	"math"
	"sort"
	"sync"
)

// Index is a thread-safe id->embedding map supporting top-k cosine search.
type Index struct {
	mu         sync.RWMutex
	embeddings map[uint64][]float32
}

// New returns an empty Index.
func New() *Index {
	return &Index{embeddings: make(map[uint64][]float32)}
}

// Insert overwrites the embedding stored for id.
func (idx *Index) Insert(id uint64, embedding []float32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	cp := make([]float32, len(embedding))
	copy(cp, embedding)
	idx.embeddings[id] = cp
}

// Delete removes id from the index. It is a no-op if id is absent.
func (idx *Index) Delete(id uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.embeddings, id)
}

// Dimension returns the embedding length of an arbitrary stored vector, or 0
// if the index is empty.
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, e := range idx.embeddings {
		return len(e)
	}
	return 0
}

// Len returns the number of stored embeddings.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.embeddings)
}

// Scored is one result of Search.
type Scored struct {
	ID    uint64
	Score float32
}

// Search returns the top-k (id, score) pairs by cosine similarity against
// query, sorted by score descending then id ascending. Zero-norm vectors
// (on either side) and dimension mismatches score 0 rather than erroring.
func (idx *Index) Search(query []float32, k int) []Scored {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 {
		return nil
	}

	results := make([]Scored, 0, len(idx.embeddings))
	for id, emb := range idx.embeddings {
		results = append(results, Scored{ID: id, Score: cosine(query, emb)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
