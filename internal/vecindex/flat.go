// Package vecindex is the in-memory brute-force vector index shared by the
// embedding cache, the message-text index, the fuzzy related-terms index and
// the thread index. Adapted from the teacher's pkg/index.FlatIndex: a
// map-backed store plus a bounded min-heap for top-k, generalized to score
// by cosine similarity (dot product over pre-normalized vectors, per
// spec §4.1) instead of raw distance.
package vecindex

import (
	"container/heap"
	"sync"

	"github.com/liliang-cn/knowmem/pkg/knomerr"
)

// Scored pairs an index key with a cosine similarity score.
type Scored struct {
	Key   string
	Score float64
}

// FlatIndex is a brute-force cosine-similarity index over unit-normalized
// float32 vectors, keyed by caller-supplied string keys.
type FlatIndex struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string][]float32
}

// New creates an empty index fixed to dimension dim.
func New(dim int) *FlatIndex {
	return &FlatIndex{dimension: dim, vectors: make(map[string][]float32)}
}

// Dimension returns the fixed vector dimension, or 0 if unset (auto-detect
// on first Insert).
func (f *FlatIndex) Dimension() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dimension
}

// Insert adds or replaces the vector for key. vector must already be
// unit-normalized by the caller (per spec invariant 6); Insert does not
// re-normalize so that callers retain control over when normalization runs.
func (f *FlatIndex) Insert(key string, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dimension == 0 {
		f.dimension = len(vector)
	}
	if len(vector) != f.dimension {
		return knomerr.ErrDimensionMismatch
	}
	v := make([]float32, len(vector))
	copy(v, vector)
	f.vectors[key] = v
	return nil
}

// Remove deletes the vector for key, reporting whether it was present.
func (f *FlatIndex) Remove(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.vectors[key]; !ok {
		return false
	}
	delete(f.vectors, key)
	return true
}

// Get returns a copy of the stored vector for key.
func (f *FlatIndex) Get(key string) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.vectors[key]
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Size returns the number of stored vectors.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Clear removes every vector from the index.
func (f *FlatIndex) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = make(map[string][]float32)
}

// Keys returns every stored key in unspecified order, for serialization
// walks that impose their own ordering.
func (f *FlatIndex) Keys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	keys := make([]string, 0, len(f.vectors))
	for k := range f.vectors {
		keys = append(keys, k)
	}
	return keys
}

// TopK returns the maxHits highest cosine-similarity matches for query with
// score >= minScore, sorted descending. Returns the empty slice (never an
// error) when the index is empty.
func (f *FlatIndex) TopK(query []float32, maxHits int, minScore float64) []Scored {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vectors) == 0 || maxHits <= 0 {
		return []Scored{}
	}

	h := &minHeap{}
	heap.Init(h)
	for key, vec := range f.vectors {
		score := dot(query, vec)
		if score < minScore {
			continue
		}
		if h.Len() < maxHits {
			heap.Push(h, Scored{Key: key, Score: score})
		} else if h.Len() > 0 && score > (*h)[0].Score {
			heap.Pop(h)
			heap.Push(h, Scored{Key: key, Score: score})
		}
	}

	results := make([]Scored, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(Scored)
	}
	return results
}

// Cosine computes the cosine similarity between a and b, assuming both are
// already unit-normalized (plain dot product). Exported for callers outside
// this package that must score vectors fetched from storage rather than
// held in a FlatIndex, e.g. the relational provider's brute-force scan.
func Cosine(a, b []float32) float64 { return dot(a, b) }

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// minHeap is a min-heap over Scored by Score, used to keep the running top-k
// with O(log k) per candidate instead of a full sort.
type minHeap []Scored

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(Scored)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
