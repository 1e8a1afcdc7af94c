// Package threads implements conversation threads (spec §4.7): optional
// groupings of text ranges under a description, looked up by embedding
// similarity over the description. Adapted from the teacher's
// pkg/graph/graph.go node/description embedding pattern, with edges
// dropped — threads have no relationships between them.
package threads

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/know"
)

// Index is the conversation-thread index. Threads never participate in
// primary indexing (spec §4.7).
type Index struct {
	cache *embedcache.Cache

	mu      sync.RWMutex
	threads []know.Thread
}

// New creates an empty thread index backed by cache for description
// embeddings.
func New(cache *embedcache.Cache) *Index {
	return &Index{cache: cache}
}

// AddThread embeds thread's description and appends it, returning its
// index.
func (idx *Index) AddThread(ctx context.Context, thread know.Thread) (int, error) {
	vec, err := idx.cache.GetEmbedding(ctx, thread.Description)
	if err != nil {
		return 0, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	threadIndex := len(idx.threads)
	idx.threads = append(idx.threads, thread)
	if err := idx.descriptionKey(threadIndex, vec); err != nil {
		return 0, err
	}
	return threadIndex, nil
}

func (idx *Index) descriptionKey(threadIndex int, vec []float32) error {
	return idx.cache.AddEmbedding(threadDescriptionKey(threadIndex), vec)
}

const threadKeyPrefix = "thread#"

func threadDescriptionKey(threadIndex int) string {
	return threadKeyPrefix + strconv.Itoa(threadIndex)
}

// LookupThread returns up to maxMatches threads whose description scores at
// or above threshold against description, sorted by score descending. Tie
// breaking among equal scores is unspecified (spec §9 open question (c)).
// Returns nil if no thread has ever been added.
func (idx *Index) LookupThread(ctx context.Context, description string, maxMatches int, threshold float64) ([]know.ScoredThreadIndex, error) {
	idx.mu.RLock()
	empty := len(idx.threads) == 0
	idx.mu.RUnlock()
	if empty {
		return nil, nil
	}

	hits, err := idx.cache.FuzzyLookup(ctx, description, maxMatches, threshold)
	if err != nil {
		return nil, err
	}

	out := make([]know.ScoredThreadIndex, 0, len(hits))
	for _, h := range hits {
		ti, ok := parseThreadDescriptionKey(h.Key)
		if !ok {
			continue
		}
		out = append(out, know.ScoredThreadIndex{ThreadIndex: ti, Score: h.Score})
	}
	return out, nil
}

func parseThreadDescriptionKey(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, threadKeyPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Get returns the thread at threadIndex.
func (idx *Index) Get(threadIndex int) (know.Thread, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if threadIndex < 0 || threadIndex >= len(idx.threads) {
		return know.Thread{}, false
	}
	return idx.threads[threadIndex], true
}

// Size returns the number of threads.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.threads)
}

// Clear removes every thread.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.threads = nil
}

// All returns a copy of every thread, in insertion order.
func (idx *Index) All() []know.Thread {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]know.Thread, len(idx.threads))
	copy(out, idx.threads)
	return out
}

// Load replaces the index's contents with threads, re-embedding each
// description (used when deserializing a snapshot that did not persist
// thread description vectors separately).
func (idx *Index) Load(ctx context.Context, loaded []know.Thread) error {
	idx.mu.Lock()
	idx.threads = nil
	idx.mu.Unlock()

	for _, t := range loaded {
		if _, err := idx.AddThread(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
