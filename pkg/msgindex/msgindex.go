// Package msgindex implements the message-text embedding index (spec §4.5):
// one embedding per (message, chunk), queryable by nearest-neighbor text
// search with per-message max-score aggregation across chunks. Adapted from
// the teacher's pkg/index.HNSW / pkg/core/store_search.go top-k+threshold
// pattern, simplified to the shared vecindex.FlatIndex used across this
// module (see DESIGN.md for the rationale).
package msgindex

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/liliang-cn/knowmem/internal/vecindex"
	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/know"
)

// Index is the message-text embedding index.
type Index struct {
	cache *embedcache.Cache

	mu        sync.RWMutex
	vectors   *vecindex.FlatIndex
	locations map[string]know.TextLocation
}

// New creates an index that computes embeddings via cache.
func New(cache *embedcache.Cache) *Index {
	return &Index{
		cache:     cache,
		vectors:   vecindex.New(0),
		locations: make(map[string]know.TextLocation),
	}
}

func locationKey(loc know.TextLocation) string {
	return strconv.Itoa(loc.MessageOrdinal) + ":" + strconv.Itoa(loc.ChunkOrdinal)
}

// AddMessages embeds every chunk of every message and indexes it, assigning
// message ordinals 0..len(messages)-1.
func (idx *Index) AddMessages(ctx context.Context, messages []know.Message) error {
	return idx.AddMessagesStartingAt(ctx, 0, messages)
}

// AddMessagesStartingAt embeds every chunk of every message and indexes it,
// assigning message ordinals startOrdinal..startOrdinal+len(messages)-1, the
// shape incremental rebuild uses to extend an existing index (spec §3's
// incremental lifecycle).
func (idx *Index) AddMessagesStartingAt(ctx context.Context, startOrdinal int, messages []know.Message) error {
	type pending struct {
		loc  know.TextLocation
		text string
	}
	var items []pending
	for i, msg := range messages {
		msgOrd := startOrdinal + i
		for chunkOrd, chunk := range msg.TextChunks {
			items = append(items, pending{
				loc:  know.TextLocation{MessageOrdinal: msgOrd, ChunkOrdinal: chunkOrd},
				text: chunk,
			})
		}
	}
	if len(items) == 0 {
		return nil
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.text
	}
	vectors, err := idx.cache.GetEmbeddings(ctx, texts)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, it := range items {
		key := locationKey(it.loc)
		if err := idx.vectors.Insert(key, vectors[i]); err != nil {
			return err
		}
		idx.locations[key] = it.loc
	}
	return nil
}

// LookupMessages embeds text and returns up to maxMatches message ordinals
// scoring at or above threshold, a message's score being the maximum across
// its matching chunks (spec §4.5).
func (idx *Index) LookupMessages(ctx context.Context, text string, maxMatches int, threshold float64) ([]know.ScoredMessage, error) {
	return idx.LookupMessagesInSubset(ctx, text, nil, maxMatches, threshold)
}

// LookupMessagesInSubset restricts LookupMessages to the given message
// ordinals; a nil subset means "no restriction".
func (idx *Index) LookupMessagesInSubset(ctx context.Context, text string, subset []int, maxMatches int, threshold float64) ([]know.ScoredMessage, error) {
	query, err := idx.cache.GetEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	// maxMatches bounds distinct messages, not chunks: a message can match
	// via multiple chunks, so every chunk scoring >= threshold must be
	// considered before aggregating to per-message max scores, or a message
	// with many weaker chunk hits can crowd out one with a single strong hit
	// that falls outside a truncated top-k.
	hits := idx.vectors.TopK(query, idx.vectors.Size(), threshold)
	locs := make(map[string]know.TextLocation, len(idx.locations))
	for k, v := range idx.locations {
		locs[k] = v
	}
	idx.mu.RUnlock()

	var allow map[int]bool
	if subset != nil {
		allow = make(map[int]bool, len(subset))
		for _, o := range subset {
			allow[o] = true
		}
	}

	best := make(map[int]float64)
	for _, h := range hits {
		loc, ok := locs[h.Key]
		if !ok {
			continue
		}
		if allow != nil && !allow[loc.MessageOrdinal] {
			continue
		}
		if cur, ok := best[loc.MessageOrdinal]; !ok || h.Score > cur {
			best[loc.MessageOrdinal] = h.Score
		}
	}

	out := make([]know.ScoredMessage, 0, len(best))
	for ord, score := range best {
		out = append(out, know.ScoredMessage{MessageOrdinal: ord, Score: score})
	}
	know.SortScoredMessagesDesc(out)
	if maxMatches > 0 && len(out) > maxMatches {
		out = out[:maxMatches]
	}
	return out, nil
}

// Size returns the number of indexed (message, chunk) embeddings.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.vectors.Size()
}

// IsEmpty reports whether the index holds no embeddings.
func (idx *Index) IsEmpty() bool { return idx.Size() == 0 }

// Clear removes every indexed embedding.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors.Clear()
	idx.locations = make(map[string]know.TextLocation)
}

// Item is one (location, vector) entry, for serialization.
type Item struct {
	Location know.TextLocation
	Vector   []float32
}

// Items returns every entry ordered by (messageOrdinal, chunkOrdinal).
func (idx *Index) Items() []Item {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	items := make([]Item, 0, len(idx.locations))
	for key, loc := range idx.locations {
		v, ok := idx.vectors.Get(key)
		if !ok {
			continue
		}
		items = append(items, Item{Location: loc, Vector: v})
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i].Location, items[j].Location
		if a.MessageOrdinal != b.MessageOrdinal {
			return a.MessageOrdinal < b.MessageOrdinal
		}
		return a.ChunkOrdinal < b.ChunkOrdinal
	})
	return items
}

// Load replaces the index's contents with items.
func (idx *Index) Load(items []Item) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors.Clear()
	idx.locations = make(map[string]know.TextLocation, len(items))
	for _, it := range items {
		key := locationKey(it.Location)
		if err := idx.vectors.Insert(key, it.Vector); err != nil {
			return fmt.Errorf("msgindex: loading %s: %w", key, err)
		}
		idx.locations[key] = it.Location
	}
	return nil
}
