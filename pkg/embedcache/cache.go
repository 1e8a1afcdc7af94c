package embedcache

import (
	"container/list"
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/liliang-cn/knowmem/internal/vecindex"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
	"github.com/liliang-cn/knowmem/pkg/knomlog"
)

// Config configures a Cache, in the teacher's Default*Config style.
type Config struct {
	// Capacity bounds the number of distinct texts the LRU cache holds.
	// Zero means unbounded.
	Capacity int
	// BatchSize caps how many uncached texts are sent to the embedder in a
	// single EmbedBatch call.
	BatchSize int
	// MaxConcurrentBatches bounds how many EmbedBatch calls run at once
	// when GetEmbeddings must issue more than one batch.
	MaxConcurrentBatches int
	Logger               knomlog.Logger
}

// DefaultConfig returns sensible defaults: unbounded capacity, 64-text
// batches, up to 4 batches in flight at once.
func DefaultConfig() Config {
	return Config{
		Capacity:             0,
		BatchSize:            64,
		MaxConcurrentBatches: 4,
		Logger:               knomlog.Nop(),
	}
}

type cacheEntry struct {
	key    string
	vector []float32
}

// Cache is a bounded key->normalized-vector cache in front of an Embedder,
// paired with a VectorBase for fuzzy lookups over added keys.
type Cache struct {
	cfg      Config
	embedder Embedder

	mu      sync.Mutex
	byKey   map[string]*list.Element
	order   *list.List // front = most recently used
	base    *vecindex.FlatIndex
	inflight singleflight.Group
}

// New creates a Cache wrapping embedder with the given configuration.
func New(embedder Embedder, cfg Config) *Cache {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.MaxConcurrentBatches <= 0 {
		cfg.MaxConcurrentBatches = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = knomlog.Nop()
	}
	return &Cache{
		cfg:      cfg,
		embedder: embedder,
		byKey:    make(map[string]*list.Element),
		order:    list.New(),
		base:     vecindex.New(embedder.Dim()),
	}
}

// GetEmbedding returns text's vector, computing and caching it on a miss.
// Concurrent calls for the same text collapse into a single Embed call.
func (c *Cache) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.lookup(text); ok {
		return v, nil
	}

	v, err, _ := c.inflight.Do(text, func() (any, error) {
		if v, ok := c.lookup(text); ok {
			return v, nil
		}
		vec, err := c.embedder.Embed(ctx, text)
		if err != nil {
			return nil, knomerr.EmbeddingError("get_embedding", err)
		}
		c.store(text, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// GetEmbeddings returns vectors for every text in texts, batching uncached
// entries into EmbedBatch calls. No partial results are stored on failure:
// if any batch fails, the whole call returns an error and nothing new is
// cached (spec §4.1).
func (c *Cache) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	c.mu.Lock()
	for i, t := range texts {
		if el, ok := c.byKey[t]; ok {
			c.order.MoveToFront(el)
			results[i] = el.Value.(*cacheEntry).vector
		} else {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, t)
		}
	}
	c.mu.Unlock()

	if len(missTexts) == 0 {
		return results, nil
	}

	batches := chunk(missTexts, c.cfg.BatchSize)
	batchResults := make([][][]float32, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrentBatches)
	for bi, batch := range batches {
		bi, batch := bi, batch
		g.Go(func() error {
			vecs, err := c.embedder.EmbedBatch(gctx, batch)
			if err != nil {
				return knomerr.EmbeddingError("get_embeddings", err)
			}
			if len(vecs) != len(batch) {
				return knomerr.EmbeddingError("get_embeddings", errBatchSizeMismatch(len(batch), len(vecs)))
			}
			batchResults[bi] = vecs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Commit sequentially: the single-writer cache discipline (spec §5)
	// forbids concurrent mutation even though gathering was concurrent.
	pos := 0
	for bi, batch := range batches {
		vecs := batchResults[bi]
		for i, t := range batch {
			c.store(t, vecs[i])
			results[missIdx[pos]] = vecs[i]
			pos++
		}
	}
	return results, nil
}

// AddEmbedding inserts a precomputed vector under key without calling the
// embedder, and adds it to the fuzzy-lookup vector base.
func (c *Cache) AddEmbedding(key string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(key, vector)
	return c.base.Insert(key, vector)
}

// AddKey computes (or reuses a cached) embedding for key and adds it to the
// fuzzy-lookup vector base. When cache is false the computed embedding is
// added to the vector base but not retained in the LRU cache.
func (c *Cache) AddKey(ctx context.Context, key string, cache bool) error {
	vec, err := c.GetEmbedding(ctx, key)
	if err != nil {
		return err
	}
	if err := c.base.Insert(key, vec); err != nil {
		return err
	}
	if !cache {
		c.mu.Lock()
		if el, ok := c.byKey[key]; ok {
			c.order.Remove(el)
			delete(c.byKey, key)
		}
		c.mu.Unlock()
	}
	return nil
}

// AddKeys applies AddKey to every key in keys.
func (c *Cache) AddKeys(ctx context.Context, keys []string, cache bool) error {
	for _, k := range keys {
		if err := c.AddKey(ctx, k, cache); err != nil {
			return err
		}
	}
	return nil
}

// FuzzyLookup returns the maxHits nearest keys in the vector base to
// queryText's embedding, with score >= minScore, sorted descending.
func (c *Cache) FuzzyLookup(ctx context.Context, queryText string, maxHits int, minScore float64) ([]vecindex.Scored, error) {
	vec, err := c.GetEmbedding(ctx, queryText)
	if err != nil {
		return nil, err
	}
	return c.FuzzyLookupVector(vec, maxHits, minScore), nil
}

// FuzzyLookupVector is FuzzyLookup for a caller that already has the query
// vector (e.g. a message-chunk embedding being matched against term aliases).
func (c *Cache) FuzzyLookupVector(query []float32, maxHits int, minScore float64) []vecindex.Scored {
	return c.base.TopK(query, maxHits, minScore)
}

// RemoveFromVectorBase removes key from the fuzzy-lookup vector base; the
// LRU cache entry, if any, is left untouched.
func (c *Cache) RemoveFromVectorBase(key string) bool {
	return c.base.Remove(key)
}

// VectorBaseSize returns the number of keys in the fuzzy-lookup vector base.
func (c *Cache) VectorBaseSize() int {
	return c.base.Size()
}

// Dim returns the embedder's vector dimension, the size a snapshot's
// sidecar reader needs to slice raw float32 vectors back out.
func (c *Cache) Dim() int {
	return c.embedder.Dim()
}

// Size returns the number of distinct cached texts.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

// Clear empties both the LRU cache and the vector base.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey = make(map[string]*list.Element)
	c.order = list.New()
	c.base.Clear()
}

func (c *Cache) lookup(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.byKey[text]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).vector, true
}

func (c *Cache) store(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(key, vector)
}

func (c *Cache) storeLocked(key string, vector []float32) {
	if el, ok := c.byKey[key]; ok {
		el.Value.(*cacheEntry).vector = vector
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry{key: key, vector: vector})
	c.byKey[key] = el

	if c.cfg.Capacity > 0 {
		for len(c.byKey) > c.cfg.Capacity {
			oldest := c.order.Back()
			if oldest == nil {
				break
			}
			c.order.Remove(oldest)
			delete(c.byKey, oldest.Value.(*cacheEntry).key)
		}
	}
}

func chunk(items []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

type batchSizeMismatchError struct{ want, got int }

func errBatchSizeMismatch(want, got int) error { return &batchSizeMismatchError{want, got} }

func (e *batchSizeMismatchError) Error() string {
	return "embedder returned wrong batch size"
}
