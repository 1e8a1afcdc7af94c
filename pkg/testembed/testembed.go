// Package testembed provides a deterministic, offline-safe Embedder for
// tests: text maps to a pseudo-vector via FNV hashing, so the same text
// always yields the same unit-normalized vector without a network call.
// Production callers supply a real Embedder (OpenAI, Azure OpenAI, a local
// model) behind the embedcache.Embedder interface; this module never reads
// OPENAI_API_KEY or AZURE_OPENAI_API_KEY itself (spec §6).
package testembed

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/liliang-cn/knowmem/internal/vecindex"
)

// Embedder is a deterministic pseudo-embedder for tests.
type Embedder struct {
	dim int
}

// New creates a test embedder producing unit-normalized vectors of dim.
func New(dim int) *Embedder { return &Embedder{dim: dim} }

// Embed hashes text into a deterministic pseudo-vector of the configured
// dimension and L2-normalizes it.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dim)
	h := fnv.New64a()
	seed := []byte(text)
	for i := 0; i < e.dim; i++ {
		h.Reset()
		h.Write(seed)
		h.Write([]byte{byte(i), byte(i >> 8)})
		sum := h.Sum64()
		// Map the hash into [-1, 1] via its value modulo 2000001, giving a pseudo-random
		// but fully deterministic component per dimension.
		v[i] = float32(float64(sum%2000001)/1000000.0 - 1.0)
	}
	if math.Abs(float64(v[0])) < 1e-9 {
		v[0] = 1e-6 // avoid an exact zero vector, which cannot be normalized
	}
	return vecindex.Normalize(v), nil
}

// EmbedBatch embeds each text independently; the test embedder is cheap
// enough that no real batching benefit exists.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dim returns the configured vector dimension.
func (e *Embedder) Dim() int { return e.dim }
