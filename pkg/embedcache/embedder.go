// Package embedcache wraps an external text-embedding client with a bounded
// LRU cache and an in-memory cosine similarity index (VectorBase), the way
// the teacher's pkg/sqvect.Embedder + pkg/index.FlatIndex pair does for its
// RAG pipelines. The embedding and language-model clients themselves are
// out-of-scope external collaborators (spec §1); only their interfaces live
// here.
package embedcache

import "context"

// Embedder converts text to vectors. Production implementations (OpenAI,
// Azure OpenAI, local models) live outside this module; package testembed
// ships a deterministic offline double for tests.
type Embedder interface {
	// Embed converts a single text string into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts in one call. Implementations that
	// cannot batch natively may embed BaseEmbedder to get a goroutine-backed
	// fallback.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dim returns the fixed dimension of vectors this embedder produces.
	Dim() int
}

// BaseEmbedder supplies a default EmbedBatch that fans Embed out over
// goroutines, for embedders with no native batch endpoint. Adapted from the
// teacher's pkg/sqvect.BaseEmbedder.
type BaseEmbedder struct {
	EmbedFn func(ctx context.Context, text string) ([]float32, error)
	DimFn   func() int
}

func (b *BaseEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return b.EmbedFn(ctx, text)
}

func (b *BaseEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	type result struct {
		idx int
		vec []float32
		err error
	}
	ch := make(chan result, len(texts))
	for i, text := range texts {
		go func(idx int, t string) {
			vec, err := b.EmbedFn(ctx, t)
			ch <- result{idx: idx, vec: vec, err: err}
		}(i, text)
	}
	results := make([][]float32, len(texts))
	var firstErr error
	for range texts {
		r := <-ch
		results[r.idx] = r.vec
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (b *BaseEmbedder) Dim() int { return b.DimFn() }
