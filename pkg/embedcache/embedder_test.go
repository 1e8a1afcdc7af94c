package embedcache

import (
	"context"
	"errors"
	"testing"
)

func TestBaseEmbedderEmbedBatchPreservesOrder(t *testing.T) {
	b := &BaseEmbedder{
		EmbedFn: func(_ context.Context, text string) ([]float32, error) {
			return []float32{float32(len(text))}, nil
		},
		DimFn: func() int { return 1 },
	}
	texts := []string{"a", "bb", "ccc"}
	got, err := b.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, text := range texts {
		if got[i][0] != float32(len(text)) {
			t.Fatalf("result[%d] = %v, want length of %q", i, got[i], text)
		}
	}
}

func TestBaseEmbedderEmbedBatchPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	b := &BaseEmbedder{
		EmbedFn: func(_ context.Context, text string) ([]float32, error) {
			if text == "bad" {
				return nil, boom
			}
			return []float32{1}, nil
		},
		DimFn: func() int { return 1 },
	}
	_, err := b.EmbedBatch(context.Background(), []string{"good", "bad"})
	if !errors.Is(err, boom) {
		t.Fatalf("EmbedBatch() err = %v, want %v", err, boom)
	}
}

func TestBaseEmbedderDim(t *testing.T) {
	b := &BaseEmbedder{DimFn: func() int { return 42 }}
	if b.Dim() != 42 {
		t.Fatalf("Dim() = %d, want 42", b.Dim())
	}
}
