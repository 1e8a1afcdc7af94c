package msgindex

import (
	"context"
	"testing"

	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/testembed"
)

func newTestIndex() *Index {
	cache := embedcache.New(testembed.New(8), embedcache.DefaultConfig())
	return New(cache)
}

func TestAddMessagesAndLookup(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()

	msgs := []know.Message{
		{TextChunks: []string{"the cat sat on the mat"}},
		{TextChunks: []string{"quantum mechanics is strange"}},
	}
	if err := idx.AddMessages(ctx, msgs); err != nil {
		t.Fatalf("AddMessages: %v", err)
	}
	if idx.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", idx.Size())
	}

	hits, err := idx.LookupMessages(ctx, "the cat sat on the mat", 5, -1)
	if err != nil {
		t.Fatalf("LookupMessages: %v", err)
	}
	if len(hits) == 0 || hits[0].MessageOrdinal != 0 {
		t.Fatalf("expected message 0 to be the top hit for an exact query, got %v", hits)
	}
}

func TestAddMessagesStartingAt(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()
	msgs := []know.Message{{TextChunks: []string{"hello"}}}
	if err := idx.AddMessagesStartingAt(ctx, 5, msgs); err != nil {
		t.Fatalf("AddMessagesStartingAt: %v", err)
	}
	items := idx.Items()
	if len(items) != 1 || items[0].Location.MessageOrdinal != 5 {
		t.Fatalf("expected location at ordinal 5, got %v", items)
	}
}

func TestLookupMessagesInSubset(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()
	msgs := []know.Message{
		{TextChunks: []string{"alpha text"}},
		{TextChunks: []string{"alpha text"}},
	}
	if err := idx.AddMessages(ctx, msgs); err != nil {
		t.Fatalf("AddMessages: %v", err)
	}

	hits, err := idx.LookupMessagesInSubset(ctx, "alpha text", []int{1}, 5, -1)
	if err != nil {
		t.Fatalf("LookupMessagesInSubset: %v", err)
	}
	for _, h := range hits {
		if h.MessageOrdinal != 1 {
			t.Fatalf("subset restriction violated: %v", hits)
		}
	}
}

// fixedVectorEmbedder returns a caller-supplied vector per text, so a test
// can control cosine scores exactly instead of relying on hash-based
// pseudo-randomness.
func fixedVectorEmbedder(dim int, byText map[string][]float32) *embedcache.BaseEmbedder {
	return &embedcache.BaseEmbedder{
		EmbedFn: func(_ context.Context, text string) ([]float32, error) {
			return byText[text], nil
		},
		DimFn: func() int { return dim },
	}
}

// TestLookupMessagesInSubsetDoesNotDropQualifyingMessageToOverfetchedChunks
// guards against an over-fetch budget that truncates chunk-level hits before
// per-message aggregation: a message with many merely-qualifying chunks must
// not crowd out a different message whose single chunk also scores at or
// above threshold.
func TestLookupMessagesInSubsetDoesNotDropQualifyingMessageToOverfetchedChunks(t *testing.T) {
	ctx := context.Background()
	query := []float32{1, 0}
	// message 0 contributes 20 chunks, all scoring 0.9 against the query.
	chunkVec := []float32{0.9, 0.43588989}
	// message 1 contributes a single chunk scoring 0.8 against the query,
	// still above the 0.75 threshold used below.
	otherVec := []float32{0.8, 0.6}

	byText := map[string][]float32{"query": query, "other chunk": otherVec}
	manyChunks := make([]string, 20)
	for i := range manyChunks {
		text := "chunk " + string(rune('a'+i))
		byText[text] = chunkVec
		manyChunks[i] = text
	}

	cache := embedcache.New(fixedVectorEmbedder(2, byText), embedcache.DefaultConfig())
	idx := New(cache)
	if err := idx.AddMessages(ctx, []know.Message{
		{TextChunks: manyChunks},
		{TextChunks: []string{"other chunk"}},
	}); err != nil {
		t.Fatalf("AddMessages: %v", err)
	}

	hits, err := idx.LookupMessages(ctx, "query", 2, 0.75)
	if err != nil {
		t.Fatalf("LookupMessages: %v", err)
	}
	seen := make(map[int]bool)
	for _, h := range hits {
		seen[h.MessageOrdinal] = true
	}
	if !seen[0] || !seen[1] {
		t.Fatalf("expected both messages to qualify above threshold, got %v", hits)
	}
}

func TestClear(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()
	idx.AddMessages(ctx, []know.Message{{TextChunks: []string{"x"}}})
	idx.Clear()
	if !idx.IsEmpty() {
		t.Fatal("expected index to be empty after Clear")
	}
}

func TestItemsAndLoadRoundTrip(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()
	idx.AddMessages(ctx, []know.Message{
		{TextChunks: []string{"one", "two"}},
	})
	items := idx.Items()
	if len(items) != 2 {
		t.Fatalf("Items() = %v, want 2 entries", items)
	}
	if items[0].Location.ChunkOrdinal != 0 || items[1].Location.ChunkOrdinal != 1 {
		t.Fatalf("Items() not ordered by chunk ordinal: %v", items)
	}

	reloaded := newTestIndex()
	if err := reloaded.Load(items); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Size() != 2 {
		t.Fatalf("Size() after Load = %d, want 2", reloaded.Size())
	}
}
