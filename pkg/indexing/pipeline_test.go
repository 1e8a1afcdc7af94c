package indexing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/liliang-cn/knowmem/pkg/conversation"
	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/testembed"
	"github.com/liliang-cn/knowmem/storage/memprovider"
)

type fakeMetadata struct {
	resp know.KnowledgeResponse
}

func (f fakeMetadata) GetKnowledge() know.KnowledgeResponse { return f.resp }

func newTestConversation() *conversation.Conversation {
	cache := embedcache.New(testembed.New(8), embedcache.DefaultConfig())
	prov := memprovider.New(cache)
	return conversation.New("test", prov)
}

func TestBuildIndexIntrinsicOnly(t *testing.T) {
	ctx := context.Background()
	conv := newTestConversation()

	ts := time.Now()
	msg := know.Message{
		TextChunks: []string{"Alice bought a book"},
		Timestamp:  &ts,
		Tags:       []string{"shopping"},
		Metadata: fakeMetadata{resp: know.KnowledgeResponse{
			Entities: []know.ConcreteEntity{{Name: "Alice", Type: []string{"person"}}},
			Actions: []know.Action{{
				Verbs: []string{"buy"}, SubjectEntityName: "Alice",
				ObjectEntityName: "book", IndirectObjectName: know.NoneEntity,
			}},
		}},
	}
	if _, err := conv.AddMessage(ctx, msg); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	p := New(conv, DefaultConfig())
	results, err := p.BuildIndex(ctx)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if results.SemanticRefs.Err != nil {
		t.Fatalf("results.SemanticRefs.Err = %v", results.SemanticRefs.Err)
	}
	if results.SemanticRefs.CompletedUpTo != 1 {
		t.Fatalf("CompletedUpTo = %d, want 1", results.SemanticRefs.CompletedUpTo)
	}
	if conv.IndexedUpTo() != 1 {
		t.Fatalf("IndexedUpTo() = %d, want 1", conv.IndexedUpTo())
	}

	sizes, err := conv.Sizes(ctx)
	if err != nil {
		t.Fatalf("Sizes: %v", err)
	}
	if sizes.SemanticRefs != 3 { // one entity, one action, one tag
		t.Fatalf("SemanticRefs = %d, want 3", sizes.SemanticRefs)
	}
	if sizes.Timestamps != 1 {
		t.Fatalf("Timestamps = %d, want 1", sizes.Timestamps)
	}
	if sizes.MessageText != 1 {
		t.Fatalf("MessageText = %d, want 1", sizes.MessageText)
	}

	hits, err := conv.Provider().TermIndex().LookupTerm(ctx, "Alice")
	if err != nil {
		t.Fatalf("LookupTerm: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected Alice to be indexed by both the entity and the action, got %d hits", len(hits))
	}
}

func TestBuildIndexIsIncremental(t *testing.T) {
	ctx := context.Background()
	conv := newTestConversation()
	conv.AddMessage(ctx, know.Message{TextChunks: []string{"first"}})

	p := New(conv, DefaultConfig())
	if _, err := p.BuildIndex(ctx); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if conv.IndexedUpTo() != 1 {
		t.Fatalf("IndexedUpTo() = %d, want 1", conv.IndexedUpTo())
	}

	conv.AddMessage(ctx, know.Message{TextChunks: []string{"second"}})
	if _, err := p.BuildIndex(ctx); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if conv.IndexedUpTo() != 2 {
		t.Fatalf("IndexedUpTo() = %d, want 2 after extending", conv.IndexedUpTo())
	}
}

func TestBuildIndexSkipsDeletedMessages(t *testing.T) {
	ctx := context.Background()
	conv := newTestConversation()
	conv.AddMessage(ctx, know.Message{
		TextChunks:   []string{"gone"},
		DeletionInfo: &know.DeletionInfo{Timestamp: time.Now()},
	})

	p := New(conv, DefaultConfig())
	results, err := p.BuildIndex(ctx)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if results.SemanticRefs.CompletedUpTo != 1 {
		t.Fatalf("CompletedUpTo = %d, want 1 (deleted messages still advance the mark)", results.SemanticRefs.CompletedUpTo)
	}
	sizes, err := conv.Sizes(ctx)
	if err != nil {
		t.Fatalf("Sizes: %v", err)
	}
	if sizes.SemanticRefs != 0 {
		t.Fatalf("expected no semantic refs from a deleted message, got %d", sizes.SemanticRefs)
	}
}

type extractingExtractor struct {
	resp know.KnowledgeResponse
	err  error
}

func (e extractingExtractor) ExtractKnowledge(context.Context, string) (know.KnowledgeResponse, error) {
	return e.resp, e.err
}

func TestBuildIndexWithExtraction(t *testing.T) {
	ctx := context.Background()
	conv := newTestConversation()
	conv.AddMessage(ctx, know.Message{TextChunks: []string{"the weather is nice today"}})

	cfg := DefaultConfig()
	cfg.AutoExtractKnowledge = true
	cfg.Extractor = extractingExtractor{resp: know.KnowledgeResponse{
		Topics: []know.Topic{{Text: "weather"}},
	}}

	p := New(conv, cfg)
	results, err := p.BuildIndex(ctx)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if results.SemanticRefs.Err != nil {
		t.Fatalf("results.SemanticRefs.Err = %v", results.SemanticRefs.Err)
	}

	hits, err := conv.Provider().TermIndex().LookupTerm(ctx, "weather")
	if err != nil {
		t.Fatalf("LookupTerm: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected the extracted topic to be indexed, got %d hits", len(hits))
	}
}

type perChunkExtractor struct {
	byChunk map[string]know.KnowledgeResponse
}

func (e perChunkExtractor) ExtractKnowledge(_ context.Context, chunkText string) (know.KnowledgeResponse, error) {
	return e.byChunk[chunkText], nil
}

func TestBuildIndexWithExtractionAnchorsEachItemToItsChunk(t *testing.T) {
	ctx := context.Background()
	conv := newTestConversation()
	conv.AddMessage(ctx, know.Message{TextChunks: []string{"it is raining", "traffic is heavy"}})

	cfg := DefaultConfig()
	cfg.AutoExtractKnowledge = true
	cfg.Extractor = perChunkExtractor{byChunk: map[string]know.KnowledgeResponse{
		"it is raining":    {Topics: []know.Topic{{Text: "weather"}}},
		"traffic is heavy": {Topics: []know.Topic{{Text: "commute"}}},
	}}

	p := New(conv, cfg)
	if _, err := p.BuildIndex(ctx); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	weatherHits, err := conv.Provider().TermIndex().LookupTerm(ctx, "weather")
	if err != nil {
		t.Fatalf("LookupTerm(weather): %v", err)
	}
	if len(weatherHits) != 1 {
		t.Fatalf("expected one weather hit, got %d", len(weatherHits))
	}
	commuteHits, err := conv.Provider().TermIndex().LookupTerm(ctx, "commute")
	if err != nil {
		t.Fatalf("LookupTerm(commute): %v", err)
	}
	if len(commuteHits) != 1 {
		t.Fatalf("expected one commute hit, got %d", len(commuteHits))
	}

	weatherRef, err := conv.Provider().SemanticRefs().Get(ctx, weatherHits[0].Ordinal)
	if err != nil {
		t.Fatalf("Get(weather ref): %v", err)
	}
	if weatherRef.Range.Start.ChunkOrdinal != 0 || weatherRef.Range.End.ChunkOrdinal != 1 {
		t.Fatalf("weather range = [%d,%d), want [0,1) (anchored to the first chunk)",
			weatherRef.Range.Start.ChunkOrdinal, weatherRef.Range.End.ChunkOrdinal)
	}

	commuteRef, err := conv.Provider().SemanticRefs().Get(ctx, commuteHits[0].Ordinal)
	if err != nil {
		t.Fatalf("Get(commute ref): %v", err)
	}
	if commuteRef.Range.Start.ChunkOrdinal != 1 || commuteRef.Range.End.ChunkOrdinal != 2 {
		t.Fatalf("commute range = [%d,%d), want [1,2) (anchored to the second chunk)",
			commuteRef.Range.Start.ChunkOrdinal, commuteRef.Range.End.ChunkOrdinal)
	}
}

func TestBuildIndexExtractionFailureAbortsViaHandler(t *testing.T) {
	ctx := context.Background()
	conv := newTestConversation()
	conv.AddMessage(ctx, know.Message{TextChunks: []string{"chunk one"}})

	cfg := DefaultConfig()
	cfg.AutoExtractKnowledge = true
	cfg.Extractor = extractingExtractor{err: errors.New("llm unavailable")}
	cfg.Handlers.OnKnowledgeExtracted = func(_, _ int, err error) bool {
		return err == nil // abort the message on any extraction failure
	}

	p := New(conv, cfg)
	results, err := p.BuildIndex(ctx)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if results.SemanticRefs.Err == nil {
		t.Fatal("expected the aborted message to surface an error")
	}
	if conv.IndexedUpTo() != 0 {
		t.Fatalf("IndexedUpTo() = %d, want 0 (aborted message must not advance the mark)", conv.IndexedUpTo())
	}
}

func TestBuildIndexMessageStartedAbort(t *testing.T) {
	ctx := context.Background()
	conv := newTestConversation()
	conv.AddMessage(ctx, know.Message{TextChunks: []string{"one"}})
	conv.AddMessage(ctx, know.Message{TextChunks: []string{"two"}})

	cfg := DefaultConfig()
	started := 0
	cfg.Handlers.OnMessageStarted = func(int) bool {
		started++
		return started <= 1
	}
	p := New(conv, cfg)
	if _, err := p.BuildIndex(ctx); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if conv.IndexedUpTo() != 1 {
		t.Fatalf("IndexedUpTo() = %d, want 1 (build should stop before the second message)", conv.IndexedUpTo())
	}
}
