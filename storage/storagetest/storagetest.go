// Package storagetest runs one behavioral suite against any storage.Provider
// implementation, so memprovider and sqliteprovider are exercised by
// identical assertions instead of two hand-maintained copies drifting apart.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/timeindex"
	"github.com/liliang-cn/knowmem/storage"
)

// RunProviderSuite exercises every storage.Provider method against a freshly
// constructed provider. newProvider must return an empty provider each call.
func RunProviderSuite(t *testing.T, newProvider func() storage.Provider) {
	t.Run("Messages", func(t *testing.T) { testMessages(t, newProvider()) })
	t.Run("SemanticRefs", func(t *testing.T) { testSemanticRefs(t, newProvider()) })
	t.Run("TermIndex", func(t *testing.T) { testTermIndex(t, newProvider()) })
	t.Run("PropertyIndex", func(t *testing.T) { testPropertyIndex(t, newProvider()) })
	t.Run("TimestampIndex", func(t *testing.T) { testTimestampIndex(t, newProvider()) })
	t.Run("MessageIndex", func(t *testing.T) { testMessageIndex(t, newProvider()) })
	t.Run("RelatedTermsIndex", func(t *testing.T) { testRelatedTermsIndex(t, newProvider()) })
	t.Run("ThreadIndex", func(t *testing.T) { testThreadIndex(t, newProvider()) })
}

func testMessages(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	msgs := p.Messages()

	o0, err := msgs.Append(ctx, know.Message{TextChunks: []string{"first"}})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	o1, err := msgs.Append(ctx, know.Message{TextChunks: []string{"second"}})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if o0 != 0 || o1 != 1 {
		t.Fatalf("ordinals = (%d, %d), want (0, 1)", o0, o1)
	}

	got, err := msgs.Get(ctx, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TextChunks[0] != "first" {
		t.Fatalf("Get(0) = %+v, want text chunk 'first'", got)
	}

	if _, err := msgs.Get(ctx, 99); err == nil {
		t.Fatal("Get(99) on an out-of-range ordinal should fail")
	}

	slice, err := msgs.GetSlice(ctx, 0, 2)
	if err != nil {
		t.Fatalf("GetSlice: %v", err)
	}
	if len(slice) != 2 {
		t.Fatalf("GetSlice len = %d, want 2", len(slice))
	}

	all, err := msgs.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("All() len = %d, want 2", len(all))
	}

	size, err := msgs.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 2 {
		t.Fatalf("Size() = %d, want 2", size)
	}
}

func testSemanticRefs(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	refs := p.SemanticRefs()

	ref := know.SemanticRef{
		Range:     know.TextRange{Start: know.TextLocation{MessageOrdinal: 0}},
		Knowledge: know.Knowledge{Type: know.KindTopic, Topic: know.Topic{Text: "weather"}},
	}
	o0, err := refs.Append(ctx, ref)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if o0 != 0 {
		t.Fatalf("ordinal = %d, want 0", o0)
	}

	got, err := refs.Get(ctx, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Knowledge.Topic.Text != "weather" {
		t.Fatalf("Get(0).Knowledge.Topic.Text = %q, want 'weather'", got.Knowledge.Topic.Text)
	}

	multi, err := refs.GetMultiple(ctx, []int{0})
	if err != nil {
		t.Fatalf("GetMultiple: %v", err)
	}
	if len(multi) != 1 {
		t.Fatalf("GetMultiple len = %d, want 1", len(multi))
	}

	if _, err := refs.GetMultiple(ctx, []int{0, 5}); err == nil {
		t.Fatal("GetMultiple with an out-of-range ordinal should fail")
	}

	all, err := refs.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("All() len = %d, want 1", len(all))
	}

	size, err := refs.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 1 {
		t.Fatalf("Size() = %d, want 1", size)
	}
}

func testTermIndex(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	idx := p.TermIndex()

	if err := idx.AddTerm(ctx, "alice", 0); err != nil {
		t.Fatalf("AddTerm: %v", err)
	}
	if err := idx.AddScoredTerm(ctx, "alice", know.ScoredSemanticRef{Ordinal: 1, Score: 0.5}); err != nil {
		t.Fatalf("AddScoredTerm: %v", err)
	}

	hits, err := idx.LookupTerm(ctx, "alice")
	if err != nil {
		t.Fatalf("LookupTerm: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("LookupTerm len = %d, want 2", len(hits))
	}

	missing, err := idx.LookupTerm(ctx, "nobody")
	if err != nil {
		t.Fatalf("LookupTerm(missing): %v", err)
	}
	if missing == nil || len(missing) != 0 {
		t.Fatalf("LookupTerm(missing) = %v, want an empty non-nil slice", missing)
	}

	terms, err := idx.GetTerms(ctx)
	if err != nil {
		t.Fatalf("GetTerms: %v", err)
	}
	if len(terms) != 1 {
		t.Fatalf("GetTerms len = %d, want 1", len(terms))
	}

	if err := idx.RemoveTerm(ctx, "alice", 0); err != nil {
		t.Fatalf("RemoveTerm: %v", err)
	}
	hits, err = idx.LookupTerm(ctx, "alice")
	if err != nil {
		t.Fatalf("LookupTerm after remove: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("LookupTerm after remove len = %d, want 1", len(hits))
	}

	size, err := idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 1 {
		t.Fatalf("Size() = %d, want 1", size)
	}

	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	size, err = idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size after clear: %v", err)
	}
	if size != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", size)
	}
}

func testPropertyIndex(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	idx := p.PropertyIndex()

	if err := idx.AddProperty(ctx, "role", "engineer", 0); err != nil {
		t.Fatalf("AddProperty: %v", err)
	}
	if err := idx.AddProperty(ctx, "role", "engineer", 1); err != nil {
		t.Fatalf("AddProperty: %v", err)
	}

	hits, err := idx.LookupProperty(ctx, "role", "engineer")
	if err != nil {
		t.Fatalf("LookupProperty: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("LookupProperty len = %d, want 2", len(hits))
	}

	never, err := idx.LookupProperty(ctx, "role", "nobody")
	if err != nil {
		t.Fatalf("LookupProperty(never seen): %v", err)
	}
	if never != nil {
		t.Fatalf("LookupProperty(never seen) = %v, want nil", never)
	}

	if err := idx.RemoveAllForSemRef(ctx, 0); err != nil {
		t.Fatalf("RemoveAllForSemRef: %v", err)
	}
	hits, err = idx.LookupProperty(ctx, "role", "engineer")
	if err != nil {
		t.Fatalf("LookupProperty after RemoveAllForSemRef: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("LookupProperty after RemoveAllForSemRef len = %d, want 1", len(hits))
	}

	size, err := idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 1 {
		t.Fatalf("Size() = %d, want 1", size)
	}

	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	size, err = idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size after clear: %v", err)
	}
	if size != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", size)
	}
}

func testTimestampIndex(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	idx := p.TimestampIndex()

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t0.Add(2 * time.Hour)

	if err := idx.Add(ctx, 0, t0); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add(ctx, 1, t1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add(ctx, 2, t2); err != nil {
		t.Fatalf("Add: %v", err)
	}

	end := t2
	hits, err := idx.LookupRange(ctx, timeindex.DateRange{Start: t0, End: &end})
	if err != nil {
		t.Fatalf("LookupRange: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("LookupRange [t0,t2) len = %d, want 2 (half-open)", len(hits))
	}

	point, err := idx.LookupRange(ctx, timeindex.DateRange{Start: t1})
	if err != nil {
		t.Fatalf("LookupRange point: %v", err)
	}
	if len(point) != 1 {
		t.Fatalf("LookupRange point len = %d, want 1", len(point))
	}

	size, err := idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 3 {
		t.Fatalf("Size() = %d, want 3", size)
	}

	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	size, err = idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size after clear: %v", err)
	}
	if size != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", size)
	}
}

func testMessageIndex(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	idx := p.MessageIndex()

	msgs := []know.Message{
		{TextChunks: []string{"the cat sat on the mat"}},
		{TextChunks: []string{"rockets launch into orbit"}},
	}
	if err := idx.AddMessages(ctx, msgs); err != nil {
		t.Fatalf("AddMessages: %v", err)
	}

	hits, err := idx.LookupMessages(ctx, "the cat sat on the mat", 5, 0)
	if err != nil {
		t.Fatalf("LookupMessages: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("LookupMessages returned no hits for an exact match")
	}
	if hits[0].MessageOrdinal != 0 {
		t.Fatalf("top hit MessageOrdinal = %d, want 0 (exact match)", hits[0].MessageOrdinal)
	}

	subsetHits, err := idx.LookupMessagesInSubset(ctx, "the cat sat on the mat", []int{1}, 5, 0)
	if err != nil {
		t.Fatalf("LookupMessagesInSubset: %v", err)
	}
	for _, h := range subsetHits {
		if h.MessageOrdinal != 1 {
			t.Fatalf("LookupMessagesInSubset returned ordinal %d outside the requested subset", h.MessageOrdinal)
		}
	}

	locs, vecs, err := idx.Items(ctx)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(locs) != len(vecs) || len(locs) == 0 {
		t.Fatalf("Items returned %d locations and %d vectors", len(locs), len(vecs))
	}

	size, err := idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != len(locs) {
		t.Fatalf("Size() = %d, want %d (matching Items)", size, len(locs))
	}

	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	size, err = idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size after clear: %v", err)
	}
	if size != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", size)
	}

	if err := idx.LoadVectors(ctx, locs, vecs); err != nil {
		t.Fatalf("LoadVectors: %v", err)
	}
	size, err = idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size after LoadVectors: %v", err)
	}
	if size != len(locs) {
		t.Fatalf("Size() after LoadVectors = %d, want %d", size, len(locs))
	}
}

func testRelatedTermsIndex(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	idx := p.RelatedTermsIndex()

	if err := idx.AddRelatedTerm(ctx, "puppy", know.Term{Text: "dog"}); err != nil {
		t.Fatalf("AddRelatedTerm: %v", err)
	}
	if err := idx.AddFuzzyTerms(ctx, []string{"automobile", "vehicle"}); err != nil {
		t.Fatalf("AddFuzzyTerms: %v", err)
	}

	aliasHits, err := idx.LookupRelatedTerms(ctx, "puppy", 5, 0)
	if err != nil {
		t.Fatalf("LookupRelatedTerms(alias): %v", err)
	}
	found := false
	for _, h := range aliasHits {
		if h.Text == "dog" {
			found = true
		}
	}
	if !found {
		t.Fatalf("LookupRelatedTerms(puppy) = %v, want it to include the authored alias 'dog'", aliasHits)
	}

	aliasItems, err := idx.AliasItems(ctx)
	if err != nil {
		t.Fatalf("AliasItems: %v", err)
	}
	if len(aliasItems) != 1 {
		t.Fatalf("AliasItems len = %d, want 1", len(aliasItems))
	}

	terms, vecs, err := idx.FuzzyItems(ctx)
	if err != nil {
		t.Fatalf("FuzzyItems: %v", err)
	}
	if len(terms) != 2 || len(vecs) != 2 {
		t.Fatalf("FuzzyItems returned %d terms and %d vectors, want 2 and 2", len(terms), len(vecs))
	}

	size, err := idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size == 0 {
		t.Fatal("Size() = 0, want the alias plus fuzzy entries to be counted")
	}

	if err := idx.LoadFuzzyVectors(ctx, terms, vecs); err != nil {
		t.Fatalf("LoadFuzzyVectors: %v", err)
	}

	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	size, err = idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size after clear: %v", err)
	}
	if size != 2 {
		t.Fatalf("Size() after Clear = %d, want 2 (Clear removes the alias; the two fuzzy terms remain)", size)
	}
}

func testThreadIndex(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	idx := p.ThreadIndex()

	thread := know.Thread{
		Description: "planning a trip to the mountains",
		Ranges: []know.TextRange{{
			Start: know.TextLocation{MessageOrdinal: 0},
		}},
	}
	ti, err := idx.AddThread(ctx, thread)
	if err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	if ti != 0 {
		t.Fatalf("thread index = %d, want 0", ti)
	}

	got, ok, err := idx.Get(ctx, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get(0) ok = false, want true")
	}
	if got.Description != thread.Description {
		t.Fatalf("Get(0).Description = %q, want %q", got.Description, thread.Description)
	}

	hits, err := idx.LookupThread(ctx, "planning a trip to the mountains", 5, 0)
	if err != nil {
		t.Fatalf("LookupThread: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("LookupThread returned no hits for an exact description match")
	}

	all, err := idx.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("All() len = %d, want 1", len(all))
	}

	size, err := idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 1 {
		t.Fatalf("Size() = %d, want 1", size)
	}

	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	size, err = idx.Size(ctx)
	if err != nil {
		t.Fatalf("Size after clear: %v", err)
	}
	if size != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", size)
	}
}
