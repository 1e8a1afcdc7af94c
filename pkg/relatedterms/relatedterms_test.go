package relatedterms

import (
	"context"
	"testing"

	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/testembed"
)

func newTestCache() *embedcache.Cache {
	return embedcache.New(testembed.New(8), embedcache.DefaultConfig())
}

func TestAliasesAddAndLookup(t *testing.T) {
	a := NewAliases()
	a.AddRelatedTerm("Bob", know.Term{Text: "Robert"})
	a.AddRelatedTerm("bob", know.Term{Text: "Bobby"})

	got := a.LookupTerm("BOB")
	if len(got) != 2 {
		t.Fatalf("LookupTerm() = %v, want 2 entries", got)
	}
}

func TestAliasesLookupUnknownReturnsNil(t *testing.T) {
	a := NewAliases()
	if got := a.LookupTerm("ghost"); got != nil {
		t.Fatalf("expected nil for unregistered term, got %v", got)
	}
}

func TestAliasesRemoveAndSize(t *testing.T) {
	a := NewAliases()
	a.AddRelatedTerm("x", know.Term{Text: "y"})
	if a.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", a.Size())
	}
	a.RemoveTerm("x")
	if a.Size() != 0 {
		t.Fatal("expected Size() == 0 after RemoveTerm")
	}
}

func TestAliasesItemsAndLoadRoundTrip(t *testing.T) {
	a := NewAliases()
	a.AddRelatedTerm("b", know.Term{Text: "b2"})
	a.AddRelatedTerm("a", know.Term{Text: "a2"})

	items := a.Items()
	if len(items) != 2 || items[0].Term != "a" || items[1].Term != "b" {
		t.Fatalf("Items() not sorted: %v", items)
	}

	reloaded := NewAliases()
	reloaded.Load(items)
	if got := reloaded.LookupTerm("a"); len(got) != 1 || got[0].Text != "a2" {
		t.Fatalf("Load did not restore aliases: %v", got)
	}
}

func TestFuzzyAddAndLookup(t *testing.T) {
	f := NewFuzzy(newTestCache())
	ctx := context.Background()
	if err := f.AddTerms(ctx, []string{"python", "java", "golang"}); err != nil {
		t.Fatalf("AddTerms: %v", err)
	}
	hits, err := f.LookupTerm(ctx, "python", 5, -1)
	if err != nil {
		t.Fatalf("LookupTerm: %v", err)
	}
	if len(hits) == 0 || hits[0].Text != "python" {
		t.Fatalf("expected exact term to be the top hit, got %v", hits)
	}
}

func TestFuzzyItemsAndLoadVectorsRoundTrip(t *testing.T) {
	f := NewFuzzy(newTestCache())
	ctx := context.Background()
	f.AddTerms(ctx, []string{"alpha", "beta"})

	terms, vectors := f.Items()
	if len(terms) != 2 || len(vectors) != 2 {
		t.Fatalf("Items() = (%v, len %d), want 2 of each", terms, len(vectors))
	}

	reloaded := NewFuzzy(newTestCache())
	if err := reloaded.LoadVectors(terms, vectors); err != nil {
		t.Fatalf("LoadVectors: %v", err)
	}
	if reloaded.Size() != 2 {
		t.Fatalf("Size() after LoadVectors = %d, want 2", reloaded.Size())
	}
}

func TestIndexLookupRelatedTermsUnionsAliasesAndFuzzy(t *testing.T) {
	idx := New(newTestCache())
	ctx := context.Background()
	idx.Aliases.AddRelatedTerm("dog", know.Term{Text: "canine"})
	if err := idx.Fuzzy.AddTerms(ctx, []string{"dog", "puppy"}); err != nil {
		t.Fatalf("AddTerms: %v", err)
	}

	got, err := idx.LookupRelatedTerms(ctx, "dog", 10, -1)
	if err != nil {
		t.Fatalf("LookupRelatedTerms: %v", err)
	}
	if len(got) == 0 || got[0].Text != "canine" {
		t.Fatalf("expected alias to rank first, got %v", got)
	}
}

func TestIndexLookupRelatedTermsDedupesByNormalizedText(t *testing.T) {
	idx := New(newTestCache())
	ctx := context.Background()
	idx.Aliases.AddRelatedTerm("cat", know.Term{Text: "Feline"})
	if err := idx.Fuzzy.AddTerms(ctx, []string{"feline"}); err != nil {
		t.Fatalf("AddTerms: %v", err)
	}

	got, err := idx.LookupRelatedTerms(ctx, "cat", 10, -1)
	if err != nil {
		t.Fatalf("LookupRelatedTerms: %v", err)
	}
	count := 0
	for _, term := range got {
		if know.NormalizeTerm(term.Text) == "feline" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected feline to appear exactly once, got %d times in %v", count, got)
	}
}
