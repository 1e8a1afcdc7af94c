// Package relatedterms implements the related-terms index (spec §4.6): an
// authored alias map plus a fuzzy embedding index over term strings, unioned
// with aliases ranking first at equal score. Adapted from the teacher's
// pkg/core/collections.go name->record map (aliases) and pkg/index/lsh.go's
// candidate-then-rescore shape (fuzzy, simplified to flat cosine rescoring
// since term-string volume per conversation is small — see DESIGN.md).
package relatedterms

import (
	"context"
	"sort"
	"sync"

	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/know"
)

// Aliases is the authored exact-match sub-index: nicknames, participant
// aliases and similar, never mutated by the embedding pipeline.
type Aliases struct {
	mu    sync.RWMutex
	terms map[string][]know.Term
}

// NewAliases creates an empty alias index.
func NewAliases() *Aliases { return &Aliases{terms: make(map[string][]know.Term)} }

// AddRelatedTerm adds one or more related terms under term, appending to any
// existing entry.
func (a *Aliases) AddRelatedTerm(term string, related ...know.Term) {
	key := know.NormalizeTerm(term)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.terms[key] = append(a.terms[key], related...)
}

// LookupTerm returns term's aliases, or nil if term was never registered.
func (a *Aliases) LookupTerm(term string) []know.Term {
	key := know.NormalizeTerm(term)
	a.mu.RLock()
	defer a.mu.RUnlock()
	list, ok := a.terms[key]
	if !ok {
		return nil
	}
	out := make([]know.Term, len(list))
	copy(out, list)
	return out
}

// RemoveTerm removes term and all its aliases.
func (a *Aliases) RemoveTerm(term string) {
	key := know.NormalizeTerm(term)
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.terms, key)
}

// Size returns the number of distinct terms with registered aliases.
func (a *Aliases) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.terms)
}

// Clear removes every alias.
func (a *Aliases) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.terms = make(map[string][]know.Term)
}

// AliasItem is one (term, related terms) pair, for serialization.
type AliasItem struct {
	Term    string
	Related []know.Term
}

// Items returns every alias entry sorted by term.
func (a *Aliases) Items() []AliasItem {
	a.mu.RLock()
	defer a.mu.RUnlock()
	items := make([]AliasItem, 0, len(a.terms))
	for t, list := range a.terms {
		related := make([]know.Term, len(list))
		copy(related, list)
		items = append(items, AliasItem{Term: t, Related: related})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Term < items[j].Term })
	return items
}

// Load replaces the alias index's contents with items.
func (a *Aliases) Load(items []AliasItem) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.terms = make(map[string][]know.Term, len(items))
	for _, it := range items {
		related := make([]know.Term, len(it.Related))
		copy(related, it.Related)
		a.terms[it.Term] = related
	}
}

// Fuzzy is the embedding-backed sub-index over term strings.
type Fuzzy struct {
	cache *embedcache.Cache
}

// NewFuzzy creates a fuzzy index that embeds and caches term strings via
// cache's vector base.
func NewFuzzy(cache *embedcache.Cache) *Fuzzy { return &Fuzzy{cache: cache} }

// AddTerms embeds and indexes every term in terms, skipping ones already
// cached in the vector base (idempotent on term text).
func (f *Fuzzy) AddTerms(ctx context.Context, terms []string) error {
	return f.cache.AddKeys(ctx, terms, true)
}

// LookupTerm returns up to maxHits related terms for text scoring at or
// above threshold, sorted by cosine similarity descending.
func (f *Fuzzy) LookupTerm(ctx context.Context, text string, maxHits int, threshold float64) ([]know.Term, error) {
	hits, err := f.cache.FuzzyLookup(ctx, text, maxHits, threshold)
	if err != nil {
		return nil, err
	}
	out := make([]know.Term, len(hits))
	for i, h := range hits {
		score := h.Score
		out[i] = know.Term{Text: h.Key, Weight: &score}
	}
	return out, nil
}

// LookupTerms is LookupTerm applied to each of texts.
func (f *Fuzzy) LookupTerms(ctx context.Context, texts []string, maxHits int, threshold float64) ([][]know.Term, error) {
	out := make([][]know.Term, len(texts))
	for i, t := range texts {
		terms, err := f.LookupTerm(ctx, t, maxHits, threshold)
		if err != nil {
			return nil, err
		}
		out[i] = terms
	}
	return out, nil
}

// RemoveTerm removes term from the fuzzy vector base (it may remain in the
// embedding cache's LRU).
func (f *Fuzzy) RemoveTerm(term string) {
	f.cache.RemoveFromVectorBase(term)
}

// Size returns the number of terms in the fuzzy vector base.
func (f *Fuzzy) Size() int { return f.cache.VectorBaseSize() }

// LoadVectors replaces the fuzzy vector base with precomputed (term, vector)
// pairs, restoring a snapshot's embeddings without recomputing them.
func (f *Fuzzy) LoadVectors(terms []string, vectors [][]float32) error {
	return f.cache.LoadVectorBase(terms, vectors)
}

// Items returns every (term, vector) pair in the fuzzy vector base, sorted
// by term, for snapshot export.
func (f *Fuzzy) Items() ([]string, [][]float32) {
	return f.cache.VectorBaseItems()
}

// Index composes Aliases and Fuzzy behind the union contract spec §4.6
// describes: consult aliases first, augment with fuzzy, dedupe by text with
// aliases preferred at equal score.
type Index struct {
	Aliases *Aliases
	Fuzzy   *Fuzzy
}

// New creates a related-terms index sharing cache's vector base for fuzzy
// lookups.
func New(cache *embedcache.Cache) *Index {
	return &Index{Aliases: NewAliases(), Fuzzy: NewFuzzy(cache)}
}

// LookupRelatedTerms returns the union of aliases and fuzzy matches for
// term, deduplicated by text, aliases ranking first at equal score.
func (idx *Index) LookupRelatedTerms(ctx context.Context, term string, maxHits int, threshold float64) ([]know.Term, error) {
	aliasTerms := idx.Aliases.LookupTerm(term)

	fuzzyTerms, err := idx.Fuzzy.LookupTerm(ctx, term, maxHits, threshold)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(aliasTerms)+len(fuzzyTerms))
	out := make([]know.Term, 0, len(aliasTerms)+len(fuzzyTerms))
	for _, t := range aliasTerms {
		key := know.NormalizeTerm(t.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	for _, t := range fuzzyTerms {
		key := know.NormalizeTerm(t.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out, nil
}
