package memprovider

import (
	"context"
	"time"

	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/msgindex"
	"github.com/liliang-cn/knowmem/pkg/propindex"
	"github.com/liliang-cn/knowmem/pkg/relatedterms"
	"github.com/liliang-cn/knowmem/pkg/termindex"
	"github.com/liliang-cn/knowmem/pkg/threads"
	"github.com/liliang-cn/knowmem/pkg/timeindex"
	"github.com/liliang-cn/knowmem/storage"
)

// termIndex adapts termindex.Index to storage.TermIndex. Every method is a
// direct, error-free delegation: the concrete index never fails.
type termIndex struct{ idx *termindex.Index }

func (t termIndex) AddTerm(_ context.Context, term string, ordinal int) error {
	t.idx.AddTerm(term, ordinal)
	return nil
}

func (t termIndex) AddScoredTerm(_ context.Context, term string, ref know.ScoredSemanticRef) error {
	t.idx.AddScoredTerm(term, ref)
	return nil
}

func (t termIndex) RemoveTerm(_ context.Context, term string, ordinal int) error {
	t.idx.RemoveTerm(term, ordinal)
	return nil
}

func (t termIndex) LookupTerm(_ context.Context, term string) ([]know.ScoredSemanticRef, error) {
	return t.idx.LookupTerm(term), nil
}

func (t termIndex) GetTerms(_ context.Context) ([]string, error) { return t.idx.GetTerms(), nil }
func (t termIndex) Size(_ context.Context) (int, error)          { return t.idx.Size(), nil }
func (t termIndex) Clear(_ context.Context) error                { t.idx.Clear(); return nil }

// propertyIndex adapts propindex.Index to storage.PropertyIndex.
type propertyIndex struct{ idx *propindex.Index }

func (p propertyIndex) AddProperty(_ context.Context, name, value string, ordinal int) error {
	p.idx.AddProperty(name, value, ordinal)
	return nil
}

func (p propertyIndex) AddKnowledge(_ context.Context, k know.Knowledge, ordinal int) error {
	p.idx.AddKnowledge(k, ordinal)
	return nil
}

func (p propertyIndex) RemoveProperty(_ context.Context, name, value string, ordinal int) error {
	p.idx.RemoveProperty(name, value, ordinal)
	return nil
}

func (p propertyIndex) RemoveAllForSemRef(_ context.Context, ordinal int) error {
	p.idx.RemoveAllForSemRef(ordinal)
	return nil
}

func (p propertyIndex) LookupProperty(_ context.Context, name, value string) ([]know.ScoredSemanticRef, error) {
	return p.idx.LookupProperty(name, value), nil
}

func (p propertyIndex) Size(_ context.Context) (int, error) { return p.idx.Size(), nil }
func (p propertyIndex) Clear(_ context.Context) error       { p.idx.Clear(); return nil }

// timestampIndex adapts timeindex.Index to storage.TimestampIndex.
type timestampIndex struct{ idx *timeindex.Index }

func (t timestampIndex) Add(_ context.Context, messageOrdinal int, timestamp time.Time) error {
	t.idx.Add(messageOrdinal, timestamp)
	return nil
}

func (t timestampIndex) LookupRange(_ context.Context, r timeindex.DateRange) ([]timeindex.TimestampedTextRange, error) {
	return t.idx.LookupRange(r), nil
}

func (t timestampIndex) Size(_ context.Context) (int, error) { return t.idx.Size(), nil }
func (t timestampIndex) Clear(_ context.Context) error        { t.idx.Clear(); return nil }

// messageIndex adapts msgindex.Index to storage.MessageIndex.
type messageIndex struct{ idx *msgindex.Index }

func (m messageIndex) AddMessages(ctx context.Context, msgs []know.Message) error {
	return m.idx.AddMessages(ctx, msgs)
}

func (m messageIndex) AddMessagesStartingAt(ctx context.Context, startOrdinal int, msgs []know.Message) error {
	return m.idx.AddMessagesStartingAt(ctx, startOrdinal, msgs)
}

func (m messageIndex) LookupMessages(ctx context.Context, text string, maxMatches int, threshold float64) ([]know.ScoredMessage, error) {
	return m.idx.LookupMessages(ctx, text, maxMatches, threshold)
}

func (m messageIndex) LookupMessagesInSubset(ctx context.Context, text string, subset []int, maxMatches int, threshold float64) ([]know.ScoredMessage, error) {
	return m.idx.LookupMessagesInSubset(ctx, text, subset, maxMatches, threshold)
}

func (m messageIndex) LoadVectors(_ context.Context, locations []know.TextLocation, vectors [][]float32) error {
	items := make([]msgindex.Item, len(locations))
	for i, loc := range locations {
		items[i] = msgindex.Item{Location: loc, Vector: vectors[i]}
	}
	return m.idx.Load(items)
}

func (m messageIndex) Items(_ context.Context) ([]know.TextLocation, [][]float32, error) {
	items := m.idx.Items()
	locs := make([]know.TextLocation, len(items))
	vecs := make([][]float32, len(items))
	for i, it := range items {
		locs[i] = it.Location
		vecs[i] = it.Vector
	}
	return locs, vecs, nil
}

func (m messageIndex) Size(_ context.Context) (int, error) { return m.idx.Size(), nil }
func (m messageIndex) Clear(_ context.Context) error        { m.idx.Clear(); return nil }

// relatedTermsIndex adapts relatedterms.Index to storage.RelatedTermsIndex.
type relatedTermsIndex struct{ idx *relatedterms.Index }

func (r relatedTermsIndex) AddRelatedTerm(_ context.Context, term string, related ...know.Term) error {
	r.idx.Aliases.AddRelatedTerm(term, related...)
	return nil
}

func (r relatedTermsIndex) AddFuzzyTerms(ctx context.Context, terms []string) error {
	return r.idx.Fuzzy.AddTerms(ctx, terms)
}

func (r relatedTermsIndex) LookupRelatedTerms(ctx context.Context, term string, maxHits int, threshold float64) ([]know.Term, error) {
	return r.idx.LookupRelatedTerms(ctx, term, maxHits, threshold)
}

func (r relatedTermsIndex) LoadFuzzyVectors(_ context.Context, terms []string, vectors [][]float32) error {
	return r.idx.Fuzzy.LoadVectors(terms, vectors)
}

func (r relatedTermsIndex) AliasItems(_ context.Context) ([]storage.RelatedTermAlias, error) {
	items := r.idx.Aliases.Items()
	out := make([]storage.RelatedTermAlias, len(items))
	for i, it := range items {
		out[i] = storage.RelatedTermAlias{Term: it.Term, Related: it.Related}
	}
	return out, nil
}

func (r relatedTermsIndex) FuzzyItems(_ context.Context) ([]string, [][]float32, error) {
	terms, vectors := r.idx.Fuzzy.Items()
	return terms, vectors, nil
}

func (r relatedTermsIndex) Size(_ context.Context) (int, error) {
	return r.idx.Aliases.Size() + r.idx.Fuzzy.Size(), nil
}

func (r relatedTermsIndex) Clear(_ context.Context) error {
	r.idx.Aliases.Clear()
	return nil
}

// threadIndex adapts threads.Index to storage.ThreadIndex.
type threadIndex struct{ idx *threads.Index }

func (t threadIndex) AddThread(ctx context.Context, thread know.Thread) (int, error) {
	return t.idx.AddThread(ctx, thread)
}

func (t threadIndex) LookupThread(ctx context.Context, description string, maxMatches int, threshold float64) ([]know.ScoredThreadIndex, error) {
	return t.idx.LookupThread(ctx, description, maxMatches, threshold)
}

func (t threadIndex) Get(_ context.Context, threadIndex int) (know.Thread, bool, error) {
	th, ok := t.idx.Get(threadIndex)
	return th, ok, nil
}

func (t threadIndex) All(_ context.Context) ([]know.Thread, error) { return t.idx.All(), nil }
func (t threadIndex) Size(_ context.Context) (int, error)          { return t.idx.Size(), nil }
func (t threadIndex) Clear(_ context.Context) error                { t.idx.Clear(); return nil }
