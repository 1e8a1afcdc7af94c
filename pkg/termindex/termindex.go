// Package termindex implements the term→semantic-ref primary postings
// index (spec §4.2), adapted from the teacher's pkg/index.FlatIndex
// map-of-slices shape — here keyed by normalized term text instead of a
// vector.
package termindex

import (
	"sort"
	"sync"

	"github.com/liliang-cn/knowmem/pkg/know"
)

type posting struct {
	ref    know.ScoredSemanticRef
	scored bool
}

// Index is the term→semantic-ref postings list. Safe for concurrent reads;
// writes are serialized by the caller per spec §5's single-writer ordering.
type Index struct {
	mu       sync.RWMutex
	postings map[string][]posting
}

// New creates an empty term index.
func New() *Index {
	return &Index{postings: make(map[string][]posting)}
}

// AddTerm adds ordinal to term's postings, unscored: LookupTerm returns such
// entries in insertion order. Idempotent per (term, ordinal).
func (idx *Index) AddTerm(term string, ordinal int) {
	idx.add(term, know.ScoredSemanticRef{Ordinal: ordinal}, false)
}

// AddScoredTerm adds a scored posting; LookupTerm returns postings holding
// at least one scored entry sorted by score descending. Idempotent per
// (term, ordinal).
func (idx *Index) AddScoredTerm(term string, ref know.ScoredSemanticRef) {
	idx.add(term, ref, true)
}

func (idx *Index) add(term string, ref know.ScoredSemanticRef, scored bool) {
	key := know.NormalizeTerm(term)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	list := idx.postings[key]
	for i, p := range list {
		if p.ref.Ordinal == ref.Ordinal {
			list[i] = posting{ref: ref, scored: scored}
			return
		}
	}
	idx.postings[key] = append(list, posting{ref: ref, scored: scored})
}

// RemoveTerm removes ordinal from term's postings, if present.
func (idx *Index) RemoveTerm(term string, ordinal int) {
	key := know.NormalizeTerm(term)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	list := idx.postings[key]
	for i, p := range list {
		if p.ref.Ordinal == ordinal {
			idx.postings[key] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// LookupTerm returns term's postings. If any posting was added via
// AddScoredTerm, results are sorted by score descending; otherwise they
// are returned in insertion order. A term never seen returns an empty
// slice, not nil.
func (idx *Index) LookupTerm(term string) []know.ScoredSemanticRef {
	key := know.NormalizeTerm(term)

	idx.mu.RLock()
	list := idx.postings[key]
	snapshot := make([]posting, len(list))
	copy(snapshot, list)
	idx.mu.RUnlock()

	out := make([]know.ScoredSemanticRef, len(snapshot))
	anyScored := false
	for i, p := range snapshot {
		out[i] = p.ref
		if p.scored {
			anyScored = true
		}
	}
	if anyScored {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	}
	return out
}

// GetTerms returns every distinct term currently holding at least one
// posting.
func (idx *Index) GetTerms() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	terms := make([]string, 0, len(idx.postings))
	for t, list := range idx.postings {
		if len(list) > 0 {
			terms = append(terms, t)
		}
	}
	return terms
}

// Size returns the number of distinct terms with at least one posting.
func (idx *Index) Size() int {
	return len(idx.GetTerms())
}

// Clear removes every term and posting.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.postings = make(map[string][]posting)
}

// Item is one (term, postings) pair, the shape the snapshot format uses.
type Item struct {
	Term     string
	Postings []know.ScoredSemanticRef
}

// Items returns every (term, postings) pair sorted by term, for
// deterministic serialization. The scored/unscored distinction is not
// preserved across serialization — a reloaded index treats every entry as
// scored if any score is non-zero, matching the wire format's
// `semanticRefIndices[].score` optional field.
func (idx *Index) Items() []Item {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	items := make([]Item, 0, len(idx.postings))
	for t, list := range idx.postings {
		postings := make([]know.ScoredSemanticRef, len(list))
		for i, p := range list {
			postings[i] = p.ref
		}
		items = append(items, Item{Term: t, Postings: postings})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Term < items[j].Term })
	return items
}

// Load replaces the index's contents with items, used when deserializing a
// snapshot. Entries with a non-zero score are treated as scored.
func (idx *Index) Load(items []Item) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.postings = make(map[string][]posting, len(items))
	for _, it := range items {
		list := make([]posting, len(it.Postings))
		for i, ref := range it.Postings {
			list[i] = posting{ref: ref, scored: ref.Score != 0}
		}
		idx.postings[it.Term] = list
	}
}
