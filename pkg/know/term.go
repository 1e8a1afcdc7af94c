package know

import (
	"sort"
	"strings"
)

// Term is a single index key with an optional weight, e.g. an alias weight
// or a term-match score carried through a query.
type Term struct {
	Text   string   `json:"text"`
	Weight *float64 `json:"weight,omitempty"`
}

// NormalizeTerm case-folds and collapses internal whitespace, the
// normalization every term-bearing index applies before using text as a key.
// Multi-word terms (e.g. an action's joined verbs) are preserved as single
// keys, never split.
func NormalizeTerm(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// ScoredSemanticRef pairs a semantic-ref ordinal with a match score.
type ScoredSemanticRef struct {
	Ordinal int     `json:"semanticRefOrdinal"`
	Score   float64 `json:"score"`
}

// ScoredMessage pairs a message ordinal with a match score.
type ScoredMessage struct {
	MessageOrdinal int     `json:"messageOrdinal"`
	Score          float64 `json:"score"`
}

// SortScoredSemanticRefsDesc sorts in place by score descending, a stable
// sort so ties preserve insertion order.
func SortScoredSemanticRefsDesc(refs []ScoredSemanticRef) {
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Score > refs[j].Score })
}

// SortScoredMessagesDesc sorts in place by score descending, stable.
func SortScoredMessagesDesc(msgs []ScoredMessage) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Score > msgs[j].Score })
}
