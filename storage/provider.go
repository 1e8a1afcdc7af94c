// Package storage defines the two interchangeable backends spec §4.9
// describes: an in-memory provider (package memprovider) and an embedded
// relational provider (package sqliteprovider, backed by
// modernc.org/sqlite). Every index and collection operation is
// ctx+error-shaped here even though the in-memory concrete types
// (termindex.Index and friends) are synchronous, so that callers write one
// indexing pipeline against Provider regardless of backend — mirroring the
// teacher's core.Store interface fronting both its in-memory and SQLite
// implementations.
package storage

import (
	"context"
	"time"

	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/timeindex"
)

// Provider is a storage backend for one conversation: the message and
// semantic-ref collections plus the six secondary indexes (spec §4.9).
type Provider interface {
	Messages() MessageCollection
	SemanticRefs() SemanticRefCollection

	TermIndex() TermIndex
	PropertyIndex() PropertyIndex
	TimestampIndex() TimestampIndex
	MessageIndex() MessageIndex
	RelatedTermsIndex() RelatedTermsIndex
	ThreadIndex() ThreadIndex

	// Close releases any resources held by the provider (file handles,
	// connection pools). A memprovider Close is a no-op.
	Close() error
}

// MessageCollection stores the ordered message stream. Ordinals are dense
// and assigned by append position (spec §3).
type MessageCollection interface {
	Append(ctx context.Context, msg know.Message) (int, error)
	Get(ctx context.Context, ordinal int) (know.Message, error)
	GetSlice(ctx context.Context, start, end int) ([]know.Message, error)
	All(ctx context.Context) ([]know.Message, error)
	Size(ctx context.Context) (int, error)
}

// SemanticRefCollection stores extracted knowledge, addressed by its own
// dense ordinal independent of message ordinals (spec §3).
type SemanticRefCollection interface {
	Append(ctx context.Context, ref know.SemanticRef) (int, error)
	Get(ctx context.Context, ordinal int) (know.SemanticRef, error)
	GetMultiple(ctx context.Context, ordinals []int) ([]know.SemanticRef, error)
	All(ctx context.Context) ([]know.SemanticRef, error)
	Size(ctx context.Context) (int, error)
}

// TermIndex is the ctx/error-returning counterpart of pkg/termindex.Index.
type TermIndex interface {
	AddTerm(ctx context.Context, term string, ordinal int) error
	AddScoredTerm(ctx context.Context, term string, ref know.ScoredSemanticRef) error
	RemoveTerm(ctx context.Context, term string, ordinal int) error
	LookupTerm(ctx context.Context, term string) ([]know.ScoredSemanticRef, error)
	GetTerms(ctx context.Context) ([]string, error)
	Size(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// PropertyIndex is the ctx/error-returning counterpart of pkg/propindex.Index.
type PropertyIndex interface {
	AddProperty(ctx context.Context, name, value string, ordinal int) error
	AddKnowledge(ctx context.Context, k know.Knowledge, ordinal int) error
	RemoveProperty(ctx context.Context, name, value string, ordinal int) error
	RemoveAllForSemRef(ctx context.Context, ordinal int) error
	LookupProperty(ctx context.Context, name, value string) ([]know.ScoredSemanticRef, error)
	Size(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// TimestampIndex is the ctx/error-returning counterpart of pkg/timeindex.Index.
type TimestampIndex interface {
	Add(ctx context.Context, messageOrdinal int, timestamp time.Time) error
	LookupRange(ctx context.Context, r timeindex.DateRange) ([]timeindex.TimestampedTextRange, error)
	Size(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// MessageIndex is the ctx/error-returning counterpart of pkg/msgindex.Index.
type MessageIndex interface {
	AddMessages(ctx context.Context, messages []know.Message) error
	AddMessagesStartingAt(ctx context.Context, startOrdinal int, messages []know.Message) error
	LookupMessages(ctx context.Context, text string, maxMatches int, threshold float64) ([]know.ScoredMessage, error)
	LookupMessagesInSubset(ctx context.Context, text string, subset []int, maxMatches int, threshold float64) ([]know.ScoredMessage, error)
	// LoadVectors replaces the index's contents with precomputed (location,
	// vector) pairs, restoring a snapshot's message-text embeddings without
	// recomputing them.
	LoadVectors(ctx context.Context, locations []know.TextLocation, vectors [][]float32) error
	// Items returns every (location, vector) pair in ordinal order, for
	// snapshot export.
	Items(ctx context.Context) ([]know.TextLocation, [][]float32, error)
	Size(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// RelatedTermAlias is one authored term's related-terms entry, for snapshot
// export/import.
type RelatedTermAlias struct {
	Term    string
	Related []know.Term
}

// RelatedTermsIndex is the ctx/error-returning counterpart of
// pkg/relatedterms.Index.
type RelatedTermsIndex interface {
	AddRelatedTerm(ctx context.Context, term string, related ...know.Term) error
	AddFuzzyTerms(ctx context.Context, terms []string) error
	LookupRelatedTerms(ctx context.Context, term string, maxHits int, threshold float64) ([]know.Term, error)
	// LoadFuzzyVectors replaces the fuzzy sub-index's contents with
	// precomputed (term, vector) pairs, restoring a snapshot's fuzzy-term
	// embeddings without recomputing them.
	LoadFuzzyVectors(ctx context.Context, terms []string, vectors [][]float32) error
	// AliasItems returns every authored alias entry, for snapshot export.
	AliasItems(ctx context.Context) ([]RelatedTermAlias, error)
	// FuzzyItems returns every (term, vector) pair in the fuzzy vector base,
	// for snapshot export.
	FuzzyItems(ctx context.Context) ([]string, [][]float32, error)
	Size(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// ThreadIndex is the ctx/error-returning counterpart of pkg/threads.Index.
type ThreadIndex interface {
	AddThread(ctx context.Context, thread know.Thread) (int, error)
	LookupThread(ctx context.Context, description string, maxMatches int, threshold float64) ([]know.ScoredThreadIndex, error)
	Get(ctx context.Context, threadIndex int) (know.Thread, bool, error)
	All(ctx context.Context) ([]know.Thread, error)
	Size(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}
