// Package indexing implements the build / incremental-extend pipeline
// (spec §4.8): knowledge extraction, semantic-ref construction, term and
// property population, timestamp recording, and batched embedding,
// against any storage.Provider. Adapted from the teacher's
// pkg/core/store.go ingestion path (validate → write → index) generalized
// from a single embeddings table to the six-index fan-out this pipeline
// drives.
package indexing

import (
	"context"

	"github.com/liliang-cn/knowmem/pkg/know"
)

// KnowledgeExtractor is the out-of-scope language-model client collaborator
// (spec §1, §4.8 step 2): given a chunk's text, it returns the knowledge an
// LLM extracted from it. Implementations own their own prompt and schema.
type KnowledgeExtractor interface {
	ExtractKnowledge(ctx context.Context, chunkText string) (know.KnowledgeResponse, error)
}

// NoExtractor is a KnowledgeExtractor that never runs, for conversations
// that index only intrinsic knowledge (auto_extract_knowledge = false).
type NoExtractor struct{}

func (NoExtractor) ExtractKnowledge(context.Context, string) (know.KnowledgeResponse, error) {
	return know.KnowledgeResponse{}, nil
}

// knowledgeItems flattens a KnowledgeResponse into the ordering spec §3
// invariant (b) and §4.8 step 3 require: entities, then actions, then
// topics, then tags (KnowledgeResponse carries no tags directly — message
// tags are converted to Tag knowledge by the caller before this runs).
func knowledgeItems(resp know.KnowledgeResponse, tags []string) []know.Knowledge {
	items := make([]know.Knowledge, 0, len(resp.Entities)+len(resp.Actions)+len(resp.Topics)+len(tags))
	for _, e := range resp.Entities {
		items = append(items, know.NewEntityKnowledge(e))
	}
	for _, a := range resp.Actions {
		items = append(items, know.NewActionKnowledge(a))
	}
	for _, a := range resp.InverseActions {
		items = append(items, know.NewActionKnowledge(a))
	}
	for _, t := range resp.Topics {
		items = append(items, know.NewTopicKnowledge(t))
	}
	for _, t := range tags {
		items = append(items, know.NewTagKnowledge(know.Tag{Text: t}))
	}
	return items
}
