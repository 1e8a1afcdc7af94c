package indexing

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/liliang-cn/knowmem/pkg/conversation"
	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
)

// Config configures a Pipeline, in the teacher's Default*Config style.
type Config struct {
	// AutoExtractKnowledge enables step 2 of spec §4.8: sending chunk text
	// to Extractor. When false, only intrinsic knowledge (Message.GetKnowledge)
	// is indexed.
	AutoExtractKnowledge bool
	Extractor            KnowledgeExtractor
	Handlers             IndexingEventHandlers
	// Limiter, if set, throttles calls to Extractor and to the embedding
	// client (via the provider's message/related-terms indexes), the
	// domain-stack rate-limiting SPEC_FULL.md's indexing section calls for.
	Limiter *rate.Limiter
}

// DefaultConfig returns a Config with LLM extraction off and no handlers,
// so intrinsic-only indexing runs without any external collaborator.
func DefaultConfig() Config {
	return Config{AutoExtractKnowledge: false, Extractor: NoExtractor{}}
}

// Pipeline drives the build / incremental-extend indexing process (spec
// §4.8) for one conversation.
type Pipeline struct {
	conv *conversation.Conversation
	cfg  Config
}

// New creates a Pipeline for conv. If cfg.Extractor is nil, extraction is
// disabled regardless of cfg.AutoExtractKnowledge.
func New(conv *conversation.Conversation, cfg Config) *Pipeline {
	if cfg.Extractor == nil {
		cfg.Extractor = NoExtractor{}
	}
	return &Pipeline{conv: conv, cfg: cfg}
}

// BuildIndex processes every message with ordinal >= the conversation's
// current IndexedUpTo, in ordinal order, advancing the high-water mark as
// each message fully completes. Rebuilding is incremental: already-indexed
// messages are never reprocessed (spec §4.8's incremental-build contract).
func (p *Pipeline) BuildIndex(ctx context.Context) (IndexingResults, error) {
	prov := p.conv.Provider()
	total, err := prov.Messages().Size(ctx)
	if err != nil {
		return IndexingResults{}, err
	}

	start := p.conv.IndexedUpTo()
	results := IndexingResults{SemanticRefs: SemanticRefResult{CompletedUpTo: start}}

	for ordinal := start; ordinal < total; ordinal++ {
		if !p.cfg.Handlers.messageStarted(ordinal) {
			break
		}

		msg, err := prov.Messages().Get(ctx, ordinal)
		if err != nil {
			results.SemanticRefs.Err = err
			break
		}
		if msg.IsDeleted() {
			p.conv.SetIndexedUpTo(ordinal + 1)
			results.SemanticRefs.CompletedUpTo = ordinal + 1
			continue
		}

		if err := p.indexMessage(ctx, ordinal, msg, &results); err != nil {
			if !errors.Is(err, errHandlerAbort) {
				results.SemanticRefs.Err = err
			}
			break
		}

		if !p.cfg.Handlers.textIndexed(ordinal) {
			break
		}

		p.conv.SetIndexedUpTo(ordinal + 1)
		results.SemanticRefs.CompletedUpTo = ordinal + 1
	}

	return results, nil
}

// errHandlerAbort is returned by indexMessage when an event handler returns
// false; BuildIndex stops without recording it as an error.
var errHandlerAbort = errors.New("indexing aborted by event handler")

// chunkKnowledge pairs an extracted or intrinsic knowledge item with the
// chunk ordinal it is anchored to, so step 3 can build a single-chunk
// half-open range per item instead of spanning the whole message.
type chunkKnowledge struct {
	knowledge    know.Knowledge
	chunkOrdinal int
}

func (p *Pipeline) indexMessage(ctx context.Context, ordinal int, msg know.Message, results *IndexingResults) error {
	prov := p.conv.Provider()

	// Step 1: intrinsic knowledge has no source chunk; anchor it at chunk 0.
	intrinsic := msg.GetKnowledge()

	// Step 2: optional per-chunk LLM extraction.
	allItems := make([]chunkKnowledge, 0, 8)
	for _, k := range knowledgeItems(intrinsic, msg.Tags) {
		allItems = append(allItems, chunkKnowledge{knowledge: k, chunkOrdinal: 0})
	}

	if p.cfg.AutoExtractKnowledge {
		for chunkOrd, chunk := range msg.TextChunks {
			if err := p.throttle(ctx); err != nil {
				return err
			}
			var extracted know.KnowledgeResponse
			err := withRetry(ctx, defaultRetryConfig(), nil, func() error {
				var e error
				extracted, e = p.cfg.Extractor.ExtractKnowledge(ctx, chunk)
				return e
			})
			if err != nil {
				wrapped := knomerr.ExtractionError("extract_knowledge", err)
				if !p.cfg.Handlers.knowledgeExtracted(ordinal, chunkOrd, wrapped) {
					return wrapped
				}
				continue // intrinsic knowledge for this message is still indexed
			}
			if !p.cfg.Handlers.knowledgeExtracted(ordinal, chunkOrd, nil) {
				return errHandlerAbort
			}
			for _, k := range knowledgeItems(extracted, nil) {
				allItems = append(allItems, chunkKnowledge{knowledge: k, chunkOrdinal: chunkOrd})
			}
		}
	}

	// Step 3-5: semantic refs, terms, properties.
	for _, item := range allItems {
		k := item.knowledge
		if err := k.Validate(); err != nil {
			continue // malformed extracted items are skipped, not fatal (spec §4.8 step 2)
		}
		ref := know.SemanticRef{
			Range: know.TextRange{
				Start: know.TextLocation{MessageOrdinal: ordinal, ChunkOrdinal: item.chunkOrdinal},
				End:   &know.TextLocation{MessageOrdinal: ordinal, ChunkOrdinal: item.chunkOrdinal + 1},
			},
			Knowledge: k,
		}
		refOrdinal, err := prov.SemanticRefs().Append(ctx, ref)
		if err != nil {
			return err
		}

		for _, term := range k.IndexTerms() {
			if err := prov.TermIndex().AddTerm(ctx, term, refOrdinal); err != nil {
				results.RelatedTerms.Err = err
				return err
			}
		}
		if err := prov.PropertyIndex().AddKnowledge(ctx, k, refOrdinal); err != nil {
			results.Properties.Err = err
			return err
		}
		results.Properties.NumberCompleted++
	}

	// Step 6: timestamp index.
	if msg.Timestamp != nil {
		if err := prov.TimestampIndex().Add(ctx, ordinal, *msg.Timestamp); err != nil {
			results.Timestamps.Err = err
			return err
		}
		results.Timestamps.NumberCompleted++
	}

	// Step 7: batch embeddings for the message's chunks and its new terms.
	if err := p.throttle(ctx); err != nil {
		return err
	}
	err := withRetry(ctx, defaultRetryConfig(), knomerr.IsEmbedding, func() error {
		return prov.MessageIndex().AddMessagesStartingAt(ctx, ordinal, []know.Message{msg})
	})
	if err != nil {
		results.Message.Err = err
		return err
	}
	results.Message.NumberCompleted++

	newTerms := collectNewTerms(allItems)
	if len(newTerms) > 0 {
		err := withRetry(ctx, defaultRetryConfig(), knomerr.IsEmbedding, func() error {
			return prov.RelatedTermsIndex().AddFuzzyTerms(ctx, newTerms)
		})
		if err != nil {
			results.RelatedTerms.Err = err
			return err
		}
		results.RelatedTerms.NumberCompleted += len(newTerms)
	}

	if !p.cfg.Handlers.embeddingsCreated(ordinal) {
		return errHandlerAbort
	}
	return nil
}

func (p *Pipeline) throttle(ctx context.Context) error {
	if p.cfg.Limiter == nil {
		return nil
	}
	return p.cfg.Limiter.Wait(ctx)
}

func collectNewTerms(items []chunkKnowledge) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range items {
		for _, t := range item.knowledge.IndexTerms() {
			norm := know.NormalizeTerm(t)
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true
			out = append(out, t)
		}
	}
	return out
}
