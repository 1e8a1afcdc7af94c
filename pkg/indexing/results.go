package indexing

// IndexingEventHandlers are callbacks the pipeline invokes as it processes
// each message (spec §4.8). Returning false from any handler aborts the
// current build gracefully: the "indexed upto" mark advances only to the
// last message that fully completed before the abort. A nil handler is
// treated as always returning true.
type IndexingEventHandlers struct {
	OnMessageStarted     func(messageOrdinal int) bool
	OnKnowledgeExtracted func(messageOrdinal, chunkOrdinal int, err error) bool
	OnEmbeddingsCreated  func(messageOrdinal int) bool
	OnTextIndexed        func(messageOrdinal int) bool
}

func (h IndexingEventHandlers) messageStarted(ordinal int) bool {
	if h.OnMessageStarted == nil {
		return true
	}
	return h.OnMessageStarted(ordinal)
}

func (h IndexingEventHandlers) knowledgeExtracted(messageOrdinal, chunkOrdinal int, err error) bool {
	if h.OnKnowledgeExtracted == nil {
		return true
	}
	return h.OnKnowledgeExtracted(messageOrdinal, chunkOrdinal, err)
}

func (h IndexingEventHandlers) embeddingsCreated(ordinal int) bool {
	if h.OnEmbeddingsCreated == nil {
		return true
	}
	return h.OnEmbeddingsCreated(ordinal)
}

func (h IndexingEventHandlers) textIndexed(ordinal int) bool {
	if h.OnTextIndexed == nil {
		return true
	}
	return h.OnTextIndexed(ordinal)
}

// SubResult is the outcome of one secondary-index population step across a
// build: how many items it completed (messages for Timestamps and Message,
// semantic refs for Properties, new terms for RelatedTerms), and the first
// error (if any) that interrupted it.
type SubResult struct {
	NumberCompleted int
	Err             error
}

// SemanticRefResult is the outcome of semantic-ref construction: the
// message ordinal, exclusive, that completed successfully, and the first
// error encountered.
type SemanticRefResult struct {
	CompletedUpTo int
	Err           error
}

// IndexingResults is the value a build returns, per spec §4.8's
// propagation policy: per-message errors become callback invocations and
// are also recorded here rather than only surfacing as a returned error.
type IndexingResults struct {
	SemanticRefs SemanticRefResult
	Properties   SubResult
	Timestamps   SubResult
	RelatedTerms SubResult
	Message      SubResult
}
