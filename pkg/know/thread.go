package know

// Thread groups a set of text ranges under a natural-language description.
// Threads are optional and never participate in primary indexing.
type Thread struct {
	Description string      `json:"description"`
	Ranges      []TextRange `json:"ranges"`
}

// ScoredThreadIndex pairs a thread's position in a collection with a
// match score from an embedding-based description lookup.
type ScoredThreadIndex struct {
	ThreadIndex int     `json:"threadIndex"`
	Score       float64 `json:"score"`
}
