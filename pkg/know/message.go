package know

import "time"

// DeletionInfo tombstones a message: read paths must honor it, but
// compaction (physically removing tombstoned rows) is a non-goal.
type DeletionInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// Message is one turn in the ingested stream: a podcast turn, a transcript
// cue, or an email body. TextChunks always has at least one element.
type Message struct {
	TextChunks   []string         `json:"textChunks"`
	Metadata     KnowledgeSource  `json:"-"`
	Timestamp    *time.Time       `json:"timestamp,omitempty"`
	Tags         []string         `json:"tags,omitempty"`
	DeletionInfo *DeletionInfo    `json:"deletionInfo,omitempty"`
}

// IsDeleted reports whether the message has been tombstoned.
func (m Message) IsDeleted() bool { return m.DeletionInfo != nil }

// GetKnowledge delegates to the message's metadata source, returning the
// zero KnowledgeResponse when no metadata is attached.
func (m Message) GetKnowledge() KnowledgeResponse {
	if m.Metadata == nil {
		return KnowledgeResponse{}
	}
	return m.Metadata.GetKnowledge()
}
