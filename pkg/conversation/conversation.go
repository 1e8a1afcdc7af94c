// Package conversation implements the top-level aggregate spec §3
// describes: a name tag, free-form tags, the ordered message and
// semantic-ref sequences, and the six secondary indexes, all fronted by a
// storage.Provider so the aggregate is identical whether backed by
// memprovider or sqliteprovider.
package conversation

import (
	"context"
	"sync"

	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/storage"
)

// Conversation is one corpus of ingested messages and its derived indexes.
type Conversation struct {
	NameTag string
	Tags    []string

	provider storage.Provider

	mu            sync.Mutex
	indexedUpTo   int // highest message ordinal fully indexed, exclusive upper bound
}

// New creates an empty conversation backed by provider.
func New(nameTag string, provider storage.Provider) *Conversation {
	return &Conversation{NameTag: nameTag, provider: provider}
}

// Provider returns the underlying storage backend, for packages (indexing,
// snapshot) that need direct access to collections and indexes.
func (c *Conversation) Provider() storage.Provider { return c.provider }

// AddMessage appends msg to the message stream, never inserting mid-stream
// (spec §3's lifecycle invariant), and returns its assigned ordinal.
func (c *Conversation) AddMessage(ctx context.Context, msg know.Message) (int, error) {
	return c.provider.Messages().Append(ctx, msg)
}

// AddMessages appends every message in msgs in order, returning the ordinal
// assigned to the first one.
func (c *Conversation) AddMessages(ctx context.Context, msgs []know.Message) (int, error) {
	first := -1
	for _, msg := range msgs {
		ord, err := c.AddMessage(ctx, msg)
		if err != nil {
			return 0, err
		}
		if first < 0 {
			first = ord
		}
	}
	if first < 0 {
		size, err := c.provider.Messages().Size(ctx)
		if err != nil {
			return 0, err
		}
		first = size
	}
	return first, nil
}

// MessageCount returns the conversation's message count.
func (c *Conversation) MessageCount(ctx context.Context) (int, error) {
	return c.provider.Messages().Size(ctx)
}

// SemanticRefCount returns the conversation's semantic-ref count.
func (c *Conversation) SemanticRefCount(ctx context.Context) (int, error) {
	return c.provider.SemanticRefs().Size(ctx)
}

// IndexedUpTo returns the highest message ordinal, exclusive, that indexing
// has fully processed. Zero means nothing has been indexed yet.
func (c *Conversation) IndexedUpTo() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexedUpTo
}

// SetIndexedUpTo advances the high-water mark. The indexing package calls
// this once a message's knowledge, terms, properties, timestamp and
// embedding have all committed, never before (spec §5's ordering
// guarantee: a cancelled build must leave this at the last fully-processed
// boundary, not a partially-processed one).
func (c *Conversation) SetIndexedUpTo(ordinal int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ordinal > c.indexedUpTo {
		c.indexedUpTo = ordinal
	}
}

// Size reports the size of every collection and index, the shape the S1
// empty-conversation scenario and serialize/deserialize round-trip tests
// check against.
type Size struct {
	Messages      int
	SemanticRefs  int
	Terms         int
	Properties    int
	Timestamps    int
	MessageText   int
	RelatedTerms  int
	Threads       int
}

// Sizes returns the size of every collection and index.
func (c *Conversation) Sizes(ctx context.Context) (Size, error) {
	var s Size
	var err error
	if s.Messages, err = c.provider.Messages().Size(ctx); err != nil {
		return Size{}, err
	}
	if s.SemanticRefs, err = c.provider.SemanticRefs().Size(ctx); err != nil {
		return Size{}, err
	}
	if s.Terms, err = c.provider.TermIndex().Size(ctx); err != nil {
		return Size{}, err
	}
	if s.Properties, err = c.provider.PropertyIndex().Size(ctx); err != nil {
		return Size{}, err
	}
	if s.Timestamps, err = c.provider.TimestampIndex().Size(ctx); err != nil {
		return Size{}, err
	}
	if s.MessageText, err = c.provider.MessageIndex().Size(ctx); err != nil {
		return Size{}, err
	}
	if s.RelatedTerms, err = c.provider.RelatedTermsIndex().Size(ctx); err != nil {
		return Size{}, err
	}
	if s.Threads, err = c.provider.ThreadIndex().Size(ctx); err != nil {
		return Size{}, err
	}
	return s, nil
}
