package memprovider

import (
	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/msgindex"
	"github.com/liliang-cn/knowmem/pkg/propindex"
	"github.com/liliang-cn/knowmem/pkg/relatedterms"
	"github.com/liliang-cn/knowmem/pkg/termindex"
	"github.com/liliang-cn/knowmem/pkg/threads"
	"github.com/liliang-cn/knowmem/pkg/timeindex"
	"github.com/liliang-cn/knowmem/storage"
)

// Provider is the in-memory storage.Provider: every index and collection
// lives in process memory, the fast default backend spec §4.9 describes for
// small-to-medium conversations.
type Provider struct {
	messages     *messages
	semanticRefs *semanticRefs

	terms    *termindex.Index
	props    *propindex.Index
	times    *timeindex.Index
	msgText  *msgindex.Index
	related  *relatedterms.Index
	threadsI *threads.Index
}

// New creates an empty Provider. cache backs the message-text index, the
// related-terms fuzzy sub-index and the thread index, sharing one embedding
// cache the way a
// single conversation's indexing pipeline does (spec §4.1).
func New(cache *embedcache.Cache) *Provider {
	return &Provider{
		messages:     newMessages(),
		semanticRefs: newSemanticRefs(),
		terms:        termindex.New(),
		props:        propindex.New(),
		times:        timeindex.New(),
		msgText:      msgindex.New(cache),
		related:      relatedterms.New(cache),
		threadsI:     threads.New(cache),
	}
}

var _ storage.Provider = (*Provider)(nil)

func (p *Provider) Messages() storage.MessageCollection         { return p.messages }
func (p *Provider) SemanticRefs() storage.SemanticRefCollection  { return p.semanticRefs }
func (p *Provider) TermIndex() storage.TermIndex                 { return termIndex{p.terms} }
func (p *Provider) PropertyIndex() storage.PropertyIndex         { return propertyIndex{p.props} }
func (p *Provider) TimestampIndex() storage.TimestampIndex       { return timestampIndex{p.times} }
func (p *Provider) MessageIndex() storage.MessageIndex           { return messageIndex{p.msgText} }
func (p *Provider) RelatedTermsIndex() storage.RelatedTermsIndex { return relatedTermsIndex{p.related} }
func (p *Provider) ThreadIndex() storage.ThreadIndex             { return threadIndex{p.threadsI} }

// Close is a no-op: the in-memory provider holds no external resources.
func (p *Provider) Close() error { return nil }
