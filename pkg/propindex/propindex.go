// Package propindex implements the property→semantic-ref index (spec §4.3):
// closed-set property names paired with values, encoded as a single
// `prop.{name}@@{value}` key. Adapted from the teacher's
// pkg/core/faceted_search.go name/value key encoding.
package propindex

import (
	"sort"
	"strings"
	"sync"

	"github.com/liliang-cn/knowmem/pkg/know"
)

// PropertyNames is the closed set of property names spec §4.3 allows.
var PropertyNames = map[string]bool{
	"name":           true,
	"type":           true,
	"verb":           true,
	"subject":        true,
	"object":         true,
	"indirectObject": true,
	"tag":            true,
	"facet.name":     true,
	"facet.value":    true,
}

const keySeparator = "@@"

// MakePropertyTermText encodes (name, value) as a single case-folded key.
func MakePropertyTermText(name, value string) string {
	return "prop." + strings.ToLower(name) + keySeparator + strings.ToLower(value)
}

// SplitPropertyTermText is the inverse of MakePropertyTermText: it decodes a
// key back into (name, value), reporting false for a malformed key.
func SplitPropertyTermText(key string) (name, value string, ok bool) {
	rest, found := strings.CutPrefix(key, "prop.")
	if !found {
		return "", "", false
	}
	idx := strings.Index(rest, keySeparator)
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+len(keySeparator):], true
}

// Index is the property→semantic-ref index.
type Index struct {
	mu       sync.RWMutex
	postings map[string][]know.ScoredSemanticRef
	// bySemRef tracks which keys reference a given ordinal, so
	// RemoveAllForSemRef can run without a full scan.
	bySemRef map[int]map[string]bool
}

// New creates an empty property index.
func New() *Index {
	return &Index{
		postings: make(map[string][]know.ScoredSemanticRef),
		bySemRef: make(map[int]map[string]bool),
	}
}

// AddProperty adds ordinal under (name, value).
func (idx *Index) AddProperty(name, value string, ordinal int) {
	key := MakePropertyTermText(name, value)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	list, existed := idx.postings[key]
	for _, ref := range list {
		if ref.Ordinal == ordinal {
			return
		}
	}
	if !existed {
		list = []know.ScoredSemanticRef{}
	}
	idx.postings[key] = append(list, know.ScoredSemanticRef{Ordinal: ordinal})

	if idx.bySemRef[ordinal] == nil {
		idx.bySemRef[ordinal] = make(map[string]bool)
	}
	idx.bySemRef[ordinal][key] = true
}

// AddKnowledge adds every property entry k.IndexProperties() contributes for
// ordinal, the convenience the indexing pipeline uses per spec §4.3.
func (idx *Index) AddKnowledge(k know.Knowledge, ordinal int) {
	for _, entry := range k.IndexProperties() {
		idx.AddProperty(entry.Name, entry.Value, ordinal)
	}
}

// RemoveProperty removes ordinal from (name, value)'s postings, if present.
// The key itself remains registered (as an empty list) so LookupProperty
// can still distinguish "never seen" from "emptied".
func (idx *Index) RemoveProperty(name, value string, ordinal int) {
	key := MakePropertyTermText(name, value)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(key, ordinal)
}

// RemoveAllForSemRef removes ordinal from every property key referencing it.
func (idx *Index) RemoveAllForSemRef(ordinal int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for key := range idx.bySemRef[ordinal] {
		idx.removeLocked(key, ordinal)
	}
	delete(idx.bySemRef, ordinal)
}

func (idx *Index) removeLocked(key string, ordinal int) {
	list, ok := idx.postings[key]
	if !ok {
		return
	}
	for i, ref := range list {
		if ref.Ordinal == ordinal {
			idx.postings[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if m, ok := idx.bySemRef[ordinal]; ok {
		delete(m, key)
	}
}

// LookupProperty returns the postings for (name, value): nil if the key was
// never seen, an empty (non-nil) slice if it existed but all references
// were removed.
func (idx *Index) LookupProperty(name, value string) []know.ScoredSemanticRef {
	key := MakePropertyTermText(name, value)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	list, ok := idx.postings[key]
	if !ok {
		return nil
	}
	out := make([]know.ScoredSemanticRef, len(list))
	copy(out, list)
	return out
}

// Size returns the number of distinct (name, value) keys ever registered.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.postings)
}

// Clear removes every key and posting.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.postings = make(map[string][]know.ScoredSemanticRef)
	idx.bySemRef = make(map[int]map[string]bool)
}

// Item is one (key, postings) pair, for serialization.
type Item struct {
	Key      string
	Postings []know.ScoredSemanticRef
}

// Items returns every key sorted, for deterministic serialization.
func (idx *Index) Items() []Item {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	items := make([]Item, 0, len(idx.postings))
	for k, list := range idx.postings {
		postings := make([]know.ScoredSemanticRef, len(list))
		copy(postings, list)
		items = append(items, Item{Key: k, Postings: postings})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items
}

// Load replaces the index's contents with items.
func (idx *Index) Load(items []Item) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.postings = make(map[string][]know.ScoredSemanticRef, len(items))
	idx.bySemRef = make(map[int]map[string]bool)
	for _, it := range items {
		postings := make([]know.ScoredSemanticRef, len(it.Postings))
		copy(postings, it.Postings)
		idx.postings[it.Key] = postings
		for _, ref := range postings {
			if idx.bySemRef[ref.Ordinal] == nil {
				idx.bySemRef[ref.Ordinal] = make(map[string]bool)
			}
			idx.bySemRef[ref.Ordinal][it.Key] = true
		}
	}
}
