// Package timeindex implements the timestamp→TextRange index (spec §4.4):
// half-open range queries over (message_ordinal, timestamp) pairs. Adapted
// from the teacher's pkg/core/aggregations.go time-bucketing helpers.
package timeindex

import (
	"sort"
	"sync"
	"time"

	"github.com/liliang-cn/knowmem/pkg/know"
)

// TimestampedTextRange pairs a message's timestamp with the text range that
// spans its full text (the whole-message point range).
type TimestampedTextRange struct {
	MessageOrdinal int
	Timestamp      time.Time
	Range          know.TextRange
}

// DateRange is a query range: [Start, End). When End is nil the query is a
// point lookup for timestamps exactly equal to Start.
type DateRange struct {
	Start time.Time
	End   *time.Time
}

type entry struct {
	messageOrdinal int
	timestamp      time.Time
}

// Index is the timestamp→TextRange index.
type Index struct {
	mu      sync.RWMutex
	entries []entry // kept sorted by (timestamp, messageOrdinal)
}

// New creates an empty timestamp index.
func New() *Index { return &Index{} }

// Add records message ordinal's timestamp. Re-adding the same ordinal
// replaces its prior timestamp.
func (idx *Index) Add(messageOrdinal int, timestamp time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, e := range idx.entries {
		if e.messageOrdinal == messageOrdinal {
			idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
			break
		}
	}
	idx.entries = append(idx.entries, entry{messageOrdinal: messageOrdinal, timestamp: timestamp})
	sort.Slice(idx.entries, func(i, j int) bool {
		if !idx.entries[i].timestamp.Equal(idx.entries[j].timestamp) {
			return idx.entries[i].timestamp.Before(idx.entries[j].timestamp)
		}
		return idx.entries[i].messageOrdinal < idx.entries[j].messageOrdinal
	})
}

// LookupRange returns the messages within r, ordered by timestamp ascending
// (ties broken by message ordinal ascending). A nil r.End makes this a
// point query: only timestamps exactly equal to r.Start match. A present
// r.End makes the query half-open: [r.Start, r.End).
func (idx *Index) LookupRange(r DateRange) []TimestampedTextRange {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []TimestampedTextRange
	for _, e := range idx.entries {
		if r.End == nil {
			if !e.timestamp.Equal(r.Start) {
				continue
			}
		} else {
			if e.timestamp.Before(r.Start) || !e.timestamp.Before(*r.End) {
				continue
			}
		}
		out = append(out, TimestampedTextRange{
			MessageOrdinal: e.messageOrdinal,
			Timestamp:      e.timestamp,
			Range:          know.PointRange(know.TextLocation{MessageOrdinal: e.messageOrdinal}),
		})
	}
	if out == nil {
		out = []TimestampedTextRange{}
	}
	return out
}

// Size returns the number of indexed messages.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Clear removes every entry.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = nil
}

// Item is one (message ordinal, timestamp) pair, for serialization.
type Item struct {
	MessageOrdinal int
	Timestamp      time.Time
}

// Items returns every entry sorted by timestamp then ordinal.
func (idx *Index) Items() []Item {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	items := make([]Item, len(idx.entries))
	for i, e := range idx.entries {
		items[i] = Item{MessageOrdinal: e.messageOrdinal, Timestamp: e.timestamp}
	}
	return items
}

// Load replaces the index's contents with items.
func (idx *Index) Load(items []Item) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make([]entry, len(items))
	for i, it := range items {
		idx.entries[i] = entry{messageOrdinal: it.MessageOrdinal, timestamp: it.Timestamp}
	}
	sort.Slice(idx.entries, func(i, j int) bool {
		if !idx.entries[i].timestamp.Equal(idx.entries[j].timestamp) {
			return idx.entries[i].timestamp.Before(idx.entries[j].timestamp)
		}
		return idx.entries[i].messageOrdinal < idx.entries[j].messageOrdinal
	})
}
