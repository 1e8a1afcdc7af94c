package timeindex

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestAddAndPointLookup(t *testing.T) {
	idx := New()
	ts := mustTime(t, "2026-01-01T00:00:00Z")
	idx.Add(1, ts)

	got := idx.LookupRange(DateRange{Start: ts})
	if len(got) != 1 || got[0].MessageOrdinal != 1 {
		t.Fatalf("point lookup = %v, want message 1", got)
	}
}

func TestAddReplacesPriorTimestamp(t *testing.T) {
	idx := New()
	idx.Add(1, mustTime(t, "2026-01-01T00:00:00Z"))
	idx.Add(1, mustTime(t, "2026-02-01T00:00:00Z"))

	if idx.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 (re-adding should replace)", idx.Size())
	}
	got := idx.LookupRange(DateRange{Start: mustTime(t, "2026-01-01T00:00:00Z")})
	if len(got) != 0 {
		t.Fatal("expected no match at the old timestamp after replacement")
	}
}

func TestLookupRangeHalfOpen(t *testing.T) {
	idx := New()
	idx.Add(1, mustTime(t, "2026-01-01T00:00:00Z"))
	idx.Add(2, mustTime(t, "2026-01-02T00:00:00Z"))
	idx.Add(3, mustTime(t, "2026-01-03T00:00:00Z"))

	end := mustTime(t, "2026-01-03T00:00:00Z")
	got := idx.LookupRange(DateRange{Start: mustTime(t, "2026-01-01T00:00:00Z"), End: &end})
	if len(got) != 2 {
		t.Fatalf("expected 2 results (end excluded), got %d: %v", len(got), got)
	}
	if got[0].MessageOrdinal != 1 || got[1].MessageOrdinal != 2 {
		t.Fatalf("expected ascending order [1,2], got %v", got)
	}
}

func TestLookupRangeEmptyReturnsNonNil(t *testing.T) {
	idx := New()
	got := idx.LookupRange(DateRange{Start: mustTime(t, "2026-01-01T00:00:00Z")})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
}

func TestItemsAndLoadRoundTrip(t *testing.T) {
	idx := New()
	idx.Add(2, mustTime(t, "2026-01-02T00:00:00Z"))
	idx.Add(1, mustTime(t, "2026-01-01T00:00:00Z"))

	items := idx.Items()
	if len(items) != 2 || items[0].MessageOrdinal != 1 {
		t.Fatalf("Items() not sorted by timestamp: %v", items)
	}

	reloaded := New()
	reloaded.Load(items)
	if reloaded.Size() != 2 {
		t.Fatalf("Size() after Load = %d, want 2", reloaded.Size())
	}
}
