package know

import "testing"

func TestTextLocationCompare(t *testing.T) {
	a := TextLocation{MessageOrdinal: 1, ChunkOrdinal: 0, CharOrdinal: 0}
	b := TextLocation{MessageOrdinal: 2, ChunkOrdinal: 0, CharOrdinal: 0}
	if !a.Less(b) {
		t.Fatal("expected a < b by message ordinal")
	}
	if b.Less(a) {
		t.Fatal("did not expect b < a")
	}
	if !a.LessEq(a) {
		t.Fatal("expected a <= a")
	}
}

func TestTextRangeContainsPointRange(t *testing.T) {
	whole := TextRange{
		Start: TextLocation{MessageOrdinal: 1, ChunkOrdinal: 0},
		End:   &TextLocation{MessageOrdinal: 1, ChunkOrdinal: 3},
	}
	inside := PointRange(TextLocation{MessageOrdinal: 1, ChunkOrdinal: 2})
	outside := PointRange(TextLocation{MessageOrdinal: 2, ChunkOrdinal: 0})

	if !whole.Contains(inside) {
		t.Fatal("expected whole to contain inside")
	}
	if whole.Contains(outside) {
		t.Fatal("did not expect whole to contain outside")
	}
}

func TestTextRangeContainsExactPoint(t *testing.T) {
	loc := TextLocation{MessageOrdinal: 5, ChunkOrdinal: 0}
	r := PointRange(loc)
	if !r.Contains(PointRange(loc)) {
		t.Fatal("a point range should contain itself")
	}
	other := PointRange(TextLocation{MessageOrdinal: 5, ChunkOrdinal: 1})
	if r.Contains(other) {
		t.Fatal("a point range should not contain a later point")
	}
}

func TestSemanticRefType(t *testing.T) {
	ref := SemanticRef{Knowledge: NewTopicKnowledge(Topic{Text: "x"})}
	if ref.Type() != KindTopic {
		t.Fatalf("Type() = %v, want %v", ref.Type(), KindTopic)
	}
}
