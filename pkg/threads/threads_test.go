package threads

import (
	"context"
	"testing"

	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/testembed"
)

func newTestIndex() *Index {
	cache := embedcache.New(testembed.New(8), embedcache.DefaultConfig())
	return New(cache)
}

func TestAddThreadAssignsSequentialIndices(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()

	i0, err := idx.AddThread(ctx, know.Thread{Description: "planning a trip"})
	if err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	i1, err := idx.AddThread(ctx, know.Thread{Description: "debugging the build"})
	if err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	if i0 != 0 || i1 != 1 {
		t.Fatalf("indices = (%d, %d), want (0, 1)", i0, i1)
	}
	if idx.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", idx.Size())
	}
}

func TestLookupThreadEmptyIndexReturnsNil(t *testing.T) {
	idx := newTestIndex()
	got, err := idx.LookupThread(context.Background(), "anything", 5, -1)
	if err != nil {
		t.Fatalf("LookupThread: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for an empty index, got %v", got)
	}
}

func TestLookupThreadFindsBestMatch(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()
	idx.AddThread(ctx, know.Thread{Description: "planning a trip to Japan"})
	idx.AddThread(ctx, know.Thread{Description: "debugging the release build"})

	got, err := idx.LookupThread(ctx, "planning a trip to Japan", 5, -1)
	if err != nil {
		t.Fatalf("LookupThread: %v", err)
	}
	if len(got) == 0 || got[0].ThreadIndex != 0 {
		t.Fatalf("expected thread 0 to be the top hit, got %v", got)
	}
}

func TestGetOutOfRange(t *testing.T) {
	idx := newTestIndex()
	if _, ok := idx.Get(0); ok {
		t.Fatal("expected Get to report false for an empty index")
	}
}

func TestAllAndClear(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()
	idx.AddThread(ctx, know.Thread{Description: "one"})
	idx.AddThread(ctx, know.Thread{Description: "two"})

	if len(idx.All()) != 2 {
		t.Fatalf("All() = %v, want 2 threads", idx.All())
	}
	idx.Clear()
	if idx.Size() != 0 {
		t.Fatal("expected Size() == 0 after Clear")
	}
}

func TestLoadReEmbedsDescriptions(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()
	loaded := []know.Thread{
		{Description: "first thread"},
		{Description: "second thread"},
	}
	if err := idx.Load(ctx, loaded); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx.Size() != 2 {
		t.Fatalf("Size() after Load = %d, want 2", idx.Size())
	}
	got, err := idx.LookupThread(ctx, "first thread", 5, -1)
	if err != nil {
		t.Fatalf("LookupThread: %v", err)
	}
	if len(got) == 0 || got[0].ThreadIndex != 0 {
		t.Fatalf("expected re-embedded thread 0 to be findable, got %v", got)
	}
}
