package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/liliang-cn/knowmem/pkg/conversation"
	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/indexing"
	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
	"github.com/liliang-cn/knowmem/pkg/testembed"
	"github.com/liliang-cn/knowmem/storage/memprovider"
)

const testDim = 8

func newIndexedConversation(t *testing.T) *conversation.Conversation {
	t.Helper()
	cache := embedcache.New(testembed.New(testDim), embedcache.DefaultConfig())
	prov := memprovider.New(cache)
	conv := conversation.New("trip-planning", prov)

	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err := conv.AddMessages(context.Background(), []know.Message{
		{TextChunks: []string{"Alice booked a flight to Denver"}, Timestamp: &ts, Tags: []string{"travel"}},
		{TextChunks: []string{"the weather there is cold in winter"}},
	})
	if err != nil {
		t.Fatalf("AddMessages: %v", err)
	}

	if err := prov.RelatedTermsIndex().AddRelatedTerm(context.Background(), "denver", know.Term{Text: "colorado"}); err != nil {
		t.Fatalf("AddRelatedTerm: %v", err)
	}

	p := indexing.New(conv, indexing.DefaultConfig())
	if _, err := p.BuildIndex(context.Background()); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return conv
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	conv := newIndexedConversation(t)
	prefix := filepath.Join(t.TempDir(), "snap")

	if err := Save(ctx, conv, prefix); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cache := embedcache.New(testembed.New(testDim), embedcache.DefaultConfig())
	prov := memprovider.New(cache)
	loaded, err := Load(ctx, prefix, prov, testDim)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.NameTag != conv.NameTag {
		t.Fatalf("NameTag = %q, want %q", loaded.NameTag, conv.NameTag)
	}
	if len(loaded.Tags) != len(conv.Tags) {
		t.Fatalf("Tags = %v, want %v", loaded.Tags, conv.Tags)
	}

	wantSizes, err := conv.Sizes(ctx)
	if err != nil {
		t.Fatalf("Sizes (original): %v", err)
	}
	gotSizes, err := loaded.Sizes(ctx)
	if err != nil {
		t.Fatalf("Sizes (loaded): %v", err)
	}
	if gotSizes.Messages != wantSizes.Messages {
		t.Fatalf("Messages = %d, want %d", gotSizes.Messages, wantSizes.Messages)
	}
	if gotSizes.SemanticRefs != wantSizes.SemanticRefs {
		t.Fatalf("SemanticRefs = %d, want %d", gotSizes.SemanticRefs, wantSizes.SemanticRefs)
	}
	if gotSizes.Terms != wantSizes.Terms {
		t.Fatalf("Terms = %d, want %d", gotSizes.Terms, wantSizes.Terms)
	}
	if gotSizes.MessageText != wantSizes.MessageText {
		t.Fatalf("MessageText = %d, want %d", gotSizes.MessageText, wantSizes.MessageText)
	}
	if gotSizes.RelatedTerms != wantSizes.RelatedTerms {
		t.Fatalf("RelatedTerms = %d, want %d", gotSizes.RelatedTerms, wantSizes.RelatedTerms)
	}
	if gotSizes.Timestamps != wantSizes.Timestamps {
		t.Fatalf("Timestamps = %d, want %d (property/timestamp indexes are rebuilt on load)", gotSizes.Timestamps, wantSizes.Timestamps)
	}
	if gotSizes.Properties != wantSizes.Properties {
		t.Fatalf("Properties = %d, want %d (rebuilt from semantic refs)", gotSizes.Properties, wantSizes.Properties)
	}

	wantTerms, err := conv.Provider().TermIndex().GetTerms(ctx)
	if err != nil {
		t.Fatalf("GetTerms (original): %v", err)
	}
	gotTerms, err := loaded.Provider().TermIndex().GetTerms(ctx)
	if err != nil {
		t.Fatalf("GetTerms (loaded): %v", err)
	}
	if len(gotTerms) != len(wantTerms) {
		t.Fatalf("GetTerms() = %v, want %v", gotTerms, wantTerms)
	}
	for _, term := range wantTerms {
		wantOrdinals, err := conv.Provider().TermIndex().LookupTerm(ctx, term)
		if err != nil {
			t.Fatalf("LookupTerm(%q) (original): %v", term, err)
		}
		gotOrdinals, err := loaded.Provider().TermIndex().LookupTerm(ctx, term)
		if err != nil {
			t.Fatalf("LookupTerm(%q) (loaded): %v", term, err)
		}
		if len(gotOrdinals) != len(wantOrdinals) {
			t.Fatalf("LookupTerm(%q) = %v, want %v", term, gotOrdinals, wantOrdinals)
		}
		for i := range wantOrdinals {
			if gotOrdinals[i].Ordinal != wantOrdinals[i].Ordinal {
				t.Fatalf("LookupTerm(%q)[%d].Ordinal = %d, want %d (order must survive the round trip)",
					term, i, gotOrdinals[i].Ordinal, wantOrdinals[i].Ordinal)
			}
		}
	}

	if loaded.IndexedUpTo() != conv.IndexedUpTo() {
		t.Fatalf("IndexedUpTo() = %d, want %d", loaded.IndexedUpTo(), conv.IndexedUpTo())
	}

	hits, err := loaded.Provider().RelatedTermsIndex().LookupRelatedTerms(ctx, "denver", 5, 0)
	if err != nil {
		t.Fatalf("LookupRelatedTerms: %v", err)
	}
	found := false
	for _, h := range hits {
		if h.Text == "colorado" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the authored alias to survive the round trip, got %v", hits)
	}
}

func TestSaveStampsDistinctManifestIDs(t *testing.T) {
	ctx := context.Background()
	conv := newIndexedConversation(t)
	prefixA := filepath.Join(t.TempDir(), "snap-a")
	prefixB := filepath.Join(t.TempDir(), "snap-b")

	if err := Save(ctx, conv, prefixA); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := Save(ctx, conv, prefixB); err != nil {
		t.Fatalf("Save: %v", err)
	}

	idA, err := readManifestID(dataPath(prefixA))
	if err != nil {
		t.Fatalf("readManifestID(a): %v", err)
	}
	idB, err := readManifestID(dataPath(prefixB))
	if err != nil {
		t.Fatalf("readManifestID(b): %v", err)
	}
	if idA == "" || idB == "" {
		t.Fatalf("expected both saves to stamp a manifest ID, got %q and %q", idA, idB)
	}
	if idA == idB {
		t.Fatalf("two independent saves got the same manifest ID %q", idA)
	}
}

func readManifestID(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var doc fileJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", err
	}
	return doc.FileHeader.ManifestID, nil
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	ctx := context.Background()
	conv := newIndexedConversation(t)
	prefix := filepath.Join(t.TempDir(), "snap")
	if err := Save(ctx, conv, prefix); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Corrupt the version field in place.
	body, err := readAndReplaceVersion(dataPath(prefix), "9.9")
	if err != nil {
		t.Fatalf("rewriting version: %v", err)
	}
	writeFile(t, dataPath(prefix), body)

	cache := embedcache.New(testembed.New(testDim), embedcache.DefaultConfig())
	prov := memprovider.New(cache)
	_, err = Load(ctx, prefix, prov, testDim)
	if err == nil {
		t.Fatal("expected Load to reject an unsupported file version")
	}
	if !knomerr.IsDeserialization(err) {
		t.Fatalf("err = %v, want a DeserializationError", err)
	}
}

func readAndReplaceVersion(path, newVersion string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	header, _ := doc["fileHeader"].(map[string]any)
	if header == nil {
		header = map[string]any{}
		doc["fileHeader"] = header
	}
	header["version"] = newVersion
	return json.Marshal(doc)
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestLoadRejectsSidecarLengthMismatch(t *testing.T) {
	ctx := context.Background()
	conv := newIndexedConversation(t)
	prefix := filepath.Join(t.TempDir(), "snap")
	if err := Save(ctx, conv, prefix); err != nil {
		t.Fatalf("Save: %v", err)
	}

	writeFile(t, embeddingsPath(prefix), []byte{1, 2, 3})

	cache := embedcache.New(testembed.New(testDim), embedcache.DefaultConfig())
	prov := memprovider.New(cache)
	_, err := Load(ctx, prefix, prov, testDim)
	if err == nil {
		t.Fatal("expected Load to reject a truncated embeddings sidecar")
	}
	if !knomerr.IsDeserialization(err) {
		t.Fatalf("err = %v, want a DeserializationError", err)
	}
}
