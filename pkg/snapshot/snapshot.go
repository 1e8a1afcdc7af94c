// Package snapshot implements the portable on-disk format (spec §6): a pair
// of files sharing a prefix, `{prefix}_data.json` and
// `{prefix}_embeddings.bin`, that together represent one conversation
// independent of which storage.Provider produced it. Adapted from the
// teacher's JSON-first persistence style (pkg/core exports/imports its
// store as plain structs marshaled with encoding/json); the binary sidecar
// is new, grounded on internal/sqlcodec's float32 encoding but using the
// snapshot format's own raw-concatenation layout rather than sqlcodec's
// length-prefixed one.
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/liliang-cn/knowmem/pkg/conversation"
	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
	"github.com/liliang-cn/knowmem/storage"
)

const fileVersion = "0.1"

// fileHeaderJSON carries the format version plus a fresh manifest ID each
// Save, an externally-addressable identifier for this snapshot instance
// (two saves of the same conversation get distinct IDs). Unlike every
// other identifier in this package, a manifest ID is not an ordinal: it
// names the file pair itself, not a position within the conversation it
// describes.
type fileHeaderJSON struct {
	Version    string `json:"version"`
	ManifestID string `json:"manifestId"`
}

type scoredRefJSON struct {
	SemanticRefOrdinal int      `json:"semanticRefOrdinal"`
	Score              *float64 `json:"score,omitempty"`
}

type semanticIndexItemJSON struct {
	Term               string          `json:"term"`
	SemanticRefIndices []scoredRefJSON `json:"semanticRefIndices"`
}

type semanticIndexDataJSON struct {
	Items []semanticIndexItemJSON `json:"items"`
}

type aliasItemJSON struct {
	TermText     string      `json:"termText"`
	RelatedTerms []know.Term `json:"relatedTerms"`
}

type aliasDataJSON struct {
	RelatedTerms []aliasItemJSON `json:"relatedTerms"`
}

type textEmbeddingDataJSON struct {
	TextItems  []string `json:"textItems"`
	Embeddings *struct{} `json:"embeddings"`
}

type relatedTermsIndexDataJSON struct {
	AliasData         aliasDataJSON         `json:"aliasData"`
	TextEmbeddingData textEmbeddingDataJSON `json:"textEmbeddingData"`
}

type messageTextIndexDataJSON struct {
	TextLocations []know.TextLocation `json:"textLocations"`
	Embeddings    *struct{}           `json:"embeddings"`
}

type messageIndexDataJSON struct {
	IndexData messageTextIndexDataJSON `json:"indexData"`
}

type semanticRefJSON struct {
	SemanticRefOrdinal int            `json:"semanticRefOrdinal"`
	Range              know.TextRange `json:"range"`
	KnowledgeType      know.Kind      `json:"knowledgeType"`
	Knowledge          know.Knowledge `json:"knowledge"`
}

// threadDataJSON is a supplement to spec.md §6's literal body shape: threads
// (spec §4.7) need round-tripping too, but their descriptions are
// re-embedded on load rather than carried through the float32 sidecar, so
// they don't disturb the declared "aliases' fuzzy terms first, then
// message-text embeddings" sidecar layout.
type threadDataJSON struct {
	Items []know.Thread `json:"items"`
}

type fileJSON struct {
	NameTag                string                    `json:"nameTag"`
	Tags                   []string                  `json:"tags,omitempty"`
	Messages               []know.Message            `json:"messages"`
	SemanticRefs           []semanticRefJSON         `json:"semanticRefs"`
	SemanticIndexData      semanticIndexDataJSON     `json:"semanticIndexData"`
	RelatedTermsIndexData  relatedTermsIndexDataJSON `json:"relatedTermsIndexData"`
	MessageIndexData       messageIndexDataJSON      `json:"messageIndexData"`
	ThreadData             threadDataJSON            `json:"threadData"`
	FileHeader             fileHeaderJSON            `json:"fileHeader"`
}

func dataPath(prefix string) string       { return prefix + "_data.json" }
func embeddingsPath(prefix string) string { return prefix + "_embeddings.bin" }

// Save writes conv's current state to {prefix}_data.json and
// {prefix}_embeddings.bin. Property and timestamp index contents are not
// written: both are pure functions of the saved messages and semantic refs
// and are rebuilt by Load, per spec §6's silence on persisting them
// separately.
func Save(ctx context.Context, conv *conversation.Conversation, prefix string) error {
	prov := conv.Provider()

	messages, err := prov.Messages().All(ctx)
	if err != nil {
		return err
	}
	refs, err := prov.SemanticRefs().All(ctx)
	if err != nil {
		return err
	}

	semRefsJSON := make([]semanticRefJSON, len(refs))
	for i, r := range refs {
		semRefsJSON[i] = semanticRefJSON{
			SemanticRefOrdinal: r.Ordinal,
			Range:              r.Range,
			KnowledgeType:      r.Knowledge.Type,
			Knowledge:          r.Knowledge,
		}
	}

	termItems, err := collectTermItems(ctx, prov)
	if err != nil {
		return err
	}

	aliasItems, err := prov.RelatedTermsIndex().AliasItems(ctx)
	if err != nil {
		return err
	}
	aliasesJSON := make([]aliasItemJSON, len(aliasItems))
	for i, a := range aliasItems {
		aliasesJSON[i] = aliasItemJSON{TermText: a.Term, RelatedTerms: a.Related}
	}

	fuzzyTerms, fuzzyVectors, err := prov.RelatedTermsIndex().FuzzyItems(ctx)
	if err != nil {
		return err
	}

	locations, msgVectors, err := prov.MessageIndex().Items(ctx)
	if err != nil {
		return err
	}

	threadList, err := prov.ThreadIndex().All(ctx)
	if err != nil {
		return err
	}

	doc := fileJSON{
		NameTag:      conv.NameTag,
		Tags:         conv.Tags,
		Messages:     messages,
		SemanticRefs: semRefsJSON,
		SemanticIndexData: semanticIndexDataJSON{
			Items: termItems,
		},
		RelatedTermsIndexData: relatedTermsIndexDataJSON{
			AliasData: aliasDataJSON{RelatedTerms: aliasesJSON},
			TextEmbeddingData: textEmbeddingDataJSON{
				TextItems: fuzzyTerms,
			},
		},
		MessageIndexData: messageIndexDataJSON{
			IndexData: messageTextIndexDataJSON{
				TextLocations: locations,
			},
		},
		ThreadData: threadDataJSON{Items: threadList},
		FileHeader: fileHeaderJSON{Version: fileVersion, ManifestID: uuid.NewString()},
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return knomerr.StorageError("marshal_snapshot", err)
	}
	if err := os.WriteFile(dataPath(prefix), body, 0o644); err != nil {
		return knomerr.StorageError("write_snapshot_data", err)
	}

	sidecar := encodeSidecar(fuzzyVectors, msgVectors)
	if err := os.WriteFile(embeddingsPath(prefix), sidecar, 0o644); err != nil {
		return knomerr.StorageError("write_snapshot_embeddings", err)
	}
	return nil
}

// collectTermItems rebuilds the term index's (term, postings) items through
// the Provider interface (GetTerms + LookupTerm), since storage.TermIndex
// exposes no bulk-export method of its own.
func collectTermItems(ctx context.Context, prov storage.Provider) ([]semanticIndexItemJSON, error) {
	terms, err := prov.TermIndex().GetTerms(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]semanticIndexItemJSON, 0, len(terms))
	for _, term := range terms {
		postings, err := prov.TermIndex().LookupTerm(ctx, term)
		if err != nil {
			return nil, err
		}
		refs := make([]scoredRefJSON, len(postings))
		for i, p := range postings {
			refJSON := scoredRefJSON{SemanticRefOrdinal: p.Ordinal}
			if p.Score != 0 {
				score := p.Score
				refJSON.Score = &score
			}
			refs[i] = refJSON
		}
		items = append(items, semanticIndexItemJSON{Term: term, SemanticRefIndices: refs})
	}
	return items, nil
}

// encodeSidecar concatenates fuzzy-term vectors then message-text vectors,
// each as raw little-endian float32 values, per spec §6's declared order.
func encodeSidecar(fuzzyVectors, msgVectors [][]float32) []byte {
	buf := new(bytes.Buffer)
	for _, v := range fuzzyVectors {
		for _, f := range v {
			binary.Write(buf, binary.LittleEndian, f)
		}
	}
	for _, v := range msgVectors {
		for _, f := range v {
			binary.Write(buf, binary.LittleEndian, f)
		}
	}
	return buf.Bytes()
}

// Load reads {prefix}_data.json and {prefix}_embeddings.bin and populates
// the given (empty) provider, returning the reconstructed conversation.
// A sidecar whose length doesn't match the declared text-item counts and
// embedding dimension is a fatal DeserializationError; no partial
// conversation is returned.
func Load(ctx context.Context, prefix string, prov storage.Provider, embeddingDim int) (*conversation.Conversation, error) {
	body, err := os.ReadFile(dataPath(prefix))
	if err != nil {
		return nil, knomerr.StorageError("read_snapshot_data", err)
	}
	var doc fileJSON
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, knomerr.DeserializationError("unmarshal_snapshot", err)
	}
	if doc.FileHeader.Version != fileVersion {
		return nil, knomerr.DeserializationError("file_header",
			fmt.Errorf("unsupported snapshot version %q", doc.FileHeader.Version))
	}

	sidecar, err := os.ReadFile(embeddingsPath(prefix))
	if err != nil {
		return nil, knomerr.StorageError("read_snapshot_embeddings", err)
	}

	numFuzzy := len(doc.RelatedTermsIndexData.TextEmbeddingData.TextItems)
	numMsg := len(doc.MessageIndexData.IndexData.TextLocations)
	wantBytes := (numFuzzy + numMsg) * embeddingDim * 4
	if len(sidecar) != wantBytes {
		return nil, knomerr.DeserializationError("embeddings_sidecar",
			fmt.Errorf("sidecar has %d bytes, want %d for %d fuzzy + %d message vectors at dim %d",
				len(sidecar), wantBytes, numFuzzy, numMsg, embeddingDim))
	}

	fuzzyVectors, rest := decodeSidecar(sidecar, numFuzzy, embeddingDim)
	msgVectors, _ := decodeSidecar(rest, numMsg, embeddingDim)

	for _, msg := range doc.Messages {
		if _, err := prov.Messages().Append(ctx, msg); err != nil {
			return nil, err
		}
	}
	for _, r := range doc.SemanticRefs {
		ref := know.SemanticRef{Range: r.Range, Knowledge: r.Knowledge}
		if _, err := prov.SemanticRefs().Append(ctx, ref); err != nil {
			return nil, err
		}
	}

	for _, item := range doc.SemanticIndexData.Items {
		for _, ref := range item.SemanticRefIndices {
			if ref.Score != nil {
				err = prov.TermIndex().AddScoredTerm(ctx, item.Term,
					know.ScoredSemanticRef{Ordinal: ref.SemanticRefOrdinal, Score: *ref.Score})
			} else {
				err = prov.TermIndex().AddTerm(ctx, item.Term, ref.SemanticRefOrdinal)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	for _, a := range doc.RelatedTermsIndexData.AliasData.RelatedTerms {
		if err := prov.RelatedTermsIndex().AddRelatedTerm(ctx, a.TermText, a.RelatedTerms...); err != nil {
			return nil, err
		}
	}
	if numFuzzy > 0 {
		if err := prov.RelatedTermsIndex().LoadFuzzyVectors(ctx,
			doc.RelatedTermsIndexData.TextEmbeddingData.TextItems, fuzzyVectors); err != nil {
			return nil, err
		}
	}

	if numMsg > 0 {
		if err := prov.MessageIndex().LoadVectors(ctx,
			doc.MessageIndexData.IndexData.TextLocations, msgVectors); err != nil {
			return nil, err
		}
	}

	for _, th := range doc.ThreadData.Items {
		if _, err := prov.ThreadIndex().AddThread(ctx, th); err != nil {
			return nil, err
		}
	}

	// Rebuild the derived indexes: timestamps from messages, properties
	// from semantic refs' knowledge.
	for ordinal, msg := range doc.Messages {
		if msg.Timestamp != nil {
			if err := prov.TimestampIndex().Add(ctx, ordinal, *msg.Timestamp); err != nil {
				return nil, err
			}
		}
	}
	for ordinal, r := range doc.SemanticRefs {
		if err := prov.PropertyIndex().AddKnowledge(ctx, r.Knowledge, ordinal); err != nil {
			return nil, err
		}
	}

	conv := conversation.New(doc.NameTag, prov)
	conv.Tags = doc.Tags
	conv.SetIndexedUpTo(len(doc.Messages))
	return conv, nil
}

// decodeSidecar reads count*dim little-endian float32 values from data,
// returning the parsed vectors and the unconsumed remainder.
func decodeSidecar(data []byte, count, dim int) ([][]float32, []byte) {
	vectors := make([][]float32, count)
	r := bytes.NewReader(data)
	for i := 0; i < count; i++ {
		v := make([]float32, dim)
		for j := 0; j < dim; j++ {
			binary.Read(r, binary.LittleEndian, &v[j])
		}
		vectors[i] = v
	}
	return vectors, data[len(data)-r.Len():]
}
