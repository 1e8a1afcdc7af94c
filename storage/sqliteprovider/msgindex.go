package sqliteprovider

import (
	"context"
	"database/sql"

	"github.com/liliang-cn/knowmem/internal/sqlcodec"
	"github.com/liliang-cn/knowmem/internal/vecindex"
	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
)

type messageIndex struct {
	db    *sql.DB
	cache *embedcache.Cache
}

func (m messageIndex) AddMessages(ctx context.Context, messages []know.Message) error {
	return m.AddMessagesStartingAt(ctx, 0, messages)
}

func (m messageIndex) AddMessagesStartingAt(ctx context.Context, startOrdinal int, messages []know.Message) error {
	type pending struct {
		msgOrd, chunkOrd int
		text             string
	}
	var items []pending
	for i, msg := range messages {
		msgOrd := startOrdinal + i
		for chunkOrd, chunk := range msg.TextChunks {
			items = append(items, pending{msgOrd, chunkOrd, chunk})
		}
	}
	if len(items) == 0 {
		return nil
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.text
	}
	vectors, err := m.cache.GetEmbeddings(ctx, texts)
	if err != nil {
		return err
	}

	for i, it := range items {
		blob, err := sqlcodec.EncodeVector(vectors[i])
		if err != nil {
			return knomerr.StorageError("add_messages", err)
		}
		_, err = m.db.ExecContext(ctx,
			`INSERT INTO message_text_index (message_ordinal, chunk_ordinal, vector) VALUES (?, ?, ?)
			 ON CONFLICT (message_ordinal, chunk_ordinal) DO UPDATE SET vector = excluded.vector`,
			it.msgOrd, it.chunkOrd, blob)
		if err != nil {
			return knomerr.StorageError("add_messages", err)
		}
	}
	return nil
}

func (m messageIndex) LookupMessages(ctx context.Context, text string, maxMatches int, threshold float64) ([]know.ScoredMessage, error) {
	return m.LookupMessagesInSubset(ctx, text, nil, maxMatches, threshold)
}

// LookupMessagesInSubset fetches every candidate vector and scores/aggregates
// in Go, the brute-force shape the teacher's fetchCandidates+scoreCandidates
// pair uses for its SQL-backed linear scan. subset, if non-nil, restricts
// which message ordinals are allowed to contribute a score.
func (m messageIndex) LookupMessagesInSubset(ctx context.Context, text string, subset []int, maxMatches int, threshold float64) ([]know.ScoredMessage, error) {
	query, err := m.cache.GetEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	var allow map[int]bool
	if subset != nil {
		allow = make(map[int]bool, len(subset))
		for _, o := range subset {
			allow[o] = true
		}
	}

	rows, err := m.db.QueryContext(ctx, "SELECT message_ordinal, vector FROM message_text_index")
	if err != nil {
		return nil, knomerr.StorageError("lookup_messages", err)
	}
	defer rows.Close()

	best := make(map[int]float64)
	for rows.Next() {
		var ord int
		var blob []byte
		if err := rows.Scan(&ord, &blob); err != nil {
			return nil, knomerr.StorageError("lookup_messages", err)
		}
		if allow != nil && !allow[ord] {
			continue
		}
		vec, err := sqlcodec.DecodeVector(blob)
		if err != nil {
			return nil, knomerr.StorageError("lookup_messages", err)
		}
		score := vecindex.Cosine(query, vec)
		if score < threshold {
			continue
		}
		if cur, ok := best[ord]; !ok || score > cur {
			best[ord] = score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, knomerr.StorageError("lookup_messages", err)
	}
	return finalizeScoredMessages(best, maxMatches), nil
}

func finalizeScoredMessages(best map[int]float64, maxMatches int) []know.ScoredMessage {
	out := make([]know.ScoredMessage, 0, len(best))
	for ord, score := range best {
		out = append(out, know.ScoredMessage{MessageOrdinal: ord, Score: score})
	}
	know.SortScoredMessagesDesc(out)
	if maxMatches > 0 && len(out) > maxMatches {
		out = out[:maxMatches]
	}
	return out
}

// LoadVectors replaces the table's contents with precomputed (location,
// vector) pairs, restoring a snapshot's embeddings without recomputing them.
func (m messageIndex) LoadVectors(ctx context.Context, locations []know.TextLocation, vectors [][]float32) error {
	if _, err := m.db.ExecContext(ctx, "DELETE FROM message_text_index"); err != nil {
		return knomerr.StorageError("load_vectors", err)
	}
	for i, loc := range locations {
		blob, err := sqlcodec.EncodeVector(vectors[i])
		if err != nil {
			return knomerr.StorageError("load_vectors", err)
		}
		_, err = m.db.ExecContext(ctx,
			"INSERT INTO message_text_index (message_ordinal, chunk_ordinal, vector) VALUES (?, ?, ?)",
			loc.MessageOrdinal, loc.ChunkOrdinal, blob)
		if err != nil {
			return knomerr.StorageError("load_vectors", err)
		}
	}
	return nil
}

// Items returns every (location, vector) pair ordered by (message_ordinal,
// chunk_ordinal), for snapshot export.
func (m messageIndex) Items(ctx context.Context) ([]know.TextLocation, [][]float32, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT message_ordinal, chunk_ordinal, vector FROM message_text_index ORDER BY message_ordinal, chunk_ordinal")
	if err != nil {
		return nil, nil, knomerr.StorageError("items_message_index", err)
	}
	defer rows.Close()

	var locs []know.TextLocation
	var vecs [][]float32
	for rows.Next() {
		var msgOrd, chunkOrd int
		var blob []byte
		if err := rows.Scan(&msgOrd, &chunkOrd, &blob); err != nil {
			return nil, nil, knomerr.StorageError("items_message_index", err)
		}
		vec, err := sqlcodec.DecodeVector(blob)
		if err != nil {
			return nil, nil, knomerr.StorageError("items_message_index", err)
		}
		locs = append(locs, know.TextLocation{MessageOrdinal: msgOrd, ChunkOrdinal: chunkOrd})
		vecs = append(vecs, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, knomerr.StorageError("items_message_index", err)
	}
	return locs, vecs, nil
}

func (m messageIndex) Size(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM message_text_index").Scan(&n); err != nil {
		return 0, knomerr.StorageError("size_message_index", err)
	}
	return n, nil
}

func (m messageIndex) Clear(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, "DELETE FROM message_text_index"); err != nil {
		return knomerr.StorageError("clear_message_index", err)
	}
	return nil
}
