package sqliteprovider

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
)

type messageCollection struct{ db *sql.DB }

func (m messageCollection) Append(ctx context.Context, msg know.Message) (int, error) {
	var ordinal int
	row := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages")
	if err := row.Scan(&ordinal); err != nil {
		return 0, knomerr.StorageError("append_message", err)
	}

	chunksJSON, err := json.Marshal(msg.TextChunks)
	if err != nil {
		return 0, knomerr.StorageError("append_message", err)
	}
	tagsJSON, err := json.Marshal(msg.Tags)
	if err != nil {
		return 0, knomerr.StorageError("append_message", err)
	}

	var ts, delTS sql.NullTime
	var delReason sql.NullString
	if msg.Timestamp != nil {
		ts = sql.NullTime{Time: *msg.Timestamp, Valid: true}
	}
	if msg.DeletionInfo != nil {
		delTS = sql.NullTime{Time: msg.DeletionInfo.Timestamp, Valid: true}
		delReason = sql.NullString{String: msg.DeletionInfo.Reason, Valid: true}
	}

	_, err = m.db.ExecContext(ctx,
		`INSERT INTO messages (ordinal, text_chunks, timestamp, tags, deletion_timestamp, deletion_reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ordinal, string(chunksJSON), ts, string(tagsJSON), delTS, delReason)
	if err != nil {
		return 0, knomerr.StorageError("append_message", err)
	}
	return ordinal, nil
}

func (m messageCollection) Get(ctx context.Context, ordinal int) (know.Message, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT text_chunks, timestamp, tags, deletion_timestamp, deletion_reason
		 FROM messages WHERE ordinal = ?`, ordinal)
	msg, err := scanMessage(row)
	if err != nil {
		return know.Message{}, err
	}
	return msg, nil
}

func (m messageCollection) GetSlice(ctx context.Context, start, end int) ([]know.Message, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT text_chunks, timestamp, tags, deletion_timestamp, deletion_reason
		 FROM messages WHERE ordinal >= ? AND ordinal < ? ORDER BY ordinal ASC`, start, end)
	if err != nil {
		return nil, knomerr.StorageError("get_message_slice", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (m messageCollection) All(ctx context.Context) ([]know.Message, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT text_chunks, timestamp, tags, deletion_timestamp, deletion_reason
		 FROM messages ORDER BY ordinal ASC`)
	if err != nil {
		return nil, knomerr.StorageError("get_all_messages", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (m messageCollection) Size(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, knomerr.StorageError("size_messages", err)
	}
	return n, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMessage(row scannable) (know.Message, error) {
	var chunksJSON, tagsJSON string
	var ts, delTS sql.NullTime
	var delReason sql.NullString
	if err := row.Scan(&chunksJSON, &ts, &tagsJSON, &delTS, &delReason); err != nil {
		if err == sql.ErrNoRows {
			return know.Message{}, knomerr.StorageError("get_message", knomerr.ErrNotFound)
		}
		return know.Message{}, knomerr.StorageError("get_message", err)
	}

	var msg know.Message
	if err := json.Unmarshal([]byte(chunksJSON), &msg.TextChunks); err != nil {
		return know.Message{}, knomerr.StorageError("get_message", err)
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &msg.Tags); err != nil {
			return know.Message{}, knomerr.StorageError("get_message", err)
		}
	}
	if ts.Valid {
		t := ts.Time
		msg.Timestamp = &t
	}
	if delTS.Valid {
		msg.DeletionInfo = &know.DeletionInfo{Timestamp: delTS.Time, Reason: delReason.String}
	}
	return msg, nil
}

func scanMessages(rows *sql.Rows) ([]know.Message, error) {
	var out []know.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, knomerr.StorageError("scan_messages", err)
	}
	if out == nil {
		out = []know.Message{}
	}
	return out, nil
}

type semanticRefCollection struct{ db *sql.DB }

func (s semanticRefCollection) Append(ctx context.Context, ref know.SemanticRef) (int, error) {
	var ordinal int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM semantic_refs").Scan(&ordinal); err != nil {
		return 0, knomerr.StorageError("append_semantic_ref", err)
	}

	knowledgeJSON, err := json.Marshal(ref.Knowledge)
	if err != nil {
		return 0, knomerr.StorageError("append_semantic_ref", err)
	}

	var endMsg, endChunk, endChar sql.NullInt64
	if ref.Range.End != nil {
		endMsg = sql.NullInt64{Int64: int64(ref.Range.End.MessageOrdinal), Valid: true}
		endChunk = sql.NullInt64{Int64: int64(ref.Range.End.ChunkOrdinal), Valid: true}
		endChar = sql.NullInt64{Int64: int64(ref.Range.End.CharOrdinal), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO semantic_refs
		 (ordinal, range_start_message, range_start_chunk, range_start_char,
		  range_end_message, range_end_chunk, range_end_char, knowledge)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ordinal,
		ref.Range.Start.MessageOrdinal, ref.Range.Start.ChunkOrdinal, ref.Range.Start.CharOrdinal,
		endMsg, endChunk, endChar, string(knowledgeJSON))
	if err != nil {
		return 0, knomerr.StorageError("append_semantic_ref", err)
	}
	return ordinal, nil
}

func (s semanticRefCollection) Get(ctx context.Context, ordinal int) (know.SemanticRef, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT ordinal, range_start_message, range_start_chunk, range_start_char,
		        range_end_message, range_end_chunk, range_end_char, knowledge
		 FROM semantic_refs WHERE ordinal = ?`, ordinal)
	return scanSemanticRef(row)
}

func (s semanticRefCollection) GetMultiple(ctx context.Context, ordinals []int) ([]know.SemanticRef, error) {
	out := make([]know.SemanticRef, 0, len(ordinals))
	for _, o := range ordinals {
		ref, err := s.Get(ctx, o)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func (s semanticRefCollection) All(ctx context.Context) ([]know.SemanticRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ordinal, range_start_message, range_start_chunk, range_start_char,
		        range_end_message, range_end_chunk, range_end_char, knowledge
		 FROM semantic_refs ORDER BY ordinal ASC`)
	if err != nil {
		return nil, knomerr.StorageError("get_all_semantic_refs", err)
	}
	defer rows.Close()

	var out []know.SemanticRef
	for rows.Next() {
		ref, err := scanSemanticRef(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, knomerr.StorageError("get_all_semantic_refs", err)
	}
	if out == nil {
		out = []know.SemanticRef{}
	}
	return out, nil
}

func (s semanticRefCollection) Size(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM semantic_refs").Scan(&n); err != nil {
		return 0, knomerr.StorageError("size_semantic_refs", err)
	}
	return n, nil
}

func scanSemanticRef(row scannable) (know.SemanticRef, error) {
	var ordinal, startMsg, startChunk, startChar int
	var endMsg, endChunk, endChar sql.NullInt64
	var knowledgeJSON string
	if err := row.Scan(&ordinal, &startMsg, &startChunk, &startChar, &endMsg, &endChunk, &endChar, &knowledgeJSON); err != nil {
		if err == sql.ErrNoRows {
			return know.SemanticRef{}, knomerr.StorageError("get_semantic_ref", knomerr.ErrNotFound)
		}
		return know.SemanticRef{}, knomerr.StorageError("get_semantic_ref", err)
	}

	var k know.Knowledge
	if err := json.Unmarshal([]byte(knowledgeJSON), &k); err != nil {
		return know.SemanticRef{}, knomerr.StorageError("get_semantic_ref", fmt.Errorf("decode knowledge: %w", err))
	}

	ref := know.SemanticRef{
		Ordinal: ordinal,
		Range: know.TextRange{
			Start: know.TextLocation{MessageOrdinal: startMsg, ChunkOrdinal: startChunk, CharOrdinal: startChar},
		},
		Knowledge: k,
	}
	if endMsg.Valid {
		ref.Range.End = &know.TextLocation{
			MessageOrdinal: int(endMsg.Int64),
			ChunkOrdinal:   int(endChunk.Int64),
			CharOrdinal:    int(endChar.Int64),
		}
	}
	return ref, nil
}
