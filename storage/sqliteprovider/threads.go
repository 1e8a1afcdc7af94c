package sqliteprovider

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"github.com/liliang-cn/knowmem/internal/sqlcodec"
	"github.com/liliang-cn/knowmem/internal/vecindex"
	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
)

type threadIndex struct {
	db    *sql.DB
	cache *embedcache.Cache
}

func (t threadIndex) AddThread(ctx context.Context, thread know.Thread) (int, error) {
	vec, err := t.cache.GetEmbedding(ctx, thread.Description)
	if err != nil {
		return 0, err
	}

	var ordinal int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM threads").Scan(&ordinal); err != nil {
		return 0, knomerr.StorageError("add_thread", err)
	}

	rangesJSON, err := json.Marshal(thread.Ranges)
	if err != nil {
		return 0, knomerr.StorageError("add_thread", err)
	}
	blob, err := sqlcodec.EncodeVector(vec)
	if err != nil {
		return 0, knomerr.StorageError("add_thread", err)
	}

	_, err = t.db.ExecContext(ctx,
		"INSERT INTO threads (thread_index, description, ranges, vector) VALUES (?, ?, ?, ?)",
		ordinal, thread.Description, string(rangesJSON), blob)
	if err != nil {
		return 0, knomerr.StorageError("add_thread", err)
	}
	return ordinal, nil
}

// LookupThread mirrors threads.Index.LookupThread: nil if no thread has
// ever been added, otherwise fuzzy-matched against the query description.
func (t threadIndex) LookupThread(ctx context.Context, description string, maxMatches int, threshold float64) ([]know.ScoredThreadIndex, error) {
	var total int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM threads").Scan(&total); err != nil {
		return nil, knomerr.StorageError("lookup_thread", err)
	}
	if total == 0 {
		return nil, nil
	}

	query, err := t.cache.GetEmbedding(ctx, description)
	if err != nil {
		return nil, err
	}

	rows, err := t.db.QueryContext(ctx, "SELECT thread_index, vector FROM threads")
	if err != nil {
		return nil, knomerr.StorageError("lookup_thread", err)
	}
	defer rows.Close()

	var out []know.ScoredThreadIndex
	for rows.Next() {
		var idx int
		var blob []byte
		if err := rows.Scan(&idx, &blob); err != nil {
			return nil, knomerr.StorageError("lookup_thread", err)
		}
		vec, err := sqlcodec.DecodeVector(blob)
		if err != nil {
			return nil, knomerr.StorageError("lookup_thread", err)
		}
		score := vecindex.Cosine(query, vec)
		if score < threshold {
			continue
		}
		out = append(out, know.ScoredThreadIndex{ThreadIndex: idx, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, knomerr.StorageError("lookup_thread", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if maxMatches > 0 && len(out) > maxMatches {
		out = out[:maxMatches]
	}
	return out, nil
}

func (t threadIndex) Get(ctx context.Context, threadIndex int) (know.Thread, bool, error) {
	row := t.db.QueryRowContext(ctx,
		"SELECT description, ranges FROM threads WHERE thread_index = ?", threadIndex)
	th, ok, err := scanThread(row)
	if err != nil {
		return know.Thread{}, false, knomerr.StorageError("get_thread", err)
	}
	return th, ok, nil
}

func (t threadIndex) All(ctx context.Context) ([]know.Thread, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT description, ranges FROM threads ORDER BY thread_index ASC")
	if err != nil {
		return nil, knomerr.StorageError("get_all_threads", err)
	}
	defer rows.Close()

	out := []know.Thread{}
	for rows.Next() {
		th, ok, err := scanThread(rows)
		if err != nil {
			return nil, knomerr.StorageError("get_all_threads", err)
		}
		if ok {
			out = append(out, th)
		}
	}
	return out, rows.Err()
}

func scanThread(row scannable) (know.Thread, bool, error) {
	var description, rangesJSON string
	if err := row.Scan(&description, &rangesJSON); err != nil {
		if err == sql.ErrNoRows {
			return know.Thread{}, false, nil
		}
		return know.Thread{}, false, err
	}
	var ranges []know.TextRange
	if err := json.Unmarshal([]byte(rangesJSON), &ranges); err != nil {
		return know.Thread{}, false, err
	}
	return know.Thread{Description: description, Ranges: ranges}, true, nil
}

func (t threadIndex) Size(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM threads").Scan(&n); err != nil {
		return 0, knomerr.StorageError("size_threads", err)
	}
	return n, nil
}

func (t threadIndex) Clear(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, "DELETE FROM threads"); err != nil {
		return knomerr.StorageError("clear_threads", err)
	}
	return nil
}
