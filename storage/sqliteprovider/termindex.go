package sqliteprovider

import (
	"context"
	"database/sql"

	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
)

type termIndex struct{ db *sql.DB }

func (t termIndex) AddTerm(ctx context.Context, term string, ordinal int) error {
	return t.upsert(ctx, term, ordinal, 0, false)
}

func (t termIndex) AddScoredTerm(ctx context.Context, term string, ref know.ScoredSemanticRef) error {
	return t.upsert(ctx, term, ref.Ordinal, ref.Score, true)
}

func (t termIndex) upsert(ctx context.Context, term string, ordinal int, score float64, scored bool) error {
	key := know.NormalizeTerm(term)
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO term_index (term, semantic_ref_ordinal, score, scored) VALUES (?, ?, ?, ?)
		 ON CONFLICT (term, semantic_ref_ordinal) DO UPDATE SET score = excluded.score, scored = excluded.scored`,
		key, ordinal, score, scored)
	if err != nil {
		return knomerr.StorageError("add_term", err)
	}
	return nil
}

func (t termIndex) RemoveTerm(ctx context.Context, term string, ordinal int) error {
	key := know.NormalizeTerm(term)
	_, err := t.db.ExecContext(ctx,
		"DELETE FROM term_index WHERE term = ? AND semantic_ref_ordinal = ?", key, ordinal)
	if err != nil {
		return knomerr.StorageError("remove_term", err)
	}
	return nil
}

func (t termIndex) LookupTerm(ctx context.Context, term string) ([]know.ScoredSemanticRef, error) {
	key := know.NormalizeTerm(term)
	rows, err := t.db.QueryContext(ctx,
		"SELECT semantic_ref_ordinal, score, scored FROM term_index WHERE term = ? ORDER BY rowid ASC", key)
	if err != nil {
		return nil, knomerr.StorageError("lookup_term", err)
	}
	defer rows.Close()

	var out []know.ScoredSemanticRef
	anyScored := false
	for rows.Next() {
		var ref know.ScoredSemanticRef
		var scored bool
		if err := rows.Scan(&ref.Ordinal, &ref.Score, &scored); err != nil {
			return nil, knomerr.StorageError("lookup_term", err)
		}
		if scored {
			anyScored = true
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, knomerr.StorageError("lookup_term", err)
	}
	if out == nil {
		out = []know.ScoredSemanticRef{}
	}
	if anyScored {
		know.SortScoredSemanticRefsDesc(out)
	}
	return out, nil
}

func (t termIndex) GetTerms(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT DISTINCT term FROM term_index")
	if err != nil {
		return nil, knomerr.StorageError("get_terms", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, knomerr.StorageError("get_terms", err)
		}
		out = append(out, term)
	}
	return out, rows.Err()
}

func (t termIndex) Size(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT term) FROM term_index").Scan(&n); err != nil {
		return 0, knomerr.StorageError("size_term_index", err)
	}
	return n, nil
}

func (t termIndex) Clear(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, "DELETE FROM term_index"); err != nil {
		return knomerr.StorageError("clear_term_index", err)
	}
	return nil
}
