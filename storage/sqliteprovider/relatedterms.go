package sqliteprovider

import (
	"context"
	"database/sql"
	"sort"

	"github.com/liliang-cn/knowmem/internal/sqlcodec"
	"github.com/liliang-cn/knowmem/internal/vecindex"
	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
	"github.com/liliang-cn/knowmem/storage"
)

type relatedTermsIndex struct {
	db    *sql.DB
	cache *embedcache.Cache
}

func (r relatedTermsIndex) AddRelatedTerm(ctx context.Context, term string, related ...know.Term) error {
	key := know.NormalizeTerm(term)
	for _, rel := range related {
		var weight sql.NullFloat64
		if rel.Weight != nil {
			weight = sql.NullFloat64{Float64: *rel.Weight, Valid: true}
		}
		_, err := r.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO related_terms_aliases (term, related_text, related_weight)
			 VALUES (?, ?, ?)`, key, rel.Text, weight)
		if err != nil {
			return knomerr.StorageError("add_related_term", err)
		}
	}
	return nil
}

func (r relatedTermsIndex) lookupAliases(ctx context.Context, term string) ([]know.Term, error) {
	key := know.NormalizeTerm(term)
	rows, err := r.db.QueryContext(ctx,
		"SELECT related_text, related_weight FROM related_terms_aliases WHERE term = ?", key)
	if err != nil {
		return nil, knomerr.StorageError("lookup_aliases", err)
	}
	defer rows.Close()

	var out []know.Term
	for rows.Next() {
		var text string
		var weight sql.NullFloat64
		if err := rows.Scan(&text, &weight); err != nil {
			return nil, knomerr.StorageError("lookup_aliases", err)
		}
		t := know.Term{Text: text}
		if weight.Valid {
			w := weight.Float64
			t.Weight = &w
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r relatedTermsIndex) AddFuzzyTerms(ctx context.Context, terms []string) error {
	if len(terms) == 0 {
		return nil
	}
	vectors, err := r.cache.GetEmbeddings(ctx, terms)
	if err != nil {
		return err
	}
	for i, term := range terms {
		blob, err := sqlcodec.EncodeVector(vectors[i])
		if err != nil {
			return knomerr.StorageError("add_fuzzy_terms", err)
		}
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO related_terms_fuzzy (term, vector) VALUES (?, ?)
			 ON CONFLICT (term) DO UPDATE SET vector = excluded.vector`, term, blob)
		if err != nil {
			return knomerr.StorageError("add_fuzzy_terms", err)
		}
	}
	return nil
}

func (r relatedTermsIndex) lookupFuzzy(ctx context.Context, text string, maxHits int, threshold float64) ([]know.Term, error) {
	query, err := r.cache.GetEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT term, vector FROM related_terms_fuzzy")
	if err != nil {
		return nil, knomerr.StorageError("lookup_fuzzy", err)
	}
	defer rows.Close()

	var hits []vecindex.Scored
	for rows.Next() {
		var term string
		var blob []byte
		if err := rows.Scan(&term, &blob); err != nil {
			return nil, knomerr.StorageError("lookup_fuzzy", err)
		}
		vec, err := sqlcodec.DecodeVector(blob)
		if err != nil {
			return nil, knomerr.StorageError("lookup_fuzzy", err)
		}
		score := vecindex.Cosine(query, vec)
		if score < threshold {
			continue
		}
		hits = append(hits, vecindex.Scored{Key: term, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, knomerr.StorageError("lookup_fuzzy", err)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if maxHits > 0 && len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	out := make([]know.Term, len(hits))
	for i, h := range hits {
		score := h.Score
		out[i] = know.Term{Text: h.Key, Weight: &score}
	}
	return out, nil
}

// LookupRelatedTerms mirrors relatedterms.Index.LookupRelatedTerms's union
// contract: aliases first, fuzzy matches augment, deduplicated by normalized
// text with aliases preferred at equal score.
func (r relatedTermsIndex) LookupRelatedTerms(ctx context.Context, term string, maxHits int, threshold float64) ([]know.Term, error) {
	aliasTerms, err := r.lookupAliases(ctx, term)
	if err != nil {
		return nil, err
	}
	fuzzyTerms, err := r.lookupFuzzy(ctx, term, maxHits, threshold)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(aliasTerms)+len(fuzzyTerms))
	out := make([]know.Term, 0, len(aliasTerms)+len(fuzzyTerms))
	for _, t := range aliasTerms {
		key := know.NormalizeTerm(t.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	for _, t := range fuzzyTerms {
		key := know.NormalizeTerm(t.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out, nil
}

// LoadFuzzyVectors replaces the fuzzy table's contents with precomputed
// (term, vector) pairs, restoring a snapshot's embeddings without
// recomputing them.
func (r relatedTermsIndex) LoadFuzzyVectors(ctx context.Context, terms []string, vectors [][]float32) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM related_terms_fuzzy"); err != nil {
		return knomerr.StorageError("load_fuzzy_vectors", err)
	}
	for i, term := range terms {
		blob, err := sqlcodec.EncodeVector(vectors[i])
		if err != nil {
			return knomerr.StorageError("load_fuzzy_vectors", err)
		}
		if _, err := r.db.ExecContext(ctx,
			"INSERT INTO related_terms_fuzzy (term, vector) VALUES (?, ?)", term, blob); err != nil {
			return knomerr.StorageError("load_fuzzy_vectors", err)
		}
	}
	return nil
}

// AliasItems returns every authored alias entry grouped by term, sorted by
// term, for snapshot export.
func (r relatedTermsIndex) AliasItems(ctx context.Context) ([]storage.RelatedTermAlias, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT term, related_text, related_weight FROM related_terms_aliases ORDER BY term, rowid")
	if err != nil {
		return nil, knomerr.StorageError("alias_items", err)
	}
	defer rows.Close()

	var out []storage.RelatedTermAlias
	byTerm := make(map[string]int)
	for rows.Next() {
		var term, text string
		var weight sql.NullFloat64
		if err := rows.Scan(&term, &text, &weight); err != nil {
			return nil, knomerr.StorageError("alias_items", err)
		}
		t := know.Term{Text: text}
		if weight.Valid {
			w := weight.Float64
			t.Weight = &w
		}
		i, ok := byTerm[term]
		if !ok {
			i = len(out)
			byTerm[term] = i
			out = append(out, storage.RelatedTermAlias{Term: term})
		}
		out[i].Related = append(out[i].Related, t)
	}
	if err := rows.Err(); err != nil {
		return nil, knomerr.StorageError("alias_items", err)
	}
	return out, nil
}

// FuzzyItems returns every (term, vector) pair in the fuzzy table, for
// snapshot export.
func (r relatedTermsIndex) FuzzyItems(ctx context.Context) ([]string, [][]float32, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT term, vector FROM related_terms_fuzzy ORDER BY term")
	if err != nil {
		return nil, nil, knomerr.StorageError("fuzzy_items", err)
	}
	defer rows.Close()

	var terms []string
	var vectors [][]float32
	for rows.Next() {
		var term string
		var blob []byte
		if err := rows.Scan(&term, &blob); err != nil {
			return nil, nil, knomerr.StorageError("fuzzy_items", err)
		}
		vec, err := sqlcodec.DecodeVector(blob)
		if err != nil {
			return nil, nil, knomerr.StorageError("fuzzy_items", err)
		}
		terms = append(terms, term)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, knomerr.StorageError("fuzzy_items", err)
	}
	return terms, vectors, nil
}

func (r relatedTermsIndex) Size(ctx context.Context) (int, error) {
	var aliasTerms, fuzzyTerms int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT term) FROM related_terms_aliases").Scan(&aliasTerms); err != nil {
		return 0, knomerr.StorageError("size_related_terms", err)
	}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM related_terms_fuzzy").Scan(&fuzzyTerms); err != nil {
		return 0, knomerr.StorageError("size_related_terms", err)
	}
	return aliasTerms + fuzzyTerms, nil
}

func (r relatedTermsIndex) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM related_terms_aliases"); err != nil {
		return knomerr.StorageError("clear_related_terms", err)
	}
	return nil
}
