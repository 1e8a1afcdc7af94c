package sqliteprovider

import (
	"context"
	"database/sql"

	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
	"github.com/liliang-cn/knowmem/pkg/propindex"
)

type propertyIndex struct{ db *sql.DB }

func (p propertyIndex) AddProperty(ctx context.Context, name, value string, ordinal int) error {
	key := propindex.MakePropertyTermText(name, value)

	if _, err := p.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO property_keys (prop_key) VALUES (?)", key); err != nil {
		return knomerr.StorageError("add_property", err)
	}
	if _, err := p.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO property_index (prop_key, semantic_ref_ordinal, score) VALUES (?, ?, 0)",
		key, ordinal); err != nil {
		return knomerr.StorageError("add_property", err)
	}
	return nil
}

func (p propertyIndex) AddKnowledge(ctx context.Context, k know.Knowledge, ordinal int) error {
	for _, entry := range k.IndexProperties() {
		if err := p.AddProperty(ctx, entry.Name, entry.Value, ordinal); err != nil {
			return err
		}
	}
	return nil
}

func (p propertyIndex) RemoveProperty(ctx context.Context, name, value string, ordinal int) error {
	key := propindex.MakePropertyTermText(name, value)
	_, err := p.db.ExecContext(ctx,
		"DELETE FROM property_index WHERE prop_key = ? AND semantic_ref_ordinal = ?", key, ordinal)
	if err != nil {
		return knomerr.StorageError("remove_property", err)
	}
	return nil
}

func (p propertyIndex) RemoveAllForSemRef(ctx context.Context, ordinal int) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM property_index WHERE semantic_ref_ordinal = ?", ordinal)
	if err != nil {
		return knomerr.StorageError("remove_all_for_sem_ref", err)
	}
	return nil
}

// LookupProperty preserves the nil-vs-empty-slice contract: nil when the
// key was never registered in property_keys, an empty (non-nil) slice when
// it was registered but every reference has since been removed.
func (p propertyIndex) LookupProperty(ctx context.Context, name, value string) ([]know.ScoredSemanticRef, error) {
	key := propindex.MakePropertyTermText(name, value)

	var exists int
	err := p.db.QueryRowContext(ctx, "SELECT 1 FROM property_keys WHERE prop_key = ?", key).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, knomerr.StorageError("lookup_property", err)
	}

	rows, err := p.db.QueryContext(ctx,
		"SELECT semantic_ref_ordinal, score FROM property_index WHERE prop_key = ? ORDER BY rowid ASC", key)
	if err != nil {
		return nil, knomerr.StorageError("lookup_property", err)
	}
	defer rows.Close()

	out := []know.ScoredSemanticRef{}
	for rows.Next() {
		var ref know.ScoredSemanticRef
		if err := rows.Scan(&ref.Ordinal, &ref.Score); err != nil {
			return nil, knomerr.StorageError("lookup_property", err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, knomerr.StorageError("lookup_property", err)
	}
	return out, nil
}

func (p propertyIndex) Size(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM property_keys").Scan(&n); err != nil {
		return 0, knomerr.StorageError("size_property_index", err)
	}
	return n, nil
}

func (p propertyIndex) Clear(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM property_index"); err != nil {
		return knomerr.StorageError("clear_property_index", err)
	}
	if _, err := p.db.ExecContext(ctx, "DELETE FROM property_keys"); err != nil {
		return knomerr.StorageError("clear_property_index", err)
	}
	return nil
}
