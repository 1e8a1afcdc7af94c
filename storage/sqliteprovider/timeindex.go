package sqliteprovider

import (
	"context"
	"database/sql"
	"time"

	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
	"github.com/liliang-cn/knowmem/pkg/timeindex"
)

type timestampIndex struct{ db *sql.DB }

func (t timestampIndex) Add(ctx context.Context, messageOrdinal int, timestamp time.Time) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO timestamp_index (message_ordinal, timestamp) VALUES (?, ?)
		 ON CONFLICT (message_ordinal) DO UPDATE SET timestamp = excluded.timestamp`,
		messageOrdinal, timestamp)
	if err != nil {
		return knomerr.StorageError("add_timestamp", err)
	}
	return nil
}

// LookupRange implements the same half-open/point-query contract as
// timeindex.Index.LookupRange (spec's fixed [start, end) semantics).
func (t timestampIndex) LookupRange(ctx context.Context, r timeindex.DateRange) ([]timeindex.TimestampedTextRange, error) {
	var rows *sql.Rows
	var err error
	if r.End == nil {
		rows, err = t.db.QueryContext(ctx,
			`SELECT message_ordinal, timestamp FROM timestamp_index
			 WHERE timestamp = ? ORDER BY timestamp ASC, message_ordinal ASC`, r.Start)
	} else {
		rows, err = t.db.QueryContext(ctx,
			`SELECT message_ordinal, timestamp FROM timestamp_index
			 WHERE timestamp >= ? AND timestamp < ? ORDER BY timestamp ASC, message_ordinal ASC`,
			r.Start, *r.End)
	}
	if err != nil {
		return nil, knomerr.StorageError("lookup_range", err)
	}
	defer rows.Close()

	out := []timeindex.TimestampedTextRange{}
	for rows.Next() {
		var ord int
		var ts time.Time
		if err := rows.Scan(&ord, &ts); err != nil {
			return nil, knomerr.StorageError("lookup_range", err)
		}
		out = append(out, timeindex.TimestampedTextRange{
			MessageOrdinal: ord,
			Timestamp:      ts,
			Range:          know.PointRange(know.TextLocation{MessageOrdinal: ord}),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, knomerr.StorageError("lookup_range", err)
	}
	return out, nil
}

func (t timestampIndex) Size(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM timestamp_index").Scan(&n); err != nil {
		return 0, knomerr.StorageError("size_timestamp_index", err)
	}
	return n, nil
}

func (t timestampIndex) Clear(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, "DELETE FROM timestamp_index"); err != nil {
		return knomerr.StorageError("clear_timestamp_index", err)
	}
	return nil
}
