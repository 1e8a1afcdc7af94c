// Package sqliteprovider implements storage.Provider over an embedded
// SQLite database via modernc.org/sqlite (pure Go, no cgo), for
// conversations too large to comfortably hold in process memory, or that
// need to survive a process restart. Connection setup, pragmas and the
// pool are adapted from the teacher's pkg/core/store_init.go Init; the
// brute-force vector scan used by the message-text and fuzzy-term lookups
// is adapted from its pkg/core/store_search.go fetchCandidates +
// scoreCandidates shape (fetch all qualifying rows, score and sort in Go).
package sqliteprovider

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/knomerr"
	"github.com/liliang-cn/knowmem/pkg/knomlog"
	"github.com/liliang-cn/knowmem/storage"
)

// Config configures a Provider, in the teacher's DefaultConfig style.
type Config struct {
	// Path is the SQLite database file path. ":memory:" opens a private
	// in-process database, useful for provider-parity tests.
	Path   string
	Logger knomlog.Logger
}

// DefaultConfig returns a Config pointing at an in-memory database with a
// no-op logger.
func DefaultConfig() Config {
	return Config{Path: ":memory:", Logger: knomlog.Nop()}
}

// Provider is the SQLite-backed storage.Provider.
type Provider struct {
	db     *sql.DB
	cache  *embedcache.Cache
	logger knomlog.Logger
}

// Open creates (if needed) and opens the database at cfg.Path, creates its
// tables, and returns a ready Provider. cache computes embeddings for the
// message-text, fuzzy related-terms and thread-description indexes; vectors
// themselves are persisted in SQLite, not in cache's in-memory vector base.
func Open(ctx context.Context, cfg Config, cache *embedcache.Cache) (*Provider, error) {
	if cfg.Logger == nil {
		cfg.Logger = knomlog.Nop()
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, knomerr.StorageError("open", fmt.Errorf("open database: %w", err))
	}
	db.SetMaxOpenConns(1) // single-writer discipline (spec §5); WAL still allows concurrent readers
	db.SetConnMaxLifetime(2 * time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, knomerr.StorageError("open", fmt.Errorf("enable foreign keys: %w", err))
	}

	p := &Provider{db: db, cache: cache, logger: cfg.Logger}
	if err := p.createTables(ctx); err != nil {
		db.Close()
		return nil, knomerr.StorageError("open", err)
	}
	p.logger.Info("sqlite provider opened", "path", cfg.Path)
	return p, nil
}

func (p *Provider) createTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS messages (
		ordinal INTEGER PRIMARY KEY,
		text_chunks TEXT NOT NULL,
		timestamp DATETIME,
		tags TEXT,
		deletion_timestamp DATETIME,
		deletion_reason TEXT
	);

	CREATE TABLE IF NOT EXISTS semantic_refs (
		ordinal INTEGER PRIMARY KEY,
		range_start_message INTEGER NOT NULL,
		range_start_chunk INTEGER NOT NULL,
		range_start_char INTEGER NOT NULL,
		range_end_message INTEGER,
		range_end_chunk INTEGER,
		range_end_char INTEGER,
		knowledge TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS term_index (
		term TEXT NOT NULL,
		semantic_ref_ordinal INTEGER NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		scored INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (term, semantic_ref_ordinal)
	);
	CREATE INDEX IF NOT EXISTS idx_term_index_term ON term_index(term);

	CREATE TABLE IF NOT EXISTS property_keys (
		prop_key TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS property_index (
		prop_key TEXT NOT NULL,
		semantic_ref_ordinal INTEGER NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (prop_key, semantic_ref_ordinal)
	);
	CREATE INDEX IF NOT EXISTS idx_property_index_key ON property_index(prop_key);

	CREATE TABLE IF NOT EXISTS timestamp_index (
		message_ordinal INTEGER PRIMARY KEY,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_timestamp_index_ts ON timestamp_index(timestamp);

	CREATE TABLE IF NOT EXISTS message_text_index (
		message_ordinal INTEGER NOT NULL,
		chunk_ordinal INTEGER NOT NULL,
		vector BLOB NOT NULL,
		PRIMARY KEY (message_ordinal, chunk_ordinal)
	);

	CREATE TABLE IF NOT EXISTS related_terms_aliases (
		term TEXT NOT NULL,
		related_text TEXT NOT NULL,
		related_weight REAL,
		PRIMARY KEY (term, related_text)
	);

	CREATE TABLE IF NOT EXISTS related_terms_fuzzy (
		term TEXT PRIMARY KEY,
		vector BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS threads (
		thread_index INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		ranges TEXT NOT NULL,
		vector BLOB NOT NULL
	);
	`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

var _ storage.Provider = (*Provider)(nil)

func (p *Provider) Messages() storage.MessageCollection         { return messageCollection{p.db} }
func (p *Provider) SemanticRefs() storage.SemanticRefCollection { return semanticRefCollection{p.db} }
func (p *Provider) TermIndex() storage.TermIndex                { return termIndex{p.db} }
func (p *Provider) PropertyIndex() storage.PropertyIndex        { return propertyIndex{p.db} }
func (p *Provider) TimestampIndex() storage.TimestampIndex      { return timestampIndex{p.db} }
func (p *Provider) MessageIndex() storage.MessageIndex          { return messageIndex{p.db, p.cache} }
func (p *Provider) RelatedTermsIndex() storage.RelatedTermsIndex {
	return relatedTermsIndex{p.db, p.cache}
}
func (p *Provider) ThreadIndex() storage.ThreadIndex { return threadIndex{p.db, p.cache} }

// Close closes the underlying database handle.
func (p *Provider) Close() error {
	if err := p.db.Close(); err != nil {
		return knomerr.StorageError("close", err)
	}
	return nil
}
