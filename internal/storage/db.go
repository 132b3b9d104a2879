package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/renderinc/blogpipe/internal/content"
)

// DB holds the corpus snapshot of the last successful build
type DB struct {
	db *sqlx.DB
}

// Open opens or creates a SQLite database
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets the preview server read while a build replaces the snapshot
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	storage := &DB{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return storage, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		identifier TEXT PRIMARY KEY,
		position INTEGER NOT NULL UNIQUE,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		publish_date TIMESTAMP NOT NULL,
		updated_date TIMESTAMP,
		published BOOLEAN NOT NULL,
		locale TEXT NOT NULL,
		tags TEXT NOT NULL,
		categories TEXT NOT NULL,
		author TEXT NOT NULL,
		cover_image TEXT NOT NULL,
		body TEXT NOT NULL,
		body_plain_text TEXT NOT NULL,
		headings TEXT NOT NULL,
		reading_time INTEGER NOT NULL,
		source_path TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		built_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_locale ON posts(locale);
	CREATE INDEX IF NOT EXISTS idx_publish_date ON posts(publish_date);
	CREATE INDEX IF NOT EXISTS idx_hash ON posts(content_hash);
	`

	_, err := d.db.Exec(schema)
	return err
}

var postColumns = []string{
	"identifier", "position", "slug", "title", "description", "publish_date",
	"updated_date", "published", "locale", "tags", "categories", "author",
	"cover_image", "body", "body_plain_text", "headings", "reading_time",
	"source_path", "content_hash", "built_at",
}

var insertQuery = fmt.Sprintf("INSERT INTO posts (%s) VALUES (:%s)",
	strings.Join(postColumns, ", "), strings.Join(postColumns, ", :"))

var selectQuery = fmt.Sprintf("SELECT %s FROM posts", strings.Join(postColumns, ", "))

// ReplaceCorpus swaps the stored snapshot for corpus in one transaction.
// beforeCommit, when set, runs after every row is written; an error from it
// rolls the transaction back so the previous snapshot stays in place.
func (d *DB) ReplaceCorpus(ctx context.Context, corpus *content.Corpus, beforeCommit func() error) error {
	builtAt := time.Now().UTC()

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM posts"); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	records := corpus.Records()
	for i := range records {
		row, err := newPost(&records[i], i, builtAt)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, insertQuery, row); err != nil {
			return fmt.Errorf("insert %s: %w", row.Identifier, err)
		}
	}

	if beforeCommit != nil {
		if err := beforeCommit(); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadCorpus reads the snapshot back in its original enumeration order
func (d *DB) LoadCorpus(ctx context.Context) (*content.Corpus, error) {
	var rows []Post
	if err := d.db.SelectContext(ctx, &rows, selectQuery+" ORDER BY position"); err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}

	records := make([]content.PostRecord, len(rows))
	for i := range rows {
		rec, err := rows[i].Record()
		if err != nil {
			return nil, err
		}
		records[i] = *rec
	}
	return content.NewCorpus(records), nil
}

// Get retrieves a post by identifier
func (d *DB) Get(ctx context.Context, identifier string) (*content.PostRecord, error) {
	var row Post
	err := d.db.GetContext(ctx, &row, selectQuery+" WHERE identifier = ?", identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.Record()
}

// Count returns the number of stored posts
func (d *DB) Count(ctx context.Context, includeDrafts bool) (int, error) {
	query := "SELECT COUNT(*) FROM posts"
	if !includeDrafts {
		query += " WHERE published = 1"
	}
	var count int
	err := d.db.GetContext(ctx, &count, query)
	return count, err
}

// ContentHashes maps every stored identifier to its source content hash
func (d *DB) ContentHashes(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Identifier  string `db:"identifier"`
		ContentHash string `db:"content_hash"`
	}
	if err := d.db.SelectContext(ctx, &rows, "SELECT identifier, content_hash FROM posts"); err != nil {
		return nil, err
	}
	hashes := make(map[string]string, len(rows))
	for _, r := range rows {
		hashes[r.Identifier] = r.ContentHash
	}
	return hashes, nil
}

// BuiltAt returns when the stored snapshot was written, zero when empty
func (d *DB) BuiltAt(ctx context.Context) (time.Time, error) {
	var builtAt time.Time
	err := d.db.GetContext(ctx, &builtAt, "SELECT built_at FROM posts LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	return builtAt, err
}
