package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"skycast/config"
)

// CachedResponse is one upstream GET response kept for reuse. Expires and
// LastModified come from the upstream headers; either may be empty.
type CachedResponse struct {
	URL          string
	Body         []byte
	ContentType  string
	LastModified string
	Expires      time.Time
	FetchedAt    time.Time
}

// Fresh reports whether the entry can be served without revalidation.
func (r CachedResponse) Fresh(now time.Time) bool {
	return !r.Expires.IsZero() && now.Before(r.Expires)
}

// ResponseCache stores upstream weather responses in sqlite, keyed by URL.
type ResponseCache struct {
	db *sql.DB
}

// NewResponseCache opens (or creates) the cache database at dbPath.
func NewResponseCache(dbPath string) (*ResponseCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cache := &ResponseCache{db: db}

	if err := cache.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[CACHE] Opened response cache at %s", dbPath)
	}

	return cache, nil
}

func (c *ResponseCache) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS responses (
		url TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		last_modified TEXT,
		expires DATETIME,
		fetched_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_responses_expires ON responses(expires);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return err
	}

	if err := c.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// migrateSchema adds columns introduced after the first release.
func (c *ResponseCache) migrateSchema() error {
	hasContentType, err := c.columnExists("responses", "content_type")
	if err != nil {
		return fmt.Errorf("failed to check for content_type column: %w", err)
	}

	switch {
	case !hasContentType:
		_, err := c.db.Exec(`ALTER TABLE responses ADD COLUMN content_type TEXT DEFAULT ''`)
		if err != nil {
			return fmt.Errorf("failed to add content_type column: %w", err)
		}
	}

	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (c *ResponseCache) columnExists(tableName, columnName string) (bool, error) {
	rows, err := c.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var dataType string
		var notNull int
		var defaultValue any
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}

		switch {
		case name == columnName:
			return true, nil
		}
	}

	return false, rows.Err()
}

// Get returns the cached response for url. A miss is (nil, nil).
func (c *ResponseCache) Get(ctx context.Context, url string) (*CachedResponse, error) {
	query := `
	SELECT url, body, content_type, last_modified, expires, fetched_at
	FROM responses
	WHERE url = ?
	`

	var (
		resp         CachedResponse
		lastModified sql.NullString
		expires      sql.NullTime
	)
	err := c.db.QueryRowContext(ctx, query, url).Scan(
		&resp.URL,
		&resp.Body,
		&resp.ContentType,
		&lastModified,
		&expires,
		&resp.FetchedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	resp.LastModified = lastModified.String
	if expires.Valid {
		resp.Expires = expires.Time
	}
	return &resp, nil
}

// Put stores or replaces the response for resp.URL.
func (c *ResponseCache) Put(ctx context.Context, resp CachedResponse) error {
	query := `
	INSERT OR REPLACE INTO responses (url, body, content_type, last_modified, expires, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	var expires any
	if !resp.Expires.IsZero() {
		expires = resp.Expires.UTC()
	}
	if resp.FetchedAt.IsZero() {
		resp.FetchedAt = time.Now()
	}

	_, err := c.db.ExecContext(ctx, query,
		resp.URL,
		resp.Body,
		resp.ContentType,
		resp.LastModified,
		expires,
		resp.FetchedAt.UTC(),
	)
	return err
}

// Touch moves the expiry of an entry after a 304 revalidation.
func (c *ResponseCache) Touch(ctx context.Context, url string, expires time.Time) error {
	var exp any
	if !expires.IsZero() {
		exp = expires.UTC()
	}
	_, err := c.db.ExecContext(ctx,
		`UPDATE responses SET expires = ?, fetched_at = ? WHERE url = ?`,
		exp, time.Now().UTC(), url)
	return err
}

// Purge deletes entries that expired before cutoff and returns how many
// were removed. Entries without an expiry are kept.
func (c *ResponseCache) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM responses WHERE expires IS NOT NULL AND expires < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *ResponseCache) Close() error {
	return c.db.Close()
}
