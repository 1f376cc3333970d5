// Package store is the durable search repository: SQLite tables mirroring
// the searches/{id}/properties/{sourceId} document layout.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/marcusmcb/revive-hq-demo/internal/model"
)

// ErrNotFound reports a search id with no stored record.
var ErrNotFound = errors.New("store: search not found")

// deleteBatchSize caps listing-row deletes per statement so that full
// deletion never depends on the size of a listing set.
const deleteBatchSize = 450

// timeFormat is fixed-width (no trailing-zero trimming) so that stored
// timestamps order lexicographically in ORDER BY.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the SQLite-backed search repository.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and runs migrations.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// WAL for concurrent readers during writes; busy_timeout so parallel
	// requests queue instead of failing.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS searches (
			id           TEXT PRIMARY KEY,
			mode         TEXT NOT NULL,
			query        TEXT NOT NULL,
			query_key    TEXT,
			source       TEXT NOT NULL,
			result_count INTEGER NOT NULL,
			created_at   TEXT NOT NULL,
			retrieved_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_searches_created_at ON searches(created_at);

		CREATE TABLE IF NOT EXISTS properties (
			search_id    TEXT NOT NULL REFERENCES searches(id),
			source_id    TEXT NOT NULL,
			source       TEXT NOT NULL,
			address      TEXT NOT NULL,
			price        REAL,
			beds         REAL,
			baths        REAL,
			sqft         REAL,
			photos       TEXT NOT NULL DEFAULT '[]',
			retrieved_at TEXT NOT NULL,
			PRIMARY KEY (search_id, source_id)
		);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports store reachability for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateParams carries everything needed to persist one search whole.
type CreateParams struct {
	Mode       model.SearchMode
	Query      string
	QueryKey   string // optional
	Source     string
	Properties []model.PropertyListing
}

// Create allocates a new id and writes the search record together with its
// full listing set in one transaction: partial failure never leaves
// listings without their parent record or vice versa. Listings are keyed by
// sourceId within the record; a duplicate sourceId overwrites.
func (s *Store) Create(ctx context.Context, p CreateParams) (*model.SearchRecord, error) {
	now := time.Now().UTC()
	rec := &model.SearchRecord{
		ID:          uuid.NewString(),
		Mode:        p.Mode,
		Query:       p.Query,
		QueryKey:    p.QueryKey,
		Source:      p.Source,
		ResultCount: len(p.Properties),
		CreatedAt:   now,
		RetrievedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO searches (id, mode, query, query_key, source, result_count, created_at, retrieved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Mode), rec.Query, nullable(rec.QueryKey), rec.Source,
		rec.ResultCount, now.Format(timeFormat), now.Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("insert search: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO properties (search_id, source_id, source, address, price, beds, baths, sqft, photos, retrieved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare listing insert: %w", err)
	}
	defer stmt.Close()

	for i := range p.Properties {
		l := &p.Properties[i]
		photos, err := json.Marshal(l.Photos)
		if err != nil {
			return nil, fmt.Errorf("encode photos for %s: %w", l.SourceID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID, l.SourceID, l.Source, l.Address,
			nullFloat(l.Price), nullFloat(l.Beds), nullFloat(l.Baths), nullFloat(l.Sqft),
			string(photos), now.Format(timeFormat),
		); err != nil {
			return nil, fmt.Errorf("insert listing %s: %w", l.SourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}

	rec.Properties = stampListings(p.Properties, now)
	return rec, nil
}

// Get loads one search record with its full listing set.
func (s *Store) Get(ctx context.Context, searchID string) (*model.SearchRecord, error) {
	rec, err := s.getMeta(ctx, searchID)
	if err != nil {
		return nil, err
	}
	rec.Properties = []model.PropertyListing{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, source, address, price, beds, baths, sqft, photos, retrieved_at
		FROM properties WHERE search_id = ? ORDER BY rowid`, searchID)
	if err != nil {
		return nil, fmt.Errorf("query listings for %s: %w", searchID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l                        model.PropertyListing
			price, beds, baths, sqft sql.NullFloat64
			photos, retrieved        string
		)
		if err := rows.Scan(&l.SourceID, &l.Source, &l.Address, &price, &beds, &baths, &sqft, &photos, &retrieved); err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		l.Price = floatPtr(price)
		l.Beds = floatPtr(beds)
		l.Baths = floatPtr(baths)
		l.Sqft = floatPtr(sqft)
		if err := json.Unmarshal([]byte(photos), &l.Photos); err != nil {
			return nil, fmt.Errorf("decode photos for %s: %w", l.SourceID, err)
		}
		if ts, err := time.Parse(timeFormat, retrieved); err == nil {
			l.RetrievedAt = &ts
		}
		rec.Properties = append(rec.Properties, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings for %s: %w", searchID, err)
	}
	return rec, nil
}

// ListRecent returns metadata only (no listings) for the newest searches,
// most recent createdAt first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]model.SearchRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, query, query_key, source, result_count, created_at, retrieved_at
		FROM searches ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent searches: %w", err)
	}
	defer rows.Close()

	out := []model.SearchRecord{}
	for rows.Next() {
		rec, err := scanSearch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Delete removes every owned listing, then the record itself. Listing rows
// go in chunks of deleteBatchSize so correctness never depends on result-set
// size. Returns the deleted record's metadata so the caller can clean up
// its cache pointer; nil metadata when no such record existed (delete is
// idempotent).
func (s *Store) Delete(ctx context.Context, searchID string) (*model.SearchRecord, error) {
	rec, err := s.getMeta(ctx, searchID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	for {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM properties WHERE rowid IN (
				SELECT rowid FROM properties WHERE search_id = ? LIMIT ?
			)`, searchID, deleteBatchSize)
		if err != nil {
			return nil, fmt.Errorf("delete listings for %s: %w", searchID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("delete listings for %s: %w", searchID, err)
		}
		if n < deleteBatchSize {
			break
		}
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM searches WHERE id = ?`, searchID); err != nil {
		return nil, fmt.Errorf("delete search %s: %w", searchID, err)
	}
	return rec, nil
}

func (s *Store) getMeta(ctx context.Context, searchID string) (*model.SearchRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, query, query_key, source, result_count, created_at, retrieved_at
		FROM searches WHERE id = ?`, searchID)
	rec, err := scanSearch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSearch(row rowScanner) (*model.SearchRecord, error) {
	var (
		rec                model.SearchRecord
		mode               string
		queryKey           sql.NullString
		created, retrieved string
	)
	if err := row.Scan(&rec.ID, &mode, &rec.Query, &queryKey, &rec.Source, &rec.ResultCount, &created, &retrieved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan search row: %w", err)
	}
	rec.Mode = model.SearchMode(mode)
	rec.QueryKey = queryKey.String

	var err error
	if rec.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.RetrievedAt, err = time.Parse(timeFormat, retrieved); err != nil {
		return nil, fmt.Errorf("parse retrieved_at: %w", err)
	}
	return &rec, nil
}

func stampListings(listings []model.PropertyListing, at time.Time) []model.PropertyListing {
	out := make([]model.PropertyListing, len(listings))
	for i, l := range listings {
		l.RetrievedAt = &at
		out[i] = l
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
