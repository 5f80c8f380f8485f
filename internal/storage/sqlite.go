package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"carwatch/internal/model"
	"carwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB

	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Upsert writes a listing keyed by its external ID inside a transaction, so
// no partial field write is visible to concurrent readers. On update every
// mutable field plus LastSeenAt is refreshed; FirstSeenAt never changes.
func (s *SQLite) Upsert(ctx context.Context, listing *model.Listing) (model.UpsertResult, error) {
	attrs, err := json.Marshal(listing.Attributes)
	if err != nil {
		return 0, fmt.Errorf("encode attributes: %w", err)
	}

	now := s.now().UTC().Truncate(time.Second)
	nowStr := now.Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var firstSeen string
	err = tx.QueryRowContext(ctx,
		`SELECT first_seen_at FROM listings WHERE external_id = ?`, listing.ExternalID,
	).Scan(&firstSeen)

	var result model.UpsertResult
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO listings
			 (external_id, title, price, detail_url, image_url, source, attributes_json, first_seen_at, last_seen_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			listing.ExternalID, listing.Title, priceValue(listing.Price),
			listing.DetailURL, listing.ImageURL, listing.Source, string(attrs), nowStr, nowStr,
		)
		if err != nil {
			return 0, fmt.Errorf("insert listing: %w", err)
		}
		listing.FirstSeenAt = now
		result = model.Inserted

	case err != nil:
		return 0, fmt.Errorf("query listing: %w", err)

	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE listings
			 SET title = ?, price = ?, detail_url = ?, image_url = ?, source = ?,
			     attributes_json = ?, last_seen_at = ?
			 WHERE external_id = ?`,
			listing.Title, priceValue(listing.Price), listing.DetailURL, listing.ImageURL,
			listing.Source, string(attrs), nowStr, listing.ExternalID,
		)
		if err != nil {
			return 0, fmt.Errorf("update listing: %w", err)
		}
		listing.FirstSeenAt, err = time.Parse(timeLayout, firstSeen)
		if err != nil {
			return 0, fmt.Errorf("parse first_seen_at: %w", err)
		}
		result = model.Updated
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	listing.LastSeenAt = now
	return result, nil
}

// PurgeStale deletes listings whose last_seen_at is older than the cutoff.
func (s *SQLite) PurgeStale(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-retention).Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM listings WHERE last_seen_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge stale: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return deleted, nil
}

// Count returns the number of persisted listings.
func (s *SQLite) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return count, nil
}

// Latest returns the n most recently seen listings.
func (s *SQLite) Latest(ctx context.Context, n int) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT external_id, title, price, detail_url, image_url, source, attributes_json, first_seen_at, last_seen_at
		 FROM listings ORDER BY last_seen_at DESC, external_id LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Get returns a single listing by its external ID.
func (s *SQLite) Get(ctx context.Context, externalID string) (*model.Listing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT external_id, title, price, detail_url, image_url, source, attributes_json, first_seen_at, last_seen_at
		 FROM listings WHERE external_id = ?`, externalID,
	)
	l, err := scanListing(row)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func priceValue(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

type scannable interface {
	Scan(dest ...any) error
}

func scanListing(row scannable) (model.Listing, error) {
	var (
		l           model.Listing
		price       sql.NullFloat64
		attrs       string
		first, last string
	)
	err := row.Scan(&l.ExternalID, &l.Title, &price, &l.DetailURL, &l.ImageURL, &l.Source, &attrs, &first, &last)
	if err != nil {
		return l, fmt.Errorf("scan listing: %w", err)
	}
	if price.Valid {
		v := price.Float64
		l.Price = &v
	}
	if err := json.Unmarshal([]byte(attrs), &l.Attributes); err != nil {
		return l, fmt.Errorf("decode attributes: %w", err)
	}
	if l.FirstSeenAt, err = time.Parse(timeLayout, first); err != nil {
		return l, fmt.Errorf("parse first_seen_at: %w", err)
	}
	if l.LastSeenAt, err = time.Parse(timeLayout, last); err != nil {
		return l, fmt.Errorf("parse last_seen_at: %w", err)
	}
	return l, nil
}
