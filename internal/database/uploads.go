package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediadrop/internal/logging"
	"mediadrop/internal/metrics"
)

// DefaultListLimit is used when ListUploads is called with a non-positive limit.
const DefaultListLimit = 50

// maxListLimit caps ListUploads.
const maxListLimit = 1000

// ErrNotFound is returned when no upload matches.
var ErrNotFound = errors.New("upload not found")

const uploadColumns = `id, name, mime_type, sha256, url, server, via, tier, original_size, final_size, created_at`

// RecordUpload stores u, assigning an id and a creation time when unset.
// The stored record is returned.
func (d *Database) RecordUpload(ctx context.Context, u Upload) (*Upload, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_upload", start, err) }()

	if u.SHA256 == "" || u.URL == "" {
		err = errors.New("upload requires sha256 and url")
		return nil, err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.SHA256 = strings.ToLower(u.SHA256)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO uploads (`+uploadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.MimeType, u.SHA256, u.URL, u.Server,
		string(u.Via), u.Tier, u.OriginalSize, u.FinalSize, u.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}

	logging.Debug("Recorded upload %s (%s via %s)", u.ID, u.SHA256, u.Via)
	u.CreatedAt = time.Unix(u.CreatedAt.Unix(), 0)
	return &u, nil
}

// ListUploads returns the most recent uploads, newest first.
func (d *Database) ListUploads(ctx context.Context, limit int) ([]Upload, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_uploads", start, err) }()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+uploadColumns+`
		FROM uploads
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	uploads := make([]Upload, 0, limit)
	for rows.Next() {
		var u *Upload
		u, err = scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *u)
	}
	err = rows.Err()
	return uploads, err
}

// FindByDigest returns every recorded upload of the given content, newest first.
// ErrNotFound is returned when there are none.
func (d *Database) FindByDigest(ctx context.Context, sha256 string) ([]Upload, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("find_by_digest", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+uploadColumns+`
		FROM uploads
		WHERE sha256 = ?
		ORDER BY created_at DESC, rowid DESC`, strings.ToLower(sha256))
	if err != nil {
		return nil, fmt.Errorf("find upload: %w", err)
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		var u *Upload
		u, err = scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, ErrNotFound
	}
	return uploads, nil
}

// DeleteByDigest removes every record of the given content and reports how
// many were removed.
func (d *Database) DeleteByDigest(ctx context.Context, sha256 string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_by_digest", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx, "DELETE FROM uploads WHERE sha256 = ?", strings.ToLower(sha256))
	if err != nil {
		return 0, fmt.Errorf("delete uploads: %w", err)
	}
	return result.RowsAffected()
}

// GetStats returns history totals. Query failures are logged and yield zeros.
func (d *Database) GetStats() metrics.Stats {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var stats metrics.Stats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN via = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN via = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(final_size), 0)
		FROM uploads`, string(ViaBlossom), string(ViaFallback),
	).Scan(&stats.TotalUploads, &stats.BlossomUploads, &stats.FallbackUploads, &stats.TotalBytes)
	if err != nil {
		logging.Warn("Failed to read upload stats: %v", err)
		return metrics.Stats{}
	}
	return stats
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(s scanner) (*Upload, error) {
	var u Upload
	var via string
	var created int64
	if err := s.Scan(&u.ID, &u.Name, &u.MimeType, &u.SHA256, &u.URL, &u.Server,
		&via, &u.Tier, &u.OriginalSize, &u.FinalSize, &created); err != nil {
		return nil, fmt.Errorf("scan upload: %w", err)
	}
	u.Via = Via(via)
	u.CreatedAt = time.Unix(created, 0)
	return &u, nil
}
