package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"cosmicam"
)

type ImageSQLite struct {
	db *sql.DB
}

func NewImageSQLite(db *sql.DB) *ImageSQLite { return &ImageSQLite{db: db} }

// ErrNoImages is returned by Latest when nothing has been captured yet.
var ErrNoImages = errors.New("no captured images")

const (
	insertImageSQL = `
		INSERT INTO captured_images (id, path, size_bytes, created_at, phase, settings)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	selectImageCols = `id, path, size_bytes, created_at, phase, settings`
)

// Insert records the metadata of a durably written image file.
func (r *ImageSQLite) Insert(ctx context.Context, img cosmicam.CapturedImage) error {
	settings, err := json.Marshal(img.Settings)
	if err != nil {
		return err
	}

	createdAt := img.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, insertImageSQL,
		img.ID,
		img.Path,
		img.SizeBytes,
		createdAt.UTC(),
		string(img.Phase),
		string(settings),
	)
	return err
}

// Delete removes one metadata row. Deleting a missing row is not an error;
// the file may already have been reaped in an earlier, interrupted pass.
func (r *ImageSQLite) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM captured_images WHERE id = ?`, id)
	return err
}

// Latest returns the most recently created image.
func (r *ImageSQLite) Latest(ctx context.Context) (cosmicam.CapturedImage, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectImageCols+` FROM captured_images ORDER BY created_at DESC LIMIT 1`)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cosmicam.CapturedImage{}, ErrNoImages
	}
	return img, err
}

// OldestFirst returns images ordered by creation time ascending.
func (r *ImageSQLite) OldestFirst(ctx context.Context, limit int) ([]cosmicam.CapturedImage, error) {
	q := `SELECT ` + selectImageCols + ` FROM captured_images ORDER BY created_at ASC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]cosmicam.CapturedImage, 0, 64)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// Usage sums the indexed footprint.
func (r *ImageSQLite) Usage(ctx context.Context) (int64, int, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size_bytes), 0), COUNT(*) FROM captured_images`)
	var bytes int64
	var count int
	if err := row.Scan(&bytes, &count); err != nil {
		return 0, 0, err
	}
	return bytes, count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (cosmicam.CapturedImage, error) {
	var img cosmicam.CapturedImage
	var phase string
	var settings string
	if err := row.Scan(&img.ID, &img.Path, &img.SizeBytes, &img.CreatedAt, &phase, &settings); err != nil {
		return cosmicam.CapturedImage{}, err
	}
	img.Phase = cosmicam.SolarPhase(phase)
	img.CreatedAt = img.CreatedAt.UTC()
	if settings != "" {
		// Malformed settings JSON is tolerated: the row must stay evictable.
		_ = json.Unmarshal([]byte(settings), &img.Settings)
	}
	return img, nil
}
