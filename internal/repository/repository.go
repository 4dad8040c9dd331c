package repository

import (
	"context"
	"database/sql"
	"time"

	"cosmicam"
)

// ImageRepo is the durable metadata index over captured images. Rows are
// inserted by the capture loop after the file write completes and removed
// only by the retention manager.
type ImageRepo interface {
	Insert(ctx context.Context, img cosmicam.CapturedImage) error
	Delete(ctx context.Context, id string) error
	Latest(ctx context.Context) (cosmicam.CapturedImage, error)
	// OldestFirst returns up to limit images ordered by creation time
	// ascending; limit <= 0 means no limit.
	OldestFirst(ctx context.Context, limit int) ([]cosmicam.CapturedImage, error)
	// Usage returns the total size and count of indexed images.
	Usage(ctx context.Context) (bytes int64, count int, err error)
}

// EventRepo is the append-only observability log.
type EventRepo interface {
	Append(ctx context.Context, e cosmicam.SystemEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]cosmicam.SystemEvent, error)
}

type Repository struct {
	Images ImageRepo
	Events EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Images: NewImageSQLite(db),
		Events: NewEventSQLite(db),
	}
}
