package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"cosmicam"
	"cosmicam/internal/repository"
)

// MonitoringService is the read surface behind the API layer. Status never
// blocks; it only loads the published snapshot slot.
type MonitoringService struct {
	pub    *Publisher
	images repository.ImageRepo
	events repository.EventRepo
}

func NewMonitoringService(pub *Publisher, images repository.ImageRepo, events repository.EventRepo) *MonitoringService {
	return &MonitoringService{pub: pub, images: images, events: events}
}

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

// Status returns the latest published snapshot; ok is false before the
// first capture or thermal cycle has published anything.
func (s *MonitoringService) Status() (cosmicam.StatusSnapshot, bool) {
	return s.pub.Latest()
}

// Events lists system events matching the filter, oldest first.
func (s *MonitoringService) Events(ctx context.Context, f LogFilter) ([]cosmicam.SystemEvent, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.events.List(ctx, from, to, typ)
}

// Images lists the metadata index, oldest first.
func (s *MonitoringService) Images(ctx context.Context) ([]cosmicam.CapturedImage, error) {
	return s.images.OldestFirst(ctx, 0)
}

// LatestImage returns the newest indexed image straight from the repository.
// The API falls back to it while the snapshot is still empty, so images
// from before a restart stay reachable.
func (s *MonitoringService) LatestImage(ctx context.Context) (cosmicam.CapturedImage, error) {
	return s.images.Latest(ctx)
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	typ := strings.TrimSpace(strings.ToUpper(f.Type))
	return from, to, typ, nil
}
