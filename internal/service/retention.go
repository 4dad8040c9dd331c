package service

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"cosmicam"
	"cosmicam/internal/config"
	"cosmicam/internal/logger"
	"cosmicam/internal/repository"
)

// RetentionService bounds the storage used by captured images: strict
// oldest-first eviction until both the byte and count budgets are satisfied.
// It runs off capture's registrations and its own periodic sweep.
type RetentionService struct {
	images repository.ImageRepo
	events repository.EventRepo
	cfg    config.RetentionConfig
	log    *logger.Logger

	notify chan cosmicam.CapturedImage

	// replaceable for tests exercising delete failures
	removeFile func(path string) error
}

func NewRetentionService(images repository.ImageRepo, events repository.EventRepo, cfg config.RetentionConfig, log *logger.Logger) *RetentionService {
	return &RetentionService{
		images:     images,
		events:     events,
		cfg:        cfg,
		log:        log,
		notify:     make(chan cosmicam.CapturedImage, 1),
		removeFile: os.Remove,
	}
}

// Register hands a durably written image to the retention loop. Non-blocking:
// if a sweep is already pending, the pending sweep will account for this
// image too.
func (s *RetentionService) Register(img cosmicam.CapturedImage) {
	select {
	case s.notify <- img:
	default:
	}
}

// Run services registrations and the periodic sweep until ctx is canceled.
func (s *RetentionService) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case img := <-s.notify:
			s.Sweep(ctx, img.ID)
		case <-t.C:
			s.Sweep(ctx, "")
		}
	}
}

// Sweep evicts oldest-first until the budgets hold. excludeID names an image
// that must survive this pass: the capture that triggered the sweep is never
// evicted by it. Individual delete failures are logged and skipped; the
// sweep moves on to the next candidate instead of retrying.
func (s *RetentionService) Sweep(ctx context.Context, excludeID string) {
	bytes, count, err := s.images.Usage(ctx)
	if err != nil {
		s.log.Errorw("retention usage query failed", "err", err)
		return
	}
	if !s.overBudget(bytes, count) {
		return
	}

	s.log.Infow("storage over budget, evicting oldest images",
		"bytes", bytes, "count", count, "max_bytes", s.cfg.MaxBytes, "max_count", s.cfg.MaxCount)

	candidates, err := s.images.OldestFirst(ctx, 0)
	if err != nil {
		s.log.Errorw("retention listing failed", "err", err)
		return
	}

	for _, img := range candidates {
		if !s.overBudget(bytes, count) {
			break
		}
		if img.ID == excludeID {
			continue
		}

		if err := s.removeFile(img.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warnw("evicting image file failed, skipping", "path", img.Path, "err", err)
			continue
		}
		if err := s.images.Delete(ctx, img.ID); err != nil {
			s.log.Warnw("deleting image metadata failed, skipping", "id", img.ID, "err", err)
			continue
		}

		bytes -= img.SizeBytes
		count--
		s.log.Infow("evicted image", "path", img.Path, "size_bytes", img.SizeBytes)
		s.appendEvent(ctx, cosmicam.SystemEvent{
			Type:        cosmicam.EventEviction,
			Description: "evicted oldest image to stay under retention budget",
			Metadata:    map[string]any{"path": img.Path, "size_bytes": img.SizeBytes, "created_at": img.CreatedAt},
		})
	}
}

func (s *RetentionService) overBudget(bytes int64, count int) bool {
	if s.cfg.MaxBytes > 0 && bytes > s.cfg.MaxBytes {
		return true
	}
	if s.cfg.MaxCount > 0 && count > s.cfg.MaxCount {
		return true
	}
	return false
}

func (s *RetentionService) appendEvent(ctx context.Context, e cosmicam.SystemEvent) {
	if err := s.events.Append(ctx, e); err != nil {
		s.log.Warnw("append event failed", "type", e.Type, "err", err)
	}
}
