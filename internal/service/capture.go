package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cosmicam"
	"cosmicam/internal/config"
	"cosmicam/internal/logger"
	"cosmicam/internal/repository"
	"cosmicam/internal/solar"

	"github.com/google/uuid"
)

// CaptureService drives the fixed-period capture loop: elevation, profile,
// frame acquisition with bounded retries, durable persistence, registration
// with retention, and snapshot publication.
type CaptureService struct {
	coord     cosmicam.GeoCoordinate
	cfg       config.CaptureConfig
	selector  *Selector
	camera    CameraDevice
	images    repository.ImageRepo
	events    repository.EventRepo
	retention Retention
	pub       *Publisher
	log       *logger.Logger
}

func NewCaptureService(
	coord cosmicam.GeoCoordinate,
	cfg config.CaptureConfig,
	selector *Selector,
	camera CameraDevice,
	images repository.ImageRepo,
	events repository.EventRepo,
	retention Retention,
	pub *Publisher,
	log *logger.Logger,
) *CaptureService {
	return &CaptureService{
		coord:     coord,
		cfg:       cfg,
		selector:  selector,
		camera:    camera,
		images:    images,
		events:    events,
		retention: retention,
		pub:       pub,
		log:       log,
	}
}

// Run ticks at the configured interval until ctx is canceled. Each cycle
// runs to completion, retries included, before the loop sleeps again. The
// returned error is always configuration-class and fatal.
func (s *CaptureService) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.ImageDir, 0o755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}

	// First frame immediately; a fresh boot should not wait a full interval.
	if err := s.cycle(ctx, time.Now()); err != nil {
		return err
	}

	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			if err := s.cycle(ctx, now); err != nil {
				return err
			}
		}
	}
}

// cycle performs one full capture pass. Capture failures are absorbed here;
// only invalid configuration propagates.
func (s *CaptureService) cycle(ctx context.Context, now time.Time) error {
	elevation, err := solar.Elevation(s.coord, now)
	if err != nil {
		return err // coordinates are validated at startup; reaching this is fatal
	}

	prevPhase, _ := s.selector.Current()
	phase, changed := s.selector.Evaluate(elevation, now)
	profile := s.selector.Profile(phase)

	if changed {
		direction := "darkening"
		if phase.DarknessRank() < prevPhase.DarknessRank() {
			direction = "brightening"
		}
		s.log.Infow("profile transition", "from", prevPhase, "to", phase, "direction", direction, "elevation_deg", elevation)
		s.appendEvent(ctx, cosmicam.SystemEvent{
			OccurredAt:  now.UTC(),
			Type:        cosmicam.EventProfileChange,
			Description: fmt.Sprintf("profile changed %s -> %s", prevPhase, phase),
			Metadata:    map[string]any{"from": prevPhase, "to": phase, "direction": direction, "elevation_deg": elevation},
		})
	}

	started := time.Now()
	frame, err := s.captureWithRetry(ctx, profile)
	if err != nil {
		s.log.Errorw("capture failed, keeping previous image", "err", err, "phase", phase)
		s.appendEvent(ctx, cosmicam.SystemEvent{
			OccurredAt:  now.UTC(),
			Type:        cosmicam.EventCaptureError,
			Description: "capture failed after retries",
			Metadata:    map[string]any{"error": err.Error(), "phase": phase, "attempts": s.cfg.Retries},
		})
		s.publish(now, elevation, phase, profile, nil)
		return nil
	}

	img, err := s.persist(ctx, frame, now, phase, profile)
	if err != nil {
		s.log.Errorw("persisting frame failed", "err", err)
		s.appendEvent(ctx, cosmicam.SystemEvent{
			OccurredAt:  now.UTC(),
			Type:        cosmicam.EventCaptureError,
			Description: "persisting captured frame failed",
			Metadata:    map[string]any{"error": err.Error()},
		})
		s.publish(now, elevation, phase, profile, nil)
		return nil
	}

	// Registration happens strictly after the durable write; retention can
	// therefore never observe a mid-write image.
	s.retention.Register(img)
	s.publish(now, elevation, phase, profile, &img)

	s.log.Infow("captured image", "path", img.Path, "size_bytes", img.SizeBytes, "phase", phase, "took", time.Since(started).Round(time.Millisecond))
	return nil
}

// captureWithRetry attempts the camera call with a per-attempt timeout and
// multiplicative backoff between attempts.
func (s *CaptureService) captureWithRetry(ctx context.Context, profile cosmicam.CaptureProfile) ([]byte, error) {
	backoff := s.cfg.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= s.cfg.Retries; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		frame, err := s.camera.Capture(cctx, profile)
		cancel()
		if err == nil {
			return frame, nil
		}
		lastErr = err
		s.log.Warnw("capture attempt failed", "attempt", attempt, "of", s.cfg.Retries, "err", err)

		if attempt == s.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

// persist writes the frame to a temp file, syncs, renames into place and
// records the metadata row. Only after all of that is the image considered
// captured.
func (s *CaptureService) persist(ctx context.Context, frame []byte, now time.Time, phase cosmicam.SolarPhase, profile cosmicam.CaptureProfile) (cosmicam.CapturedImage, error) {
	filename := "image_" + now.UTC().Format("20060102_150405") + ".jpg"
	path := filepath.Join(s.cfg.ImageDir, filename)

	if err := writeDurable(path, frame); err != nil {
		return cosmicam.CapturedImage{}, err
	}

	img := cosmicam.CapturedImage{
		ID:        uuid.NewString(),
		Path:      path,
		SizeBytes: int64(len(frame)),
		CreatedAt: now.UTC(),
		Phase:     phase,
		Settings:  profile,
	}
	if err := s.images.Insert(ctx, img); err != nil {
		return cosmicam.CapturedImage{}, fmt.Errorf("index image metadata: %w", err)
	}
	return img, nil
}

func writeDurable(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// publish replaces the status snapshot. img == nil means this cycle failed:
// the previous latest image is retained and the failure streak grows.
func (s *CaptureService) publish(now time.Time, elevation float64, phase cosmicam.SolarPhase, profile cosmicam.CaptureProfile, img *cosmicam.CapturedImage) {
	s.pub.Update(func(prev cosmicam.StatusSnapshot) cosmicam.StatusSnapshot {
		next := prev
		next.SolarPhase = phase
		next.ElevationDeg = elevation
		next.CameraSettings = profile
		if img != nil {
			next.LatestImage = img
			next.ConsecutiveFailures = 0
		} else {
			next.ConsecutiveFailures++
		}
		next.GeneratedAt = now.UTC()
		return next
	})
}

func (s *CaptureService) appendEvent(ctx context.Context, e cosmicam.SystemEvent) {
	if err := s.events.Append(ctx, e); err != nil {
		s.log.Warnw("append event failed", "type", e.Type, "err", err)
	}
}
