package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmicam"
	"cosmicam/internal/repository"
)

func TestStatus_NotAvailableBeforeFirstPublish(t *testing.T) {
	svc := NewMonitoringService(NewPublisher(), &memImageRepo{}, &memEventRepo{})

	snap, ok := svc.Status()
	if ok {
		t.Fatal("expected ok=false before any publish")
	}
	if snap.LatestImage != nil {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestEvents_RejectsInvertedTimeRange(t *testing.T) {
	svc := NewMonitoringService(NewPublisher(), &memImageRepo{}, &memEventRepo{})

	from := time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	if _, err := svc.Events(context.Background(), LogFilter{From: from, To: to}); !errors.Is(err, errInvalidTimeRange) {
		t.Fatalf("got err=%v, want errInvalidTimeRange", err)
	}
}

func TestEvents_NormalizesTypeAndTimes(t *testing.T) {
	events := &memEventRepo{}
	svc := NewMonitoringService(NewPublisher(), &memImageRepo{}, events)

	loc := time.FixedZone("CDT", -5*3600)
	from := time.Date(2025, 6, 21, 10, 0, 0, 0, loc)

	if _, err := svc.Events(context.Background(), LogFilter{From: from, Type: " capture_error "}); err != nil {
		t.Fatalf("Events: %v", err)
	}
	if events.lastType != cosmicam.EventCaptureError {
		t.Fatalf("type passed through as %q, want %q", events.lastType, cosmicam.EventCaptureError)
	}
	if events.lastFrom.Location() != time.UTC {
		t.Fatalf("from not normalized to UTC: %v", events.lastFrom)
	}
}

func TestLatestImage_ReadsIndexWhenSnapshotEmpty(t *testing.T) {
	images := &memImageRepo{}
	svc := NewMonitoringService(NewPublisher(), images, &memEventRepo{})

	if _, err := svc.LatestImage(context.Background()); !errors.Is(err, repository.ErrNoImages) {
		t.Fatalf("got err=%v, want ErrNoImages on empty index", err)
	}

	old := cosmicam.CapturedImage{ID: "img-old", Path: "images/a.jpg", CreatedAt: time.Date(2025, 6, 21, 3, 0, 0, 0, time.UTC)}
	newest := cosmicam.CapturedImage{ID: "img-new", Path: "images/b.jpg", CreatedAt: time.Date(2025, 6, 21, 4, 0, 0, 0, time.UTC)}
	for _, img := range []cosmicam.CapturedImage{newest, old} {
		if err := images.Insert(context.Background(), img); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := svc.LatestImage(context.Background())
	if err != nil {
		t.Fatalf("LatestImage: %v", err)
	}
	if got.ID != newest.ID {
		t.Fatalf("LatestImage = %s, want %s", got.ID, newest.ID)
	}
}
