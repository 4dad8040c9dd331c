package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"cosmicam"
	"cosmicam/internal/config"
	"cosmicam/internal/logger"
	"cosmicam/internal/repository"
)

// ---- Shared test doubles ----

func testLog() *logger.Logger { return logger.Get(logger.ErrorLevel) }

func testCatalog() map[cosmicam.SolarPhase]cosmicam.CaptureProfile {
	out := make(map[cosmicam.SolarPhase]cosmicam.CaptureProfile, len(cosmicam.Phases))
	for i, phase := range cosmicam.Phases {
		out[phase] = cosmicam.CaptureProfile{
			Phase:         phase,
			ShutterMicros: int64(i) * 100_000,
			Gain:          float64(i) * 0.5,
			Contrast:      1.0,
		}
	}
	return out
}

// testThresholds are the boundaries used throughout the scenario tests:
// Day >= +6, Civil [-6,+6), Nautical [-12,-6), Astronomical [-18,-12), Night < -18.
func testThresholds() config.PhaseThresholds {
	return config.PhaseThresholds{
		DayMinDeg:          6,
		CivilMinDeg:        -6,
		NauticalMinDeg:     -12,
		AstronomicalMinDeg: -18,
	}
}

// memImageRepo is an in-memory repository.ImageRepo.
type memImageRepo struct {
	mu        sync.Mutex
	images    []cosmicam.CapturedImage
	insertErr error
	deleteErr map[string]error
	deleted   []string
}

var _ repository.ImageRepo = (*memImageRepo)(nil)

func (m *memImageRepo) Insert(ctx context.Context, img cosmicam.CapturedImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.images = append(m.images, img)
	return nil
}

func (m *memImageRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[id]; err != nil {
		return err
	}
	for i, img := range m.images {
		if img.ID == id {
			m.images = append(m.images[:i], m.images[i+1:]...)
			break
		}
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memImageRepo) Latest(ctx context.Context) (cosmicam.CapturedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.images) == 0 {
		return cosmicam.CapturedImage{}, repository.ErrNoImages
	}
	latest := m.images[0]
	for _, img := range m.images[1:] {
		if img.CreatedAt.After(latest.CreatedAt) {
			latest = img
		}
	}
	return latest, nil
}

func (m *memImageRepo) OldestFirst(ctx context.Context, limit int) ([]cosmicam.CapturedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]cosmicam.CapturedImage, len(m.images))
	copy(out, m.images)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memImageRepo) Usage(ctx context.Context) (int64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var bytes int64
	for _, img := range m.images {
		bytes += img.SizeBytes
	}
	return bytes, len(m.images), nil
}

// memEventRepo is an in-memory repository.EventRepo that records the
// normalized filter it last received.
type memEventRepo struct {
	mu       sync.Mutex
	appends  []cosmicam.SystemEvent
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

var _ repository.EventRepo = (*memEventRepo)(nil)

func (m *memEventRepo) Append(ctx context.Context, e cosmicam.SystemEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends = append(m.appends, e)
	return nil
}

func (m *memEventRepo) List(ctx context.Context, from, to time.Time, typ string) ([]cosmicam.SystemEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFrom, m.lastTo, m.lastType = from, to, typ
	out := make([]cosmicam.SystemEvent, len(m.appends))
	copy(out, m.appends)
	return out, nil
}

func (m *memEventRepo) byType(typ string) []cosmicam.SystemEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []cosmicam.SystemEvent
	for _, e := range m.appends {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// fakeCamera fails the first failCalls captures with err, then returns frame.
type fakeCamera struct {
	mu        sync.Mutex
	failCalls int
	err       error
	frame     []byte
	calls     int
}

func (f *fakeCamera) Capture(ctx context.Context, profile cosmicam.CaptureProfile) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failCalls {
		return nil, f.err
	}
	return f.frame, nil
}

// fakeSensor pops scripted readings; a nil entry's error is returned as-is.
type fakeSensor struct {
	readFn func() (float64, error)
}

func (f *fakeSensor) Read(ctx context.Context) (float64, error) { return f.readFn() }

// fakePWM records every duty cycle applied.
type fakePWM struct {
	mu     sync.Mutex
	duties []int
	err    error
}

func (f *fakePWM) SetDuty(percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.duties = append(f.duties, percent)
	return nil
}

func (f *fakePWM) last() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.duties) == 0 {
		return -1
	}
	return f.duties[len(f.duties)-1]
}

// fakeRetention records registrations without sweeping.
type fakeRetention struct {
	mu   sync.Mutex
	regs []cosmicam.CapturedImage
}

func (f *fakeRetention) Run(ctx context.Context) {}

func (f *fakeRetention) Register(img cosmicam.CapturedImage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs = append(f.regs, img)
}
