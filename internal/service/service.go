package service

import (
	"context"
	"time"

	"cosmicam"
	"cosmicam/internal/config"
	"cosmicam/internal/logger"
	"cosmicam/internal/repository"
)

// Hardware capabilities consumed by the loops. The camera is owned
// exclusively by the capture loop; the sensor and PWM output by the thermal
// loop. No cross-loop contention exists by construction.

// CameraDevice acquires one frame with the given profile's settings.
type CameraDevice interface {
	Capture(ctx context.Context, profile cosmicam.CaptureProfile) ([]byte, error)
}

// TemperatureSensor reads the instantaneous host temperature in Celsius.
type TemperatureSensor interface {
	Read(ctx context.Context) (float64, error)
}

// PWMOutput drives the fan at a duty cycle between 0 and 100 percent.
type PWMOutput interface {
	SetDuty(percent int) error
}

// Capture runs the capture loop until ctx is canceled. A non-nil return
// means a fatal configuration-class failure; transient capture errors never
// surface here.
type Capture interface {
	Run(ctx context.Context) error
}

// Thermal runs the cooling loop until ctx is canceled.
type Thermal interface {
	Run(ctx context.Context)
}

// Retention enforces the storage budget. Register hands over a durably
// written image; Run services registrations and periodic sweeps.
type Retention interface {
	Run(ctx context.Context)
	Register(img cosmicam.CapturedImage)
}

// Monitoring is the read-only surface consumed by the API layer.
type Monitoring interface {
	Status() (cosmicam.StatusSnapshot, bool)
	Events(ctx context.Context, f LogFilter) ([]cosmicam.SystemEvent, error)
	Images(ctx context.Context) ([]cosmicam.CapturedImage, error)
	LatestImage(ctx context.Context) (cosmicam.CapturedImage, error)
}

// LogFilter narrows an event listing.
type LogFilter struct {
	From time.Time
	To   time.Time
	Type string
}

// Service aggregates the loops and the read surface.
type Service struct {
	Capture
	Thermal
	Retention
	Monitoring
}

// Deps carries everything the services are wired from.
type Deps struct {
	Config *config.Config
	Repos  *repository.Repository
	Camera CameraDevice
	Sensor TemperatureSensor
	PWM    PWMOutput
	Log    *logger.Logger
}

// NewService wires the loops around a shared status publisher. Catalog
// completeness is checked here; a missing profile is fatal before any loop
// starts.
func NewService(d Deps) (*Service, error) {
	selector, err := NewSelector(d.Config.Selector, d.Config.Catalog())
	if err != nil {
		return nil, err
	}

	pub := NewPublisher()
	retention := NewRetentionService(d.Repos.Images, d.Repos.Events, d.Config.Retention, d.Log)

	return &Service{
		Capture:    NewCaptureService(d.Config.Coordinates, d.Config.Capture, selector, d.Camera, d.Repos.Images, d.Repos.Events, retention, pub, d.Log),
		Thermal:    NewThermalService(d.Config.Thermal, d.Sensor, d.PWM, d.Repos.Events, pub, d.Log),
		Retention:  retention,
		Monitoring: NewMonitoringService(pub, d.Repos.Images, d.Repos.Events),
	}, nil
}
