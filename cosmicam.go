package cosmicam

import (
	"errors"
	"fmt"
	"time"
)

// SolarPhase names a band of solar elevation, from full daylight down to
// astronomical night.
type SolarPhase string

const (
	PhaseDay                  SolarPhase = "day"
	PhaseCivilTwilight        SolarPhase = "civil_twilight"
	PhaseNauticalTwilight     SolarPhase = "nautical_twilight"
	PhaseAstronomicalTwilight SolarPhase = "astronomical_twilight"
	PhaseNight                SolarPhase = "night"
)

// Phases lists every phase in order of increasing darkness.
var Phases = []SolarPhase{
	PhaseDay,
	PhaseCivilTwilight,
	PhaseNauticalTwilight,
	PhaseAstronomicalTwilight,
	PhaseNight,
}

// DarknessRank orders phases by darkness: day=0 .. night=4.
// Unknown phases rank darkest.
func (p SolarPhase) DarknessRank() int {
	for i, ph := range Phases {
		if p == ph {
			return i
		}
	}
	return len(Phases) - 1
}

// GeoCoordinate is a WGS84 position, degrees, east/north positive.
type GeoCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ErrInvalidCoordinate is returned when a coordinate is outside
// [-90,90] latitude or [-180,180] longitude.
var ErrInvalidCoordinate = errors.New("coordinate out of range")

// Validate checks the coordinate ranges.
func (g GeoCoordinate) Validate() error {
	if g.Latitude < -90 || g.Latitude > 90 {
		return fmt.Errorf("%w: latitude %.4f", ErrInvalidCoordinate, g.Latitude)
	}
	if g.Longitude < -180 || g.Longitude > 180 {
		return fmt.Errorf("%w: longitude %.4f", ErrInvalidCoordinate, g.Longitude)
	}
	return nil
}

// CaptureProfile is an immutable catalog entry of camera settings for one
// solar phase. Shutter of 0 means auto exposure; gain of 0 means auto gain.
type CaptureProfile struct {
	Phase         SolarPhase `json:"phase"`
	ShutterMicros int64      `json:"shutter_micros"`
	Gain          float64    `json:"gain"`
	Brightness    float64    `json:"brightness"`
	Contrast      float64    `json:"contrast"`
}

// CapturedImage is the durable metadata record of one captured frame.
// Created by the capture loop; deleted only by the retention manager.
type CapturedImage struct {
	ID        string         `json:"id"`
	Path      string         `json:"path"`
	SizeBytes int64          `json:"size_bytes"`
	CreatedAt time.Time      `json:"created_at"`
	Phase     SolarPhase     `json:"phase"`
	Settings  CaptureProfile `json:"settings"`
}

// ThermalState is the thermal loop's latest reading and output.
type ThermalState struct {
	TemperatureC     float64   `json:"temperature_c"`
	DutyCyclePercent int       `json:"duty_cycle_percent"`
	BandIndex        int       `json:"band_index"`
	SensorOK         bool      `json:"sensor_ok"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// StatusSnapshot is the complete published state of the system. Snapshots
// are immutable values; every publish replaces the whole snapshot.
type StatusSnapshot struct {
	LatestImage         *CapturedImage `json:"latest_image,omitempty"`
	SolarPhase          SolarPhase     `json:"solar_phase"`
	ElevationDeg        float64        `json:"elevation_deg"`
	CameraSettings      CaptureProfile `json:"camera_settings"`
	Thermal             ThermalState   `json:"thermal"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

// SystemEvent event types.
const (
	EventProfileChange = "PROFILE_CHANGE"
	EventCaptureError  = "CAPTURE_ERROR"
	EventSensorError   = "SENSOR_ERROR"
	EventThermalBand   = "THERMAL_BAND_CHANGE"
	EventEviction      = "RETENTION_EVICT"
)

// SystemEvent is a single append-only log entry.
type SystemEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}

// Capture failure classes surfaced by camera devices.
var (
	ErrDeviceBusy     = errors.New("camera device busy")
	ErrCaptureIO      = errors.New("camera i/o error")
	ErrCaptureTimeout = errors.New("camera capture timed out")
)
