package config

import (
	"fmt"
	"time"

	"cosmicam"

	"github.com/spf13/viper"
)

// Config is the full validated runtime configuration. It is loaded once at
// startup; the loops never read viper directly.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	Port     string `mapstructure:"port"`

	DB struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"db"`

	Coordinates cosmicam.GeoCoordinate `mapstructure:"coordinates"`

	// Profiles is the capture profile catalog keyed by phase name.
	// Every solar phase must have an entry.
	Profiles map[string]ProfileConfig `mapstructure:"camera_profiles"`

	Selector  SelectorConfig  `mapstructure:"selector"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Thermal   ThermalConfig   `mapstructure:"thermal"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// ProfileConfig is one catalog entry as written in YAML.
type ProfileConfig struct {
	ShutterMicros int64   `mapstructure:"shutter_micros"`
	Gain          float64 `mapstructure:"gain"`
	Brightness    float64 `mapstructure:"brightness"`
	Contrast      float64 `mapstructure:"contrast"`
}

// SelectorConfig holds the phase boundaries and the anti-flap dwell.
// A candidate phase must hold continuously for Dwell before it is committed.
type SelectorConfig struct {
	Thresholds PhaseThresholds `mapstructure:"thresholds"`
	Dwell      time.Duration   `mapstructure:"dwell"`
}

// PhaseThresholds are minimum elevation angles (degrees) per phase; a phase
// applies at or above its minimum. Night is everything below AstronomicalMin.
type PhaseThresholds struct {
	DayMinDeg          float64 `mapstructure:"day_min_deg"`
	CivilMinDeg        float64 `mapstructure:"civil_min_deg"`
	NauticalMinDeg     float64 `mapstructure:"nautical_min_deg"`
	AstronomicalMinDeg float64 `mapstructure:"astronomical_min_deg"`
}

// CaptureConfig tunes the capture loop.
type CaptureConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	ImageDir     string        `mapstructure:"image_dir"`
}

// ThermalConfig tunes the thermal loop. Bands must be ordered coolest first;
// Bands[0] is the base band and its enter/exit temperatures are ignored.
type ThermalConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	SensorTimeout time.Duration `mapstructure:"sensor_timeout"`
	Bands         []ThermalBand `mapstructure:"bands"`
}

// ThermalBand maps a temperature region to a fan duty cycle. EnterAboveC and
// ExitBelowC overlap (enter > exit) so a band is sticky near its boundary.
type ThermalBand struct {
	DutyPercent int     `mapstructure:"duty_percent"`
	EnterAboveC float64 `mapstructure:"enter_above_c"`
	ExitBelowC  float64 `mapstructure:"exit_below_c"`
}

// RetentionConfig bounds image storage. A zero budget disables that
// dimension; at least one must be set.
type RetentionConfig struct {
	MaxBytes      int64         `mapstructure:"max_bytes"`
	MaxCount      int           `mapstructure:"max_count"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Load reads configs/config.yml via viper and returns a validated Config.
func Load() (*Config, error) {
	viper.AddConfigPath("configs")
	viper.SetConfigName("config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// defaults mirror the values the system shipped with: DFW coordinates,
// standard twilight boundaries, 60s captures, 20 GB of images.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.DB.Path == "" {
		c.DB.Path = "cosmicam.db"
	}
	if c.Coordinates == (cosmicam.GeoCoordinate{}) {
		c.Coordinates = cosmicam.GeoCoordinate{Latitude: 32.75, Longitude: -97.33}
	}
	z := PhaseThresholds{}
	if c.Selector.Thresholds == z {
		c.Selector.Thresholds = PhaseThresholds{
			DayMinDeg:          -0.833, // sun's upper limb at the horizon
			CivilMinDeg:        -6,
			NauticalMinDeg:     -12,
			AstronomicalMinDeg: -18,
		}
	}
	if c.Selector.Dwell == 0 {
		c.Selector.Dwell = 2 * time.Minute
	}
	if c.Capture.Interval == 0 {
		c.Capture.Interval = 60 * time.Second
	}
	if c.Capture.Timeout == 0 {
		c.Capture.Timeout = 30 * time.Second
	}
	if c.Capture.Retries == 0 {
		c.Capture.Retries = 3
	}
	if c.Capture.RetryBackoff == 0 {
		c.Capture.RetryBackoff = 2 * time.Second
	}
	if c.Capture.ImageDir == "" {
		c.Capture.ImageDir = "images"
	}
	if c.Thermal.Interval == 0 {
		c.Thermal.Interval = 60 * time.Second
	}
	if c.Thermal.SensorTimeout == 0 {
		c.Thermal.SensorTimeout = 5 * time.Second
	}
	if len(c.Thermal.Bands) == 0 {
		c.Thermal.Bands = []ThermalBand{
			{DutyPercent: 0},
			{DutyPercent: 10, EnterAboveC: 40, ExitBelowC: 37},
			{DutyPercent: 30, EnterAboveC: 45, ExitBelowC: 42},
			{DutyPercent: 50, EnterAboveC: 50, ExitBelowC: 47},
			{DutyPercent: 70, EnterAboveC: 55, ExitBelowC: 52},
			{DutyPercent: 100, EnterAboveC: 60, ExitBelowC: 57},
		}
	}
	if c.Retention.MaxBytes == 0 && c.Retention.MaxCount == 0 {
		c.Retention.MaxBytes = 20 << 30 // 20 GB
	}
	if c.Retention.SweepInterval == 0 {
		c.Retention.SweepInterval = 15 * time.Minute
	}
	if len(c.Profiles) == 0 {
		c.Profiles = defaultProfiles()
	}
}

func defaultProfiles() map[string]ProfileConfig {
	return map[string]ProfileConfig{
		string(cosmicam.PhaseDay):                  {ShutterMicros: 0, Gain: 0, Brightness: 0, Contrast: 1.0},
		string(cosmicam.PhaseCivilTwilight):        {ShutterMicros: 100_000, Gain: 1.5, Brightness: 0.2, Contrast: 1.1},
		string(cosmicam.PhaseNauticalTwilight):     {ShutterMicros: 1_000_000, Gain: 1.8, Brightness: 0.3, Contrast: 1.2},
		string(cosmicam.PhaseAstronomicalTwilight): {ShutterMicros: 3_000_000, Gain: 2.0, Brightness: 0.4, Contrast: 1.3},
		string(cosmicam.PhaseNight):                {ShutterMicros: 6_000_000, Gain: 2.0, Brightness: 0.5, Contrast: 1.4},
	}
}

// Validate fails fast on anything the loops would otherwise trip over at
// runtime: a missing catalog entry, unordered thresholds, bands without
// overlap, or a non-positive interval.
func (c *Config) Validate() error {
	if err := c.Coordinates.Validate(); err != nil {
		return err
	}
	for _, phase := range cosmicam.Phases {
		if _, ok := c.Profiles[string(phase)]; !ok {
			return fmt.Errorf("camera_profiles: missing entry for phase %q", phase)
		}
	}
	t := c.Selector.Thresholds
	if !(t.DayMinDeg > t.CivilMinDeg && t.CivilMinDeg > t.NauticalMinDeg && t.NauticalMinDeg > t.AstronomicalMinDeg) {
		return fmt.Errorf("selector.thresholds: boundaries must strictly decrease day > civil > nautical > astronomical")
	}
	if c.Selector.Dwell < 0 {
		return fmt.Errorf("selector.dwell must not be negative")
	}
	if c.Capture.Interval <= 0 || c.Capture.Timeout <= 0 || c.Capture.RetryBackoff <= 0 {
		return fmt.Errorf("capture: interval, timeout and retry_backoff must be positive")
	}
	if c.Capture.Retries < 1 {
		return fmt.Errorf("capture.retries must be at least 1")
	}
	if c.Capture.ImageDir == "" {
		return fmt.Errorf("capture.image_dir is required")
	}
	if c.Thermal.Interval <= 0 {
		return fmt.Errorf("thermal.interval must be positive")
	}
	if err := validateBands(c.Thermal.Bands); err != nil {
		return err
	}
	if c.Retention.MaxBytes < 0 || c.Retention.MaxCount < 0 {
		return fmt.Errorf("retention: budgets must not be negative")
	}
	if c.Retention.MaxBytes == 0 && c.Retention.MaxCount == 0 {
		return fmt.Errorf("retention: at least one of max_bytes or max_count is required")
	}
	if c.Retention.SweepInterval <= 0 {
		return fmt.Errorf("retention.sweep_interval must be positive")
	}
	return nil
}

func validateBands(bands []ThermalBand) error {
	if len(bands) < 2 {
		return fmt.Errorf("thermal.bands: at least a base band and one active band are required")
	}
	for i, b := range bands {
		if b.DutyPercent < 0 || b.DutyPercent > 100 {
			return fmt.Errorf("thermal.bands[%d]: duty_percent %d out of range", i, b.DutyPercent)
		}
		if i == 0 {
			continue // base band, thresholds unused
		}
		if b.ExitBelowC >= b.EnterAboveC {
			return fmt.Errorf("thermal.bands[%d]: exit_below_c must be below enter_above_c for hysteresis", i)
		}
		if b.DutyPercent <= bands[i-1].DutyPercent {
			return fmt.Errorf("thermal.bands[%d]: duty_percent must increase with temperature", i)
		}
		if i > 1 && b.EnterAboveC <= bands[i-1].EnterAboveC {
			return fmt.Errorf("thermal.bands[%d]: enter_above_c must increase with band index", i)
		}
	}
	return nil
}

// Catalog converts the raw profile map into the typed catalog the selector
// consumes. Call only after Validate.
func (c *Config) Catalog() map[cosmicam.SolarPhase]cosmicam.CaptureProfile {
	out := make(map[cosmicam.SolarPhase]cosmicam.CaptureProfile, len(c.Profiles))
	for name, p := range c.Profiles {
		phase := cosmicam.SolarPhase(name)
		out[phase] = cosmicam.CaptureProfile{
			Phase:         phase,
			ShutterMicros: p.ShutterMicros,
			Gain:          p.Gain,
			Brightness:    p.Brightness,
			Contrast:      p.Contrast,
		}
	}
	return out
}
