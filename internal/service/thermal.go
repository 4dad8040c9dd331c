package service

import (
	"context"
	"fmt"
	"time"

	"cosmicam"
	"cosmicam/internal/config"
	"cosmicam/internal/logger"
	"cosmicam/internal/repository"
)

// ThermalService is the independent cooling loop: read temperature, resolve
// the hysteresis band, drive the PWM output, publish thermal state.
type ThermalService struct {
	cfg    config.ThermalConfig
	sensor TemperatureSensor
	pwm    PWMOutput
	events repository.EventRepo
	pub    *Publisher
	log    *logger.Logger

	// Loop-owned state; touched only by Run's goroutine.
	bandIndex int
	lastTempC float64
}

func NewThermalService(
	cfg config.ThermalConfig,
	sensor TemperatureSensor,
	pwm PWMOutput,
	events repository.EventRepo,
	pub *Publisher,
	log *logger.Logger,
) *ThermalService {
	return &ThermalService{
		cfg:    cfg,
		sensor: sensor,
		pwm:    pwm,
		events: events,
		pub:    pub,
		log:    log,
	}
}

// Run ticks at the configured interval until ctx is canceled. Sensor
// failures hold the previous duty cycle and are never fatal.
func (s *ThermalService) Run(ctx context.Context) {
	// Start from the base band so the fan state is defined before the first
	// reading arrives.
	s.applyDuty(s.cfg.Bands[0].DutyPercent)
	s.cycle(ctx, time.Now())

	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.cycle(ctx, now)
		}
	}
}

func (s *ThermalService) cycle(ctx context.Context, now time.Time) {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.SensorTimeout)
	tempC, err := s.sensor.Read(rctx)
	cancel()
	if err != nil {
		s.log.Warnw("sensor read failed, holding duty cycle", "err", err, "duty_percent", s.cfg.Bands[s.bandIndex].DutyPercent)
		s.appendEvent(ctx, cosmicam.SystemEvent{
			OccurredAt:  now.UTC(),
			Type:        cosmicam.EventSensorError,
			Description: "temperature sensor read failed",
			Metadata:    map[string]any{"error": err.Error()},
		})
		s.publish(now, s.lastTempC, false)
		return
	}
	s.lastTempC = tempC

	prev := s.bandIndex
	s.bandIndex = s.resolveBand(tempC)
	if s.bandIndex != prev {
		from, to := s.cfg.Bands[prev], s.cfg.Bands[s.bandIndex]
		s.log.Infow("thermal band change", "temp_c", tempC, "from_duty", from.DutyPercent, "to_duty", to.DutyPercent)
		s.appendEvent(ctx, cosmicam.SystemEvent{
			OccurredAt:  now.UTC(),
			Type:        cosmicam.EventThermalBand,
			Description: fmt.Sprintf("fan duty %d%% -> %d%%", from.DutyPercent, to.DutyPercent),
			Metadata:    map[string]any{"temp_c": tempC, "band_index": s.bandIndex},
		})
	}

	s.applyDuty(s.cfg.Bands[s.bandIndex].DutyPercent)
	s.publish(now, tempC, true)
}

// resolveBand applies the overlapping hysteresis thresholds: escalate only
// when the temperature clears the next band's entry threshold, de-escalate
// only when it drops below the current band's exit threshold. Inside the
// overlap the band holds, which is what prevents duty-cycle chatter.
func (s *ThermalService) resolveBand(tempC float64) int {
	idx := s.bandIndex
	for idx+1 < len(s.cfg.Bands) && tempC > s.cfg.Bands[idx+1].EnterAboveC {
		idx++
	}
	for idx > 0 && tempC < s.cfg.Bands[idx].ExitBelowC {
		idx--
	}
	return idx
}

func (s *ThermalService) applyDuty(percent int) {
	if err := s.pwm.SetDuty(percent); err != nil {
		s.log.Errorw("pwm output failed", "duty_percent", percent, "err", err)
	}
}

func (s *ThermalService) publish(now time.Time, tempC float64, sensorOK bool) {
	state := cosmicam.ThermalState{
		TemperatureC:     tempC,
		DutyCyclePercent: s.cfg.Bands[s.bandIndex].DutyPercent,
		BandIndex:        s.bandIndex,
		SensorOK:         sensorOK,
		UpdatedAt:        now.UTC(),
	}
	s.pub.Update(func(prev cosmicam.StatusSnapshot) cosmicam.StatusSnapshot {
		next := prev
		next.Thermal = state
		next.GeneratedAt = now.UTC()
		return next
	})
}

func (s *ThermalService) appendEvent(ctx context.Context, e cosmicam.SystemEvent) {
	if err := s.events.Append(ctx, e); err != nil {
		s.log.Warnw("append event failed", "type", e.Type, "err", err)
	}
}
