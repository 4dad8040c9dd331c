package service

import (
	"fmt"
	"time"

	"cosmicam"
	"cosmicam/internal/config"
)

// Selector maps solar elevation to a capture profile with dwell hysteresis.
// It owns the only profile state in the system and is driven solely by the
// capture loop, so it needs no locking.
type Selector struct {
	thresholds config.PhaseThresholds
	dwell      time.Duration
	catalog    map[cosmicam.SolarPhase]cosmicam.CaptureProfile

	current        cosmicam.SolarPhase
	candidate      cosmicam.SolarPhase
	candidateSince time.Time
	lastTransition time.Time
	started        bool
}

// NewSelector validates that the catalog covers every phase; a gap is a
// fatal configuration error, not a runtime fault.
func NewSelector(cfg config.SelectorConfig, catalog map[cosmicam.SolarPhase]cosmicam.CaptureProfile) (*Selector, error) {
	for _, phase := range cosmicam.Phases {
		if _, ok := catalog[phase]; !ok {
			return nil, fmt.Errorf("capture profile catalog: missing entry for phase %q", phase)
		}
	}
	return &Selector{
		thresholds: cfg.Thresholds,
		dwell:      cfg.Dwell,
		catalog:    catalog,
	}, nil
}

// Classify is the pure threshold mapping from elevation to phase.
func (s *Selector) Classify(elevationDeg float64) cosmicam.SolarPhase {
	t := s.thresholds
	switch {
	case elevationDeg >= t.DayMinDeg:
		return cosmicam.PhaseDay
	case elevationDeg >= t.CivilMinDeg:
		return cosmicam.PhaseCivilTwilight
	case elevationDeg >= t.NauticalMinDeg:
		return cosmicam.PhaseNauticalTwilight
	case elevationDeg >= t.AstronomicalMinDeg:
		return cosmicam.PhaseAstronomicalTwilight
	default:
		return cosmicam.PhaseNight
	}
}

// Evaluate feeds one elevation sample into the state machine and returns the
// committed phase. A differing candidate must hold continuously for the
// dwell duration before the transition commits; the dwell timer resets
// whenever the candidate reverts to the current phase. changed reports
// whether this evaluation committed a transition.
func (s *Selector) Evaluate(elevationDeg float64, now time.Time) (phase cosmicam.SolarPhase, changed bool) {
	cand := s.Classify(elevationDeg)

	if !s.started {
		// First sample adopts the phase outright; there is nothing to flap from.
		s.started = true
		s.current = cand
		s.candidate = cand
		s.lastTransition = now
		return s.current, false
	}

	if cand == s.current {
		s.candidate = s.current // reset dwell
		return s.current, false
	}

	if cand != s.candidate {
		s.candidate = cand
		s.candidateSince = now
	}

	if now.Sub(s.candidateSince) >= s.dwell {
		s.current = cand
		s.candidate = cand
		s.lastTransition = now
		return s.current, true
	}

	return s.current, false
}

// Profile resolves the catalog entry for a phase. The catalog was validated
// complete at construction, so the lookup cannot miss for known phases.
func (s *Selector) Profile(phase cosmicam.SolarPhase) cosmicam.CaptureProfile {
	return s.catalog[phase]
}

// Current returns the committed phase and when it was last entered.
func (s *Selector) Current() (cosmicam.SolarPhase, time.Time) {
	return s.current, s.lastTransition
}
