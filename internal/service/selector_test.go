package service

import (
	"testing"
	"time"

	"cosmicam"
	"cosmicam/internal/config"
)

func newTestSelector(t *testing.T, dwell time.Duration) *Selector {
	t.Helper()
	sel, err := NewSelector(config.SelectorConfig{Thresholds: testThresholds(), Dwell: dwell}, testCatalog())
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	return sel
}

func TestNewSelector_RejectsIncompleteCatalog(t *testing.T) {
	catalog := testCatalog()
	delete(catalog, cosmicam.PhaseNight)

	if _, err := NewSelector(config.SelectorConfig{Thresholds: testThresholds()}, catalog); err == nil {
		t.Fatal("expected error for catalog missing the night profile")
	}
}

func TestClassify_Boundaries(t *testing.T) {
	sel := newTestSelector(t, 0)

	tests := []struct {
		elevation float64
		want      cosmicam.SolarPhase
	}{
		{45, cosmicam.PhaseDay},
		{10, cosmicam.PhaseDay},
		{6, cosmicam.PhaseDay},
		{5.9, cosmicam.PhaseCivilTwilight},
		{0, cosmicam.PhaseCivilTwilight},
		{-6, cosmicam.PhaseCivilTwilight}, // boundary belongs to the brighter phase
		{-6.1, cosmicam.PhaseNauticalTwilight},
		{-10, cosmicam.PhaseNauticalTwilight},
		{-12, cosmicam.PhaseNauticalTwilight},
		{-12.1, cosmicam.PhaseAstronomicalTwilight},
		{-17.9, cosmicam.PhaseAstronomicalTwilight},
		{-18, cosmicam.PhaseAstronomicalTwilight},
		{-18.1, cosmicam.PhaseNight},
		{-60, cosmicam.PhaseNight},
	}
	for _, tc := range tests {
		if got := sel.Classify(tc.elevation); got != tc.want {
			t.Fatalf("Classify(%.1f) = %s, want %s", tc.elevation, got, tc.want)
		}
	}
}

func TestEvaluate_FirstSampleAdoptsPhaseImmediately(t *testing.T) {
	sel := newTestSelector(t, 2*time.Minute)
	now := time.Date(2025, 6, 21, 0, 43, 0, 0, time.UTC)

	phase, changed := sel.Evaluate(10, now)
	if phase != cosmicam.PhaseDay {
		t.Fatalf("got %s, want day", phase)
	}
	if changed {
		t.Fatal("first adoption must not report a transition")
	}
}

func TestEvaluate_TransitionCommitsOnlyAfterDwell(t *testing.T) {
	dwell := 2 * time.Minute
	sel := newTestSelector(t, dwell)
	t0 := time.Date(2025, 6, 21, 2, 0, 0, 0, time.UTC)

	sel.Evaluate(10, t0) // day

	// Candidate moves to civil twilight; dwell has not elapsed yet.
	if phase, changed := sel.Evaluate(0, t0.Add(30*time.Second)); phase != cosmicam.PhaseDay || changed {
		t.Fatalf("premature transition: phase=%s changed=%v", phase, changed)
	}
	if phase, _ := sel.Evaluate(0, t0.Add(90*time.Second)); phase != cosmicam.PhaseDay {
		t.Fatalf("still within dwell, got %s", phase)
	}

	// Dwell elapsed with the candidate held continuously.
	phase, changed := sel.Evaluate(0, t0.Add(30*time.Second+dwell))
	if phase != cosmicam.PhaseCivilTwilight || !changed {
		t.Fatalf("expected committed civil_twilight, got phase=%s changed=%v", phase, changed)
	}
}

func TestEvaluate_DwellTimerResetsWhenCandidateReverts(t *testing.T) {
	dwell := 2 * time.Minute
	sel := newTestSelector(t, dwell)
	t0 := time.Date(2025, 6, 21, 2, 0, 0, 0, time.UTC)

	sel.Evaluate(10, t0)                           // day
	sel.Evaluate(0, t0.Add(1*time.Minute))         // candidate: civil
	sel.Evaluate(10, t0.Add(2*time.Minute))        // reverts to day, dwell resets
	phase, changed := sel.Evaluate(0, t0.Add(3*time.Minute)) // candidate restarts
	if phase != cosmicam.PhaseDay || changed {
		t.Fatalf("reset dwell should not commit: phase=%s changed=%v", phase, changed)
	}

	// Only after a fresh full dwell does the transition land.
	phase, changed = sel.Evaluate(0, t0.Add(3*time.Minute).Add(dwell))
	if phase != cosmicam.PhaseCivilTwilight || !changed {
		t.Fatalf("expected commit after fresh dwell, got phase=%s changed=%v", phase, changed)
	}
}

// Anti-flap property: over an elevation trace oscillating around a boundary,
// no two committed transitions are ever closer than the dwell window.
func TestEvaluate_NeverCommitsTwiceWithinDwellWindow(t *testing.T) {
	dwell := 2 * time.Minute
	sel := newTestSelector(t, dwell)
	t0 := time.Date(2025, 6, 21, 2, 0, 0, 0, time.UTC)

	// Oscillate around the day/civil boundary (+6) every 20s for two hours,
	// with longer stable stretches mixed in so some transitions do commit.
	var commits []time.Time
	for i := 0; i < 360; i++ {
		now := t0.Add(time.Duration(i) * 20 * time.Second)
		var elevation float64
		switch {
		case i%90 < 30:
			elevation = 6.5 // day
		case i%90 < 60:
			elevation = 5.5 // civil
		default:
			// rapid jitter around the boundary
			if i%2 == 0 {
				elevation = 6.2
			} else {
				elevation = 5.8
			}
		}
		if _, changed := sel.Evaluate(elevation, now); changed {
			commits = append(commits, now)
		}
	}

	if len(commits) == 0 {
		t.Fatal("trace should have produced at least one committed transition")
	}
	for i := 1; i < len(commits); i++ {
		if gap := commits[i].Sub(commits[i-1]); gap < dwell {
			t.Fatalf("transitions %d and %d only %v apart, dwell is %v", i-1, i, gap, dwell)
		}
	}
}

func TestProfile_RoundTripsCatalogEntry(t *testing.T) {
	catalog := testCatalog()
	sel, err := NewSelector(config.SelectorConfig{Thresholds: testThresholds(), Dwell: time.Minute}, catalog)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	for _, phase := range cosmicam.Phases {
		if got := sel.Profile(phase); got != catalog[phase] {
			t.Fatalf("Profile(%s) = %+v, want %+v", phase, got, catalog[phase])
		}
	}
}

// Scenario from the site coordinate (32.75, -97.33): elevation +10 selects
// Day, elevation -10 selects NauticalTwilight.
func TestEvaluate_ScenarioElevations(t *testing.T) {
	now := time.Date(2025, 6, 21, 0, 43, 0, 0, time.UTC)

	sel := newTestSelector(t, 2*time.Minute)
	if phase, _ := sel.Evaluate(10, now); phase != cosmicam.PhaseDay {
		t.Fatalf("+10 deg: got %s, want day", phase)
	}

	sel = newTestSelector(t, 2*time.Minute)
	if phase, _ := sel.Evaluate(-10, now); phase != cosmicam.PhaseNauticalTwilight {
		t.Fatalf("-10 deg: got %s, want nautical_twilight", phase)
	}
}
