// Package runner drives the persona's background rhythm: emotional decay,
// personality drift, and per-user tracker sweeps.
package runner

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"nubi/internal/persona"
	"nubi/internal/security"
	"nubi/internal/staleness"
)

// Intervals configures how often each background tick fires.
type Intervals struct {
	EmotionDecay time.Duration
	TraitDrift   time.Duration
	TrackerSweep time.Duration
}

// DefaultIntervals returns the stock cadence.
func DefaultIntervals() Intervals {
	return Intervals{
		EmotionDecay: 5 * time.Minute,
		TraitDrift:   time.Hour,
		TrackerSweep: time.Hour,
	}
}

// Runner owns the cron schedule. Start it once; Stop waits for in-flight
// ticks to finish.
type Runner struct {
	cron     *cron.Cron
	state    *persona.State
	detector *staleness.Detector
	screener *security.Screener
	ivals    Intervals
}

// New builds a runner over the shared persona state, staleness detector,
// and security screener.
func New(state *persona.State, detector *staleness.Detector, screener *security.Screener, ivals Intervals) *Runner {
	return &Runner{
		cron:     cron.New(),
		state:    state,
		detector: detector,
		screener: screener,
		ivals:    ivals,
	}
}

// Start registers the ticks and launches the schedule.
func (r *Runner) Start() error {
	if _, err := r.cron.AddFunc("@every "+r.ivals.EmotionDecay.String(), r.decayTick); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc("@every "+r.ivals.TraitDrift.String(), r.driftTick); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc("@every "+r.ivals.TrackerSweep.String(), r.sweepTick); err != nil {
		return err
	}
	r.cron.Start()
	log.Info().
		Dur("decay", r.ivals.EmotionDecay).
		Dur("drift", r.ivals.TraitDrift).
		Dur("sweep", r.ivals.TrackerSweep).
		Msg("background runner started")
	return nil
}

// Stop halts the schedule and blocks until running ticks complete.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Runner) decayTick() {
	r.state.DecayTick()
}

func (r *Runner) driftTick() {
	r.state.DriftTick()
}

func (r *Runner) sweepTick() {
	if n := r.detector.Sweep(); n > 0 {
		log.Debug().Int("evicted", n).Msg("staleness tracker swept")
	}
	if n := r.screener.Sweep(r.ivals.TrackerSweep); n > 0 {
		log.Debug().Int("evicted", n).Msg("flood limiters swept")
	}
}
