package persona

import (
	"math/rand"
	"sync"
	"time"
)

// State is the process-wide persona: one emotional state and one trait map
// shared across every room and platform. The persona is global, not
// per-conversation. Construct one State and inject it; the mutex makes it
// safe under real parallelism.
type State struct {
	mu sync.RWMutex

	emotion    Emotion
	intensity  float64
	triggers   []string
	lastUpdate time.Time

	traits map[string]float64

	persistence time.Duration
	rng         *rand.Rand
	now         func() time.Time
}

// Option tweaks a State at construction time.
type Option func(*State)

// WithRand injects a seeded randomness source so tests can force branches.
func WithRand(r *rand.Rand) Option {
	return func(s *State) { s.rng = r }
}

// WithClock injects a clock for decay tests.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithPersistence overrides the emotional persistence window.
func WithPersistence(d time.Duration) Option {
	return func(s *State) { s.persistence = d }
}

// WithTraits replaces the default trait map.
func WithTraits(traits map[string]float64) Option {
	return func(s *State) {
		s.traits = make(map[string]float64, len(traits))
		for k, v := range traits {
			s.traits[k] = clampTrait(v)
		}
	}
}

// NewState creates a persona at the calm baseline with default traits.
func NewState(opts ...Option) *State {
	s := &State{
		emotion:     EmotionCalm,
		intensity:   intensityFloor,
		traits:      defaultTraits(),
		persistence: 30 * time.Minute,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastUpdate = s.now()
	return s
}

func clampTrait(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
