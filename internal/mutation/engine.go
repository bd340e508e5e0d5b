// Package mutation perturbs the surface form of drafted replies so they read
// as human-typed: typos, slang, punctuation variance, hedges. Transforms
// never change what a reply means, only how it looks.
package mutation

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// DoubleSentinel inside a humanized reply tells the caller to emit two
// sequential messages instead of one.
const DoubleSentinel = "||DOUBLE||"

// maxAppliedPatterns bounds the per-conversation pattern history.
const maxAppliedPatterns = 10

// Context carries per-conversation state the transforms may read. One
// Context is shared across all messages from a user, so its mutable fields
// are guarded for concurrent Process calls.
type Context struct {
	UserID string

	mu                 sync.Mutex
	emotionalIntensity float64  // 0..100
	appliedPatterns    []string // most recent first capped at maxAppliedPatterns
}

// SetIntensity records the current emotional intensity for the transforms.
func (c *Context) SetIntensity(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emotionalIntensity = v
}

// Intensity returns the last recorded emotional intensity.
func (c *Context) Intensity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emotionalIntensity
}

// Patterns returns a copy of the recent mutation names, oldest first.
func (c *Context) Patterns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.appliedPatterns...)
}

// recordPattern appends a mutation name, keeping only the most recent entries.
func (c *Context) recordPattern(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appliedPatterns = append(c.appliedPatterns, name)
	if len(c.appliedPatterns) > maxAppliedPatterns {
		c.appliedPatterns = c.appliedPatterns[len(c.appliedPatterns)-maxAppliedPatterns:]
	}
}

// Config holds the humanizer probabilities.
type Config struct {
	TypoRate          float64 // default 0.03
	ColloquialismRate float64 // default 0.3
	ContradictionRate float64 // default 0.1
	DoubleMessageRate float64 // default 0.05
}

// DefaultConfig returns the observed default rates.
func DefaultConfig() Config {
	return Config{TypoRate: 0.03, ColloquialismRate: 0.3, ContradictionRate: 0.1, DoubleMessageRate: 0.05}
}

type namedMutation struct {
	name string
	fn   func(*Engine, string, *Context) string
}

// Engine applies randomized mutation chains. The rand source is injectable
// so tests can force deterministic branches.
type Engine struct {
	cfg       Config
	mu        sync.Mutex
	rng       *rand.Rand
	mutations []namedMutation
}

// Option tweaks an Engine at construction.
type Option func(*Engine)

// WithRand injects a seeded randomness source.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// NewEngine builds an engine with the full mutation registry.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		mutations: registry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyCountermeasures picks 1-3 distinct mutations at random and threads
// the text through them in selection order. Applied names are recorded on
// the context for downstream logging.
func (e *Engine) ApplyCountermeasures(text string, ctx *Context) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	e.mu.Lock()
	k := 1 + e.rng.Intn(3)
	picked := e.rng.Perm(len(e.mutations))[:k]
	e.mu.Unlock()

	for _, idx := range picked {
		m := e.mutations[idx]
		text = m.fn(e, text, ctx)
		ctx.recordPattern(m.name)
	}
	return text
}

// Humanize is the always-applied second pass: an occasional typo, occasional
// colloquialisms, an occasional self-correcting softener, and a small chance
// of splitting the reply in two at the DoubleSentinel.
func (e *Engine) Humanize(text string, ctx *Context) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	if e.roll(e.cfg.TypoRate) {
		text = mutTypo(e, text, ctx)
		ctx.recordPattern("typo_injection")
	}
	if e.roll(e.cfg.ColloquialismRate) {
		text = mutColloquialism(e, text, ctx)
		ctx.recordPattern("colloquialism")
	}
	if e.roll(e.cfg.ContradictionRate) {
		if softened := mutContradiction(e, text, ctx); softened != text {
			text = softened
			ctx.recordPattern("contradiction_softener")
		}
	}
	if e.roll(e.cfg.DoubleMessageRate) {
		if split := splitForDouble(text); split != text {
			text = split
			ctx.recordPattern("double_message")
		}
	}
	return text
}

// roll returns true with probability p.
func (e *Engine) roll(p float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64() < p
}

func (e *Engine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 {
		return 0
	}
	return e.rng.Intn(n)
}

// splitForDouble breaks the text into two parts at a sentence boundary near
// the middle. Texts with a single sentence are left alone.
func splitForDouble(text string) string {
	mid := len(text) / 2
	best := -1
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 >= len(text) {
			continue
		}
		if best == -1 || abs(i-mid) < abs(best-mid) {
			best = i
		}
	}
	if best <= 0 {
		return text
	}
	first := strings.TrimSpace(text[:best+1])
	second := strings.TrimSpace(text[best+1:])
	if first == "" || second == "" {
		return text
	}
	return first + DoubleSentinel + second
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
