// Package staleness tracks per-user conversation quality and decides when
// the persona should warn a user or disengage. Community members get far
// more patience than drive-by strangers.
package staleness

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Verdict is the detector's decision for one message.
type Verdict int

const (
	VerdictContinue Verdict = iota
	VerdictWarn
	VerdictExit
)

// Result carries the verdict and, for warn/exit, the message to deliver.
type Result struct {
	Verdict Verdict
	Message string
}

// Config holds the staleness thresholds. The observed values (15/8/5/3) are
// defaults, not load-bearing constants.
type Config struct {
	MemberPatience   int
	StrangerPatience int
	WarningThreshold int
	RepetitionLimit  int
	SweepIdle        time.Duration
	SweepAbove       int
}

// DefaultConfig returns the observed thresholds.
func DefaultConfig() Config {
	return Config{
		MemberPatience:   15,
		StrangerPatience: 8,
		WarningThreshold: 5,
		RepetitionLimit:  3,
		SweepIdle:        time.Hour,
		SweepAbove:       100,
	}
}

const lowQualityLength = 20

// lastTopicsWindow is the sliding window used for repetition detection.
const lastTopicsWindow = 3

// communityMarker in a room identifier marks a known community space.
const communityMarker = "community"

// memberPriorMessages is how many prior messages classify a community member.
const memberPriorMessages = 10

type entry struct {
	messageCount     int
	repetitionCount  int
	lowQualityCount  int
	lastMessage      time.Time
	isMember         bool
	memberClassified bool
	warningGiven     bool
	topics           []string
	lastTopics       []string
}

// Detector tracks conversation quality per user. Safe for concurrent use.
type Detector struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*entry
	rng     *rand.Rand
	now     func() time.Time
}

// Option tweaks a Detector at construction.
type Option func(*Detector)

// WithRand injects a seeded randomness source (message variant selection).
func WithRand(r *rand.Rand) Option {
	return func(d *Detector) { d.rng = r }
}

// WithClock injects a clock for sweep tests.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg Config, opts ...Option) *Detector {
	d := &Detector{
		cfg:     cfg,
		entries: make(map[string]*entry),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ProcessMessage updates the user's tracking entry and returns the verdict.
// priorMessages is how many messages this user has been seen sending in the
// room before this conversation (for the one-time member classification).
func (d *Detector) ProcessMessage(userID, roomID, text string, priorMessages int) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.entries[userID]
	if e == nil {
		e = &entry{}
		d.entries[userID] = e
	}
	if !e.memberClassified {
		e.isMember = priorMessages >= memberPriorMessages ||
			strings.Contains(strings.ToLower(roomID), communityMarker)
		e.memberClassified = true
	}

	e.messageCount++
	e.lastMessage = d.now()

	topic := classifyTopic(text)
	e.topics = append(e.topics, topic)
	e.lastTopics = append(e.lastTopics, topic)
	if len(e.lastTopics) > lastTopicsWindow {
		e.lastTopics = e.lastTopics[len(e.lastTopics)-lastTopicsWindow:]
	}
	if len(e.lastTopics) == lastTopicsWindow && allEqual(e.lastTopics) {
		e.repetitionCount++
	}

	if isLowQuality(text) {
		e.lowQualityCount++
	}

	if len(d.entries) > d.cfg.SweepAbove {
		d.sweepLocked()
	}

	return d.verdictLocked(e)
}

func (d *Detector) verdictLocked(e *entry) Result {
	patience := d.cfg.StrangerPatience
	if e.isMember {
		patience = d.cfg.MemberPatience
	}

	switch {
	case e.lowQualityCount >= patience:
		return Result{VerdictExit, d.exitMessage(e.isMember)}
	case e.repetitionCount >= d.cfg.RepetitionLimit:
		if !e.warningGiven {
			e.warningGiven = true
			return Result{VerdictWarn, d.warnMessage(e.isMember)}
		}
		return Result{VerdictExit, d.exitMessage(e.isMember)}
	case e.lowQualityCount >= d.cfg.WarningThreshold && !e.warningGiven:
		e.warningGiven = true
		return Result{VerdictWarn, d.warnMessage(e.isMember)}
	default:
		return Result{Verdict: VerdictContinue}
	}
}

// Sweep evicts entries idle past the configured window. Run on a timer in
// addition to the opportunistic in-process sweep.
func (d *Detector) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sweepLocked()
}

func (d *Detector) sweepLocked() int {
	cutoff := d.now().Add(-d.cfg.SweepIdle)
	removed := 0
	for id, e := range d.entries {
		if e.lastMessage.Before(cutoff) {
			delete(d.entries, id)
			removed++
		}
	}
	return removed
}

// TrackedUsers returns the number of live tracking entries.
func (d *Detector) TrackedUsers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

var memberWarnings = []string{
	"hey, i love having you around, but give me something to work with here",
	"you know i'm always here, but these one-worders are putting me to sleep",
}

var memberExits = []string{
	"gonna step away for a bit. ping me when there's something to dig into",
	"i'll let you get on with your day, catch you when the conversation picks up",
}

var strangerWarnings = []string{
	"ok i've seen keyboards with more to say. got an actual question?",
	"this conversation has the depth of a puddle. try again with words",
}

var strangerExits = []string{
	"right, i have ancient mysteries to attend to. bye",
	"i'd say this was fun but the gods frown on lying",
}

func (d *Detector) warnMessage(member bool) string {
	if member {
		return memberWarnings[d.rng.Intn(len(memberWarnings))]
	}
	return strangerWarnings[d.rng.Intn(len(strangerWarnings))]
}

func (d *Detector) exitMessage(member bool) string {
	if member {
		return memberExits[d.rng.Intn(len(memberExits))]
	}
	return strangerExits[d.rng.Intn(len(strangerExits))]
}

func allEqual(topics []string) bool {
	for _, t := range topics[1:] {
		if t != topics[0] {
			return false
		}
	}
	return true
}
