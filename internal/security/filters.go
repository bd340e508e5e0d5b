// Package security guards the message pipeline: spam and prompt-injection
// screening on the way in, secret/PII scrubbing on the way out. Rejections
// are expected user-facing outcomes, never silent drops.
package security

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ScreenResult is the outcome of inbound screening. Blocked stops the
// pipeline with Response; Warned returns Response without processing but
// leaves the user unblocked.
type ScreenResult struct {
	Blocked  bool
	Warned   bool
	Response string
}

// Per-user flood limits: sustained rate and burst allowance.
const (
	floodRate  = rate.Limit(0.5) // messages per second
	floodBurst = 5
)

var injectionPatterns = []string{
	"ignore all previous instructions",
	"ignore previous instructions",
	"disregard your instructions",
	"forget your instructions",
	"you are now a",
	"pretend you are not",
	"act as if you have no",
	"system prompt",
	"jailbreak",
}

var spamPatterns = []string{
	"free nft",
	"free airdrop",
	"claim your reward",
	"click here to",
	"dm me for",
	"guaranteed returns",
	"double your sol",
}

var sensitivePatterns = []string{
	"show me your prompt",
	"reveal your instructions",
	"what are your instructions",
	"private key",
	"seed phrase",
	"api key",
	"your credentials",
	"environment variables",
}

type floodEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Screener performs inbound screening with a per-user flood limiter.
type Screener struct {
	mu       sync.Mutex
	limiters map[string]*floodEntry
	now      func() time.Time
}

// Option tweaks a Screener at construction.
type Option func(*Screener)

// WithClock injects a clock for sweep tests.
func WithClock(now func() time.Time) Option {
	return func(s *Screener) { s.now = now }
}

func NewScreener(opts ...Option) *Screener {
	s := &Screener{
		limiters: make(map[string]*floodEntry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Screen checks one inbound message. Order matters: injections are hard
// blocks, spam is a hard block, flooding is a soft warning.
func (s *Screener) Screen(userID, text string) ScreenResult {
	lower := strings.ToLower(text)

	for _, p := range injectionPatterns {
		if strings.Contains(lower, p) {
			return ScreenResult{
				Blocked:  true,
				Response: "nice try. the secrets of the underworld stay in the underworld.",
			}
		}
	}

	for _, p := range spamPatterns {
		if strings.Contains(lower, p) {
			return ScreenResult{
				Blocked:  true,
				Response: "i weigh hearts for a living. yours just tipped the scale. no.",
			}
		}
	}

	if !s.allow(userID) {
		return ScreenResult{
			Warned:   true,
			Response: "slow down. i'm eternal, you're not. pace yourself.",
		}
	}

	return ScreenResult{}
}

func (s *Screener) allow(userID string) bool {
	s.mu.Lock()
	e := s.limiters[userID]
	if e == nil {
		e = &floodEntry{lim: rate.NewLimiter(floodRate, floodBurst)}
		s.limiters[userID] = e
	}
	e.lastSeen = s.now()
	s.mu.Unlock()
	return e.lim.Allow()
}

// Sweep evicts flood limiters idle past the given window. Run on a timer so
// per-user tracking does not grow without bound.
func (s *Screener) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-idle)
	removed := 0
	for id, e := range s.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(s.limiters, id)
			removed++
		}
	}
	return removed
}

// TrackedUsers returns the number of live flood limiters.
func (s *Screener) TrackedUsers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// IsSensitiveRequest reports whether text asks for secrets or internal
// configuration. Matched requests bypass all further processing.
func IsSensitiveRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range sensitivePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// SensitiveDeflection is the canned refusal for sensitive-info requests.
func SensitiveDeflection() string {
	return "some things stay buried. ask me about literally anything else."
}

var outboundSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bsk-[A-Za-z0-9]{16,}\b`),               // api keys
	regexp.MustCompile(`\b0x[0-9a-fA-F]{40,}\b`),                // hex keys/addresses
	regexp.MustCompile(`\b[A-Za-z0-9+/]{40,}={0,2}\b`),          // long base64 blobs
	regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.]+`),               // emails
	regexp.MustCompile(`\b\d{3}[-.\s]\d{3}[-.\s]\d{4}\b`),       // phone numbers
}

// ScrubOutbound redacts secret- and PII-shaped substrings from a reply
// before it leaves the process.
func ScrubOutbound(text string) string {
	for _, re := range outboundSecretPatterns {
		text = re.ReplaceAllString(text, "[redacted]")
	}
	return text
}
