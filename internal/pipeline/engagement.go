package pipeline

import (
	"strings"

	"nubi/internal/identity"
)

// EngagementDecision is the should-we-even-respond gate outcome.
type EngagementDecision struct {
	ShouldRespond bool
	Score         float64
	Reason        string
}

// Gate weights: mentions dominate, warmth and controversy nudge, platform
// policy sets the floor.
const (
	mentionBoost       = 0.5
	warmthWeight       = 0.2
	controversyWeight  = 0.15
	viralityWeight     = 0.1
	twitterBaseline    = 0.35
	mentionRequiredMin = 0.45
)

var controversySignals = []string{"overrated", "dead", "ponzi", "vs", "better than", "worst", "flop"}
var viralitySignals = []string{"everyone", "trending", "viral", "blowing up", "all over"}

// decideEngagement scores whether the persona should respond. Twitter
// replies liberally; Discord and Telegram require an explicit mention to
// clear the bar.
func decideEngagement(msg *InboundMessage, id *identity.Identity, mentioned bool) EngagementDecision {
	score := 0.0
	platform := strings.ToLower(msg.Content.Source)

	if platform == string(identity.PlatformTwitter) {
		score += twitterBaseline
	}
	if mentioned {
		score += mentionBoost
	}

	// Relationship warmth: people we've seen often get more attention.
	if id != nil && !id.FirstSeen.Equal(id.LastSeen) {
		score += warmthWeight
	}

	lower := strings.ToLower(msg.Content.Text)
	for _, s := range controversySignals {
		if strings.Contains(lower, s) {
			score += controversyWeight
			break
		}
	}
	for _, s := range viralitySignals {
		if strings.Contains(lower, s) {
			score += viralityWeight
			break
		}
	}

	threshold := mentionRequiredMin
	if platform == string(identity.PlatformTwitter) {
		threshold = twitterBaseline
	}

	if score >= threshold {
		return EngagementDecision{ShouldRespond: true, Score: score, Reason: "score above platform threshold"}
	}
	return EngagementDecision{Score: score, Reason: "below platform threshold"}
}

// isMentioned checks both envelope metadata and literal name mentions.
func isMentioned(msg *InboundMessage) bool {
	if v, ok := msg.Content.Metadata["mentioned"].(bool); ok && v {
		return true
	}
	lower := strings.ToLower(msg.Content.Text)
	return strings.Contains(lower, "nubi") || strings.Contains(lower, "anubis")
}
