// Package pipeline sequences the per-message processing stages: screening,
// staleness, identity, engagement gating, reply generation, humanization,
// and persona updates. Every stage has its own error boundary; the pipeline
// always produces some reply and never panics outward.
package pipeline

import (
	"time"

	"nubi/internal/persona"
)

// InboundMessage is the message shape the host runtime hands us.
type InboundMessage struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entityId"`
	RoomID    string    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
	Content   Content   `json:"content"`
}

// Content carries the text, the originating platform, and the raw platform
// envelope used for identity extraction.
type Content struct {
	Text     string         `json:"text"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Reply is the pipeline's outcome. A DoubleSentinel inside Text signals the
// caller to send two sequential messages.
type Reply struct {
	Text            string        `json:"text"`
	Skip            bool          `json:"skip,omitempty"`
	EndConversation bool          `json:"endConversation,omitempty"`
	Metadata        ReplyMetadata `json:"metadata"`
}

// ReplyMetadata exposes the persona state behind a reply for analytics.
type ReplyMetadata struct {
	EmotionalState  persona.EmotionalSnapshot   `json:"emotionalState"`
	Personality     persona.PersonalitySnapshot `json:"personalityDimensions"`
	AppliedPatterns []string                    `json:"appliedPatterns,omitempty"`
	Platform        string                      `json:"platform,omitempty"`
	ResponseDelay   time.Duration               `json:"responseDelay"`
	Error           bool                        `json:"error,omitempty"`
}

// Hard input caps applied before any stage sees the message.
const (
	maxTextLength   = 2000
	maxUserIDLength = 64
)
