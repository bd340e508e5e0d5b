package ai

import (
	"context"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// NewProvider selects a provider by engine name. Unknown engines fall back
// to pollinations rather than failing startup; the pipeline already has
// canned fallbacks for generation errors.
func NewProvider(engine string) Provider {
	switch engine {
	case "pollinations", "":
		return NewPollinationsProvider()
	default:
		return NewPollinationsProvider()
	}
}
