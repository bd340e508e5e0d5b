package pipeline

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"nubi/internal/ai"
	"nubi/internal/identity"
	"nubi/internal/mutation"
	"nubi/internal/persona"
	"nubi/internal/security"
	"nubi/internal/staleness"
	"nubi/internal/storage"
)

// Config holds the probabilistic reply behaviors.
type Config struct {
	VulnerabilityRate float64
	HotTakeRate       float64
}

// DefaultConfig returns the stock rates.
func DefaultConfig() Config {
	return Config{
		VulnerabilityRate: 0.02,
		HotTakeRate:       0.03,
	}
}

// Deps wires the processor's collaborators. Store and Provider are optional;
// a nil Store skips persistence and a nil Provider falls back to canned
// replies.
type Deps struct {
	State    *persona.State
	Mutator  *mutation.Engine
	Detector *staleness.Detector
	Resolver *identity.Resolver
	Screener *security.Screener
	Store    *storage.Storage
	Provider ai.Provider
}

// Processor runs inbound messages through the full stage sequence. Safe for
// concurrent use.
type Processor struct {
	state    *persona.State
	mutator  *mutation.Engine
	detector *staleness.Detector
	resolver *identity.Resolver
	screener *security.Screener
	store    *storage.Storage
	provider ai.Provider
	cfg      Config

	mu       sync.Mutex
	rng      *rand.Rand
	contexts map[string]*mutation.Context
}

// Option customizes a Processor.
type Option func(*Processor)

// WithRand injects a deterministic randomness source.
func WithRand(r *rand.Rand) Option {
	return func(p *Processor) { p.rng = r }
}

// NewProcessor assembles the pipeline.
func NewProcessor(cfg Config, deps Deps, opts ...Option) *Processor {
	p := &Processor{
		state:    deps.State,
		mutator:  deps.Mutator,
		detector: deps.Detector,
		resolver: deps.Resolver,
		screener: deps.Screener,
		store:    deps.Store,
		provider: deps.Provider,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		contexts: make(map[string]*mutation.Context),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one message through every stage and always returns a reply,
// even when internals fail. Panics are converted into an apologetic reply.
func (p *Processor) Process(ctx context.Context, msg *InboundMessage) (reply *Reply) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("pipeline panic recovered")
			reply = p.finish(apologyResponse, "", started)
			reply.Metadata.Error = true
		}
	}()

	if msg == nil || strings.TrimSpace(msg.Content.Text) == "" {
		return &Reply{Skip: true}
	}

	text := sanitizeText(msg.Content.Text)
	platform := msg.Content.Source

	id, ok := p.resolveIdentity(msg)
	if !ok {
		out := p.finish(missingUserResponse, platform, started)
		out.Metadata.Error = true
		return out
	}
	userID := id.InternalID

	// Security first: nothing downstream sees a hostile message.
	screen := p.screener.Screen(userID, text)
	if screen.Blocked || screen.Warned {
		return p.finish(screen.Response, platform, started)
	}

	if security.IsSensitiveRequest(text) {
		return p.finish(security.SensitiveDeflection(), platform, started)
	}

	priorMessages := 0
	if p.store != nil {
		priorMessages = p.store.UserMessageCount(msg.RoomID, userID)
	}

	stale := p.detector.ProcessMessage(userID, msg.RoomID, text, priorMessages)
	if stale.Verdict == staleness.VerdictExit {
		out := p.finish(stale.Message, platform, started)
		out.EndConversation = true
		return out
	}
	warning := ""
	if stale.Verdict == staleness.VerdictWarn {
		warning = stale.Message
	}

	if gate := decideEngagement(msg, id, isMentioned(msg)); !gate.ShouldRespond {
		log.Debug().Float64("score", gate.Score).Str("reason", gate.Reason).Msg("engagement gate declined")
		return &Reply{Skip: true}
	}

	// The message shapes mood and traits before we draft a reply, so the
	// reply reflects how it landed.
	p.state.UpdateEmotion(text)
	p.state.NudgeFromMessage(text)
	emotion := p.state.EmotionSnapshot()

	vars := extractVariables(msg, id, priorMessages, started)
	topic := staleness.ClassifyTopic(text)

	history := p.recentHistory(msg.RoomID)
	draft := p.draftReply(ctx, text, topic, emotion, vars, history, priorMessages)

	mctx := p.mutationContext(userID, emotion.Intensity)
	out := p.mutator.ApplyCountermeasures(draft, mctx)
	out = p.mutator.Humanize(out, mctx)
	out = security.ScrubOutbound(out)
	out = spliceWarning(out, warning)
	if strings.TrimSpace(out) == "" {
		out = p.pickFallback(emotion.Current)
	}

	patterns := mctx.Patterns()
	p.recordInteraction(msg, id, text, out, topic, patterns, emotion)

	result := p.finish(out, platform, started)
	result.Metadata.AppliedPatterns = patterns
	return result
}

// finish assembles a reply with fresh persona snapshots and a typing delay.
func (p *Processor) finish(text, platform string, started time.Time) *Reply {
	return &Reply{
		Text: text,
		Metadata: ReplyMetadata{
			EmotionalState: p.state.EmotionSnapshot(),
			Personality:    p.state.TraitSnapshot(),
			Platform:       platform,
			ResponseDelay:  typingDelay(text) + time.Since(started),
		},
	}
}

// resolveIdentity maps the envelope to a canonical identity. ok is false
// when the message carries no user id at all; callers turn that into a
// structured error reply rather than processing an anonymous ghost.
func (p *Processor) resolveIdentity(msg *InboundMessage) (*identity.Identity, bool) {
	ext := identity.ExtractFromEnvelope(msg.Content.Source, msg.Content.Metadata)
	userID := ext.UserID
	if userID == "" {
		userID = msg.EntityID
	}
	if strings.TrimSpace(userID) == "" {
		return nil, false
	}
	userID = sanitizeUserID(userID)
	return p.resolver.Resolve(ext.Platform, userID, ext.Username, ext.DisplayName, msg.RoomID), true
}

// memoryWindow is how many recent exchanges accompany the current message
// into generation.
const memoryWindow = 6

// recentHistory loads the room's last few exchanges as alternating
// user/assistant turns for the provider.
func (p *Processor) recentHistory(roomID string) []ai.Message {
	if p.store == nil {
		return nil
	}
	records, err := p.store.Interactions(roomID)
	if err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("failed to load interaction history")
		return nil
	}
	if len(records) > memoryWindow {
		records = records[len(records)-memoryWindow:]
	}
	history := make([]ai.Message, 0, len(records)*2)
	for _, rec := range records {
		history = append(history,
			ai.Message{Role: "user", Content: rec.Text},
			ai.Message{Role: "assistant", Content: rec.Reply},
		)
	}
	return history
}

// draftReply produces the raw reply text: a rare scripted moment, the AI
// provider when available, or a mood-keyed canned line.
func (p *Processor) draftReply(ctx context.Context, text, topic string, emotion persona.EmotionalSnapshot, vars map[string]string, history []ai.Message, priorMessages int) string {
	if p.roll(p.cfg.VulnerabilityRate) {
		return p.pick(vulnerabilityMoments)
	}
	if p.roll(p.cfg.HotTakeRate) {
		return p.pick(hotTakes)
	}

	prefix := ""
	if priorMessages > 0 {
		prefix = callbackPrefix(topic)
	}

	if p.provider != nil {
		system := renderTemplate(systemPrompt, vars) +
			"\nCurrent mood: " + string(emotion.Current) + "."
		messages := make([]ai.Message, 0, len(history)+2)
		messages = append(messages, ai.Message{Role: "system", Content: system})
		messages = append(messages, history...)
		messages = append(messages, ai.Message{Role: "user", Content: text})
		draft, err := p.provider.Generate(ctx, messages)
		if err == nil && strings.TrimSpace(draft) != "" {
			return prefix + draft
		}
		if err != nil {
			log.Warn().Err(err).Msg("reply generation failed, falling back")
		}
	}

	return prefix + p.pickFallback(emotion.Current)
}

// systemPrompt frames the persona for the AI provider. Placeholders are
// filled from the per-message variable set.
const systemPrompt = "You are Anubis, an ancient jackal spirit who now spends eternity " +
	"in crypto communities. Sharp, warm underneath, allergic to hype. " +
	"You are talking to {{userName}} ({{relationship}}) on {{platform}} " +
	"in the {{timeOfDay}}, market feels {{market}}. " +
	"Answer in their register, short and informal, no corporate tone."

func (p *Processor) mutationContext(userID string, intensity float64) *mutation.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	mctx, ok := p.contexts[userID]
	if !ok {
		mctx = &mutation.Context{UserID: userID}
		p.contexts[userID] = mctx
	}
	mctx.SetIntensity(intensity)
	return mctx
}

func (p *Processor) recordInteraction(msg *InboundMessage, id *identity.Identity, text, reply, topic string, patterns []string, emotion persona.EmotionalSnapshot) {
	if p.store == nil {
		return
	}
	rec := storage.InteractionRecord{
		UserID:          id.InternalID,
		Text:            text,
		Reply:           reply,
		Topics:          []string{topic},
		AppliedPatterns: append([]string(nil), patterns...),
		Emotion:         string(emotion.Current),
		Datetime:        time.Now(),
	}
	if err := p.store.AddInteraction(msg.RoomID, rec); err != nil {
		log.Warn().Err(err).Str("room", msg.RoomID).Msg("failed to record interaction")
	}
}

func (p *Processor) pickFallback(emotion persona.Emotion) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fallbackFor(emotion, p.rng)
}

func (p *Processor) pick(options []string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return options[p.rng.Intn(len(options))]
}

func (p *Processor) roll(rate float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < rate
}

// typingDelay approximates how long a human would take to type the reply.
func typingDelay(text string) time.Duration {
	d := 800*time.Millisecond + time.Duration(len(text))*25*time.Millisecond
	if d > 6*time.Second {
		d = 6 * time.Second
	}
	return d
}

func sanitizeText(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxTextLength {
		text = text[:maxTextLength]
	}
	return text
}

func sanitizeUserID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
		if b.Len() >= maxUserIDLength {
			break
		}
	}
	if b.Len() == 0 {
		return "anonymous"
	}
	return b.String()
}
