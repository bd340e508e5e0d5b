// Package discord is the thin Discord transport: it turns gateway messages
// into pipeline envelopes and sends the replies back.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"nubi/internal/mutation"
	"nubi/internal/pipeline"
)

// Bot is the Discord connector.
type Bot struct {
	dg        *discordgo.Session
	processor *pipeline.Processor
}

// StartBot opens the gateway session and blocks until ctx is canceled.
func StartBot(ctx context.Context, token string, processor *pipeline.Processor) error {
	b := &Bot{processor: processor}
	if err := b.run(ctx, token); err != nil {
		return fmt.Errorf("bot run error: %w", err)
	}
	return nil
}

func (b *Bot) run(ctx context.Context, token string) error {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	b.dg = dg
	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, closing Discord session")
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
}

func (b *Bot) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	log.Info().Str("user", s.State.User.Username).Msg("connected to Discord")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	mentioned := false
	for _, user := range m.Mentions {
		if user.ID == s.State.User.ID {
			mentioned = true
			break
		}
	}

	msg := &pipeline.InboundMessage{
		ID:        m.ID,
		EntityID:  m.Author.ID,
		RoomID:    m.ChannelID,
		CreatedAt: time.Now(),
		Content: pipeline.Content{
			Text:   stripBotMention(m.Content, s.State.User.ID),
			Source: "discord",
			Metadata: map[string]any{
				"mentioned": mentioned,
				"author": map[string]any{
					"id":          m.Author.ID,
					"username":    m.Author.Username,
					"global_name": m.Author.GlobalName,
				},
			},
		},
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	reply := b.processor.Process(context.Background(), msg)
	if reply.Skip || strings.TrimSpace(reply.Text) == "" {
		return
	}

	b.send(s, m.ChannelID, reply)
}

// send delivers a reply, splitting on the double-message sentinel so the two
// halves arrive as separate messages with a short gap between them.
func (b *Bot) send(s *discordgo.Session, channelID string, reply *pipeline.Reply) {
	parts := strings.Split(reply.Text, mutation.DoubleSentinel)
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i > 0 {
			_ = s.ChannelTyping(channelID)
			time.Sleep(time.Second + time.Duration(len(part))*10*time.Millisecond)
		}
		if _, err := s.ChannelMessageSend(channelID, part); err != nil {
			log.Warn().Err(err).Str("channel", channelID).Msg("failed to send message")
		}
	}
}

// stripBotMention removes the leading bot mention so the pipeline sees the
// actual content.
func stripBotMention(content, botID string) string {
	for _, form := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		content = strings.ReplaceAll(content, form, "")
	}
	return strings.TrimSpace(content)
}
