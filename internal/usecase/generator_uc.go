// File: internal/usecase/generator_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"journal-ai-coach/internal/domain"
	"journal-ai-coach/internal/domain/model"
	"journal-ai-coach/internal/domain/ports/adapter"
	"journal-ai-coach/internal/domain/ports/repository"
	"journal-ai-coach/internal/infra/metrics"
)

// FallbackReply is substituted whenever generation fails or produces empty
// output. A claimed message always reaches completed with non-empty content;
// this string is the floor.
const FallbackReply = "I'm sorry, I wasn't able to come up with a reply just now. Please try again in a moment."

const systemPrompt = "You are a supportive journaling coach. You help the user reflect on " +
	"their entries, notice patterns, and set small concrete intentions. Keep replies warm, " +
	"specific and short."

// Compile-time check
var _ ResponseGenerator = (*responseGenerator)(nil)

// ResponseGenerator produces the assistant reply for a conversation. It is
// the only component that talks to the model: history shaping, journal
// context and the token budget all live here.
type ResponseGenerator interface {
	// Generate returns the complete assistant text. It never returns empty
	// text with a nil error.
	Generate(ctx context.Context, conversationID string) (string, error)

	// GenerateStream yields chunks via fn and returns the full text. fn may
	// be nil, which degrades to Generate.
	GenerateStream(ctx context.Context, conversationID string, fn adapter.StreamFunc) (string, error)
}

type GeneratorConfig struct {
	Model             string
	HistoryMessages   int
	TokenBudget       int
	EntryContextLimit int
	RequestTimeout    time.Duration
}

type responseGenerator struct {
	convs   repository.ConversationRepository
	entries repository.EntryRepository
	ai      adapter.AIServiceAdapter
	cfg     GeneratorConfig
	log     *zerolog.Logger
}

func NewResponseGenerator(
	convs repository.ConversationRepository,
	entries repository.EntryRepository,
	ai adapter.AIServiceAdapter,
	cfg GeneratorConfig,
	logger *zerolog.Logger,
) *responseGenerator {
	l := logger.With().Str("component", "generator").Logger()
	return &responseGenerator{convs: convs, entries: entries, ai: ai, cfg: cfg, log: &l}
}

func (g *responseGenerator) Generate(ctx context.Context, conversationID string) (string, error) {
	return g.GenerateStream(ctx, conversationID, nil)
}

func (g *responseGenerator) GenerateStream(ctx context.Context, conversationID string, fn adapter.StreamFunc) (string, error) {
	prompt, err := g.buildPrompt(ctx, conversationID)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	var text string
	if fn != nil {
		text, err = g.ai.ChatStream(ctx, g.cfg.Model, prompt, fn)
	} else {
		text, err = g.ai.Chat(ctx, g.cfg.Model, prompt)
	}
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		metrics.ObserveGeneration(providerOf(g.cfg.Model), g.cfg.Model, 0, 0, 0, latency, false)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.ObserveGeneration(providerOf(g.cfg.Model), g.cfg.Model, 0, 0, 0, latency, false)
		return "", domain.ErrEmptyCompletion
	}
	metrics.ObserveGeneration(providerOf(g.cfg.Model), g.cfg.Model, 0, 0, 0, latency, true)
	return text, nil
}

// buildPrompt assembles system prompt + filtered history. The model must see
// an alternating transcript that opens with a user turn: pending and failed
// turns are dropped, and a leading proactive assistant seed is folded into
// the system prompt instead of being sent as a turn.
func (g *responseGenerator) buildPrompt(ctx context.Context, conversationID string) ([]adapter.Message, error) {
	conv, err := g.convs.FindByIDWithMessages(ctx, repository.NoTX, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	history := make([]model.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		if m.Status == model.MessageStatusCompleted && m.Content != "" {
			history = append(history, m)
		}
	}
	if len(history) > g.cfg.HistoryMessages {
		history = history[len(history)-g.cfg.HistoryMessages:]
	}

	system := systemPrompt
	for len(history) > 0 && history[0].Role == model.RoleAssistant {
		system += "\n\nYou already sent the user this message; they are replying to it:\n" +
			history[0].Content
		history = history[1:]
	}
	if len(history) == 0 || history[0].Role != model.RoleUser {
		return nil, domain.ErrHistoryNoUserTurn
	}

	if entryCtx := g.entryContext(ctx, conv.UserID); entryCtx != "" {
		system += "\n\nRecent journal entries for context:\n" + entryCtx
	}

	history = g.trimToBudget(ctx, history)

	prompt := make([]adapter.Message, 0, len(history)+1)
	prompt = append(prompt, adapter.Message{Role: "system", Content: system})
	for _, m := range history {
		prompt = append(prompt, adapter.Message{Role: string(m.Role), Content: m.Content})
	}
	return prompt, nil
}

// entryContext renders the user's latest journal entries. Failures degrade
// to an empty context; the reply matters more than the garnish.
func (g *responseGenerator) entryContext(ctx context.Context, userID string) string {
	entries, err := g.entries.FindRecentByUser(ctx, repository.NoTX, userID, g.cfg.EntryContextLimit)
	if err != nil {
		g.log.Warn().Err(err).Msg("journal entry context unavailable")
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s", e.Title)
		if e.Mood != "" {
			fmt.Fprintf(&b, " (mood: %s)", e.Mood)
		}
		if e.Body != "" {
			fmt.Fprintf(&b, ": %s", snippet(e.Body, 280))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// trimToBudget drops oldest turns until the transcript fits the token
// budget, always keeping at least the final user turn. The leading turn is
// re-anchored to a user message after every cut.
func (g *responseGenerator) trimToBudget(ctx context.Context, history []model.Message) []model.Message {
	for len(history) > 1 {
		msgs := make([]adapter.Message, 0, len(history))
		for _, m := range history {
			msgs = append(msgs, adapter.Message{Role: string(m.Role), Content: m.Content})
		}
		n, err := g.ai.CountTokens(ctx, g.cfg.Model, msgs)
		if err != nil || n <= g.cfg.TokenBudget {
			break
		}
		history = history[1:]
		for len(history) > 1 && history[0].Role != model.RoleUser {
			history = history[1:]
		}
	}
	return history
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

func providerOf(model string) string {
	if strings.HasPrefix(model, "gemini") {
		return "gemini"
	}
	return "openai"
}
