package ai

import (
	"context"
	"time"

	"journal-ai-coach/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev testing.
// It returns a canned reply instead of calling a real provider.
type NoopAIAdapter struct {
	Reply string
}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{Reply: "(dev) noted — tell me more."}
}

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop"}, nil
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return countTokensLocal("gpt-4o-mini", messages)
}

func (a *NoopAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	// Simulate slight processing time and respect ctx
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return a.Reply, nil
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	text, err := a.Chat(ctx, model, messages)
	return text, adapter.Usage{}, err
}

func (a *NoopAIAdapter) ChatStream(ctx context.Context, model string, messages []adapter.Message, fn adapter.StreamFunc) (string, error) {
	text, err := a.Chat(ctx, model, messages)
	if err != nil {
		return "", err
	}
	if err := fn(text); err != nil {
		return "", err
	}
	return text, nil
}
