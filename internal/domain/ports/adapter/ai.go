package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamFunc receives incremental completion chunks. Returning an error
// aborts the stream; the adapter must then stop generating.
type StreamFunc func(chunk string) error

// AIServiceAdapter is the port for the language-model capability. The
// pipeline only ever sees text in and text out; provider wire formats stay
// behind this interface.
type AIServiceAdapter interface {
	ListModels(ctx context.Context) ([]string, error)

	// CountTokens returns prompt tokens for the provided messages
	// (best-effort when exact provider counting is unavailable).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// Chat returns the complete assistant text.
	Chat(ctx context.Context, model string, messages []Message) (string, error)

	// ChatWithUsage returns assistant text plus usage as reported by the
	// provider.
	ChatWithUsage(ctx context.Context, model string, messages []Message) (string, Usage, error)

	// ChatStream yields incremental chunks via fn and returns the full
	// assistant text once the stream ends.
	ChatStream(ctx context.Context, model string, messages []Message, fn StreamFunc) (string, error)
}
