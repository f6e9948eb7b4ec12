package ai

import (
	"github.com/pkoukk/tiktoken-go"

	"journal-ai-coach/internal/domain/ports/adapter"
)

// countTokensLocal estimates prompt tokens with tiktoken. Providers that do
// not expose an exact counting endpoint share this; it only needs to be
// good enough for the history token budget.
func countTokensLocal(model string, messages []adapter.Message) (int, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, err
		}
	}

	total := 0
	for _, m := range messages {
		// Per-message wrapping overhead, same constant the chat format docs use.
		total += 4
		total += len(enc.Encode(m.Role, nil, nil))
		total += len(enc.Encode(m.Content, nil, nil))
	}
	return total, nil
}
