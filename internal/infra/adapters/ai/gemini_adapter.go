package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"journal-ai-coach/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel}, nil
}

func (g *GeminiAdapter) ListModels(ctx context.Context) ([]string, error) {
	var out []string
	for m, err := range g.client.Models.All(ctx) {
		if err != nil {
			break
		}
		if m.Name != "" {
			out = append(out, m.Name)
		}
	}
	if len(out) == 0 && g.defaultModel != "" {
		// Best-effort fallback to default
		out = []string{g.defaultModel}
	}
	return out, nil
}

func (g *GeminiAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	if model == "" {
		model = g.defaultModel
	}
	contents, _ := toGeminiContents(messages)
	resp, err := g.client.Models.CountTokens(ctx, model, contents, nil)
	if err != nil {
		// SDK counting is best-effort; fall back to the local estimate.
		return countTokensLocal(model, messages)
	}
	return int(resp.TotalTokens), nil
}

func (g *GeminiAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	text, _, err := g.ChatWithUsage(ctx, model, messages)
	return text, err
}

func (g *GeminiAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if model == "" {
		model = g.defaultModel
	}
	contents, cfg := toGeminiContents(messages)

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", adapter.Usage{}, err
	}

	var usage adapter.Usage
	if resp.UsageMetadata != nil {
		usage = adapter.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return resp.Text(), usage, nil
}

func (g *GeminiAdapter) ChatStream(ctx context.Context, model string, messages []adapter.Message, fn adapter.StreamFunc) (string, error) {
	if model == "" {
		model = g.defaultModel
	}
	contents, cfg := toGeminiContents(messages)

	var full string
	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return "", err
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		full += chunk
		if err := fn(chunk); err != nil {
			return "", err
		}
	}
	return full, nil
}

// toGeminiContents maps chat roles onto Gemini's user/model turns and lifts
// a leading system message into the system instruction.
func toGeminiContents(messages []adapter.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	var cfg *genai.GenerateContentConfig
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			cfg = &genai.GenerateContentConfig{
				SystemInstruction: genai.NewContentFromText(m.Content, genai.RoleUser),
			}
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, cfg
}
