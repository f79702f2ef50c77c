package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/aisavvy/aisavvy/internal/config"
	enginerr "github.com/aisavvy/aisavvy/internal/errors"
)

// GeminiClient implements Service on top of the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, cfg config.InferenceConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the gemini provider")
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("error initializing gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)

	// Low temperature keeps the SQL deterministic.
	temp := float32(cfg.Temperature)
	model.Temperature = &temp

	return &GeminiClient{client: client, model: model}, nil
}

// Generate sends the prompt and returns the raw generated text.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if isTimeout(err) {
			return "", enginerr.Wrap(err, enginerr.KindInferenceTimeout,
				"inference request timed out")
		}

		return "", enginerr.Wrap(err, enginerr.KindInferenceUnavailable,
			"inference backend could not be reached")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", enginerr.New(enginerr.KindInferenceMalformed,
			"inference backend returned no candidates")
	}

	var sb strings.Builder

	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", enginerr.New(enginerr.KindInferenceMalformed,
			"inference backend returned no text")
	}

	return sb.String(), nil
}

// Close releases the underlying transport.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}
