// Package llm talks to the inference backend. The client is stateless:
// all context arrives in the prompt, so a call can be safely retried.
package llm

import (
	"context"
	"time"

	"github.com/aisavvy/aisavvy/internal/config"
)

// Service is the single operation the engine needs from an inference
// backend.
type Service interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider constants for the supported backends.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// NewFromConfig builds the configured provider client and wraps it with
// the retry policy. Gemini needs a context to establish its transport.
func NewFromConfig(ctx context.Context, cfg config.InferenceConfig) (Service, error) {
	var (
		svc Service
		err error
	)

	switch cfg.Provider {
	case ProviderGemini:
		svc, err = NewGeminiClient(ctx, cfg)
	default:
		svc, err = NewClient(cfg)
	}

	if err != nil {
		return nil, err
	}

	return WithRetry(svc, cfg.RetryAttempts, config.Duration(cfg.RetryDelay)), nil
}

// WithRetry wraps a service so transient failures (timeout, unavailable)
// are retried up to attempts extra times. Malformed output is never
// retried: the call already completed, asking again is a fresh attempt
// that belongs to the auto-fix loop.
func WithRetry(svc Service, attempts int, delay time.Duration) Service {
	if attempts <= 0 {
		return svc
	}

	return &retrying{svc: svc, attempts: attempts, delay: delay}
}
