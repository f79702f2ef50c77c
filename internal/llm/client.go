package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aisavvy/aisavvy/internal/config"
	enginerr "github.com/aisavvy/aisavvy/internal/errors"
)

// Client implements Service over HTTP for the openai and ollama providers.
type Client struct {
	provider    string
	model       string
	baseURL     string
	apiKey      string
	temperature float64
	timeout     time.Duration
	httpClient  *http.Client
}

// NewClient creates an HTTP-backed client from the inference configuration.
func NewClient(cfg config.InferenceConfig) (*Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("API key is required for the openai provider")
		}
	case ProviderOllama:
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	timeout := config.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	return &Client{
		provider:    cfg.Provider,
		model:       cfg.Model,
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		timeout:     timeout,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// Generate sends the prompt to the backend and returns the raw generated
// text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch c.provider {
	case ProviderOpenAI:
		return c.generateOpenAI(ctx, prompt)
	default:
		return c.generateOllama(ctx, prompt)
	}
}

// OpenAI-compatible chat completions structures.
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *Client) generateOpenAI(ctx context.Context, prompt string) (string, error) {
	reqBody := openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
	}

	respBody, err := c.post(ctx, "/v1/chat/completions", reqBody)
	if err != nil {
		return "", err
	}

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", enginerr.Wrap(err, enginerr.KindInferenceMalformed,
			"failed to parse inference response")
	}

	if response.Error != nil {
		return "", enginerr.Newf(enginerr.KindInferenceUnavailable,
			"inference backend error: %s", response.Error.Message)
	}

	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return "", enginerr.New(enginerr.KindInferenceMalformed,
			"inference backend returned no text")
	}

	return response.Choices[0].Message.Content, nil
}

// Ollama generate structures.
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (c *Client) generateOllama(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: ollamaOptions{Temperature: c.temperature},
	}

	respBody, err := c.post(ctx, "/api/generate", reqBody)
	if err != nil {
		return "", err
	}

	var response ollamaResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", enginerr.Wrap(err, enginerr.KindInferenceMalformed,
			"failed to parse inference response")
	}

	if response.Error != "" {
		return "", enginerr.Newf(enginerr.KindInferenceUnavailable,
			"inference backend error: %s", response.Error)
	}

	if strings.TrimSpace(response.Response) == "" {
		return "", enginerr.New(enginerr.KindInferenceMalformed,
			"inference backend returned no text")
	}

	return response.Response, nil
}

func (c *Client) post(ctx context.Context, endpoint string, reqBody interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, enginerr.Wrap(err, enginerr.KindInternal, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, enginerr.Wrap(err, enginerr.KindInternal, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, enginerr.Wrap(err, enginerr.KindInferenceTimeout,
				"inference request timed out")
		}

		return nil, enginerr.Wrap(err, enginerr.KindInferenceUnavailable,
			"inference backend could not be reached")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, enginerr.Wrap(err, enginerr.KindInferenceUnavailable,
			"failed to read inference response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, enginerr.Newf(enginerr.KindInferenceUnavailable,
			"inference request failed with status %d", resp.StatusCode)
	}

	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
