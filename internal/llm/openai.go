package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultOllamaModel = "llama3.1"
	defaultOllamaURL   = "http://localhost:11434"
)

// ChatProvider talks to any OpenAI-compatible Chat Completions endpoint.
// OpenAI itself and Ollama's /v1 endpoint both use it.
type ChatProvider struct {
	name        string
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

type providerConfig struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// Option configures a ChatProvider.
type Option func(*providerConfig)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *providerConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the provider at a proxy or compatible server.
func WithBaseURL(url string) Option {
	return func(c *providerConfig) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *providerConfig) { c.temperature = t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(c *providerConfig) { c.maxTokens = n }
}

// WithTimeout sets the HTTP timeout for every request.
func WithTimeout(d time.Duration) Option {
	return func(c *providerConfig) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewOpenAIProvider creates a provider for the OpenAI API.
func NewOpenAIProvider(apiKey string, opts ...Option) (*ChatProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return newChatProvider(ProviderOpenAI, apiKey, providerConfig{model: defaultOpenAIModel}, opts), nil
}

// NewOllamaProvider creates a provider for a local Ollama server. baseURL is
// the server root, e.g. http://localhost:11434; the /v1 suffix is added.
func NewOllamaProvider(baseURL string, opts ...Option) (*ChatProvider, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	// Ollama ignores the key but the client requires one.
	return newChatProvider(ProviderOllama, "ollama", providerConfig{model: defaultOllamaModel, baseURL: base}, opts), nil
}

func newChatProvider(name, apiKey string, pc providerConfig, opts []Option) *ChatProvider {
	pc.temperature = 0.2
	pc.httpClient = &http.Client{Timeout: 60 * time.Second}
	for _, opt := range opts {
		opt(&pc)
	}

	cfg := openai.DefaultConfig(apiKey)
	if pc.baseURL != "" {
		cfg.BaseURL = pc.baseURL
	}
	cfg.HTTPClient = pc.httpClient

	return &ChatProvider{
		name:        name,
		client:      openai.NewClientWithConfig(cfg),
		model:       pc.model,
		temperature: pc.temperature,
		maxTokens:   pc.maxTokens,
	}
}

func (p *ChatProvider) Name() string { return p.name }

// Model returns the default model.
func (p *ChatProvider) Model() string { return p.model }

// Ping lists models, which fails fast on a bad key or a dead server.
func (p *ChatProvider) Ping(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return p.classify(err)
	}
	return nil
}

// Chat sends a chat completion request.
func (p *ChatProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		Temperature: float32(p.temperature),
		MaxTokens:   p.maxTokens,
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	if opts != nil {
		if opts.Model != "" {
			req.Model = opts.Model
		}
		if opts.Temperature > 0 {
			req.Temperature = float32(opts.Temperature)
		}
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, p.classify(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%s: %w", p.name, ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	return &Response{
		Content:      strings.TrimSpace(choice.Message.Content),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model:    resp.Model,
		Provider: p.name,
		Latency:  time.Since(start),
	}, nil
}

// classify maps client errors onto the package sentinels.
func (p *ChatProvider) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		if apiErr.Code == "context_length_exceeded" {
			return fmt.Errorf("%s: %w: %v", p.name, ErrContextLength, err)
		}
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w: %v", p.name, ErrNoAPIKey, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %v", p.name, ErrRateLimit, err)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w: %v", p.name, ErrInvalidModel, err)
	}
	return fmt.Errorf("%s: %w: %v", p.name, ErrProviderDown, err)
}
