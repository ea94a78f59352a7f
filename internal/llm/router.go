package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/marketdesk/internal/config"
)

// Router sends requests to the primary provider and falls back through the
// configured chain, retrying transient failures on each provider.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the maximum number of retry attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = max(0, n) }
}

// WithRetryDelay sets the base delay between retries. The nth retry waits
// n times this delay.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// WithLogger sets the router logger.
func WithLogger(log zerolog.Logger) RouterOption {
	return func(r *Router) { r.log = log.With().Str("component", "llm").Logger() }
}

// NewRouter creates a router with the given primary provider.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]Provider),
		primary:    primary,
		maxRetries: 2,
		retryDelay: time.Second,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Primary returns the primary provider.
func (r *Router) Primary() (Provider, error) {
	p, ok := r.GetProvider(r.primary)
	if !ok {
		return nil, fmt.Errorf("%w: primary provider %q not registered", ErrNoProviders, r.primary)
	}
	return p, nil
}

// Chat tries the primary provider first, then each fallback in order.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	var lastErr error
	tried := 0
	for _, name := range r.providerChain() {
		provider, ok := r.GetProvider(name)
		if !ok {
			continue
		}
		tried++

		resp, err := r.chatWithRetry(ctx, provider, messages, opts)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		r.log.Warn().Err(err).Str("provider", name).Msg("provider failed, trying next")
	}

	if tried == 0 {
		return nil, ErrNoProviders
	}
	return nil, fmt.Errorf("llm: all providers failed, last error: %w", lastErr)
}

// HealthCheck pings all registered providers concurrently.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]Provider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, provider := range providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := provider.Ping(pingCtx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// Name returns "router/<primary>".
func (r *Router) Name() string { return "router/" + r.primary }

// Ping checks the primary provider's health.
func (r *Router) Ping(ctx context.Context) error {
	p, err := r.Primary()
	if err != nil {
		return err
	}
	return p.Ping(ctx)
}

// ProviderNames returns the names of all registered providers, sorted.
func (r *Router) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ── Internal Helpers ──

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	seen := map[string]bool{r.primary: true}
	for _, fb := range r.fallbacks {
		if !seen[fb] {
			seen[fb] = true
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) chatWithRetry(ctx context.Context, provider Provider, messages []Message, opts *ChatOptions) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retryDelay * time.Duration(attempt)):
			}
		}

		resp, err := provider.Chat(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if isNonRetryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// isNonRetryable reports errors that another attempt on the same provider
// cannot fix.
func isNonRetryable(err error) bool {
	return errors.Is(err, ErrNoAPIKey) ||
		errors.Is(err, ErrInvalidModel) ||
		errors.Is(err, ErrContextLength)
}

// NewRouterFromConfig builds a router from the llm config section. OpenAI
// is registered when a key is set, Ollama when it is named as primary or
// fallback, and the template provider always closes the chain.
func NewRouterFromConfig(cfg config.LLMConfig, log zerolog.Logger) (*Router, error) {
	primary := cfg.Primary
	if primary == "" {
		primary = ProviderTemplate
	}
	fallbacks := append([]string{}, cfg.Fallbacks...)
	fallbacks = append(fallbacks, ProviderTemplate)

	router := NewRouter(primary,
		WithFallbacks(fallbacks...),
		WithMaxRetries(cfg.MaxRetries),
		WithRetryDelay(time.Second),
		WithLogger(log),
	)

	wanted := map[string]bool{primary: true}
	for _, fb := range cfg.Fallbacks {
		wanted[fb] = true
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	common := []Option{WithTemperature(cfg.Temperature), WithMaxTokens(cfg.MaxTokens), WithTimeout(timeout)}

	if cfg.OpenAIKey != "" {
		p, err := NewOpenAIProvider(cfg.OpenAIKey, append(common, WithModel(cfg.Model), WithBaseURL(cfg.OpenAIURL))...)
		if err != nil {
			return nil, err
		}
		router.RegisterProvider(p)
	} else if wanted[ProviderOpenAI] {
		router.log.Warn().Msg("openai requested but no API key configured, skipping")
	}

	if wanted[ProviderOllama] {
		p, err := NewOllamaProvider(cfg.OllamaURL, append(common, WithModel(cfg.OllamaModel))...)
		if err != nil {
			return nil, err
		}
		router.RegisterProvider(p)
	}

	router.RegisterProvider(NewTemplateProvider())
	router.log.Debug().Str("primary", primary).Strs("providers", router.ProviderNames()).Msg("llm router ready")
	return router, nil
}
