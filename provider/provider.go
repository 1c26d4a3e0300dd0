package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/conflictcast/config"
	"github.com/mohammad-safakhou/conflictcast/models"
	gemini_provider "github.com/mohammad-safakhou/conflictcast/provider/gemini"
	openai_provider "github.com/mohammad-safakhou/conflictcast/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
	Gemini Client = "gemini"
)

// ErrMissingAPIKey is returned when a provider is built without credentials.
var ErrMissingAPIKey = errors.New("provider api key not set")

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Name() string
	Complete(ctx context.Context, req models.CompletionRequest) (models.CompletionResponse, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(ctx context.Context, name string, cfg config.LLMProvider) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingAPIKey)
	}
	kind := Client(strings.ToLower(cfg.Type))
	if kind == "" {
		kind = Client(strings.ToLower(name))
	}
	switch kind {
	case OpenAI:
		return openai_provider.NewOpenAIClient(name, cfg.APIKey, cfg.BaseURL, cfg.MaxTokens, cfg.Timeout), nil
	case Gemini:
		return gemini_provider.NewGeminiClient(ctx, name, cfg.APIKey, cfg.BaseURL, cfg.MaxTokens, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unsupported LLM provider type %q", cfg.Type)
	}
}

// Registry builds providers on first use so a missing key only fails the
// roles routed to that provider.
type Registry struct {
	configs   map[string]config.LLMProvider
	providers map[string]Provider
	mu        sync.Mutex
}

func NewRegistry(configs map[string]config.LLMProvider) *Registry {
	return &Registry{configs: configs, providers: map[string]Provider{}}
}

// Get returns the provider registered under name.
func (r *Registry) Get(ctx context.Context, name string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	cfg, ok := r.configs[name]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q", name)
	}
	p, err := NewProvider(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	r.providers[name] = p
	return p, nil
}
