package semantic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"prediction-feed/internal/domain"
)

// ErrProviderUnavailable is returned for every call to a provider that cannot
// run, e.g. because no API key is configured.
var ErrProviderUnavailable = errors.New("llm provider unavailable")

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Provider classifies one market prompt.
type Provider interface {
	Name() string
	Model() string
	Classify(ctx context.Context, prompt Prompt) (domain.SemanticOutput, error)
}

// ProviderConfig selects and parameterizes a provider.
type ProviderConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Retries  int
}

// NewProvider builds the configured provider.
// Misconfiguration yields a provider that fails every call with
// ErrProviderUnavailable, so the run degrades to heuristics instead of failing.
func NewProvider(cfg ProviderConfig) Provider {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.APIKey == "" {
		return &unavailableProvider{name: name, model: cfg.Model, reason: "missing api key"}
	}

	switch name {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg)
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg)
	case ProviderGemini:
		return NewGeminiProvider(cfg)
	default:
		return &unavailableProvider{name: name, model: cfg.Model, reason: "unknown provider"}
	}
}

type unavailableProvider struct {
	name   string
	model  string
	reason string
}

func (p *unavailableProvider) Name() string  { return p.name }
func (p *unavailableProvider) Model() string { return p.model }

func (p *unavailableProvider) Classify(ctx context.Context, prompt Prompt) (domain.SemanticOutput, error) {
	return domain.SemanticOutput{}, fmt.Errorf("%s: %w", p.reason, ErrProviderUnavailable)
}
