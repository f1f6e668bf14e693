package aimatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/superfill/sfc/match"
)

// DefaultTimeout bounds one matching call end to end. Applied when the
// incoming context carries no deadline.
const DefaultTimeout = 20 * time.Second

// Matcher implements match.AIMatcher against one provider.
type Matcher struct {
	provider Provider
	apiKey   string
	model    string
	baseURL  string
	client   *http.Client
	logger   *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(m *Matcher) {
		if model != "" {
			m.model = model
		}
	}
}

// WithBaseURL overrides the provider endpoint. Used by tests and
// self-hosted OpenAI-compatible servers.
func WithBaseURL(u string) Option {
	return func(m *Matcher) {
		if u != "" {
			m.baseURL = u
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Matcher) { m.client = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) { m.logger = logger }
}

// New creates a Matcher for a provider. The key may be empty only for
// providers that do not require one.
func New(provider Provider, apiKey string, opts ...Option) (*Matcher, error) {
	spec, ok := providerSpecs[provider]
	if !ok {
		return nil, fmt.Errorf("aimatch: unsupported provider %q", provider)
	}
	if apiKey == "" && provider.RequiresKey() {
		return nil, fmt.Errorf("aimatch: %s requires an API key", provider)
	}
	if apiKey == "" {
		apiKey = "ollama"
	}
	m := &Matcher{
		provider: provider,
		apiKey:   apiKey,
		model:    spec.model,
		baseURL:  spec.baseURL,
		client:   &http.Client{Timeout: DefaultTimeout},
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// MatchFields sends the compressed payloads to the provider and parses the
// returned mappings. The call is bounded by DefaultTimeout unless the
// context already has a tighter deadline, and honors ctx cancellation for
// best-effort abort.
func (m *Matcher) MatchFields(ctx context.Context, fields []match.CompressedFieldData, memories []match.CompressedMemoryData) ([]match.FieldMapping, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	prompt, err := buildPrompt(fields, memories)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := m.complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	mappings, err := parseMappings(raw, memories)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("aimatch: matched",
		"provider", m.provider, "fields", len(fields),
		"mappings", len(mappings), "elapsed", time.Since(start))
	return mappings, nil
}

// complete dispatches one completion to the configured provider's API.
func (m *Matcher) complete(ctx context.Context, system, prompt string) (string, error) {
	switch m.provider {
	case ProviderOpenAI, ProviderGroq, ProviderDeepSeek, ProviderOllama:
		return m.completeOpenAI(ctx, system, prompt)
	case ProviderAnthropic:
		return m.completeAnthropic(ctx, system, prompt)
	case ProviderGemini:
		return m.completeGemini(ctx, system, prompt)
	}
	return "", fmt.Errorf("aimatch: unsupported provider %q", m.provider)
}
