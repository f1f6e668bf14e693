// Package aimatch is the AI-assisted field matcher. It sends compressed
// field and memory payloads to a configured LLM provider and parses the
// returned mappings. Callers treat it as fallible: the local scorer in the
// match package is the drop-in replacement on any error.
package aimatch

import "fmt"

// Provider identifies a supported LLM backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGroq      Provider = "groq"
	ProviderDeepSeek  Provider = "deepseek"
	ProviderOllama    Provider = "ollama"
	ProviderGemini    Provider = "gemini"
)

// Providers lists every supported provider.
var Providers = []Provider{
	ProviderOpenAI, ProviderAnthropic, ProviderGroq,
	ProviderDeepSeek, ProviderOllama, ProviderGemini,
}

// ParseProvider validates a provider name from settings or config.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("aimatch: unsupported provider %q", s)
}

// providerSpec carries the default model and endpoint per provider. The
// OpenAI-compatible providers share one wire protocol and differ only here.
type providerSpec struct {
	model   string
	baseURL string
}

var providerSpecs = map[Provider]providerSpec{
	ProviderOpenAI:    {model: "gpt-4o-mini", baseURL: "https://api.openai.com/v1"},
	ProviderGroq:      {model: "llama-3.3-70b-versatile", baseURL: "https://api.groq.com/openai/v1"},
	ProviderDeepSeek:  {model: "deepseek-chat", baseURL: "https://api.deepseek.com/v1"},
	ProviderOllama:    {model: "llama3.2", baseURL: "http://localhost:11434/v1"},
	ProviderAnthropic: {model: "claude-3-5-haiku-latest", baseURL: "https://api.anthropic.com/v1"},
	ProviderGemini:    {model: "gemini-2.0-flash"},
}

// RequiresKey reports whether the provider needs a real API key. Ollama is
// local and accepts a placeholder.
func (p Provider) RequiresKey() bool {
	return p != ProviderOllama
}
