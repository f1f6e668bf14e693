package aimatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
	// Temperature near zero: matching wants determinism, not creativity.
	Temperature float64 `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (m *Matcher) completeAnthropic(ctx context.Context, system, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     m.model,
		MaxTokens: 4096,
		System:    system,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("aimatch: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("aimatch: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", m.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("aimatch: anthropic request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("aimatch: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("aimatch: anthropic returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("aimatch: parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("aimatch: anthropic error: %s", parsed.Error.Message)
	}

	var out strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("aimatch: anthropic returned no text content")
	}
	return out.String(), nil
}
