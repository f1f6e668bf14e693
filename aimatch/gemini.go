package aimatch

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

func (m *Matcher) completeGemini(ctx context.Context, system, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: m.apiKey})
	if err != nil {
		return "", fmt.Errorf("aimatch: gemini client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, m.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0.1),
		},
	)
	if err != nil {
		return "", fmt.Errorf("aimatch: gemini request: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("aimatch: gemini returned no text content")
	}
	return text, nil
}
