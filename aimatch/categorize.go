package aimatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/superfill/sfc/memcat"
)

const categorizeSystemPrompt = `You categorize a user's saved form answer.
Given the answer text and the question it responds to, respond with a JSON
object {"category": string, "tags": [string], "confidence": number 0-1} and
nothing else. category must be one of: personal, contact, address, work,
education, preferences, other. tags holds at most 5 short lowercase labels.`

type categorizePayload struct {
	Answer   string `json:"answer"`
	Question string `json:"question,omitempty"`
}

// AnalyzeEntry implements memcat.Analyzer: one completion, parsed into an
// analysis result. Vocabulary enforcement is the caller's job.
func (m *Matcher) AnalyzeEntry(ctx context.Context, answer, question string) (memcat.AnalysisResult, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	data, err := json.Marshal(categorizePayload{Answer: answer, Question: question})
	if err != nil {
		return memcat.AnalysisResult{}, fmt.Errorf("aimatch: marshal entry: %w", err)
	}

	start := time.Now()
	raw, err := m.complete(ctx, categorizeSystemPrompt, "Categorize this entry:\n"+string(data))
	if err != nil {
		return memcat.AnalysisResult{}, err
	}

	var res memcat.AnalysisResult
	raw = stripFence(strings.TrimSpace(raw))
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return memcat.AnalysisResult{}, fmt.Errorf("aimatch: parse analysis: %w", err)
	}
	if res.Category == "" {
		return memcat.AnalysisResult{}, fmt.Errorf("aimatch: analysis has no category")
	}
	m.logger.Debug("aimatch: categorized",
		"provider", m.provider, "category", res.Category, "elapsed", time.Since(start))
	return res, nil
}
