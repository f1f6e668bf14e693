package memcat

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
)

func quiet(opts ...Option) *Categorizer {
	base := []Option{WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))}
	return New(append(base, opts...)...)
}

func TestRuleBased(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		question string
		category string
		tag      string
	}{
		{"email answer", "user@example.com", "", "contact", "email"},
		{"phone answer", "+1 503 555 0100", "Best number to reach you", "contact", "phone"},
		{"name question", "Ada Lovelace", "What is your full name?", "personal", "name"},
		{"company question", "Acme Corp", "Company name", "work", "company"},
		{"city question", "Portland", "Which city do you live in?", "address", "city"},
		{"unrecognized", "blue", "Favorite color", "other", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RuleBased(tt.answer, tt.question)
			if got.Category != tt.category {
				t.Errorf("category: got %q, want %q", got.Category, tt.category)
			}
			if tt.tag == "" {
				if len(got.Tags) != 0 {
					t.Errorf("tags: got %v, want none", got.Tags)
				}
			} else if len(got.Tags) != 1 || got.Tags[0] != tt.tag {
				t.Errorf("tags: got %v, want [%s]", got.Tags, tt.tag)
			}
			if got.Confidence <= 0 || got.Confidence > 1 {
				t.Errorf("confidence: got %v", got.Confidence)
			}
		})
	}
}

type stubAnalyzer struct {
	res   AnalysisResult
	err   error
	calls int
}

func (s *stubAnalyzer) AnalyzeEntry(ctx context.Context, answer, question string) (AnalysisResult, error) {
	s.calls++
	return s.res, s.err
}

func TestAnalyzeUsesAIResult(t *testing.T) {
	ai := &stubAnalyzer{res: AnalysisResult{Category: "work", Tags: []string{"employer"}, Confidence: 0.8}}
	c := quiet(WithAnalyzer(ai))

	got := c.Analyze(context.Background(), "Acme Corp", "Where do you work?")
	if ai.calls != 1 {
		t.Fatalf("AI calls: got %d, want 1", ai.calls)
	}
	if got.Category != "work" || got.Confidence != 0.8 {
		t.Errorf("result: %+v", got)
	}
}

func TestAnalyzeFallsBackOnAIError(t *testing.T) {
	ai := &stubAnalyzer{err: errors.New("timeout")}
	c := quiet(WithAnalyzer(ai))

	got := c.Analyze(context.Background(), "user@example.com", "")
	if got.Category != "contact" {
		t.Errorf("category: got %q, want contact", got.Category)
	}
}

func TestAnalyzeRejectsUnknownCategory(t *testing.T) {
	ai := &stubAnalyzer{res: AnalysisResult{Category: "finance", Confidence: 0.9}}
	c := quiet(WithAnalyzer(ai))

	got := c.Analyze(context.Background(), "user@example.com", "")
	if got.Category != "contact" {
		t.Errorf("category: got %q, want contact", got.Category)
	}
}

func TestAnalyzeClampsConfidence(t *testing.T) {
	ai := &stubAnalyzer{res: AnalysisResult{Category: "personal", Confidence: 1.7}}
	c := quiet(WithAnalyzer(ai))

	got := c.Analyze(context.Background(), "Ada", "Name")
	if got.Confidence != 1 {
		t.Errorf("confidence: got %v, want 1", got.Confidence)
	}
}
