// Package memcat assigns a category and tags to a memory entry from its
// answer and question text. Analysis is AI-assisted when an Analyzer is
// configured; the rule-based pass is the mandatory fallback, so an entry
// always leaves with a category.
package memcat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/superfill/sfc/fieldmeta"
	"github.com/superfill/sfc/match"
)

// Categories is the closed category vocabulary. AI results outside it are
// discarded in favour of the rule-based pass.
var Categories = []string{
	"personal", "contact", "address", "work", "education", "preferences", "other",
}

// AnalysisResult is one categorization outcome.
type AnalysisResult struct {
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Confidence float64  `json:"confidence"`
}

// Analyzer is the external AI collaborator for entry analysis.
type Analyzer interface {
	AnalyzeEntry(ctx context.Context, answer, question string) (AnalysisResult, error)
}

// Categorizer runs entry analysis with the AI path first and rules second.
type Categorizer struct {
	ai     Analyzer
	logger *slog.Logger
}

// Option configures a Categorizer.
type Option func(*Categorizer)

// WithAnalyzer enables the AI-assisted path.
func WithAnalyzer(ai Analyzer) Option {
	return func(c *Categorizer) { c.ai = ai }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Categorizer) { c.logger = logger }
}

// New returns a Categorizer. Without options it is purely rule-based.
func New(opts ...Option) *Categorizer {
	c := &Categorizer{logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Analyze categorizes one entry. Never fails: any AI error or off-vocabulary
// answer drops to the rule-based pass.
func (c *Categorizer) Analyze(ctx context.Context, answer, question string) AnalysisResult {
	if c.ai != nil {
		res, err := c.ai.AnalyzeEntry(ctx, answer, question)
		switch {
		case err != nil:
			c.logger.Warn("memcat: AI analysis failed, using rules", "error", err)
		case !knownCategory(res.Category):
			c.logger.Warn("memcat: AI returned unknown category, using rules",
				"category", res.Category)
		default:
			return clamp(res)
		}
	}
	return RuleBased(answer, question)
}

func knownCategory(cat string) bool {
	for _, c := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

func clamp(res AnalysisResult) AnalysisResult {
	if res.Confidence < 0 {
		res.Confidence = 0
	}
	if res.Confidence > 1 {
		res.Confidence = 1
	}
	return res
}

// purposeCategories folds the field-purpose taxonomy into memory categories.
var purposeCategories = map[fieldmeta.FieldPurpose]string{
	fieldmeta.PurposeName:    "personal",
	fieldmeta.PurposeEmail:   "contact",
	fieldmeta.PurposePhone:   "contact",
	fieldmeta.PurposeAddress: "address",
	fieldmeta.PurposeCity:    "address",
	fieldmeta.PurposeState:   "address",
	fieldmeta.PurposeZip:     "address",
	fieldmeta.PurposeCountry: "address",
	fieldmeta.PurposeCompany: "work",
	fieldmeta.PurposeTitle:   "work",
}

// RuleBased categorizes without a model. Answer shape is decisive for email
// and phone; otherwise the question goes through the field-purpose
// classifier. Anything unrecognized lands in "other".
func RuleBased(answer, question string) AnalysisResult {
	if match.ValidEmail(strings.TrimSpace(answer)) {
		return AnalysisResult{Category: "contact", Tags: []string{"email"}, Confidence: 0.9}
	}
	if match.ValidPhone(answer) {
		return AnalysisResult{Category: "contact", Tags: []string{"phone"}, Confidence: 0.85}
	}

	if q := strings.TrimSpace(question); q != "" {
		meta := fieldmeta.Metadata{LabelTag: q}
		if p := fieldmeta.ClassifyPurpose(&meta); p != fieldmeta.PurposeUnknown {
			return AnalysisResult{
				Category:   purposeCategories[p],
				Tags:       []string{string(p)},
				Confidence: 0.6,
			}
		}
	}
	return AnalysisResult{Category: "other", Confidence: 0.3}
}
