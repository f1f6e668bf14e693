// Package match maps detected form fields to stored memories. Fields whose
// purpose has a reliable format validator take a cheap deterministic path;
// everything else goes through a multi-signal token scorer, optionally
// preceded by an AI-assisted matcher that falls back to the local scorer on
// any failure. For fixed inputs the local paths are byte-identical across
// runs.
package match

import "math"

// maxAlternatives bounds AlternativeMatches on every mapping.
const maxAlternatives = 3

// AlternativeMatch is a non-primary candidate surfaced for user review.
type AlternativeMatch struct {
	MemoryID   string  `json:"memoryId"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// FieldMapping links one detected field to its best memory candidate. A nil
// MemoryID means no confident match; the mapping is still emitted so the
// review UI can show why.
type FieldMapping struct {
	FieldOpid          string             `json:"fieldOpid"`
	MemoryID           *string            `json:"memoryId"`
	Value              *string            `json:"value"`
	Confidence         float64            `json:"confidence"`
	Reasoning          string             `json:"reasoning"`
	AlternativeMatches []AlternativeMatch `json:"alternativeMatches"`
	AutoFill           bool               `json:"autoFill"`
}

// CompressedFieldData is the minimal field payload handed to matchers. It
// bounds prompt size for the AI path and carries no DOM references.
type CompressedFieldData struct {
	Opid        string `json:"opid"`
	FieldType   string `json:"fieldType"`
	Purpose     string `json:"purpose"`
	Label       string `json:"label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	HelperText  string `json:"helperText,omitempty"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
}

// CompressedMemoryData is the minimal memory payload handed to matchers.
type CompressedMemoryData struct {
	ID       string   `json:"id"`
	Question string   `json:"question,omitempty"`
	Answer   string   `json:"answer"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Config holds the scorer weights, thresholds and capacity bounds. The
// defaults are heuristic tuning values, configurable rather than invariant.
type Config struct {
	// Fallback scorer signal weights, summing to 1.
	PurposeWeight float64 `yaml:"purpose_weight"`
	TagWeight     float64 `yaml:"tag_weight"`
	LabelWeight   float64 `yaml:"label_weight"`
	FormatWeight  float64 `yaml:"format_weight"`

	// Below MatchThreshold a mapping carries no memory; at or above
	// AutoFillThreshold it is eligible for automatic application.
	MatchThreshold    float64 `yaml:"match_threshold"`
	AutoFillThreshold float64 `yaml:"autofill_threshold"`

	// SimpleMatchConfidence is the fixed confidence assigned by the simple
	// path, where format validation is boolean-strength evidence.
	SimpleMatchConfidence float64 `yaml:"simple_match_confidence"`

	// Capacity bounds. Inputs beyond the caps are excluded, not
	// deprioritized, and the truncation is logged.
	MaxFields   int `yaml:"max_fields"`
	MaxMemories int `yaml:"max_memories"`

	// MaxTokensPerBlock caps the tokens taken from any one text block.
	MaxTokensPerBlock int `yaml:"max_tokens_per_block"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		PurposeWeight:         0.5,
		TagWeight:             0.2,
		LabelWeight:           0.2,
		FormatWeight:          0.1,
		MatchThreshold:        0.35,
		AutoFillThreshold:     0.75,
		SimpleMatchConfidence: 0.85,
		MaxFields:             100,
		MaxMemories:           200,
		MaxTokensPerBlock:     24,
	}
}

// round2 clamps to [0,1] and rounds to 2 decimals for display stability.
func round2(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return math.Round(v*100) / 100
}
