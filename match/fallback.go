package match

import (
	"fmt"
	"sort"

	"github.com/superfill/sfc/fieldmeta"
)

type scoredMemory struct {
	mem   CompressedMemoryData
	score float64
	index int
}

// fallbackMatch is the local multi-signal scorer. It combines purpose-keyword
// presence, tag-token overlap, label-token overlap and answer-format
// plausibility into a weighted sum. Ties break by input order; for fixed
// inputs the output is identical across runs.
func (e *Engine) fallbackMatch(field CompressedFieldData, memories []CompressedMemoryData) FieldMapping {
	purpose := fieldmeta.FieldPurpose(field.Purpose)
	fieldTokens := field.contextTokens(e.cfg.MaxTokensPerBlock)

	scored := make([]scoredMemory, len(memories))
	for i, mem := range memories {
		scored[i] = scoredMemory{mem: mem, score: e.scoreMemory(purpose, fieldTokens, mem), index: i}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].index < scored[j].index
	})

	best := scored[0]
	mapping := FieldMapping{
		FieldOpid:  field.Opid,
		Confidence: round2(best.score),
	}
	for _, cand := range scored[1:] {
		if len(mapping.AlternativeMatches) == maxAlternatives {
			break
		}
		if cand.score <= 0 {
			break
		}
		mapping.AlternativeMatches = append(mapping.AlternativeMatches, AlternativeMatch{
			MemoryID:   cand.mem.ID,
			Value:      cand.mem.Answer,
			Confidence: round2(cand.score),
		})
	}

	if best.score < e.cfg.MatchThreshold {
		mapping.Reasoning = fmt.Sprintf("Best candidate %q scored %.2f, below the match threshold", best.mem.ID, best.score)
		return mapping
	}
	mapping.MemoryID = &scored[0].mem.ID
	mapping.Value = &scored[0].mem.Answer
	mapping.AutoFill = best.score >= e.cfg.AutoFillThreshold
	mapping.Reasoning = fmt.Sprintf("Matched on field context with score %.2f", best.score)
	return mapping
}

// scoreMemory computes the weighted sum for one field/memory pair, clamped
// to [0,1].
func (e *Engine) scoreMemory(purpose fieldmeta.FieldPurpose, fieldTokens map[string]bool, mem CompressedMemoryData) float64 {
	var purposeScore float64
	if purpose != fieldmeta.PurposeUnknown && referencesPurpose(mem, purpose) {
		purposeScore = 1
	}

	max := e.cfg.MaxTokensPerBlock
	tagScore := overlap(fieldTokens, tokenSet(max, mem.Tags...))
	labelScore := overlap(fieldTokens, tokenSet(max, mem.Question, mem.Category, mem.Answer))
	format := formatScore(purpose, mem.Answer)

	score := e.cfg.PurposeWeight*purposeScore +
		e.cfg.TagWeight*tagScore +
		e.cfg.LabelWeight*labelScore +
		e.cfg.FormatWeight*format
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
