package match

import (
	"fmt"
	"strings"

	"github.com/superfill/sfc/fieldmeta"
)

// referencesPurpose reports whether a memory's category, tags or question
// textually mention the purpose vocabulary.
func referencesPurpose(mem CompressedMemoryData, purpose fieldmeta.FieldPurpose) bool {
	keywords := append([]string{string(purpose)}, fieldmeta.KeywordsFor(purpose)...)
	haystack := strings.ToLower(mem.Category + " " + mem.Question + " " + strings.Join(mem.Tags, " "))
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// simpleMatch handles purposes with reliable format validators. Candidates
// referencing the purpose are preferred; when none do, email and phone widen
// to every memory on format validity alone. Name validation accepts too much
// arbitrary text for that widening to be safe, so an unreferenced name field
// goes to the fallback scorer. Returns ok=false when no answer validates.
func (e *Engine) simpleMatch(field CompressedFieldData, memories []CompressedMemoryData) (FieldMapping, bool) {
	purpose := fieldmeta.FieldPurpose(field.Purpose)

	candidates := make([]CompressedMemoryData, 0, len(memories))
	for _, mem := range memories {
		if referencesPurpose(mem, purpose) {
			candidates = append(candidates, mem)
		}
	}
	if len(candidates) == 0 {
		if purpose == fieldmeta.PurposeName {
			return FieldMapping{}, false
		}
		candidates = memories
	}

	valid := make([]CompressedMemoryData, 0, len(candidates))
	for _, mem := range candidates {
		if formatScore(purpose, mem.Answer) == 1 {
			valid = append(valid, mem)
		}
	}
	if len(valid) == 0 {
		return FieldMapping{}, false
	}

	best := valid[0]
	conf := round2(e.cfg.SimpleMatchConfidence)
	mapping := FieldMapping{
		FieldOpid:  field.Opid,
		MemoryID:   &best.ID,
		Value:      &best.Answer,
		Confidence: conf,
		Reasoning:  fmt.Sprintf("Answer format is a valid %s", purpose),
		AutoFill:   conf >= e.cfg.AutoFillThreshold,
	}
	for _, mem := range valid[1:] {
		if len(mapping.AlternativeMatches) == maxAlternatives {
			break
		}
		mapping.AlternativeMatches = append(mapping.AlternativeMatches, AlternativeMatch{
			MemoryID:   mem.ID,
			Value:      mem.Answer,
			Confidence: conf,
		})
	}
	return mapping, true
}
