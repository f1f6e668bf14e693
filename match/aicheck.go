package match

import "fmt"

// validateAIMappings enforces the matcher contract on an AI response: one
// mapping per input field opid, memory references that exist in the
// considered pool, and normalized confidence values. A violation sends the
// whole batch to the local scorer.
func validateAIMappings(fields []CompressedFieldData, mappings []FieldMapping) error {
	if len(mappings) != len(fields) {
		return fmt.Errorf("match: got %d mappings for %d fields", len(mappings), len(fields))
	}
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f.Opid] = true
	}
	seen := make(map[string]bool, len(mappings))
	for i := range mappings {
		m := &mappings[i]
		if !want[m.FieldOpid] {
			return fmt.Errorf("match: mapping for unknown opid %q", m.FieldOpid)
		}
		if seen[m.FieldOpid] {
			return fmt.Errorf("match: duplicate mapping for opid %q", m.FieldOpid)
		}
		seen[m.FieldOpid] = true

		m.Confidence = round2(m.Confidence)
		if m.MemoryID != nil && *m.MemoryID == "" {
			m.MemoryID = nil
		}
		if m.MemoryID == nil {
			m.Value = nil
			m.AutoFill = false
		}
		if len(m.AlternativeMatches) > maxAlternatives {
			m.AlternativeMatches = m.AlternativeMatches[:maxAlternatives]
		}
		alts := m.AlternativeMatches[:0]
		for _, alt := range m.AlternativeMatches {
			if m.MemoryID != nil && alt.MemoryID == *m.MemoryID {
				continue
			}
			alt.Confidence = round2(alt.Confidence)
			alts = append(alts, alt)
		}
		m.AlternativeMatches = alts
	}
	return nil
}
