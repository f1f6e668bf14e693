package match

import (
	"github.com/superfill/sfc/formscan"
	"github.com/superfill/sfc/memstore"
)

// compressField reduces a detected field to the payload matchers consume.
// The live element reference never crosses this point.
func compressField(f *formscan.DetectedField) CompressedFieldData {
	m := &f.Metadata
	return CompressedFieldData{
		Opid:        f.Opid,
		FieldType:   string(m.FieldType),
		Purpose:     string(m.FieldPurpose),
		Label:       m.BestLabel(),
		Placeholder: m.Placeholder,
		HelperText:  m.HelperText,
		Name:        m.Name,
		ID:          m.ID,
	}
}

func compressMemory(m *memstore.MemoryEntry) CompressedMemoryData {
	return CompressedMemoryData{
		ID:       m.ID,
		Question: m.Question,
		Answer:   m.Answer,
		Category: m.Category,
		Tags:     m.Tags,
	}
}

// contextTokens builds the field's token set from its textual context. Each
// block is capped independently before the union.
func (c CompressedFieldData) contextTokens(max int) map[string]bool {
	return tokenSet(max, c.Label, c.Placeholder, c.HelperText, c.Name, c.ID)
}
