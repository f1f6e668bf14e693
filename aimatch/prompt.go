package aimatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/superfill/sfc/match"
)

const systemPrompt = `You match web form fields to a user's stored answers.
For EVERY field opid you receive, output exactly one mapping object:
{"fieldOpid": string, "memoryId": string|null, "value": string|null,
"confidence": number 0-1, "reasoning": string, "autoFill": boolean,
"alternativeMatches": [{"memoryId": string, "value": string, "confidence": number}]}.
Use memoryId null when no stored answer fits. Never invent values: value must
be the answer of the referenced memory. alternativeMatches holds at most 3
non-primary candidates. Respond with a JSON object {"mappings": [...]} and
nothing else.`

type promptPayload struct {
	Fields   []match.CompressedFieldData  `json:"fields"`
	Memories []match.CompressedMemoryData `json:"memories"`
}

func buildPrompt(fields []match.CompressedFieldData, memories []match.CompressedMemoryData) (string, error) {
	data, err := json.Marshal(promptPayload{Fields: fields, Memories: memories})
	if err != nil {
		return "", fmt.Errorf("aimatch: marshal prompt: %w", err)
	}
	return "Match these fields to these memories:\n" + string(data), nil
}

type mappingsEnvelope struct {
	Mappings []match.FieldMapping `json:"mappings"`
}

// parseMappings decodes a model response. Accepts the envelope object or a
// bare array, with or without a markdown code fence. Values are filled from
// the referenced memory when the model omits them.
func parseMappings(raw string, memories []match.CompressedMemoryData) ([]match.FieldMapping, error) {
	raw = stripFence(strings.TrimSpace(raw))
	if raw == "" {
		return nil, fmt.Errorf("aimatch: empty response")
	}

	var env mappingsEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Mappings == nil {
		var bare []match.FieldMapping
		if err2 := json.Unmarshal([]byte(raw), &bare); err2 != nil {
			return nil, fmt.Errorf("aimatch: parse response: %w", err2)
		}
		env.Mappings = bare
	}
	if len(env.Mappings) == 0 {
		return nil, fmt.Errorf("aimatch: response contains no mappings")
	}

	answers := make(map[string]string, len(memories))
	for _, mem := range memories {
		answers[mem.ID] = mem.Answer
	}
	for i := range env.Mappings {
		m := &env.Mappings[i]
		if m.MemoryID == nil {
			continue
		}
		answer, ok := answers[*m.MemoryID]
		if !ok {
			return nil, fmt.Errorf("aimatch: mapping references unknown memory %q", *m.MemoryID)
		}
		// The stored answer is authoritative over whatever the model echoed.
		m.Value = &answer
	}
	return env.Mappings, nil
}

// stripFence removes a surrounding markdown code fence if present.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
