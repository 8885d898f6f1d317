package capability

import (
	"context"
	"regexp"
	"strings"
)

// KeywordExtractor is a regex-driven reference Extractor: it recognizes a
// small set of surface patterns (capitalized multi-word phrases) as
// entities of label "Unknown" with a fixed confidence. It exists so the
// extraction worker has something to call without depending on a real NLP
// model; production deployments are expected to supply their own
// Extractor grounded in an actual model.
type KeywordExtractor struct {
	// Confidence is the confidence value attached to every match.
	Confidence float32
}

var capitalizedPhrase = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*(?:\s[A-Z][a-zA-Z0-9]*){0,2}\b`)

// NewKeywordExtractor returns a KeywordExtractor with a default confidence
// of 0.5 if confidence <= 0.
func NewKeywordExtractor(confidence float32) *KeywordExtractor {
	if confidence <= 0 {
		confidence = 0.5
	}
	return &KeywordExtractor{Confidence: confidence}
}

func (e *KeywordExtractor) Extract(_ context.Context, content string) ([]Entity, error) {
	matches := capitalizedPhrase.FindAllString(content, -1)
	seen := make(map[string]bool)
	var entities []Entity
	for _, m := range matches {
		trimmed := strings.TrimSpace(m)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		entities = append(entities, Entity{Text: trimmed, Label: "Unknown", Confidence: e.Confidence})
	}
	return entities, nil
}
