package query

import (
	"strings"
	"unicode"
)

// tokenize splits text into maximal ASCII alphanumeric-or-underscore runs
// (lowercased) plus, for runs of non-ASCII letters/digits, overlapping
// rune 2-grams — the lexical-Jaccard tokenization from spec §4.7.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	var asciiRun, otherRun []rune

	flushASCII := func() {
		if len(asciiRun) > 0 {
			tokens[string(asciiRun)] = true
			asciiRun = asciiRun[:0]
		}
	}
	flushOther := func() {
		if len(otherRun) == 1 {
			tokens[string(otherRun)] = true
		} else if len(otherRun) > 1 {
			for i := 0; i+1 < len(otherRun); i++ {
				tokens[string(otherRun[i:i+2])] = true
			}
		}
		otherRun = otherRun[:0]
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case r < 128 && (unicode.IsDigit(r) || (r >= 'a' && r <= 'z') || r == '_'):
			flushOther()
			asciiRun = append(asciiRun, r)
		case r >= 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			flushASCII()
			otherRun = append(otherRun, r)
		default:
			flushASCII()
			flushOther()
		}
	}
	flushASCII()
	flushOther()
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var intersection int
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// candidateScore implements spec §4.7 step 4's scoring formula:
// max(anchor*0.8 + lexical*0.2, lexical, 0.01) / (hop+1).
func candidateScore(anchorScore float32, lexicalJaccard float64, hop int) float32 {
	combined := float64(anchorScore)*0.8 + lexicalJaccard*0.2
	score := combined
	if lexicalJaccard > score {
		score = lexicalJaccard
	}
	if score < 0.01 {
		score = 0.01
	}
	return float32(score / float64(hop+1))
}

func nodeTokens(data string, metadata map[string]string) map[string]bool {
	var sb strings.Builder
	sb.WriteString(data)
	for _, v := range metadata {
		sb.WriteByte(' ')
		sb.WriteString(v)
	}
	return tokenize(sb.String())
}
