package capability

import (
	"fmt"
	"strings"
)

// ForbiddenWordPolicy rejects content containing any of a configured set
// of case-insensitive forbidden substrings.
type ForbiddenWordPolicy struct {
	forbidden []string
}

// NewForbiddenWordPolicy returns a policy rejecting content containing any
// of words, matched case-insensitively.
func NewForbiddenWordPolicy(words ...string) *ForbiddenWordPolicy {
	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}
	return &ForbiddenWordPolicy{forbidden: lowered}
}

func (p *ForbiddenWordPolicy) Check(content string) error {
	lowered := strings.ToLower(content)
	for _, w := range p.forbidden {
		if strings.Contains(lowered, w) {
			return fmt.Errorf("content contains forbidden term %q", w)
		}
	}
	return nil
}
