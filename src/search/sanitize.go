package search

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips markup from third-party text before it reaches the model.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean removes every tag, decodes entities and collapses whitespace.
func (s *Sanitizer) Clean(text string) string {
	stripped := html.UnescapeString(s.policy.Sanitize(text))
	return strings.Join(strings.Fields(stripped), " ")
}
