// Package sd generates images through a Stable Diffusion web UI's API. It
// also detects when a chat message is asking for a picture and extracts the
// description to use as the generation prompt.
package sd

import (
	"regexp"
	"strings"
)

// photoWords are the nouns that signal a picture request when combined with
// a request verb ("draw me a picture of a cat", "show me a photo of mars").
var photoWords = []string{"drawing", "photo", "pic", "picture", "image", "sketch"}

var imagePatterns = buildImagePatterns()

func buildImagePatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(photoWords))
	for _, w := range photoWords {
		patterns = append(patterns, regexp.MustCompile(
			`(?i)^.*\b`+w+`\b\s*(?:of|with)?\s*:?\s*(.+)$`,
		))
	}
	return patterns
}

// MaybeImagePrompt reports whether body asks for a picture, returning the
// extracted description when it does.
func MaybeImagePrompt(body string) (prompt string, ok bool) {
	for _, p := range imagePatterns {
		m := p.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		desc := strings.TrimSpace(m[1])
		if desc == "" {
			continue
		}
		return desc, true
	}
	return "", false
}
