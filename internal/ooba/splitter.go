package ooba

import (
	"strings"
	"unicode"
)

// SentenceSplitter accumulates streamed token fragments and emits complete
// sentences. A sentence ends at terminal punctuation followed by whitespace,
// or at a newline. Not safe for concurrent use; each stream gets its own.
type SentenceSplitter struct {
	buf strings.Builder
}

// NewSentenceSplitter returns an empty splitter.
func NewSentenceSplitter() *SentenceSplitter {
	return &SentenceSplitter{}
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Feed appends a token fragment and returns any sentences completed by it,
// trimmed of surrounding whitespace. Empty sentences are dropped.
func (s *SentenceSplitter) Feed(text string) []string {
	s.buf.WriteString(text)

	var out []string
	pending := s.buf.String()
	for {
		sentence, rest, ok := cutSentence(pending)
		if !ok {
			break
		}
		if sentence != "" {
			out = append(out, sentence)
		}
		pending = rest
	}
	s.buf.Reset()
	s.buf.WriteString(pending)
	return out
}

// Flush returns whatever partial sentence remains. Call once, at stream end.
func (s *SentenceSplitter) Flush() string {
	tail := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return tail
}

// cutSentence splits off the first complete sentence. Terminal punctuation
// only ends a sentence once the following rune is known to be whitespace, so
// a fragment ending in "." waits for the next token.
func cutSentence(text string) (sentence, rest string, ok bool) {
	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			return strings.TrimSpace(string(runes[:i])), string(runes[i+1:]), true
		}
		if isTerminal(r) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return strings.TrimSpace(string(runes[:i+1])), string(runes[i+1:]), true
		}
	}
	return "", text, false
}
