// Package prompt turns conversation history into a generation prompt: a
// fixed instruction header, the persona, a transcript of recent messages and
// the bot prompt line that cues the model to speak as the persona.
package prompt

import (
	"fmt"
	"iter"
	"strings"

	"github.com/rosiebot/rosie/internal/message"
)

const header = "You are in a chat room with multiple participants. " +
	"Below is a transcript of recent messages in the conversation. " +
	"Write the next one to three messages that you would send in this " +
	"conversation, from the point of view of the participant named %s.\n"

// PersonaFunc returns the current persona text. Reading through a func makes
// hot-reloaded persona files visible per request.
type PersonaFunc func() string

// Generator assembles prompts for the generation backend.
type Generator struct {
	aiName       string
	persona      PersonaFunc
	historyLines int
}

// NewGenerator creates a prompt assembler for the given persona.
func NewGenerator(aiName string, persona PersonaFunc, historyLines int) *Generator {
	return &Generator{
		aiName:       aiName,
		persona:      persona,
		historyLines: historyLines,
	}
}

// BotPromptLine is the cue line that precedes the model's own reply. The
// reply emitter discards fragments that echo it.
func (g *Generator) BotPromptLine() string {
	return g.aiName + " says:"
}

// HistoryLines is the number of prior messages retrieved per request.
func (g *Generator) HistoryLines() int {
	return g.historyLines
}

// Generate renders the prompt from a newest-first history sequence. The
// sequence is consumed exactly once. Messages at or older than the throttle
// marker are excluded: the marker is the earliest message still in scope.
// An error from the underlying history stream aborts assembly.
func (g *Generator) Generate(history iter.Seq2[message.Message, error], imageRequested bool, throttleMessageID string) (string, error) {
	// Collect newest-first, stopping once the throttle marker is included.
	var lines []string
	for msg, err := range history {
		if err != nil {
			return "", fmt.Errorf("assemble history: %w", err)
		}
		meta := msg.Meta()
		if meta.Body != "" {
			lines = append(lines, fmt.Sprintf("%s says:\n%s\n", meta.AuthorName, meta.Body))
		}
		if throttleMessageID != "" && meta.ID == throttleMessageID {
			break
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, header, g.aiName)
	b.WriteString("\n")
	if p := g.persona(); p != "" {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "All responses you write must be from the point of view of %s.\n", g.aiName)
	b.WriteString("### Transcript:\n")

	// Render oldest-first.
	for i := len(lines) - 1; i >= 0; i-- {
		b.WriteString(lines[i])
	}

	if imageRequested {
		fmt.Fprintf(&b, "%s: is currently generating an image, as requested.\n", g.aiName)
	}

	b.WriteString(g.BotPromptLine())
	b.WriteString("\n")

	return b.String(), nil
}
