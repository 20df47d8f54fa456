// Package message defines the platform-independent message shapes passed
// between the Discord layer, the decision gate, the prompt assembler and the
// repetition tracker.
//
// Every inbound platform message is normalized into exactly one of three
// shapes: Direct (one-on-one conversation), Channel (multi-party channel or
// thread, with mentions), or the bare Generic fallback for unrecognized
// channel types. All three share the same sanitized core.
package message

import (
	"strings"
	"time"
)

// sanitizer replaces characters that would corrupt prompt formatting.
// Each forbidden character maps to exactly one space so length and ordering
// of the surrounding text are preserved.
var sanitizer = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")

// Sanitize strips newline, carriage return and tab from a raw string,
// replacing each occurrence with a single space.
func Sanitize(raw string) string {
	return sanitizer.Replace(raw)
}

// Generic is the shared core of all message shapes: an immutable snapshot of
// a platform message at normalization time. Used on its own it is the
// fallback shape for unrecognized channel types, which carries no channel id
// and therefore disables unsolicited-reply tracking.
type Generic struct {
	AuthorID   string
	AuthorName string // sanitized
	ID         string
	Body       string // sanitized
	FromBot    bool
	SentAt     time.Time
}

// Meta returns the shared sanitized core.
func (g Generic) Meta() Generic { return g }

func (g Generic) shape() {}

// Direct is a message from a one-on-one conversation. It carries no channel
// association.
type Direct struct {
	Generic
}

// Channel is a message from a multi-party channel or thread.
type Channel struct {
	Generic
	ChannelID string
	Mentions  []string // user ids explicitly mentioned in the body
}

// WithChannelID returns a copy of the message redirected to another channel.
// Used when a reply thread is created in response to this message, so that
// unsolicited-reply tracking watches the thread rather than the origin
// channel. The receiver is never mutated.
func (c Channel) WithChannelID(id string) Channel {
	c.ChannelID = id
	return c
}

// MentionsUser reports whether the given user id was explicitly mentioned.
func (c Channel) MentionsUser(userID string) bool {
	for _, m := range c.Mentions {
		if m == userID {
			return true
		}
	}
	return false
}

// Message is the closed set of normalized message shapes. The only
// implementations are Generic, Direct and Channel.
type Message interface {
	Meta() Generic
	shape()
}
