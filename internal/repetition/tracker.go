// Package repetition watches the bot's own replies for self-repetition and
// maintains a per-channel throttle marker: the id of the earliest message
// still in scope for prompt assembly. When the bot repeats itself, older
// history is hidden so the model stops feeding on its own loop.
package repetition

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/rosiebot/rosie/internal/message"
)

// DefaultThreshold is the number of consecutive repeats that trips the
// throttle.
const DefaultThreshold = 1

type channelState struct {
	lastSentence string
	repeats      int
	throttleID   string
}

// Tracker records sent messages per channel and computes throttle markers.
// Safe for concurrent use from multiple in-flight message handlers.
type Tracker struct {
	mu        sync.Mutex
	threshold int
	channels  map[string]*channelState
}

// NewTracker creates a tracker that throttles after threshold consecutive
// repeats. A threshold <= 0 uses DefaultThreshold.
func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{
		threshold: threshold,
		channels:  make(map[string]*channelState),
	}
}

// normalize reduces a sentence for comparison: whitespace-trimmed, lowercased.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LogMessage records one sent reply fragment for a channel. If the fragment
// repeats the previous one often enough, the throttle marker moves up to the
// repeated message so prompt assembly hides everything older.
func (t *Tracker) LogMessage(channelID string, msg message.Generic) {
	sentence := normalize(msg.Body)
	if sentence == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.channels[channelID]
	if st == nil {
		st = &channelState{}
		t.channels[channelID] = st
	}

	if sentence != st.lastSentence {
		st.lastSentence = sentence
		st.repeats = 0
		return
	}

	st.repeats++
	if st.repeats >= t.threshold {
		st.throttleID = msg.ID
		slog.Info("repetition detected, hiding older history",
			"channel_id", channelID,
			"message_id", msg.ID,
			"repeats", st.repeats,
		)
	}
}

// ThrottleMessageID returns the current throttle marker for a channel, or ""
// when the full history is in scope.
func (t *Tracker) ThrottleMessageID(channelID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st := t.channels[channelID]; st != nil {
		return st.throttleID
	}
	return ""
}

// HideMessagesBefore moves the throttle marker to the given message,
// discarding everything older from conversational memory. This is the
// operator-facing reset (the lobotomize command).
func (t *Tracker) HideMessagesBefore(channelID, messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.channels[channelID]
	if st == nil {
		st = &channelState{}
		t.channels[channelID] = st
	}
	st.throttleID = messageID
	st.lastSentence = ""
	st.repeats = 0
}
