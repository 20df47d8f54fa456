// Package decide implements the gate that determines whether an inbound
// message gets a reply at all, and whether it counts as a direct summon.
//
// Summons are explicit: a mention of the bot user or a configured wakeword.
// After a summon the gate also allows unsolicited replies in that channel for
// a while, with a time-decaying probability, so conversations feel natural
// instead of requiring a wakeword in every message.
package decide

import (
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/rosiebot/rosie/internal/message"
)

// responseChance maps time-since-last-summon to the probability of an
// unsolicited reply. Entries are checked in order; the first window that
// contains the elapsed time wins.
var responseChance = []struct {
	within time.Duration
	chance float64
}{
	{2 * time.Minute, 1.0},
	{5 * time.Minute, 0.5},
	{10 * time.Minute, 0.2},
}

// Responder is the decision gate. Safe for concurrent use.
type Responder struct {
	ignoreDMs bool
	wakewords []*regexp.Regexp

	mu          sync.Mutex
	lastSummon  map[string]time.Time // channel id → time of last summon

	// injectable for tests
	now    func() time.Time
	chance func() float64
}

// NewResponder builds a gate for the given wakewords.
func NewResponder(wakewords []string, ignoreDMs bool) *Responder {
	patterns := make([]*regexp.Regexp, 0, len(wakewords))
	for _, w := range wakewords {
		if w == "" {
			continue
		}
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return &Responder{
		ignoreDMs:  ignoreDMs,
		wakewords:  patterns,
		lastSummon: make(map[string]time.Time),
		now:        time.Now,
		chance:     rand.Float64,
	}
}

// ShouldReply decides whether the bot responds to a message and whether the
// message is a direct summon. Messages from bots (including the bot itself)
// are never answered.
func (r *Responder) ShouldReply(botUserID string, msg message.Message) (shouldRespond, isSummon bool) {
	meta := msg.Meta()
	if meta.FromBot || meta.AuthorID == botUserID {
		return false, false
	}

	switch m := msg.(type) {
	case message.Direct:
		if r.ignoreDMs {
			return false, false
		}
		return true, true

	case message.Channel:
		if m.MentionsUser(botUserID) || r.hasWakeword(meta.Body) {
			return true, true
		}
		return r.allowUnsolicited(m.ChannelID), false

	default:
		// Fallback shape: no channel id, so no unsolicited tracking.
		// A wakeword still gets a reply.
		if r.hasWakeword(meta.Body) {
			return true, true
		}
		return false, false
	}
}

// LogMention records that the bot was summoned in a channel, opening the
// unsolicited-reply window there. Callers pass the possibly-redirected
// message so a reply thread is tracked rather than its origin channel.
func (r *Responder) LogMention(msg message.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSummon[msg.ChannelID] = r.now()
}

func (r *Responder) hasWakeword(body string) bool {
	for _, p := range r.wakewords {
		if p.MatchString(body) {
			return true
		}
	}
	return false
}

func (r *Responder) allowUnsolicited(channelID string) bool {
	r.mu.Lock()
	last, ok := r.lastSummon[channelID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	elapsed := r.now().Sub(last)
	for _, w := range responseChance {
		if elapsed <= w.within {
			return r.chance() < w.chance
		}
	}
	return false
}
