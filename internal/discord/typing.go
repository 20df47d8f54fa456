package discord

import (
	"log/slog"
	"sync"
	"time"
)

// typingOptions configure a typingController.
type typingOptions struct {
	// MaxDuration auto-stops the indicator, so a wedged generation never
	// leaves the bot "typing" forever.
	MaxDuration time.Duration
	// KeepaliveInterval re-sends the indicator; Discord expires it after 10s.
	KeepaliveInterval time.Duration
	// StartFn sends one typing indicator.
	StartFn func() error
}

// typingController keeps a typing indicator alive until stopped.
type typingController struct {
	opts     typingOptions
	stopOnce sync.Once
	stopped  chan struct{}
}

func newTyping(opts typingOptions) *typingController {
	if opts.MaxDuration == 0 {
		opts.MaxDuration = 60 * time.Second
	}
	if opts.KeepaliveInterval == 0 {
		opts.KeepaliveInterval = 9 * time.Second
	}
	return &typingController{opts: opts, stopped: make(chan struct{})}
}

// Start fires the first indicator and launches the keepalive loop.
func (t *typingController) Start() {
	if err := t.opts.StartFn(); err != nil {
		slog.Debug("typing indicator failed", "error", err)
	}

	go func() {
		ticker := time.NewTicker(t.opts.KeepaliveInterval)
		defer ticker.Stop()
		deadline := time.NewTimer(t.opts.MaxDuration)
		defer deadline.Stop()

		for {
			select {
			case <-t.stopped:
				return
			case <-deadline.C:
				return
			case <-ticker.C:
				if err := t.opts.StartFn(); err != nil {
					slog.Debug("typing keepalive failed", "error", err)
				}
			}
		}
	}()
}

// Stop ends the keepalive loop. Safe to call multiple times.
func (t *typingController) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}
