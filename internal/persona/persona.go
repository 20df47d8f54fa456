// Package persona provides the character description injected into every
// prompt. It either wraps a static string from config or reads a file and
// hot-reloads it on change, so the operator can tune the persona without
// restarting the bot.
package persona

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Loader holds the current persona text. Safe for concurrent reads while a
// watcher goroutine swaps the text.
type Loader struct {
	mu   sync.RWMutex
	text string
	path string // empty for static personas
}

// NewStatic wraps an inline persona string from config.
func NewStatic(text string) *Loader {
	return &Loader{text: strings.TrimSpace(text)}
}

// NewFromFile reads the persona from a file. Use Watch to keep it fresh.
func NewFromFile(path string) (*Loader, error) {
	l := &Loader{path: path}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Text returns the current persona text.
func (l *Loader) Text() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.text
}

func (l *Loader) reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read persona file: %w", err)
	}
	l.mu.Lock()
	l.text = strings.TrimSpace(string(data))
	l.mu.Unlock()
	return nil
}

// Watch reloads the persona whenever the underlying file changes. Blocks
// until ctx is done; callers run it in a goroutine. No-op for static
// personas.
func (l *Loader) Watch(ctx context.Context) error {
	if l.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create persona watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors typically replace the file, which would
	// drop a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("watch persona dir: %w", err)
	}

	target := filepath.Clean(l.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := l.reload(); err != nil {
				slog.Warn("persona reload failed", "path", l.path, "error", err)
				continue
			}
			slog.Info("persona reloaded", "path", l.path, "chars", len(l.Text()))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("persona watcher error", "error", err)
		}
	}
}
