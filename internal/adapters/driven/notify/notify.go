// Package notify delivers user notifications to a terminal or a channel.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

var (
	_ driven.Notifier = (*Writer)(nil)
	_ driven.Notifier = (*Channel)(nil)
	_ driven.Notifier = Multi(nil)
)

var symbols = map[domain.Level]string{
	domain.LevelSuccess: "✓",
	domain.LevelError:   "✗",
	domain.LevelWarning: "!",
	domain.LevelInfo:    "·",
}

// Writer prints notifications as single lines, for the CLI.
type Writer struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool
}

// NewWriter creates a Writer. When quiet, only warnings and errors print.
func NewWriter(out io.Writer, quiet bool) *Writer {
	return &Writer{out: out, quiet: quiet}
}

// Notify prints n.
func (w *Writer) Notify(n domain.Notification) {
	if w.quiet && (n.Level == domain.LevelSuccess || n.Level == domain.LevelInfo) {
		logger.Debug("%s: %s", n.Title, n.Message)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, Format(n))
}

// Format renders n as "✓ Title: message".
func Format(n domain.Notification) string {
	sym, ok := symbols[n.Level]
	if !ok {
		sym = symbols[domain.LevelInfo]
	}
	if n.Message == "" {
		return fmt.Sprintf("%s %s", sym, n.Title)
	}
	return fmt.Sprintf("%s %s: %s", sym, n.Title, n.Message)
}

// Channel queues notifications for a consumer such as the TUI.
// A full queue drops the notification rather than block the caller.
type Channel struct {
	ch chan domain.Notification
}

// NewChannel creates a Channel with the given buffer size.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = 32
	}
	return &Channel{ch: make(chan domain.Notification, size)}
}

// Notify enqueues n.
func (c *Channel) Notify(n domain.Notification) {
	select {
	case c.ch <- n:
	default:
		logger.Debug("notification dropped: %s", n.Title)
	}
}

// C returns the receive side of the queue.
func (c *Channel) C() <-chan domain.Notification {
	return c.ch
}

// Multi fans a notification out to several notifiers.
type Multi []driven.Notifier

// Notify forwards n to every non-nil notifier.
func (m Multi) Notify(n domain.Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(n)
		}
	}
}
