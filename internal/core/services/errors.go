package services

import (
	"context"
	"errors"
	"strings"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// ErrSuperseded is returned by a search that a newer search replaced.
var ErrSuperseded = errors.New("superseded by a newer request")

// GenericErrorMessage is shown when nothing more specific is known.
const GenericErrorMessage = "Something went wrong. Please try again."

// serverMessager is implemented by adapter errors that carry the
// backend's own message.
type serverMessager interface {
	ServerMessage() string
}

// UserMessage turns an error into text fit for a notification. It prefers
// the backend's message, then the error text, then a generic fallback.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var sm serverMessager
	if errors.As(err, &sm) {
		if msg := strings.TrimSpace(sm.ServerMessage()); msg != "" {
			return msg
		}
	}

	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		return "Your session is no longer valid. Run `ragdesk login` and try again."
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "The backend could not be reached. Check that it is running."
	case errors.Is(err, context.DeadlineExceeded):
		return "The backend took too long to answer."
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return GenericErrorMessage
}

// isCancelled reports whether err only reflects a cancelled context.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrSuperseded)
}

// notify emits a notification when a notifier is configured.
func notify(n driven.Notifier, level domain.Level, title, message string) {
	if n == nil {
		return
	}
	n.Notify(domain.NewNotification(level, title, message))
}

// notifyError emits an error notification for err unless it is a cancellation.
func notifyError(n driven.Notifier, title string, err error) {
	if err == nil || isCancelled(err) {
		return
	}
	notify(n, domain.LevelError, title, UserMessage(err))
}
