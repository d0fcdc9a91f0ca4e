package driven

import (
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// Notifier delivers user-facing notifications.
type Notifier interface {
	Notify(n domain.Notification)
}

// Metrics records client-side instrumentation.
type Metrics interface {
	// ObserveRequest records one backend HTTP attempt.
	ObserveRequest(method, route string, status int, elapsed time.Duration)

	// ObservePollTick records one poll tick and whether it failed.
	ObservePollTick(mode domain.PollMode, failed bool)

	// SetActivePolls reports how many documents are being polled.
	SetActivePolls(n int)

	// ObserveTerminal records a document reaching a terminal status.
	ObserveTerminal(status domain.DocumentStatus, elapsed time.Duration)
}
