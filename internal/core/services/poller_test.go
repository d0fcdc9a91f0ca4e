package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

const testInterval = 5 * time.Millisecond

func statusAfter(n int, final domain.DocumentStatus) func(call int) ([]domain.Document, error) {
	return func(call int) ([]domain.Document, error) {
		status := domain.StatusProcessing
		if call >= n {
			status = final
		}
		return []domain.Document{
			{ID: "other", Filename: "other.pdf", Status: domain.StatusProcessed},
			{ID: "doc-1", Filename: "report.pdf", Status: status, ErrorMessage: errorFor(status)},
		}, nil
	}
}

func errorFor(status domain.DocumentStatus) string {
	if status == domain.StatusError {
		return "parse failure"
	}
	return ""
}

func waitTerminal(t *testing.T, events <-chan domain.DocumentStatusEvent) domain.DocumentStatusEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Terminal {
				return ev
			}
		case <-timeout:
			t.Fatal("no terminal event")
		}
	}
}

func TestStatusPoller_StopsOnNthTick(t *testing.T) {
	refresher := &scriptedRefresher{next: statusAfter(3, domain.StatusProcessed)}
	notifier := &recordingNotifier{}
	poller := NewStatusPoller(refresher, testInterval, notifier, nil)
	defer poller.StopAll()

	events, cancel := poller.Subscribe()
	defer cancel()

	poller.Start(context.Background(), "doc-1", domain.PollProcessing)
	assert.Equal(t, []string{"doc-1"}, poller.InFlight(domain.PollProcessing))

	ev := waitTerminal(t, events)
	assert.Equal(t, domain.StatusProcessed, ev.Status)
	assert.Equal(t, "report.pdf", ev.Filename)

	time.Sleep(10 * testInterval)
	assert.Equal(t, 3, refresher.count())

	assert.Empty(t, poller.InFlight(domain.PollProcessing))
	_, ok := poller.Elapsed("doc-1")
	assert.False(t, ok)

	note := notifier.last()
	assert.Equal(t, domain.LevelSuccess, note.Level)
	assert.Equal(t, "Processing complete", note.Title)
	assert.Contains(t, note.Message, "report.pdf")
}

func TestStatusPoller_ErrorStatusReprocessing(t *testing.T) {
	refresher := &scriptedRefresher{next: statusAfter(1, domain.StatusError)}
	notifier := &recordingNotifier{}
	poller := NewStatusPoller(refresher, testInterval, notifier, nil)
	defer poller.StopAll()

	events, cancel := poller.Subscribe()
	defer cancel()

	poller.Start(context.Background(), "doc-1", domain.PollReprocessing)
	ev := waitTerminal(t, events)

	assert.Equal(t, domain.StatusError, ev.Status)
	assert.Equal(t, domain.PollReprocessing, ev.Mode)
	assert.Empty(t, poller.InFlight(domain.PollReprocessing))

	note := notifier.last()
	assert.Equal(t, domain.LevelError, note.Level)
	assert.Equal(t, "Reprocessing failed", note.Title)
	assert.Contains(t, note.Message, "report.pdf")
	assert.Contains(t, note.Message, "parse failure")
}

func TestStatusPoller_TickErrorsKeepPolling(t *testing.T) {
	refresher := &scriptedRefresher{next: func(call int) ([]domain.Document, error) {
		if call < 3 {
			return nil, errors.New("connection refused")
		}
		return statusAfter(0, domain.StatusProcessed)(call)
	}}
	metrics := &countingMetrics{}
	poller := NewStatusPoller(refresher, testInterval, nil, metrics)
	defer poller.StopAll()

	events, cancel := poller.Subscribe()
	defer cancel()

	poller.Start(context.Background(), "doc-1", domain.PollProcessing)
	waitTerminal(t, events)

	assert.Equal(t, 3, refresher.count())
	assert.Equal(t, 2, metrics.failedTicks())
	assert.Equal(t, 1, metrics.terminals())
}

func TestStatusPoller_MissingDocumentKeepsPolling(t *testing.T) {
	refresher := &scriptedRefresher{next: func(call int) ([]domain.Document, error) {
		if call < 2 {
			return []domain.Document{}, nil
		}
		return statusAfter(0, domain.StatusProcessed)(call)
	}}
	poller := NewStatusPoller(refresher, testInterval, nil, nil)
	defer poller.StopAll()

	events, cancel := poller.Subscribe()
	defer cancel()

	poller.Start(context.Background(), "doc-1", domain.PollProcessing)
	waitTerminal(t, events)
	assert.Equal(t, 2, refresher.count())
}

func TestStatusPoller_RestartReplacesTask(t *testing.T) {
	refresher := &scriptedRefresher{next: statusAfter(1000, domain.StatusProcessed)}
	poller := NewStatusPoller(refresher, time.Hour, nil, nil)
	defer poller.StopAll()

	ctx := context.Background()
	poller.Start(ctx, "doc-1", domain.PollProcessing)
	poller.Start(ctx, "doc-1", domain.PollProcessing)
	poller.Start(ctx, "doc-1", domain.PollReprocessing)

	assert.Empty(t, poller.InFlight(domain.PollProcessing))
	assert.Equal(t, []string{"doc-1"}, poller.InFlight(domain.PollReprocessing))

	poller.mu.Lock()
	assert.Len(t, poller.tasks, 1)
	poller.mu.Unlock()
}

func TestStatusPoller_NoPollingAfterStopAll(t *testing.T) {
	refresher := &scriptedRefresher{next: statusAfter(1000, domain.StatusProcessed)}
	poller := NewStatusPoller(refresher, testInterval, nil, nil)

	ctx := context.Background()
	poller.Start(ctx, "doc-1", domain.PollProcessing)
	poller.Start(ctx, "doc-2", domain.PollReprocessing)

	require.Eventually(t, func() bool { return refresher.count() >= 2 }, time.Second, time.Millisecond)
	poller.StopAll()
	calls := refresher.count()

	time.Sleep(10 * testInterval)
	assert.Equal(t, calls, refresher.count())
	assert.Empty(t, poller.InFlight(domain.PollProcessing))
	assert.Empty(t, poller.InFlight(domain.PollReprocessing))
}

func TestStatusPoller_Stop(t *testing.T) {
	refresher := &scriptedRefresher{next: statusAfter(1000, domain.StatusProcessed)}
	poller := NewStatusPoller(refresher, testInterval, nil, nil)
	defer poller.StopAll()

	poller.Start(context.Background(), "doc-1", domain.PollProcessing)
	_, ok := poller.Elapsed("doc-1")
	assert.True(t, ok)

	poller.Stop("doc-1")
	calls := refresher.count()
	time.Sleep(10 * testInterval)

	assert.Equal(t, calls, refresher.count())
	assert.Empty(t, poller.InFlight(domain.PollProcessing))

	poller.Stop("unknown")
}

func TestStatusPoller_ContextCancelStops(t *testing.T) {
	refresher := &scriptedRefresher{next: statusAfter(1000, domain.StatusProcessed)}
	poller := NewStatusPoller(refresher, testInterval, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	poller.Start(ctx, "doc-1", domain.PollProcessing)
	require.Eventually(t, func() bool { return refresher.count() >= 1 }, time.Second, time.Millisecond)

	cancel()
	poller.StopAll()
	calls := refresher.count()
	time.Sleep(10 * testInterval)
	assert.Equal(t, calls, refresher.count())
}

func TestStatusPoller_ContextCancelReleasesTask(t *testing.T) {
	refresher := &scriptedRefresher{next: statusAfter(1000, domain.StatusProcessed)}
	metrics := &countingMetrics{}
	poller := NewStatusPoller(refresher, testInterval, nil, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	poller.Start(ctx, "doc-1", domain.PollReprocessing)
	require.Eventually(t, func() bool { return refresher.count() >= 1 }, time.Second, time.Millisecond)

	cancel()

	require.Eventually(t, func() bool {
		return len(poller.InFlight(domain.PollReprocessing)) == 0
	}, time.Second, time.Millisecond)
	_, tracked := poller.Elapsed("doc-1")
	assert.False(t, tracked)
	assert.Equal(t, 0, metrics.activePolls())

	calls := refresher.count()
	time.Sleep(10 * testInterval)
	assert.Equal(t, calls, refresher.count())
}

func TestStatusPoller_TerminalEventWaitsForRoom(t *testing.T) {
	poller := NewStatusPoller(&scriptedRefresher{}, time.Hour, nil, nil)
	events, cancel := poller.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		poller.publish(context.Background(), domain.DocumentStatusEvent{DocumentID: "doc-1", Status: domain.StatusProcessing})
	}

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		poller.publish(context.Background(), domain.DocumentStatusEvent{
			DocumentID: "doc-1", Status: domain.StatusProcessed, Terminal: true,
		})
	}()

	ev := waitTerminal(t, events)
	assert.Equal(t, domain.StatusProcessed, ev.Status)
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("terminal send did not return")
	}
}

func TestStatusPoller_UnsubscribeReleasesBlockedSend(t *testing.T) {
	poller := NewStatusPoller(&scriptedRefresher{}, time.Hour, nil, nil)
	_, cancel := poller.Subscribe()

	for i := 0; i < subscriberBuffer; i++ {
		poller.publish(context.Background(), domain.DocumentStatusEvent{DocumentID: "doc-1", Status: domain.StatusProcessing})
	}

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		poller.publish(context.Background(), domain.DocumentStatusEvent{
			DocumentID: "doc-1", Status: domain.StatusError, Terminal: true,
		})
	}()

	select {
	case <-sent:
		t.Fatal("terminal event dropped while the subscriber was full")
	case <-time.After(10 * testInterval):
	}

	cancel()
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("unsubscribe did not release the send")
	}
}

func TestStatusPoller_PublishesTransitions(t *testing.T) {
	refresher := &scriptedRefresher{next: func(call int) ([]domain.Document, error) {
		statuses := []domain.DocumentStatus{domain.StatusUploaded, domain.StatusProcessing, domain.StatusProcessed}
		idx := call - 1
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		return []domain.Document{{ID: "doc-1", Filename: "a.txt", Status: statuses[idx]}}, nil
	}}
	poller := NewStatusPoller(refresher, testInterval, nil, nil)
	defer poller.StopAll()

	events, cancel := poller.Subscribe()
	defer cancel()

	poller.Start(context.Background(), "doc-1", domain.PollProcessing)

	var seen []domain.DocumentStatus
	for ev := range events {
		seen = append(seen, ev.Status)
		if ev.Terminal {
			break
		}
	}
	assert.Equal(t, []domain.DocumentStatus{
		domain.StatusProcessing,
		domain.StatusUploaded,
		domain.StatusProcessing,
		domain.StatusProcessed,
	}, seen)
}

func TestStatusPoller_DefaultInterval(t *testing.T) {
	poller := NewStatusPoller(&scriptedRefresher{}, 0, nil, nil)
	assert.Equal(t, DefaultPollInterval, poller.Interval())
}

func TestStatusPoller_UnsubscribeClosesChannel(t *testing.T) {
	poller := NewStatusPoller(&scriptedRefresher{}, time.Hour, nil, nil)
	events, cancel := poller.Subscribe()
	cancel()
	cancel()

	_, open := <-events
	assert.False(t, open)
}

// countingMetrics counts poll observations.
type countingMetrics struct {
	noopMetrics
	mu       sync.Mutex
	failed   int
	terminal int
	active   int
}

func (m *countingMetrics) SetActivePolls(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = n
}

func (m *countingMetrics) activePolls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *countingMetrics) ObservePollTick(_ domain.PollMode, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if failed {
		m.failed++
	}
}

func (m *countingMetrics) ObserveTerminal(domain.DocumentStatus, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminal++
}

func (m *countingMetrics) failedTicks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed
}

func (m *countingMetrics) terminals() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminal
}
