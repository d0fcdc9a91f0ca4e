package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// DefaultPollInterval is the period between status checks.
const DefaultPollInterval = 3 * time.Second

// subscriberBuffer is the event backlog kept per subscriber.
const subscriberBuffer = 64

// Ensure StatusPoller implements the interface.
var _ driving.StatusPoller = (*StatusPoller)(nil)

// DocumentRefresher reloads the document collection.
// DocumentService satisfies it.
type DocumentRefresher interface {
	Refresh(ctx context.Context) ([]domain.Document, error)
}

// subscriber is one Subscribe channel. done closes on unsubscribe so a
// blocked terminal send can give up.
type subscriber struct {
	ch     chan domain.DocumentStatusEvent
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// send delivers event. Terminal events wait for room until the subscriber
// or stop goes away; other events are dropped when the buffer is full.
func (s *subscriber) send(event domain.DocumentStatusEvent, stop <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if !event.Terminal {
		select {
		case s.ch <- event:
		default:
		}
		return
	}
	select {
	case s.ch <- event:
	case <-s.done:
	case <-stop:
		logger.Debug("poll: dropped terminal event for %s", event.DocumentID)
	}
}

// pollTask is the single owner of the poll for one document.
type pollTask struct {
	mode   domain.PollMode
	cancel context.CancelFunc
	done   chan struct{}
}

// StatusPoller re-fetches the document collection at a fixed interval until
// each watched document reaches a terminal status. There is no backoff and
// no attempt limit; a poll ends at a terminal status, on Stop, on StopAll or
// when its context is cancelled.
type StatusPoller struct {
	refresher DocumentRefresher
	interval  time.Duration
	notifier  driven.Notifier
	metrics   driven.Metrics

	mu       sync.Mutex
	tasks    map[string]*pollTask
	running  map[*pollTask]struct{}
	inFlight map[domain.PollMode]map[string]struct{}
	started  map[string]time.Time
	subs     map[int]*subscriber
	nextSub  int
	wg       sync.WaitGroup
}

// NewStatusPoller creates a poller. A non-positive interval uses
// DefaultPollInterval.
func NewStatusPoller(
	refresher DocumentRefresher,
	interval time.Duration,
	notifier driven.Notifier,
	metrics driven.Metrics,
) *StatusPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &StatusPoller{
		refresher: refresher,
		interval:  interval,
		notifier:  notifier,
		metrics:   metricsOrNoop(metrics),
		tasks:     make(map[string]*pollTask),
		running:   make(map[*pollTask]struct{}),
		inFlight: map[domain.PollMode]map[string]struct{}{
			domain.PollProcessing:   {},
			domain.PollReprocessing: {},
		},
		started: make(map[string]time.Time),
		subs:    make(map[int]*subscriber),
	}
}

// Interval returns the poll period.
func (p *StatusPoller) Interval() time.Duration {
	return p.interval
}

// Start begins polling id. A poll already running for id is cancelled
// first, so at most one timer exists per document.
func (p *StatusPoller) Start(ctx context.Context, id string, mode domain.PollMode) {
	if id == "" {
		return
	}
	if mode != domain.PollReprocessing {
		mode = domain.PollProcessing
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := &pollTask{mode: mode, cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	if old, ok := p.tasks[id]; ok {
		old.cancel()
		delete(p.inFlight[old.mode], id)
	}
	p.tasks[id] = task
	p.running[task] = struct{}{}
	p.inFlight[mode][id] = struct{}{}
	now := time.Now()
	p.started[id] = now
	active := len(p.tasks)
	p.wg.Add(1)
	p.mu.Unlock()

	p.metrics.SetActivePolls(active)
	p.publish(ctx, domain.DocumentStatusEvent{
		DocumentID: id,
		Mode:       mode,
		Status:     domain.StatusProcessing,
		At:         now,
	})
	logger.Debug("poll: started %s (%s)", id, mode)

	go p.run(taskCtx, id, task)
}

// Stop cancels the poll for id and waits for it to exit.
func (p *StatusPoller) Stop(id string) {
	p.mu.Lock()
	task, ok := p.tasks[id]
	if ok {
		p.release(id, task)
	}
	active := len(p.tasks)
	p.mu.Unlock()

	if !ok {
		return
	}
	task.cancel()
	<-task.done
	p.metrics.SetActivePolls(active)
}

// StopAll cancels every poll and waits for all of them to exit.
func (p *StatusPoller) StopAll() {
	p.mu.Lock()
	for id, task := range p.tasks {
		p.release(id, task)
	}
	// Finished tasks may still be delivering their terminal event.
	for task := range p.running {
		task.cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.metrics.SetActivePolls(0)
}

// InFlight returns the sorted IDs polled in mode.
func (p *StatusPoller) InFlight(mode domain.PollMode) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.inFlight[mode]))
	for id := range p.inFlight[mode] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Elapsed returns how long id has been polled.
func (p *StatusPoller) Elapsed(id string) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started, ok := p.started[id]
	if !ok {
		return 0, false
	}
	return time.Since(started), true
}

// Subscribe returns a channel of status events. A slow subscriber misses
// intermediate events but always receives terminal ones. The returned
// function unsubscribes and closes the channel.
func (p *StatusPoller) Subscribe() (<-chan domain.DocumentStatusEvent, func()) {
	sub := &subscriber{
		ch:   make(chan domain.DocumentStatusEvent, subscriberBuffer),
		done: make(chan struct{}),
	}

	p.mu.Lock()
	key := p.nextSub
	p.nextSub++
	p.subs[key] = sub
	p.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, key)
			p.mu.Unlock()

			close(sub.done)
			sub.mu.Lock()
			sub.closed = true
			close(sub.ch)
			sub.mu.Unlock()
		})
	}
}

// run owns the ticker for one document.
func (p *StatusPoller) run(ctx context.Context, id string, task *pollTask) {
	defer p.wg.Done()
	defer close(task.done)
	defer task.cancel()
	defer p.abandon(id, task)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	last := domain.StatusProcessing
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if p.tick(ctx, id, task, &last) {
			return
		}
	}
}

// tick refreshes the collection once and reports whether polling is over.
func (p *StatusPoller) tick(ctx context.Context, id string, task *pollTask, last *domain.DocumentStatus) bool {
	docs, err := p.refresher.Refresh(ctx)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		p.metrics.ObservePollTick(task.mode, true)
		logger.Warn("poll: refresh for %s failed: %v", id, err)
		return false
	}
	p.metrics.ObservePollTick(task.mode, false)

	doc := findDocument(docs, id)
	if doc == nil {
		logger.Debug("poll: %s not in listing yet", id)
		return false
	}
	if doc.Status == *last && !doc.Status.IsTerminal() {
		return false
	}

	event := domain.DocumentStatusEvent{
		DocumentID: id,
		Filename:   doc.Filename,
		Mode:       task.mode,
		Previous:   *last,
		Status:     doc.Status,
		At:         time.Now(),
	}
	*last = doc.Status

	if !doc.Status.IsTerminal() {
		event.Elapsed, _ = p.Elapsed(id)
		p.publish(ctx, event)
		return false
	}

	p.finish(ctx, id, task, doc, event)
	return true
}

// finish clears the bookkeeping for a terminal document and reports it.
func (p *StatusPoller) finish(ctx context.Context, id string, task *pollTask, doc *domain.Document, event domain.DocumentStatusEvent) {
	p.mu.Lock()
	if p.tasks[id] != task {
		// Replaced by a newer Start; the new owner reports.
		p.mu.Unlock()
		return
	}
	elapsed := time.Since(p.started[id])
	p.release(id, task)
	active := len(p.tasks)
	p.mu.Unlock()

	event.Elapsed = elapsed
	event.Terminal = true

	p.metrics.SetActivePolls(active)
	p.metrics.ObserveTerminal(doc.Status, elapsed)
	p.publish(ctx, event)
	p.announce(task.mode, doc)
	logger.Debug("poll: %s reached %s after %s", id, doc.Status, elapsed.Round(time.Millisecond))
}

// release removes id from the registry. Callers hold p.mu.
func (p *StatusPoller) release(id string, task *pollTask) {
	delete(p.tasks, id)
	delete(p.inFlight[task.mode], id)
	delete(p.started, id)
}

// abandon runs when a task exits. A task whose context ended before a
// terminal status is still registered and is released here.
func (p *StatusPoller) abandon(id string, task *pollTask) {
	p.mu.Lock()
	delete(p.running, task)
	if p.tasks[id] != task {
		p.mu.Unlock()
		return
	}
	p.release(id, task)
	active := len(p.tasks)
	p.mu.Unlock()

	p.metrics.SetActivePolls(active)
	logger.Debug("poll: %s abandoned", id)
}

// publish fans event out to subscribers. stop bounds the wait for a full
// subscriber on terminal events.
func (p *StatusPoller) publish(ctx context.Context, event domain.DocumentStatusEvent) {
	p.mu.Lock()
	subs := make([]*subscriber, 0, len(p.subs))
	for _, sub := range p.subs {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	for _, sub := range subs {
		sub.send(event, ctx.Done())
	}
}

func (p *StatusPoller) announce(mode domain.PollMode, doc *domain.Document) {
	verb := "Processing"
	if mode == domain.PollReprocessing {
		verb = "Reprocessing"
	}

	if doc.Status == domain.StatusProcessed {
		notify(p.notifier, domain.LevelSuccess, verb+" complete",
			fmt.Sprintf("%s is ready.", doc.Filename))
		return
	}

	msg := fmt.Sprintf("%s failed.", doc.Filename)
	if doc.ErrorMessage != "" {
		msg = fmt.Sprintf("%s failed: %s", doc.Filename, doc.ErrorMessage)
	}
	notify(p.notifier, domain.LevelError, verb+" failed", msg)
}

func findDocument(docs []domain.Document, id string) *domain.Document {
	for i := range docs {
		if docs[i].ID == id {
			return &docs[i]
		}
	}
	return nil
}
