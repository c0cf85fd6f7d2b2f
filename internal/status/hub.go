// Package status implements the single-writer, many-reader status channel
// from the fishing controller's §4.4: one writer publishes Status snapshots,
// any number of readers either register a callback or read the latest
// snapshot atomically. Callbacks never run on the writer's goroutine and
// never block it — a slow reader drops its oldest pending update rather than
// stalling fishing, the same trade-off the teacher's WebSocketServer makes
// for its client send channels.
package status

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bailanluo/autofish/internal/fishing"
)

// Handle identifies a registered callback subscription so it can later be
// removed with Unsubscribe.
type Handle = uuid.UUID

type subscriber struct {
	pending chan fishing.Status
	done    chan struct{}
}

// Hub is a fishing.Publisher with callback subscription support.
type Hub struct {
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot fishing.Status

	subMu sync.Mutex
	subs  map[Handle]*subscriber
}

// New creates an empty Hub. The zero-value Status is the snapshot until the
// controller publishes its first update.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[Handle]*subscriber),
	}
}

// Publish stores the new snapshot and fans it out to every subscriber. It
// never blocks: a subscriber whose pending slot is already full has its
// old, not-yet-delivered update replaced by this one (drop-oldest).
func (h *Hub) Publish(s fishing.Status) {
	h.mu.Lock()
	h.snapshot = s
	h.mu.Unlock()

	h.subMu.Lock()
	defer h.subMu.Unlock()
	for _, sub := range h.subs {
		select {
		case sub.pending <- s:
		default:
			select {
			case <-sub.pending:
			default:
			}
			select {
			case sub.pending <- s:
			default:
			}
		}
	}
}

// Snapshot returns the most recently published Status.
func (h *Hub) Snapshot() fishing.Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}

// Subscribe registers callback to be invoked, off the publishing goroutine,
// on every update. The returned handle is passed to Unsubscribe to stop
// delivery.
func (h *Hub) Subscribe(callback func(fishing.Status)) Handle {
	sub := &subscriber{
		pending: make(chan fishing.Status, 1),
		done:    make(chan struct{}),
	}
	handle := uuid.New()

	h.subMu.Lock()
	h.subs[handle] = sub
	h.subMu.Unlock()

	go func() {
		for {
			select {
			case s := <-sub.pending:
				callback(s)
			case <-sub.done:
				return
			}
		}
	}()

	return handle
}

// Unsubscribe stops delivery to the subscription identified by handle. It is
// a no-op if the handle is unknown or already unsubscribed.
func (h *Hub) Unsubscribe(handle Handle) {
	h.subMu.Lock()
	sub, ok := h.subs[handle]
	if ok {
		delete(h.subs, handle)
	}
	h.subMu.Unlock()

	if ok {
		close(sub.done)
	}
}

// SubscriberCount reports how many callbacks are currently registered.
// Intended for diagnostics/tests only.
func (h *Hub) SubscriberCount() int {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	return len(h.subs)
}

// MultiPublisher fans a single controller write out to several
// fishing.Publisher targets (the in-process Hub, the optional WebSocket
// status server, the optional notification fanout) so the controller itself
// is wired to exactly one Publisher regardless of how many observers are
// configured.
type MultiPublisher struct {
	targets []fishing.Publisher
}

// NewMultiPublisher builds a MultiPublisher over targets. A nil target is
// skipped, so callers can pass in optional collaborators unconditionally.
func NewMultiPublisher(targets ...fishing.Publisher) *MultiPublisher {
	nonNil := make([]fishing.Publisher, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			nonNil = append(nonNil, t)
		}
	}
	return &MultiPublisher{targets: nonNil}
}

// Publish implements fishing.Publisher by forwarding to every target in turn.
func (m *MultiPublisher) Publish(s fishing.Status) {
	for _, t := range m.targets {
		t.Publish(s)
	}
}
