// Package notify pushes resurrection events to connected clients.
package notify

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/seckatie/echoes/internal/core/store"
)

// EventResurrectionComplete is the only event type the hub carries today.
const EventResurrectionComplete = "resurrection_complete"

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 16

// ErrClosed is returned when subscribing to a closed hub.
var ErrClosed = errors.New("notify: hub closed")

// Event is the JSON document delivered to subscribers.
type Event struct {
	Type string       `json:"type"`
	Data store.Record `json:"data"`
}

// ResurrectionComplete wraps rec in a completion event.
func ResurrectionComplete(rec store.Record) Event {
	return Event{Type: EventResurrectionComplete, Data: rec.Clone()}
}

// Subscription is one registered listener.
type Subscription struct {
	ID string
	// C receives events until the subscription is removed.
	C <-chan Event

	ch   chan Event
	once sync.Once
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub fans events out to every current subscriber. Publishing never blocks:
// a subscriber whose queue is full misses the event, nothing is replayed to
// late subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	buffer         int
	originPatterns []string
	logger         *slog.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithBufferSize sets the per-subscriber queue length.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithOriginPatterns sets the host patterns accepted for cross-origin
// websocket upgrades.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) {
		h.originPatterns = append(h.originPatterns, patterns...)
	}
}

// WithLogger sets the logger used for connection and drop reports.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[string]*Subscription),
		buffer: DefaultBufferSize,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Subscribe registers a new listener.
func (h *Hub) Subscribe() (*Subscription, error) {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	h.subs[sub.ID] = sub
	return sub, nil
}

// Unsubscribe removes a listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Publish offers evt to every subscriber and returns how many accepted it.
func (h *Hub) Publish(evt Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0
	}

	h.published.Add(1)
	delivered := 0
	for id, sub := range h.subs {
		select {
		case sub.ch <- evt:
			delivered++
		default:
			h.dropped.Add(1)
			h.logger.Warn("subscriber queue full, event dropped", "subscriber", id, "type", evt.Type)
		}
	}
	return delivered
}

// Subscribers returns the number of registered listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stats returns the number of published and dropped deliveries.
func (h *Hub) Stats() (published, dropped uint64) {
	return h.published.Load(), h.dropped.Load()
}

// Close removes every subscriber. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// Listener adapts the hub to store events: completions are published,
// other kinds are ignored.
func (h *Hub) Listener() store.EventListener {
	return func(event store.Event) error {
		ev, ok := event.(store.ResurrectionCompletedEvent)
		if !ok {
			return nil
		}
		n := h.Publish(ResurrectionComplete(ev.Record))
		h.logger.Info("resurrection complete broadcast", "id", ev.Record.ID, "subscribers", n)
		return nil
	}
}
