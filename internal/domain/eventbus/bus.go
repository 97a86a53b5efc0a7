package eventbus

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webharvest/internal/shared/id"
	"go.uber.org/zap"
)

// DefaultHistoryLimit bounds the history ring when no limit is configured
const DefaultHistoryLimit = 500

// Event is one emitted message
type Event struct {
	ID        id.EventID     `json:"id"`
	Topic     string         `json:"topic"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler receives events. A returned error is logged and does not stop
// delivery to the remaining handlers.
type Handler func(ctx context.Context, e Event) error

// HandlerID identifies one subscription
type HandlerID uint64

type subscription struct {
	id      HandlerID
	pattern string
	handler Handler
}

// Options configures a Bus
type Options struct {
	HistoryLimit int
	Logger       *zap.Logger
	Metrics      *monitoring.Metrics
	IDs          *id.Generator
}

// Bus is a topic based publish/subscribe hub with wildcard patterns
type Bus struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics
	ids     *id.Generator

	mu     sync.RWMutex
	subs   []subscription
	nextID HandlerID

	histMu  sync.Mutex
	history []Event
	head    int
	full    bool
	stats   map[string]int
}

// New creates a bus
func New(opts Options) *Bus {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	ids := opts.IDs
	if ids == nil {
		ids = id.Default()
	}
	return &Bus{
		logger:  logging.OrNop(opts.Logger),
		metrics: opts.Metrics,
		ids:     ids,
		history: make([]Event, limit),
		stats:   make(map[string]int),
	}
}

// On subscribes handler to a literal topic or a wildcard pattern
func (b *Bus) On(pattern string, handler Handler) HandlerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs = append(b.subs, subscription{id: b.nextID, pattern: pattern, handler: handler})
	return b.nextID
}

// Off removes the subscription registered under pattern. It reports whether
// anything was removed.
func (b *Bus) Off(pattern string, hid HandlerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == hid && s.pattern == pattern {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Subscribe is On with an unsubscribe closure
func (b *Bus) Subscribe(pattern string, handler Handler) (unsubscribe func()) {
	hid := b.On(pattern, handler)
	var once sync.Once
	return func() {
		once.Do(func() { b.Off(pattern, hid) })
	}
}

// HandlerCount returns the number of live subscriptions
func (b *Bus) HandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Emit delivers payload to every handler whose pattern matches topic and
// returns once all of them ran. Handlers run one after another in
// subscription order.
func (b *Bus) Emit(ctx context.Context, topic string, payload map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := Event{
		ID:        id.EventID(b.ids.GenerateWithPrefix(id.EventPrefix)),
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	b.record(e)
	b.metrics.RecordEmit(Family(topic))

	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if Match(s.pattern, topic) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range matched {
		if err := b.deliver(ctx, s, e); err != nil {
			b.metrics.RecordHandlerError(Family(topic))
			b.logger.Warn("Event handler failed",
				zap.String("topic", topic),
				zap.String("pattern", s.pattern),
				zap.Uint64("handler", uint64(s.id)),
				zap.Error(err))
		}
	}
	return nil
}

func (b *Bus) deliver(ctx context.Context, s subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler(ctx, e)
}

func (b *Bus) record(e Event) {
	b.histMu.Lock()
	defer b.histMu.Unlock()

	b.stats[e.Topic]++
	b.history[b.head] = e
	b.head = (b.head + 1) % len(b.history)
	if b.head == 0 {
		b.full = true
	}
}

// History returns the retained events, oldest first
func (b *Bus) History() []Event {
	b.histMu.Lock()
	defer b.histMu.Unlock()

	if !b.full {
		return append([]Event(nil), b.history[:b.head]...)
	}
	out := make([]Event, 0, len(b.history))
	out = append(out, b.history[b.head:]...)
	return append(out, b.history[:b.head]...)
}

// Stats returns the number of emits per topic
func (b *Bus) Stats() map[string]int {
	b.histMu.Lock()
	defer b.histMu.Unlock()

	return maps.Clone(b.stats)
}
