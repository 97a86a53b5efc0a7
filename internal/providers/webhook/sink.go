package webhook

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/webharvest/internal/domain/eventbus"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webharvest/internal/shared/id"
)

// DefaultPattern forwards operation results
const DefaultPattern = "operation:*:execute"

// DefaultQueueSize bounds pending deliveries
const DefaultQueueSize = 256

// Delivery is the posted body
type Delivery struct {
	SessionID id.SessionID   `json:"sessionId"`
	Event     eventbus.Event `json:"event"`
}

// Options configures a Sink
type Options struct {
	URL       string
	Pattern   string
	QueueSize int
	Client    ClientOptions
	Logger    *zap.Logger
}

// Sink forwards matching session events to an HTTP endpoint. Emitters never
// wait on the endpoint; deliveries are queued and posted by one worker, and
// dropped when the queue is full.
type Sink struct {
	url     string
	pattern string
	client  *Client
	logger  *zap.Logger

	queue chan Delivery
	stop  chan struct{}
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewSink creates a sink and starts its worker
func NewSink(opts Options) *Sink {
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	logger := logging.OrNop(opts.Logger)
	if opts.Client.Logger == nil {
		opts.Client.Logger = logger
	}

	s := &Sink{
		url:     opts.URL,
		pattern: opts.Pattern,
		client:  NewClient(opts.Client),
		logger:  logger,
		queue:   make(chan Delivery, opts.QueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Attach subscribes the sink to a session's bus
func (s *Sink) Attach(sessionID id.SessionID, bus *eventbus.Bus) func() {
	return bus.Subscribe(s.pattern, func(_ context.Context, e eventbus.Event) error {
		s.enqueue(Delivery{SessionID: sessionID, Event: e})
		return nil
	})
}

func (s *Sink) enqueue(d Delivery) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- d:
	default:
		s.logger.Warn("Webhook queue full, dropping event",
			zap.String("session", d.SessionID.String()),
			zap.String("topic", d.Event.Topic))
	}
}

func (s *Sink) run() {
	defer close(s.done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stop:
		case <-ctx.Done():
			return
		}
		// give queued deliveries a bounded chance to finish
		t := time.NewTimer(5 * time.Second)
		defer t.Stop()
		select {
		case <-t.C:
			cancel()
		case <-ctx.Done():
		}
	}()

	for d := range s.queue {
		if err := s.client.Post(ctx, s.url, d); err != nil {
			s.logger.Warn("Webhook delivery failed",
				zap.String("session", d.SessionID.String()),
				zap.String("topic", d.Event.Topic),
				zap.Error(err))
			continue
		}
		s.logger.Debug("Webhook delivered",
			zap.String("session", d.SessionID.String()),
			zap.String("topic", d.Event.Topic))
	}
}

// Close stops accepting events, drains the queue and waits for the worker
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	close(s.stop)
	s.mu.Unlock()

	<-s.done
	return nil
}
