package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/webharvest/internal/domain/binding"
	"github.com/GriffinCanCode/webharvest/internal/domain/container"
	"github.com/GriffinCanCode/webharvest/internal/domain/dom"
	"github.com/GriffinCanCode/webharvest/internal/domain/eventbus"
	"github.com/GriffinCanCode/webharvest/internal/domain/matcher"
	"github.com/GriffinCanCode/webharvest/internal/domain/notifier"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/monitoring"
)

// ErrClosed is returned by Flush after Close
var ErrClosed = errors.New("controller closed")

// State is the controller's position in Idle → Matched → (Changed)* → Matched
type State int32

const (
	StateIdle State = iota
	StateMatched
	StateChanged
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMatched:
		return "matched"
	case StateChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Collaborators are the per-session components a controller drives. Any of
// them may be nil.
type Collaborators struct {
	Bus      *eventbus.Bus
	Notifier *notifier.Notifier
	Bindings *binding.Registry
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
}

// Controller owns one session's current graph and focus. Snapshots are
// processed one at a time; readers never observe a partial graph.
type Controller struct {
	defs     []container.Definition
	opts     matcher.Options
	bus      *eventbus.Bus
	notifier *notifier.Notifier
	bindings *binding.Registry
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	process sync.Mutex
	graph   atomic.Pointer[matcher.Graph]
	focus   atomic.Pointer[matcher.Node]
	state   atomic.Int32

	queue *dispatchQueue
}

// New creates a controller and starts its dispatch worker. Close stops it.
func New(defs []container.Definition, opts matcher.Options, c Collaborators) *Controller {
	ctrl := &Controller{
		defs:     defs,
		opts:     opts,
		bus:      c.Bus,
		notifier: c.Notifier,
		bindings: c.Bindings,
		logger:   logging.OrNop(c.Logger),
		metrics:  c.Metrics,
	}
	ctrl.graph.Store(matcher.Empty())
	ctrl.queue = newDispatchQueue(ctrl.logger)
	return ctrl
}

// CurrentGraph returns the last published graph, empty before the first
// snapshot
func (c *Controller) CurrentGraph() *matcher.Graph {
	return c.graph.Load()
}

// CurrentFocus returns the focused container or nil
func (c *Controller) CurrentFocus() *matcher.Node {
	return c.focus.Load()
}

// State returns the current state
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Definitions returns the definitions the controller matches
func (c *Controller) Definitions() []container.Definition {
	return c.defs
}

// OnSnapshot matches snapshot and publishes the new graph and focus. Feeding
// the change notifier and the container discovered/lost events are queued
// and happen after OnSnapshot returns; Flush waits for them.
func (c *Controller) OnSnapshot(ctx context.Context, snapshot *dom.Node) *matcher.Graph {
	c.process.Lock()
	defer c.process.Unlock()

	start := time.Now()
	next := matcher.Match(c.defs, snapshot, c.opts)

	prev := c.graph.Load()
	first := c.State() == StateIdle
	next.Discovered, next.Lost = matcher.Diff(prev, next)

	focus := pickFocus(next, c.focus.Load())
	c.graph.Store(next)
	c.focus.Store(focus)

	changed := len(next.Discovered) > 0 || len(next.Lost) > 0
	if first || !changed {
		c.state.Store(int32(StateMatched))
	} else {
		c.state.Store(int32(StateChanged))
	}

	c.metrics.RecordMatch(time.Since(start), next.Len(), next.Truncated)
	c.logger.Debug("Snapshot matched",
		zap.Int("containers", next.Len()),
		zap.Strings("discovered", next.Discovered),
		zap.Strings("lost", next.Lost),
		zap.Bool("truncated", next.Truncated),
		zap.Duration("duration", time.Since(start)))

	notify := c.notifier != nil && snapshot != nil
	publish := c.bus != nil && changed
	if notify || publish {
		discovered, lost := next.Discovered, next.Lost
		c.queue.push(func(ctx context.Context) {
			if notify {
				if err := c.notifier.ProcessSnapshot(ctx, snapshot); err != nil {
					c.logger.Warn("Change notifier failed", zap.Error(err))
				}
			}
			if !publish {
				return
			}
			for _, id := range discovered {
				c.emit(ctx, eventbus.ContainerDiscovered(id), id)
			}
			for _, id := range lost {
				c.emit(ctx, eventbus.ContainerLost(id), id)
			}
		})
	}
	return next
}

func (c *Controller) emit(ctx context.Context, topic, containerID string) {
	if err := c.bus.Emit(ctx, topic, map[string]any{"containerId": containerID}); err != nil {
		c.logger.Debug("Container event not published", zap.String("topic", topic), zap.Error(err))
	}
}

// HandleMessage fires the message rules for msgType against the current graph
func (c *Controller) HandleMessage(ctx context.Context, msgType string, payload map[string]any) []binding.Dispatch {
	if c.bindings == nil {
		return nil
	}
	return c.bindings.HandleMessage(ctx, msgType, payload, c.CurrentGraph())
}

// Flush waits until every event queued before the call was delivered
func (c *Controller) Flush(ctx context.Context) error {
	return c.queue.flush(ctx)
}

// Close stops the dispatch worker after it drained the queue
func (c *Controller) Close() {
	c.queue.close()
}

// pickFocus returns, among newly discovered containers, the last one with
// the highest confidence. Without new containers the previous focus is kept
// when its container is still present.
func pickFocus(g *matcher.Graph, prev *matcher.Node) *matcher.Node {
	if len(g.Discovered) > 0 {
		fresh := make(map[string]struct{}, len(g.Discovered))
		for _, id := range g.Discovered {
			fresh[id] = struct{}{}
		}
		var best *matcher.Node
		g.Walk(func(n, _ *matcher.Node) {
			if _, ok := fresh[n.ID]; !ok {
				return
			}
			if best == nil || n.Match.Confidence >= best.Match.Confidence {
				best = n
			}
		})
		return best
	}
	if prev == nil {
		return nil
	}
	n, ok := g.Find(prev.ID)
	if !ok {
		return nil
	}
	return n
}
