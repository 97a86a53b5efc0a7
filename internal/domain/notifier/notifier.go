package notifier

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/webharvest/internal/domain/dom"
	"github.com/GriffinCanCode/webharvest/internal/domain/eventbus"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
)

// WatchOptions configures a watcher. Callbacks receive nodes in document
// order. Throttle is the minimum time between two callback rounds; rounds
// inside the window are dropped, not queued. Zero fires on every diff.
type WatchOptions struct {
	OnAppear    func(nodes []*dom.Node)
	OnDisappear func(nodes []*dom.Node)
	Throttle    time.Duration
}

type watcher struct {
	id    uint64
	query *dom.Query
	opts  WatchOptions
	prev  []*dom.Node
	seen  map[string]struct{}
	gate  *rate.Sometimes
}

// Notifier diffs consecutive snapshots for a set of watched selectors and
// republishes every snapshot on the bus.
type Notifier struct {
	bus    *eventbus.Bus
	logger *zap.Logger

	mu       sync.Mutex
	watchers []*watcher
	nextID   uint64

	process sync.Mutex
}

// New creates a notifier publishing on bus
func New(bus *eventbus.Bus, logger *zap.Logger) *Notifier {
	return &Notifier{bus: bus, logger: logging.OrNop(logger)}
}

// Watch registers interest in nodes matching spec. The first processed
// snapshot reports every current match as appeared. A spec that is empty
// or does not compile never matches.
func (n *Notifier) Watch(spec dom.SelectorSpec, opts WatchOptions) (unsubscribe func()) {
	q := dom.Compile(spec)
	if !q.Valid() {
		n.logger.Warn("Watcher selector never matches", zap.Stringer("spec", spec))
	}

	w := &watcher{query: q, opts: opts, seen: map[string]struct{}{}}
	if opts.Throttle > 0 {
		w.gate = &rate.Sometimes{Interval: opts.Throttle}
	}

	n.mu.Lock()
	n.nextID++
	w.id = n.nextID
	n.watchers = append(n.watchers, w)
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(w.id) })
	}
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.watchers = slices.DeleteFunc(n.watchers, func(w *watcher) bool { return w.id == id })
}

// WatcherCount returns the number of live watchers
func (n *Notifier) WatcherCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.watchers)
}

// ProcessSnapshot publishes snapshot on dom:changed and runs every watcher's
// diff against it. Calls are serialized.
func (n *Notifier) ProcessSnapshot(ctx context.Context, snapshot *dom.Node) error {
	n.process.Lock()
	defer n.process.Unlock()

	if err := n.bus.Emit(ctx, eventbus.TopicDOMChanged, map[string]any{"snapshot": snapshot}); err != nil {
		return err
	}

	n.mu.Lock()
	watchers := slices.Clone(n.watchers)
	n.mu.Unlock()
	if len(watchers) == 0 {
		return nil
	}

	tree := dom.NewTree(snapshot)
	for _, w := range watchers {
		n.diff(w, tree)
	}
	return nil
}

func (n *Notifier) diff(w *watcher, tree *dom.Tree) {
	current := w.query.All(tree)
	next := make(map[string]struct{}, len(current))
	var appeared []*dom.Node
	for _, node := range current {
		next[node.Path] = struct{}{}
		if _, ok := w.seen[node.Path]; !ok {
			appeared = append(appeared, node)
		}
	}

	// vanished nodes are reported as they were in the previous snapshot
	var vanished []*dom.Node
	for _, node := range w.prev {
		if _, ok := next[node.Path]; !ok {
			vanished = append(vanished, node)
		}
	}
	w.prev, w.seen = current, next

	if len(appeared) == 0 && len(vanished) == 0 {
		return
	}

	fire := func() { n.fire(w, appeared, vanished) }
	if w.gate == nil {
		fire()
		return
	}
	w.gate.Do(fire)
}

func (n *Notifier) fire(w *watcher, appeared, vanished []*dom.Node) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Watcher callback panicked",
				zap.Stringer("spec", w.query.Spec()),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()

	if len(appeared) > 0 && w.opts.OnAppear != nil {
		w.opts.OnAppear(appeared)
	}
	if len(vanished) > 0 && w.opts.OnDisappear != nil {
		w.opts.OnDisappear(vanished)
	}
}

// Subscribe forwards to the bus
func (n *Notifier) Subscribe(topic string, handler eventbus.Handler) (unsubscribe func()) {
	return n.bus.Subscribe(topic, handler)
}

// Notify publishes payload on topic. Topics nobody listens to are a no-op.
func (n *Notifier) Notify(ctx context.Context, topic string, payload map[string]any) error {
	return n.bus.Emit(ctx, topic, payload)
}
