package binding

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/webharvest/internal/domain/eventbus"
	"github.com/GriffinCanCode/webharvest/internal/domain/matcher"
	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/monitoring"
)

var (
	ErrDuplicateRule = errors.New("rule already registered")
	ErrInvalidRule   = errors.New("invalid rule")
)

// MaxChainDepth bounds how deep event rules may trigger each other through
// the operation events they publish
const MaxChainDepth = 8

// Executor runs the operation a rule dispatches
type Executor interface {
	Execute(ctx context.Context, req operation.Request) operation.Result
}

// Dispatch is the outcome of one fired rule
type Dispatch struct {
	RuleID        string           `json:"ruleId"`
	ContainerID   string           `json:"containerId"`
	OperationType string           `json:"operationType"`
	Result        operation.Result `json:"result"`
}

// Options configures a Registry
type Options struct {
	Bus      *eventbus.Bus
	Executor Executor
	// Graph returns the current graph for event rules
	Graph   func() *matcher.Graph
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

type entry struct {
	rule Rule
	hid  eventbus.HandlerID
}

// Registry holds binding rules and dispatches them. Rules are normally
// registered at startup; event rules subscribe on the bus as they register.
type Registry struct {
	bus      *eventbus.Bus
	executor Executor
	graph    func() *matcher.Graph
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu    sync.RWMutex
	rules []entry
}

// New creates a registry
func New(opts Options) *Registry {
	graph := opts.Graph
	if graph == nil {
		graph = func() *matcher.Graph { return nil }
	}
	return &Registry{
		bus:      opts.Bus,
		executor: opts.Executor,
		graph:    graph,
		logger:   logging.OrNop(opts.Logger),
		metrics:  opts.Metrics,
	}
}

// Register adds rule. Duplicate ids, empty patterns, unknown trigger types,
// missing targets and missing operation types are errors.
func (r *Registry) Register(rule Rule) error {
	switch {
	case rule.ID == "":
		return fmt.Errorf("%w: rule ID cannot be empty", ErrInvalidRule)
	case rule.Trigger.Pattern == "":
		return fmt.Errorf("%w: rule %s has an empty pattern", ErrInvalidRule, rule.ID)
	case rule.Trigger.Type != TriggerMessage && rule.Trigger.Type != TriggerEvent:
		return fmt.Errorf("%w: rule %s has unknown trigger type %q", ErrInvalidRule, rule.ID, rule.Trigger.Type)
	case rule.Target.IsZero():
		return fmt.Errorf("%w: rule %s has no target", ErrInvalidRule, rule.ID)
	case rule.Action.OperationType == "":
		return fmt.Errorf("%w: rule %s has no operation type", ErrInvalidRule, rule.ID)
	case rule.Trigger.Type == TriggerEvent && r.bus == nil:
		return fmt.Errorf("%w: event rule %s needs a bus", ErrInvalidRule, rule.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.ContainsFunc(r.rules, func(e entry) bool { return e.rule.ID == rule.ID }) {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, rule.ID)
	}

	e := entry{rule: rule}
	if rule.Trigger.Type == TriggerEvent {
		e.hid = r.bus.On(rule.Trigger.Pattern, r.eventHandler(rule))
	}
	r.rules = append(r.rules, e)

	r.logger.Debug("Rule registered",
		zap.String("rule", rule.ID),
		zap.String("trigger", string(rule.Trigger.Type)),
		zap.String("pattern", rule.Trigger.Pattern),
		zap.Stringer("target", rule.Target))
	return nil
}

// Unregister removes the rule and its bus subscription
func (r *Registry) Unregister(ruleID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.rules, func(e entry) bool { return e.rule.ID == ruleID })
	if i < 0 {
		return false
	}
	e := r.rules[i]
	if e.rule.Trigger.Type == TriggerEvent {
		r.bus.Off(e.rule.Trigger.Pattern, e.hid)
	}
	r.rules = slices.Delete(r.rules, i, i+1)
	return true
}

// Rules returns every rule in registration order
func (r *Registry) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Rule, len(r.rules))
	for i, e := range r.rules {
		out[i] = e.rule
	}
	return out
}

// FindRulesByTrigger returns the rules of type t whose pattern equals
// pattern, in registration order. An empty pattern returns every rule of t.
func (r *Registry) FindRulesByTrigger(t TriggerType, pattern string) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Rule
	for _, e := range r.rules {
		if e.rule.Trigger.Type != t {
			continue
		}
		if pattern == "" || e.rule.Trigger.Pattern == pattern {
			out = append(out, e.rule)
		}
	}
	return out
}

// HandleMessage fires every message rule whose pattern equals msgType, in
// registration order. A failing rule does not stop the others; rules whose
// target does not resolve are skipped.
func (r *Registry) HandleMessage(ctx context.Context, msgType string, payload map[string]any, graph *matcher.Graph) []Dispatch {
	rules := r.FindRulesByTrigger(TriggerMessage, msgType)
	if len(rules) == 0 {
		return nil
	}

	scope := NewScope(graph, msgType, payload)
	out := make([]Dispatch, 0, len(rules))
	for _, rule := range rules {
		if d, ok := r.dispatch(ctx, rule, scope); ok {
			out = append(out, d)
		}
	}
	return out
}

func (r *Registry) eventHandler(rule Rule) eventbus.Handler {
	return func(ctx context.Context, e eventbus.Event) error {
		depth := chainDepth(ctx)
		if depth >= MaxChainDepth {
			r.logger.Warn("Rule chain too deep, dropping",
				zap.String("rule", rule.ID),
				zap.String("topic", e.Topic),
				zap.Int("depth", depth))
			r.metrics.RecordRule(string(TriggerEvent), "dropped")
			return nil
		}
		ctx = withChainDepth(ctx, depth+1)

		scope := NewScope(r.graph(), e.Topic, e.Payload)
		r.dispatch(ctx, rule, scope)
		return nil
	}
}

func (r *Registry) dispatch(ctx context.Context, rule Rule, scope Scope) (Dispatch, bool) {
	trigger := string(rule.Trigger.Type)

	containerID, ok := rule.Target.Resolve(scope)
	if !ok {
		r.logger.Info("Rule target unresolved, skipping",
			zap.String("rule", rule.ID),
			zap.String("trigger", scope.Topic),
			zap.Stringer("target", rule.Target))
		r.metrics.RecordRule(trigger, "unresolved")
		return Dispatch{}, false
	}

	var result operation.Result
	if r.executor == nil {
		result = operation.Failure(operation.ErrNotFound)
	} else {
		result = r.executor.Execute(ctx, operation.Request{
			ContainerID: containerID,
			OperationID: rule.Action.OperationType,
			Config:      maps.Clone(rule.Action.Config),
			Elements:    ElementsOf(scope.Graph, containerID),
		})
	}

	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	r.metrics.RecordRule(trigger, outcome)

	if r.bus != nil {
		err := r.bus.Emit(ctx, eventbus.OperationExecuted(rule.Action.OperationType), map[string]any{
			"operationType": rule.Action.OperationType,
			"containerId":   containerID,
			"ruleId":        rule.ID,
			"result":        result,
		})
		if err != nil {
			r.logger.Debug("Operation event not published", zap.String("rule", rule.ID), zap.Error(err))
		}
	}

	return Dispatch{
		RuleID:        rule.ID,
		ContainerID:   containerID,
		OperationType: rule.Action.OperationType,
		Result:        result,
	}, true
}

// ElementsOf returns the matched elements of a container in g, or nil
func ElementsOf(g *matcher.Graph, containerID string) []operation.Element {
	n, ok := g.Find(containerID)
	if !ok {
		return nil
	}
	out := make([]operation.Element, 0, len(n.Match.Nodes))
	for _, m := range n.Match.Nodes {
		out = append(out, operation.Element{Path: m.DomPath, Selector: m.ElementSelector})
	}
	return out
}

type chainKey struct{}

func chainDepth(ctx context.Context) int {
	d, _ := ctx.Value(chainKey{}).(int)
	return d
}

func withChainDepth(ctx context.Context, d int) context.Context {
	return context.WithValue(ctx, chainKey{}, d)
}
