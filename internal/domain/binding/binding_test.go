package binding

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/webharvest/internal/domain/container"
	"github.com/GriffinCanCode/webharvest/internal/domain/eventbus"
	"github.com/GriffinCanCode/webharvest/internal/domain/matcher"
	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
)

type recordingOp struct {
	id   string
	fail bool

	mu    sync.Mutex
	calls []*operation.Context
	confs []map[string]any
}

func (o *recordingOp) ID() string          { return o.id }
func (o *recordingOp) Description() string { return "records calls" }
func (o *recordingOp) Run(_ context.Context, opCtx *operation.Context, config map[string]any) (any, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, opCtx)
	o.confs = append(o.confs, config)
	if o.fail {
		return nil, errors.New("boom")
	}
	return opCtx.ContainerID, nil
}

func (o *recordingOp) containers() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.calls))
	for _, c := range o.calls {
		out = append(out, c.ContainerID)
	}
	return out
}

type fixture struct {
	bus       *eventbus.Bus
	reg       *Registry
	highlight *recordingOp
	click     *recordingOp
	graph     *matcher.Graph
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bus:       eventbus.New(eventbus.Options{}),
		highlight: &recordingOp{id: "highlight"},
		click:     &recordingOp{id: "click", fail: true},
		graph: &matcher.Graph{
			Roots: []*matcher.Node{{
				ID: "feed", DefID: "feed",
				Match: matcher.MatchInfo{Count: 2, Confidence: 1, Nodes: []matcher.MatchedNode{
					{Selector: "css:.feed", DomPath: "root/0", ElementSelector: "#feed"},
					{Selector: "css:.feed", DomPath: "root/1"},
				}},
				Children: []*matcher.Node{{ID: "post", DefID: "post", Match: matcher.MatchInfo{Count: 1, Confidence: 2}}},
			}},
			Discovered: []string{"feed", "post"},
		},
	}
	ops := operation.NewRegistry()
	ops.MustRegister(f.highlight, f.click)
	exec := operation.NewExecutor(ops, operation.ExecutorOptions{Timeout: time.Second})
	f.reg = New(Options{
		Bus:      f.bus,
		Executor: exec,
		Graph:    func() *matcher.Graph { return f.graph },
	})
	return f
}

func (f *fixture) record(pattern string) func() []eventbus.Event {
	var mu sync.Mutex
	var got []eventbus.Event
	f.bus.On(pattern, func(_ context.Context, e eventbus.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		return nil
	})
	return func() []eventbus.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]eventbus.Event(nil), got...)
	}
}

func messageRule(id, pattern string, target Target, op string) Rule {
	return Rule{
		ID:      id,
		Trigger: Trigger{Type: TriggerMessage, Pattern: pattern},
		Target:  target,
		Action:  Action{OperationType: op},
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.Register(messageRule("a", "PING", ByID("feed"), "highlight")))

	tests := []struct {
		name string
		rule Rule
		err  error
	}{
		{"duplicate id", messageRule("a", "PONG", ByID("feed"), "highlight"), ErrDuplicateRule},
		{"empty id", messageRule("", "PING", ByID("feed"), "highlight"), ErrInvalidRule},
		{"empty pattern", messageRule("b", "", ByID("feed"), "highlight"), ErrInvalidRule},
		{"no target", messageRule("c", "PING", Target{}, "highlight"), ErrInvalidRule},
		{"empty container id", messageRule("d", "PING", ByID(""), "highlight"), ErrInvalidRule},
		{"no operation", messageRule("e", "PING", ByID("feed"), ""), ErrInvalidRule},
		{"unknown trigger", Rule{ID: "f", Trigger: Trigger{Type: "cron", Pattern: "x"}, Target: ByID("feed"), Action: Action{OperationType: "click"}}, ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, f.reg.Register(tt.rule), tt.err)
		})
	}

	noBus := New(Options{})
	err := noBus.Register(Rule{ID: "g", Trigger: Trigger{Type: TriggerEvent, Pattern: "x:*"}, Target: ByID("feed"), Action: Action{OperationType: "click"}})
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestHandleMessageRegistrationOrder(t *testing.T) {
	f := newFixture(t)
	executed := f.record("operation:*:execute")

	require.NoError(t, f.reg.Register(messageRule("first", "NEXT", ByID("post"), "highlight")))
	require.NoError(t, f.reg.Register(messageRule("failing", "NEXT", ByID("feed"), "click")))
	require.NoError(t, f.reg.Register(messageRule("other", "PREV", ByID("feed"), "highlight")))
	require.NoError(t, f.reg.Register(messageRule("last", "NEXT", ByID("feed"), "highlight")))

	got := f.reg.HandleMessage(context.Background(), "NEXT", nil, f.graph)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].RuleID)
	assert.Equal(t, "failing", got[1].RuleID)
	assert.Equal(t, "last", got[2].RuleID)

	assert.True(t, got[0].Result.Success)
	assert.False(t, got[1].Result.Success)
	assert.Equal(t, "boom", got[1].Result.Error)
	assert.True(t, got[2].Result.Success)

	assert.Equal(t, []string{"post", "feed"}, f.highlight.containers())

	events := executed()
	require.Len(t, events, 3)
	assert.Equal(t, "operation:highlight:execute", events[0].Topic)
	assert.Equal(t, "operation:click:execute", events[1].Topic)
	assert.Equal(t, "click", events[1].Payload["operationType"])
	assert.Equal(t, "feed", events[1].Payload["containerId"])
	assert.IsType(t, operation.Result{}, events[1].Payload["result"])
}

func TestHandleMessageExactPattern(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.Register(messageRule("a", "ACTION_NEXT", ByID("feed"), "highlight")))

	assert.Empty(t, f.reg.HandleMessage(context.Background(), "ACTION_*", nil, f.graph))
	assert.Empty(t, f.reg.HandleMessage(context.Background(), "ACTION", nil, f.graph))
	assert.Len(t, f.reg.HandleMessage(context.Background(), "ACTION_NEXT", nil, f.graph), 1)
}

func TestDispatchPassesMatchedElements(t *testing.T) {
	f := newFixture(t)
	cfg := map[string]any{"color": "#ff0000"}
	rule := messageRule("a", "GO", ByID("feed"), "highlight")
	rule.Action.Config = cfg
	require.NoError(t, f.reg.Register(rule))

	f.reg.HandleMessage(context.Background(), "GO", nil, f.graph)
	require.Len(t, f.highlight.calls, 1)
	assert.Equal(t, []operation.Element{
		{Path: "root/0", Selector: "#feed"},
		{Path: "root/1"},
	}, f.highlight.calls[0].Elements)

	// operations get a copy of the action config
	f.highlight.confs[0]["color"] = "changed"
	assert.Equal(t, "#ff0000", cfg["color"])
}

func TestUnresolvedTargetIsSkipped(t *testing.T) {
	f := newFixture(t)
	executed := f.record("operation:*:execute")

	never := ByResolver(func(Scope) (string, bool) { return "", false })
	empty := ByResolver(func(Scope) (string, bool) { return "", true })
	require.NoError(t, f.reg.Register(messageRule("never", "GO", never, "highlight")))
	require.NoError(t, f.reg.Register(messageRule("empty", "GO", empty, "highlight")))
	require.NoError(t, f.reg.Register(messageRule("ok", "GO", ByID("feed"), "highlight")))

	got := f.reg.HandleMessage(context.Background(), "GO", nil, f.graph)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].RuleID)
	assert.Len(t, executed(), 1)
}

func TestResolverIsLazy(t *testing.T) {
	f := newFixture(t)
	calls := 0
	target := ByResolver(func(s Scope) (string, bool) {
		calls++
		return s.LastDiscoveredID, true
	})
	require.NoError(t, f.reg.Register(messageRule("lazy", "GO", target, "highlight")))
	assert.Zero(t, calls)

	got := f.reg.HandleMessage(context.Background(), "GO", nil, f.graph)
	require.Len(t, got, 1)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "post", got[0].ContainerID)

	got = f.reg.HandleMessage(context.Background(), "GO", map[string]any{"containerId": "feed"}, f.graph)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "feed", got[0].ContainerID)
}

func TestUnknownOperationDispatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.Register(messageRule("a", "GO", ByID("feed"), "teleport")))

	got := f.reg.HandleMessage(context.Background(), "GO", nil, f.graph)
	require.Len(t, got, 1)
	assert.False(t, got[0].Result.Success)
	assert.Equal(t, operation.ErrNotFound, got[0].Result.Error)
}

func TestEventRuleDiscoveredHighlight(t *testing.T) {
	f := newFixture(t)
	executed := f.record("operation:highlight:execute")

	target, err := ScriptTarget("g => g.lastDiscoveredId", ScriptOptions{})
	require.NoError(t, err)
	require.NoError(t, f.reg.Register(Rule{
		ID:      "highlight-new",
		Trigger: Trigger{Type: TriggerEvent, Pattern: "container:*:discovered"},
		Target:  target,
		Action:  Action{OperationType: "highlight", Config: map[string]any{"color": "#00C853"}},
	}))

	err = f.bus.Emit(context.Background(), eventbus.ContainerDiscovered("test-container"),
		map[string]any{"containerId": "test-container"})
	require.NoError(t, err)

	events := executed()
	require.Len(t, events, 1)
	assert.Equal(t, "test-container", events[0].Payload["containerId"])
	assert.Equal(t, "highlight", events[0].Payload["operationType"])
	assert.Equal(t, "#00C853", f.highlight.confs[0]["color"])
}

func TestUnregisterStopsEventRule(t *testing.T) {
	f := newFixture(t)
	handlers := f.bus.HandlerCount()
	require.NoError(t, f.reg.Register(Rule{
		ID:      "r",
		Trigger: Trigger{Type: TriggerEvent, Pattern: "container:*:lost"},
		Target:  ByID("feed"),
		Action:  Action{OperationType: "highlight"},
	}))
	assert.Equal(t, handlers+1, f.bus.HandlerCount())

	assert.True(t, f.reg.Unregister("r"))
	assert.False(t, f.reg.Unregister("r"))
	assert.Equal(t, handlers, f.bus.HandlerCount())

	require.NoError(t, f.bus.Emit(context.Background(), eventbus.ContainerLost("feed"), nil))
	assert.Empty(t, f.highlight.containers())
	assert.Empty(t, f.reg.Rules())
}

func TestEventRuleChainIsBounded(t *testing.T) {
	f := newFixture(t)
	// every highlight re-triggers itself
	require.NoError(t, f.reg.Register(Rule{
		ID:      "loop",
		Trigger: Trigger{Type: TriggerEvent, Pattern: "operation:highlight:execute"},
		Target:  ByID("feed"),
		Action:  Action{OperationType: "highlight"},
	}))

	require.NoError(t, f.bus.Emit(context.Background(), eventbus.OperationExecuted("highlight"), nil))
	assert.Len(t, f.highlight.containers(), MaxChainDepth)
}

func TestFindRulesByTrigger(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.Register(messageRule("m1", "A", ByID("feed"), "highlight")))
	require.NoError(t, f.reg.Register(Rule{ID: "e1", Trigger: Trigger{Type: TriggerEvent, Pattern: "A"}, Target: ByID("feed"), Action: Action{OperationType: "highlight"}}))
	require.NoError(t, f.reg.Register(messageRule("m2", "B", ByID("feed"), "highlight")))

	ids := func(rules []Rule) []string {
		var out []string
		for _, r := range rules {
			out = append(out, r.ID)
		}
		return out
	}
	assert.Equal(t, []string{"m1"}, ids(f.reg.FindRulesByTrigger(TriggerMessage, "A")))
	assert.Equal(t, []string{"e1"}, ids(f.reg.FindRulesByTrigger(TriggerEvent, "A")))
	assert.Equal(t, []string{"m1", "m2"}, ids(f.reg.FindRulesByTrigger(TriggerMessage, "")))
	assert.Equal(t, []string{"m1", "e1", "m2"}, ids(f.reg.Rules()))
}

func TestScriptTarget(t *testing.T) {
	scope := NewScope(&matcher.Graph{
		Roots:      []*matcher.Node{{ID: "feed", Match: matcher.MatchInfo{Count: 1, Confidence: 3}}},
		Discovered: []string{"feed"},
	}, "container:feed:discovered", map[string]any{"kind": "post"})

	tests := []struct {
		name   string
		script string
		want   string
		ok     bool
	}{
		{"global", "lastDiscoveredId", "feed", true},
		{"arrow", "s => s.lastDiscoveredId", "feed", true},
		{"graph lookup", "graph.find('feed') ? 'feed' : ''", "feed", true},
		{"missing container", "graph.find('nope') ? 'nope' : ''", "", false},
		{"event payload", "event.payload.kind + '-list'", "post-list", true},
		{"ids", "graph.ids[0]", "feed", true},
		{"non string", "42", "", false},
		{"null", "null", "", false},
		{"runtime error", "undefinedThing.x", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := ScriptTarget(tt.script, ScriptOptions{})
			require.NoError(t, err)
			got, ok := target.Resolve(scope)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScriptTargetTimeout(t *testing.T) {
	target, err := ScriptTarget("(() => { while (true) {} })()", ScriptOptions{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, ok := target.Resolve(Scope{})
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestScriptTargetCompileError(t *testing.T) {
	_, err := ScriptTarget("g => {", ScriptOptions{})
	assert.Error(t, err)
}

func TestFromSpec(t *testing.T) {
	rule, err := FromSpec(container.RuleSpec{
		ID:      "next-page",
		Trigger: container.TriggerSpec{Type: "message", Pattern: "ACTION_NEXT_PAGE"},
		Target:  container.TargetSpec{ContainerID: "pager"},
		Action:  container.ActionSpec{OperationType: "click"},
	}, ScriptOptions{})
	require.NoError(t, err)
	assert.Equal(t, TriggerMessage, rule.Trigger.Type)
	id, ok := rule.Target.Resolve(Scope{})
	assert.True(t, ok)
	assert.Equal(t, "pager", id)

	generated, err := FromSpec(container.RuleSpec{
		Trigger: container.TriggerSpec{Type: "event", Pattern: "container:*:discovered"},
		Target:  container.TargetSpec{Script: "lastDiscoveredId"},
		Action:  container.ActionSpec{OperationType: "highlight"},
	}, ScriptOptions{})
	require.NoError(t, err)
	assert.Len(t, generated.ID, 36)

	_, err = FromSpec(container.RuleSpec{ID: "bad", Target: container.TargetSpec{Script: "=>"}}, ScriptOptions{})
	assert.ErrorIs(t, err, ErrInvalidRule)
	_, err = FromSpec(container.RuleSpec{ID: "both", Target: container.TargetSpec{ContainerID: "a", Script: "'a'"}}, ScriptOptions{})
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestTargetJSON(t *testing.T) {
	script, err := ScriptTarget("lastDiscoveredId", ScriptOptions{})
	require.NoError(t, err)

	tests := []struct {
		target Target
		want   string
	}{
		{ByID("feed"), `{"containerId":"feed"}`},
		{script, `{"resolver":"script","script":"lastDiscoveredId"}`},
		{ByResolver(func(Scope) (string, bool) { return "", false }), `{"resolver":"func"}`},
		{Target{}, `{}`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.target)
		require.NoError(t, err)
		assert.JSONEq(t, tt.want, string(b))
	}
}
