package binding

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webharvest/internal/domain/matcher"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
)

// DefaultScriptTimeout bounds one script evaluation
const DefaultScriptTimeout = 100 * time.Millisecond

// ScriptOptions configures script resolvers
type ScriptOptions struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

// ScriptTarget compiles a JavaScript target expression. The expression may
// evaluate to a container id or to a function, which is called with a scope
// object {graph, lastDiscoveredId, event}. The same names are globals too, so
// both "lastDiscoveredId" and "s => s.lastDiscoveredId" work.
func ScriptTarget(source string, opts ScriptOptions) (Target, error) {
	prog, err := goja.Compile("target", "("+source+")", true)
	if err != nil {
		return Target{}, fmt.Errorf("compile target script: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultScriptTimeout
	}
	logger := logging.OrNop(opts.Logger)

	resolve := func(s Scope) (string, bool) {
		id, err := runScript(prog, s, opts.Timeout)
		if err != nil {
			logger.Warn("Target script failed", zap.String("script", source), zap.Error(err))
			return "", false
		}
		return id, id != ""
	}
	t := ByResolver(resolve)
	t.source = source
	return t, nil
}

// runScript evaluates prog in a fresh VM. A goja runtime is not safe for
// concurrent use, and event rules may fire from several sessions at once.
func runScript(prog *goja.Program, s Scope, timeout time.Duration) (string, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)
	for _, name := range []string{"require", "process", "module", "exports"} {
		_ = vm.Set(name, goja.Undefined())
	}

	scope := map[string]any{
		"graph":            graphObject(s.Graph),
		"lastDiscoveredId": s.LastDiscoveredID,
		"event":            map[string]any{"topic": s.Topic, "payload": s.Payload},
	}
	for k, v := range scope {
		if err := vm.Set(k, v); err != nil {
			return "", err
		}
	}

	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt("execution timeout exceeded")
	})
	defer timer.Stop()

	val, err := vm.RunProgram(prog)
	if err != nil {
		return "", err
	}
	if fn, ok := goja.AssertFunction(val); ok {
		val, err = fn(goja.Undefined(), vm.ToValue(scope))
		if err != nil {
			return "", err
		}
	}
	return exportID(val), nil
}

func exportID(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return ""
	}
	if s, ok := val.Export().(string); ok {
		return s
	}
	return ""
}

// graphObject is the read-only view scripts get of a graph
func graphObject(g *matcher.Graph) map[string]any {
	nodes := map[string]map[string]any{}
	var convert func(n *matcher.Node) map[string]any
	convert = func(n *matcher.Node) map[string]any {
		children := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			children = append(children, convert(c))
		}
		obj := map[string]any{
			"id":         n.ID,
			"name":       n.Name,
			"confidence": n.Match.Confidence,
			"count":      n.Match.Count,
			"paths":      n.Paths(),
			"children":   children,
		}
		nodes[n.ID] = obj
		return obj
	}

	var roots []any
	if g != nil {
		for _, r := range g.Roots {
			roots = append(roots, convert(r))
		}
	}
	var discovered, lost []string
	truncated := false
	if g != nil {
		discovered, lost, truncated = g.Discovered, g.Lost, g.Truncated
	}

	return map[string]any{
		"roots":      roots,
		"ids":        g.IDs(),
		"discovered": discovered,
		"lost":       lost,
		"truncated":  truncated,
		"find": func(id string) any {
			if n, ok := nodes[id]; ok {
				return n
			}
			return nil
		},
	}
}
