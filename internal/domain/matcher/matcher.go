package matcher

import (
	"time"

	"github.com/GriffinCanCode/webharvest/internal/domain/container"
	"github.com/GriffinCanCode/webharvest/internal/domain/dom"
)

// Options bounds the part of a snapshot the matcher looks at. Zero means
// unlimited.
type Options struct {
	MaxDepth    int `json:"maxDepth"`
	MaxChildren int `json:"maxChildren"`
}

// Match builds the container graph of snapshot for defs.
//
// Definitions are tried in catalog order. A definition matches when any of
// its selectors finds at least one element; its confidence is the highest
// score among the selectors that found something, the earlier selector
// winning a tie. Child definitions only look below the elements their
// parent matched. Selectors that fail to compile never match.
func Match(defs []container.Definition, snapshot *dom.Node, opts Options) *Graph {
	view, truncated := dom.Bound(snapshot, opts.MaxDepth, opts.MaxChildren)
	g := &Graph{Truncated: truncated, CreatedAt: time.Now()}
	if view == nil {
		return g
	}

	m := &run{tree: dom.NewTree(view), queries: make(map[container.Selector]*dom.Query)}
	g.Roots = m.level(defs, nil)
	return g
}

type run struct {
	tree    *dom.Tree
	queries map[container.Selector]*dom.Query
}

type hit struct {
	sel   container.Selector
	nodes []*dom.Node
}

// level matches defs; scope nil means the whole view
func (m *run) level(defs []container.Definition, scope []*dom.Node) []*Node {
	var out []*Node
	for i := range defs {
		def := &defs[i]
		node, elems, ok := m.definition(def, scope)
		if !ok {
			continue
		}
		node.Children = m.level(def.Children, elems)
		out = append(out, node)
	}
	return out
}

func (m *run) definition(def *container.Definition, scope []*dom.Node) (*Node, []*dom.Node, bool) {
	var hits []hit
	best := -1
	for _, sel := range def.Selectors {
		nodes := m.query(sel).Within(m.tree, scope)
		if len(nodes) == 0 {
			continue
		}
		hits = append(hits, hit{sel: sel, nodes: nodes})
		if best < 0 || sel.Score > hits[best].sel.Score {
			best = len(hits) - 1
		}
	}
	if best < 0 {
		return nil, nil, false
	}

	ordered := make([]hit, 0, len(hits))
	ordered = append(ordered, hits[best])
	ordered = append(ordered, hits[:best]...)
	ordered = append(ordered, hits[best+1:]...)

	seen := make(map[string]struct{})
	var matched []MatchedNode
	var elems []*dom.Node
	for _, h := range ordered {
		for _, n := range h.nodes {
			if _, dup := seen[n.Path]; dup {
				continue
			}
			seen[n.Path] = struct{}{}
			elems = append(elems, n)
			matched = append(matched, MatchedNode{
				Selector:        h.sel.String(),
				DomPath:         n.Path,
				ElementSelector: n.Selector,
			})
		}
	}

	return &Node{
		ID:           def.ID,
		DefID:        def.ID,
		Name:         def.Name,
		Capabilities: def.Capabilities,
		Operations:   def.Operations,
		Match: MatchInfo{
			Nodes:      matched,
			Count:      len(matched),
			Confidence: hits[best].sel.Score,
			Variant:    hits[best].sel.Variant,
		},
	}, elems, true
}

func (m *run) query(sel container.Selector) *dom.Query {
	q, ok := m.queries[sel]
	if !ok {
		q = dom.Compile(sel.Spec())
		m.queries[sel] = q
	}
	return q
}
