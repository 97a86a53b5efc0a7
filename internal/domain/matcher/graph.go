package matcher

import (
	"time"

	"github.com/GriffinCanCode/webharvest/internal/domain/container"
)

// MatchedNode is one snapshot element a container matched
type MatchedNode struct {
	// Selector is the catalog selector that found the element, as "kind:expression"
	Selector string `json:"selector"`
	DomPath  string `json:"domPath"`
	// ElementSelector is the selector the browser generated for the element
	ElementSelector string `json:"elementSelector,omitempty"`
}

// MatchInfo summarizes how a container matched
type MatchInfo struct {
	Nodes      []MatchedNode `json:"nodes"`
	Count      int           `json:"count"`
	Confidence float64       `json:"confidence"`
	Variant    string        `json:"variant,omitempty"`
}

// Node is a matched container. Its ID is the definition id.
type Node struct {
	ID           string                    `json:"id"`
	DefID        string                    `json:"defId"`
	Name         string                    `json:"name,omitempty"`
	Capabilities []string                  `json:"capabilities,omitempty"`
	Operations   []container.OperationSpec `json:"operations,omitempty"`
	Match        MatchInfo                 `json:"match"`
	Children     []*Node                   `json:"children,omitempty"`
}

// Paths returns the dom paths the container matched
func (n *Node) Paths() []string {
	out := make([]string, 0, len(n.Match.Nodes))
	for _, m := range n.Match.Nodes {
		out = append(out, m.DomPath)
	}
	return out
}

// Graph is the container tree produced for one snapshot. A published graph
// is never mutated.
type Graph struct {
	Roots     []*Node `json:"roots"`
	Truncated bool    `json:"truncated"`
	// Discovered and Lost list container ids that appeared or vanished
	// relative to the previous graph of the same session.
	Discovered []string  `json:"discovered,omitempty"`
	Lost       []string  `json:"lost,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Empty returns a graph with no containers
func Empty() *Graph {
	return &Graph{CreatedAt: time.Now()}
}

// IsEmpty reports whether nothing matched
func (g *Graph) IsEmpty() bool {
	return g == nil || len(g.Roots) == 0
}

// Walk visits every container depth first; parent is nil for roots
func (g *Graph) Walk(fn func(n, parent *Node)) {
	if g == nil {
		return
	}
	var visit func(nodes []*Node, parent *Node)
	visit = func(nodes []*Node, parent *Node) {
		for _, n := range nodes {
			fn(n, parent)
			visit(n.Children, n)
		}
	}
	visit(g.Roots, nil)
}

// Find returns the container with the given id
func (g *Graph) Find(id string) (*Node, bool) {
	var found *Node
	g.Walk(func(n, _ *Node) {
		if found == nil && n.ID == id {
			found = n
		}
	})
	return found, found != nil
}

// IDs returns every container id, depth first
func (g *Graph) IDs() []string {
	var ids []string
	g.Walk(func(n, _ *Node) {
		ids = append(ids, n.ID)
	})
	return ids
}

// Len returns the number of containers
func (g *Graph) Len() int {
	count := 0
	g.Walk(func(*Node, *Node) { count++ })
	return count
}

// LastDiscovered returns the last id in Discovered, or ""
func (g *Graph) LastDiscovered() string {
	if g == nil || len(g.Discovered) == 0 {
		return ""
	}
	return g.Discovered[len(g.Discovered)-1]
}

// Diff lists the container ids present in next but not prev (appeared) and
// in prev but not next (vanished), each in depth first order.
func Diff(prev, next *Graph) (appeared, vanished []string) {
	before := make(map[string]struct{})
	for _, id := range prev.IDs() {
		before[id] = struct{}{}
	}
	after := make(map[string]struct{})
	for _, id := range next.IDs() {
		after[id] = struct{}{}
		if _, ok := before[id]; !ok {
			appeared = append(appeared, id)
		}
	}
	for _, id := range prev.IDs() {
		if _, ok := after[id]; !ok {
			vanished = append(vanished, id)
		}
	}
	return appeared, vanished
}
