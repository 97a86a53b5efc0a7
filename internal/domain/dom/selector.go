package dom

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// SelectorSpec describes which snapshot nodes a watcher is interested in.
// Every non-empty field must hold for a node to match. An empty spec
// matches nothing.
type SelectorSpec struct {
	CSS     string   `json:"css,omitempty" yaml:"css,omitempty" toml:"css,omitempty"`
	ID      string   `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	Classes []string `json:"classes,omitempty" yaml:"classes,omitempty" toml:"classes,omitempty"`
	XPath   string   `json:"xpath,omitempty" yaml:"xpath,omitempty" toml:"xpath,omitempty"`
}

// IsEmpty reports whether no predicate is set
func (s SelectorSpec) IsEmpty() bool {
	return strings.TrimSpace(s.CSS) == "" && s.ID == "" && len(s.Classes) == 0 && strings.TrimSpace(s.XPath) == ""
}

// String renders the selector for logs
func (s SelectorSpec) String() string {
	var parts []string
	if s.CSS != "" {
		parts = append(parts, "css="+s.CSS)
	}
	if s.ID != "" {
		parts = append(parts, "id="+s.ID)
	}
	if len(s.Classes) > 0 {
		parts = append(parts, "classes="+strings.Join(s.Classes, "."))
	}
	if s.XPath != "" {
		parts = append(parts, "xpath="+s.XPath)
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Query is a compiled SelectorSpec. A spec that is empty or fails to
// compile yields a Query that never matches.
type Query struct {
	spec  SelectorSpec
	css   cascadia.Selector
	xpath *xpath.Expr
	valid bool
}

// Compile prepares spec for repeated evaluation
func Compile(spec SelectorSpec) *Query {
	q := &Query{spec: spec}
	if spec.IsEmpty() {
		return q
	}

	if css := strings.TrimSpace(spec.CSS); css != "" {
		sel, err := cascadia.Compile(css)
		if err != nil {
			return q
		}
		q.css = sel
	}
	if xp := strings.TrimSpace(spec.XPath); xp != "" {
		expr, err := xpath.Compile(xp)
		if err != nil {
			return q
		}
		q.xpath = expr
	}

	q.valid = true
	return q
}

// Valid reports whether the query can ever match
func (q *Query) Valid() bool { return q.valid }

// Spec returns the source spec
func (q *Query) Spec() SelectorSpec { return q.spec }

// All returns every node of t the query matches, in document order
func (q *Query) All(t *Tree) []*Node {
	if !q.valid || t.root == nil {
		return nil
	}

	var candidates []*Node
	switch {
	case q.css != nil:
		candidates = t.fromElements(q.matchCSS(t))
	case q.xpath != nil:
		candidates = t.fromElements(q.matchXPath(t))
	default:
		candidates = t.Nodes()
	}

	var inXPath map[*html.Node]struct{}
	if q.css != nil && q.xpath != nil {
		inXPath = make(map[*html.Node]struct{})
		for _, el := range q.matchXPath(t) {
			inXPath[el] = struct{}{}
		}
	}

	out := candidates[:0:0]
	for _, n := range candidates {
		if inXPath != nil {
			if _, ok := inXPath[t.elems[n]]; !ok {
				continue
			}
		}
		if q.matchesFields(n) {
			out = append(out, n)
		}
	}
	return out
}

// Within returns the nodes strictly below one of scope that the query
// matches, in document order. XPath is evaluated with each scope element as
// the context node, so relative expressions such as "./li" resolve against
// the scope. A nil scope means the whole tree.
func (q *Query) Within(t *Tree, scope []*Node) []*Node {
	if scope == nil {
		return q.All(t)
	}
	if !q.valid || t.root == nil {
		return nil
	}

	var candidates []*Node
	if q.xpath != nil {
		// document-rooted results keep absolute paths such as /body/ul working
		els := q.matchXPath(t)
		for _, s := range scope {
			if el, ok := t.elems[s]; ok {
				els = append(els, htmlquery.QuerySelectorAll(el, q.xpath)...)
			}
		}
		candidates = t.fromElements(els)
	} else {
		candidates = q.All(t)
	}

	css := strings.TrimSpace(q.spec.CSS)
	var out []*Node
	for _, n := range candidates {
		if !t.below(n, scope) {
			continue
		}
		if q.xpath != nil {
			if q.css != nil && !q.css.Match(t.elems[n]) && n.Selector != css {
				continue
			}
			if !q.matchesFields(n) {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

// Matches reports whether n, located in t, satisfies the query
func (q *Query) Matches(t *Tree, n *Node) bool {
	if !q.valid || n == nil {
		return false
	}
	el, ok := t.Element(n)
	if !ok {
		return false
	}
	if q.css != nil && !q.css.Match(el) && n.Selector != strings.TrimSpace(q.spec.CSS) {
		return false
	}
	if q.xpath != nil && !containsElement(htmlquery.QuerySelectorAll(t.doc, q.xpath), el) {
		return false
	}
	return q.matchesFields(n)
}

func (q *Query) matchCSS(t *Tree) []*html.Node {
	els := q.css.MatchAll(t.doc)
	css := strings.TrimSpace(q.spec.CSS)
	for n, el := range t.elems {
		if n.Selector != "" && n.Selector == css {
			els = append(els, el)
		}
	}
	return els
}

func (q *Query) matchXPath(t *Tree) []*html.Node {
	return htmlquery.QuerySelectorAll(t.doc, q.xpath)
}

func (q *Query) matchesFields(n *Node) bool {
	if q.spec.ID != "" && n.ID != q.spec.ID {
		return false
	}
	for _, c := range q.spec.Classes {
		if !n.HasClass(c) {
			return false
		}
	}
	return true
}

func containsElement(els []*html.Node, el *html.Node) bool {
	for _, e := range els {
		if e == el {
			return true
		}
	}
	return false
}

// FindElements returns every node under root matching spec, in document order
func FindElements(root *Node, spec SelectorSpec) []*Node {
	return Compile(spec).All(NewTree(root))
}

// NodeMatchesSelector evaluates spec against a single node. CSS and XPath
// run over the node's own subtree, so combinators that reach ancestors do
// not match here; use Query.Matches with the full tree for those.
func NodeMatchesSelector(n *Node, spec SelectorSpec) bool {
	if n == nil {
		return false
	}
	return Compile(spec).Matches(NewTree(n), n)
}
