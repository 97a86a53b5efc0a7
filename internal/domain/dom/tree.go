package dom

import (
	"maps"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PathAttr is the attribute carrying Node.Path on the converted tree
const PathAttr = "data-path"

// Tree is a snapshot converted to an x/net/html document so that CSS and
// XPath engines can run over it. It keeps the mapping back to snapshot nodes.
type Tree struct {
	doc   *html.Node
	root  *Node
	nodes map[*html.Node]*Node
	elems map[*Node]*html.Node
	paths map[string]*Node
	order map[*Node]int
}

// NewTree converts root into an html document. A nil root yields an empty document.
func NewTree(root *Node) *Tree {
	t := &Tree{
		doc:   &html.Node{Type: html.DocumentNode},
		root:  root,
		nodes: make(map[*html.Node]*Node),
		elems: make(map[*Node]*html.Node),
		paths: make(map[string]*Node),
		order: make(map[*Node]int),
	}
	if root != nil {
		t.doc.AppendChild(t.build(root))
	}
	return t
}

func (t *Tree) build(n *Node) *html.Node {
	tag := strings.ToLower(strings.TrimSpace(n.Tag))
	if tag == "" {
		tag = "div"
	}

	el := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attributes(n),
	}

	t.nodes[el] = n
	t.elems[n] = el
	t.order[n] = len(t.order)
	if _, dup := t.paths[n.Path]; !dup {
		t.paths[n.Path] = n
	}

	if n.Text != "" {
		el.AppendChild(&html.Node{Type: html.TextNode, Data: n.Text})
	}
	for _, c := range n.Children {
		if c != nil {
			el.AppendChild(t.build(c))
		}
	}
	return el
}

func attributes(n *Node) []html.Attribute {
	attrs := []html.Attribute{{Key: PathAttr, Val: n.Path}}
	if n.ID != "" {
		attrs = append(attrs, html.Attribute{Key: "id", Val: n.ID})
	}
	if len(n.Classes) > 0 {
		attrs = append(attrs, html.Attribute{Key: "class", Val: strings.Join(n.Classes, " ")})
	}
	for _, k := range slices.Sorted(maps.Keys(n.Attrs)) {
		switch k {
		case "id", "class", PathAttr:
			continue
		}
		attrs = append(attrs, html.Attribute{Key: k, Val: n.Attrs[k]})
	}
	return attrs
}

// Document returns the html document node
func (t *Tree) Document() *html.Node { return t.doc }

// Root returns the snapshot root
func (t *Tree) Root() *Node { return t.root }

// Lookup returns the snapshot node with the given path
func (t *Tree) Lookup(path string) (*Node, bool) {
	n, ok := t.paths[path]
	return n, ok
}

// Node maps an html element back to its snapshot node
func (t *Tree) Node(el *html.Node) (*Node, bool) {
	n, ok := t.nodes[el]
	return n, ok
}

// Element maps a snapshot node to its html element
func (t *Tree) Element(n *Node) (*html.Node, bool) {
	el, ok := t.elems[n]
	return el, ok
}

// Nodes returns every snapshot node in document order
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, len(t.order))
	for n, i := range t.order {
		out[i] = n
	}
	return out
}

// IsDescendant reports whether n sits strictly below ancestor
func (t *Tree) IsDescendant(n, ancestor *Node) bool {
	el, ok := t.elems[n]
	if !ok {
		return false
	}
	anc, ok := t.elems[ancestor]
	if !ok {
		return false
	}
	for p := el.Parent; p != nil; p = p.Parent {
		if p == anc {
			return true
		}
	}
	return false
}

func (t *Tree) below(n *Node, scope []*Node) bool {
	for _, anc := range scope {
		if t.IsDescendant(n, anc) {
			return true
		}
	}
	return false
}

// fromElements maps html results back to snapshot nodes, dropping anything
// that is not a snapshot element, and sorts them into document order.
func (t *Tree) fromElements(els []*html.Node) []*Node {
	seen := make(map[*Node]struct{}, len(els))
	out := make([]*Node, 0, len(els))
	for _, el := range els {
		n, ok := t.nodes[el]
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	t.sortDocument(out)
	return out
}

func (t *Tree) sortDocument(nodes []*Node) {
	slices.SortFunc(nodes, func(a, b *Node) int {
		return t.order[a] - t.order[b]
	})
}
