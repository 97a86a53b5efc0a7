package dom

import (
	"slices"
	"strconv"
)

// Node is one element of a DOM snapshot produced by the browser layer.
// Path is the identity of the element across snapshots: two nodes with the
// same path in consecutive snapshots are the same element even if their
// content changed.
type Node struct {
	Path     string            `json:"path"`
	Tag      string            `json:"tag"`
	ID       string            `json:"id,omitempty"`
	Classes  []string          `json:"classes,omitempty"`
	Selector string            `json:"selector,omitempty"`
	Text     string            `json:"text,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []*Node           `json:"children,omitempty"`
}

// HasClass reports whether the node carries class c
func (n *Node) HasClass(c string) bool {
	return slices.Contains(n.Classes, c)
}

// Walk visits n and its descendants in document order. fn receives the depth
// of each node (root is 0); returning false skips that node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	if n == nil {
		return
	}
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		if c != nil {
			c.walk(fn, depth+1)
		}
	}
}

// Flatten returns n and all descendants in document order
func (n *Node) Flatten() []*Node {
	var out []*Node
	n.Walk(func(node *Node, _ int) bool {
		out = append(out, node)
		return true
	})
	return out
}

// Find returns the node with the given path, or nil
func (n *Node) Find(path string) *Node {
	var found *Node
	n.Walk(func(node *Node, _ int) bool {
		if found != nil {
			return false
		}
		if node.Path == path {
			found = node
			return false
		}
		return true
	})
	return found
}

// Paths returns the set of paths present under n
func (n *Node) Paths() map[string]struct{} {
	set := make(map[string]struct{})
	n.Walk(func(node *Node, _ int) bool {
		set[node.Path] = struct{}{}
		return true
	})
	return set
}

// AssignPaths fills empty paths with a positional route from the root
// ("root", "root/0", "root/0/2", ...). Paths the browser already set are kept.
func AssignPaths(root *Node) {
	if root == nil {
		return
	}
	if root.Path == "" {
		root.Path = "root"
	}
	assignChildren(root)
}

func assignChildren(n *Node) {
	for i, c := range n.Children {
		if c == nil {
			continue
		}
		if c.Path == "" {
			c.Path = n.Path + "/" + strconv.Itoa(i)
		}
		assignChildren(c)
	}
}

// Bound returns a copy of root limited to maxDepth levels below the root and
// the first maxChildren children of every node. A zero limit is unlimited.
// truncated reports whether anything was cut.
func Bound(root *Node, maxDepth, maxChildren int) (view *Node, truncated bool) {
	if root == nil {
		return nil, false
	}
	view = bound(root, 0, maxDepth, maxChildren, &truncated)
	return view, truncated
}

func bound(n *Node, depth, maxDepth, maxChildren int, truncated *bool) *Node {
	cp := *n
	cp.Children = nil

	children := n.Children
	if maxChildren > 0 && len(children) > maxChildren {
		children = children[:maxChildren]
		*truncated = true
	}
	if len(children) > 0 && maxDepth > 0 && depth >= maxDepth {
		*truncated = true
		return &cp
	}

	for _, c := range children {
		if c == nil {
			continue
		}
		cp.Children = append(cp.Children, bound(c, depth+1, maxDepth, maxChildren, truncated))
	}
	return &cp
}
