/*
Package dom models the DOM snapshots handed over by the browser layer and
evaluates selector predicates against them.

# Overview

A snapshot is a tree of Node values keyed by Path. Paths are the only
identity that survives between captures, so every diff in the runtime is a
diff of path sets.

For matching, a snapshot is converted once into an x/net/html document
(Tree). CSS runs through cascadia and XPath through htmlquery, and results
are mapped back to snapshot nodes in document order.

# Usage

	root, err := dom.Decode(payload)
	if err != nil {
		return err
	}

	items := dom.FindElements(root, dom.SelectorSpec{CSS: ".item"})

Selector specs that are empty or fail to compile never match.
*/
package dom
