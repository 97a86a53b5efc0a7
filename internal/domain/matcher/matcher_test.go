package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/webharvest/internal/domain/container"
	"github.com/GriffinCanCode/webharvest/internal/domain/dom"
)

func snapshot() *dom.Node {
	return &dom.Node{
		Path: "root", Tag: "body",
		Children: []*dom.Node{
			{
				Path: "root/0", Tag: "div", ID: "feed", Classes: []string{"feed"},
				Children: []*dom.Node{
					{Path: "root/0/0", Tag: "article", Classes: []string{"post"}, Children: []*dom.Node{
						{Path: "root/0/0/0", Tag: "button", Classes: []string{"like"}},
					}},
					{Path: "root/0/1", Tag: "article", Classes: []string{"post"}, Children: []*dom.Node{
						{Path: "root/0/1/0", Tag: "button", Classes: []string{"like"}},
					}},
				},
			},
			{
				Path: "root/1", Tag: "aside", Classes: []string{"sidebar"},
				Children: []*dom.Node{
					{Path: "root/1/0", Tag: "button", Classes: []string{"like"}},
				},
			},
		},
	}
}

func defs() []container.Definition {
	return []container.Definition{
		{
			ID:   "feed",
			Name: "Feed",
			Selectors: []container.Selector{
				{CSS: "div.feed", Score: 1},
				{ID: "feed", Score: 3, Variant: "by-id"},
				{XPath: "//div[@id='feed']", Score: 3},
			},
			Children: []container.Definition{
				{
					ID:        "post",
					Selectors: []container.Selector{{CSS: "article.post", Score: 1}},
					Children: []container.Definition{
						{ID: "like", Selectors: []container.Selector{{CSS: "button.like", Score: 1}}},
					},
				},
			},
		},
		{ID: "sidebar", Selectors: []container.Selector{{CSS: "aside", Score: 0.5}}},
		{ID: "missing", Selectors: []container.Selector{{CSS: "footer", Score: 9}}},
	}
}

func TestMatchBuildsGraph(t *testing.T) {
	g := Match(defs(), snapshot(), Options{})

	assert.False(t, g.Truncated)
	assert.Equal(t, []string{"feed", "post", "like", "sidebar"}, g.IDs())

	feed, ok := g.Find("feed")
	require.True(t, ok)
	assert.Equal(t, "feed", feed.DefID)
	assert.Equal(t, "Feed", feed.Name)
	assert.Equal(t, 3.0, feed.Match.Confidence)
	assert.Equal(t, "by-id", feed.Match.Variant)
	// all three selectors hit the same element; it is listed once, under the winner
	require.Equal(t, 1, feed.Match.Count)
	assert.Equal(t, MatchedNode{Selector: "id:feed", DomPath: "root/0"}, feed.Match.Nodes[0])

	post, _ := g.Find("post")
	assert.Equal(t, []string{"root/0/0", "root/0/1"}, post.Paths())

	// the sidebar button is outside every matched post
	like, _ := g.Find("like")
	assert.Equal(t, []string{"root/0/0/0", "root/0/1/0"}, like.Paths())

	_, ok = g.Find("missing")
	assert.False(t, ok)
}

func TestMatchTieGoesToEarlierSelector(t *testing.T) {
	d := []container.Definition{{
		ID: "nav",
		Selectors: []container.Selector{
			{CSS: "aside", Score: 2, Variant: "first"},
			{CSS: ".sidebar", Score: 2, Variant: "second"},
			{CSS: "article", Score: 1},
		},
	}}

	g := Match(d, snapshot(), Options{})
	nav, ok := g.Find("nav")
	require.True(t, ok)
	assert.Equal(t, "first", nav.Match.Variant)
	assert.Equal(t, 2.0, nav.Match.Confidence)
	// winner's nodes first, then the other selectors' nodes, no duplicates
	assert.Equal(t, []string{"root/1", "root/0/0", "root/0/1"}, nav.Paths())
}

func TestMatchWinnerNodesListedFirst(t *testing.T) {
	d := []container.Definition{{
		ID: "buttons",
		Selectors: []container.Selector{
			{CSS: "article button", Score: 1},
			{CSS: "aside button", Score: 5},
		},
	}}

	g := Match(d, snapshot(), Options{})
	b, _ := g.Find("buttons")
	assert.Equal(t, 5.0, b.Match.Confidence)
	assert.Equal(t, []string{"root/1/0", "root/0/0/0", "root/0/1/0"}, b.Paths())
	assert.Equal(t, "css:aside button", b.Match.Nodes[0].Selector)
	assert.Equal(t, "css:article button", b.Match.Nodes[1].Selector)
}

func TestMatchScopedChildren(t *testing.T) {
	d := []container.Definition{{
		ID:        "sidebar",
		Selectors: []container.Selector{{CSS: "aside", Score: 1}},
		Children: []container.Definition{
			{ID: "side-like", Selectors: []container.Selector{{CSS: "button.like", Score: 1}}},
			// the parent element itself is not part of the child scope
			{ID: "self", Selectors: []container.Selector{{CSS: "aside", Score: 1}}},
		},
	}}

	g := Match(d, snapshot(), Options{})
	assert.Equal(t, []string{"sidebar", "side-like"}, g.IDs())
	like, _ := g.Find("side-like")
	assert.Equal(t, []string{"root/1/0"}, like.Paths())
}

func TestMatchRelativeXPathChildren(t *testing.T) {
	d := []container.Definition{{
		ID:        "feed",
		Selectors: []container.Selector{{CSS: "div.feed", Score: 1}},
		Children: []container.Definition{
			{ID: "post", Selectors: []container.Selector{{XPath: "./article", Score: 1}}},
		},
	}, {
		ID:        "sidebar",
		Selectors: []container.Selector{{CSS: "aside", Score: 1}},
		Children: []container.Definition{
			// resolves against aside, which has no article children
			{ID: "side-post", Selectors: []container.Selector{{XPath: "./article", Score: 1}}},
		},
	}}

	g := Match(d, snapshot(), Options{})
	assert.Equal(t, []string{"feed", "post", "sidebar"}, g.IDs())
	post, ok := g.Find("post")
	require.True(t, ok)
	assert.Equal(t, []string{"root/0/0", "root/0/1"}, post.Paths())
}

func TestMatchRootIncluded(t *testing.T) {
	d := []container.Definition{{ID: "page", Selectors: []container.Selector{{CSS: "body", Score: 1}}}}
	g := Match(d, snapshot(), Options{})
	page, ok := g.Find("page")
	require.True(t, ok)
	assert.Equal(t, []string{"root"}, page.Paths())
}

func TestMatchNoMatchIsEmptyGraph(t *testing.T) {
	d := []container.Definition{{ID: "x", Selectors: []container.Selector{{CSS: "table", Score: 1}}}}

	g := Match(d, snapshot(), Options{})
	require.NotNil(t, g)
	assert.True(t, g.IsEmpty())
	assert.Zero(t, g.Len())

	g = Match(d, nil, Options{})
	assert.True(t, g.IsEmpty())
}

func TestMatchMalformedSelectorsFailClosed(t *testing.T) {
	d := []container.Definition{
		{ID: "broken", Selectors: []container.Selector{{CSS: "div[[", Score: 1}, {XPath: "//div[", Score: 1}}},
		{ID: "ambiguous", Selectors: []container.Selector{{CSS: "div", XPath: "//div", Score: 1}}},
		{ID: "ok", Selectors: []container.Selector{{CSS: "div[[", Score: 9}, {CSS: "aside", Score: 1}}},
	}

	var g *Graph
	assert.NotPanics(t, func() { g = Match(d, snapshot(), Options{}) })
	assert.Equal(t, []string{"ok"}, g.IDs())
	ok, _ := g.Find("ok")
	assert.Equal(t, 1.0, ok.Match.Confidence)
}

func TestMatchTruncation(t *testing.T) {
	t.Run("depth", func(t *testing.T) {
		g := Match(defs(), snapshot(), Options{MaxDepth: 1})
		assert.True(t, g.Truncated)
		assert.Equal(t, []string{"feed", "sidebar"}, g.IDs())
	})

	t.Run("children", func(t *testing.T) {
		g := Match(defs(), snapshot(), Options{MaxChildren: 1})
		assert.True(t, g.Truncated)
		post, ok := g.Find("post")
		require.True(t, ok)
		assert.Equal(t, []string{"root/0/0"}, post.Paths())
		_, ok = g.Find("sidebar")
		assert.False(t, ok)
	})

	t.Run("within bounds", func(t *testing.T) {
		g := Match(defs(), snapshot(), Options{MaxDepth: 10, MaxChildren: 10})
		assert.False(t, g.Truncated)
	})
}

func TestMatchDeterministic(t *testing.T) {
	first := Match(defs(), snapshot(), Options{})
	for range 20 {
		next := Match(defs(), snapshot(), Options{})
		assert.Equal(t, first.Roots, next.Roots)
		assert.Equal(t, first.Truncated, next.Truncated)
	}
}

func TestMatchedPathsExistInSnapshot(t *testing.T) {
	snap := snapshot()
	present := snap.Paths()

	g := Match(defs(), snap, Options{})
	g.Walk(func(n, _ *Node) {
		require.Positive(t, n.Match.Count)
		for _, p := range n.Paths() {
			assert.Contains(t, present, p)
		}
	})
}

func TestDiff(t *testing.T) {
	prev := Match(defs(), snapshot(), Options{})

	smaller := snapshot()
	smaller.Children = smaller.Children[1:]
	next := Match(defs(), smaller, Options{})

	appeared, vanished := Diff(prev, next)
	assert.Empty(t, appeared)
	assert.Equal(t, []string{"feed", "post", "like"}, vanished)

	appeared, vanished = Diff(next, prev)
	assert.Equal(t, []string{"feed", "post", "like"}, appeared)
	assert.Empty(t, vanished)

	appeared, _ = Diff(nil, next)
	assert.Equal(t, []string{"sidebar"}, appeared)
}

func TestLastDiscovered(t *testing.T) {
	assert.Equal(t, "", (*Graph)(nil).LastDiscovered())
	g := &Graph{Discovered: []string{"a", "b"}}
	assert.Equal(t, "b", g.LastDiscovered())
}
