// Package session composes the runtime for each browser session.
//
// A session owns its event bus, change notifier, operation executor,
// binding registry and runtime controller. The operation registry and the
// container catalogs are shared by all sessions and read only.
//
// Sessions are created from a site (and optional page) or from a URL that
// the catalog url patterns resolve. Catalog rules of the resolved page are
// registered on the session's binding registry. With a browser page and a
// poll interval, the session refreshes its snapshot on a ticker.
//
// Example Usage:
//
//	manager := session.NewManager(session.Options{Containers: catalogs, Operations: ops})
//	s, err := manager.Create(ctx, session.CreateRequest{URL: "https://weibo.com/u/1"})
//	graph, err := manager.Ingest(ctx, s.ID, snapshot)
//	err = manager.Close(s.ID)
package session
