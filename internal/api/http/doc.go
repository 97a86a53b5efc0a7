// Package http exposes the session runtime over a JSON API.
//
// Sessions are created from the container catalogs, fed snapshots either by
// the caller or by their browser page, and drive operations through direct
// calls, message rules or event rules. Every route that takes a session id
// validates it before looking the session up.
package http
