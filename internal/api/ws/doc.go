// Package ws streams session events over WebSocket.
//
// A client connects to /sessions/:id/stream with one or more ?pattern=
// topic patterns and receives every matching bus event as JSON. Clients may
// also send ping and message frames; messages fire the session's message
// rules and the dispatches are written back on the same connection.
package ws
