// Package webhook forwards session events to an external HTTP endpoint.
//
// A Sink is attached to every session's event bus and posts each event
// matching its pattern (operation results by default) as JSON:
//
//	{"sessionId": "sess_...", "event": {"id": "evt_...", "topic": "...", "payload": {...}}}
//
// Built on go-resty/resty over a hashicorp/go-retryablehttp transport:
//   - Retries with exponential backoff on connection errors and 5xx
//   - Rate limiting with golang.org/x/time/rate
//   - A circuit breaker that stops posting to a dead endpoint
package webhook
