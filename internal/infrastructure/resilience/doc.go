/*
Package resilience provides a circuit breaker for calls into flaky collaborators.

# Overview

The browser-control transport and the webhook sink both talk to processes
that can hang or disappear. Wrapping those calls in a Breaker makes a dead
collaborator fail fast instead of stalling every session that touches it.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Context-aware calls with a generic Call helper
- Caller cancellation does not count as a failure
- State change callbacks for logging

# Usage

	breaker := resilience.New("rod", resilience.Settings{
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	html, err := resilience.Call(ctx, breaker, func(ctx context.Context) (string, error) {
		return page.Context(ctx).HTML()
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open
*/
package resilience
