// Package main is the entry point for the webharvest server.
//
// The server loads container catalogs, opens browser sessions on demand and
// exposes the matching and operation runtime over HTTP and WebSocket.
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8080 -catalogs ./catalogs
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
