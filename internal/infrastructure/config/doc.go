// Package config provides 12-factor configuration management for the runtime server.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Catalog: Directory holding container catalog files
//   - Browser: Browser-control collaborator (rod) settings
//   - Runtime: Matching bounds, operation timeout, event history size
//   - Webhook: Optional event forwarding sink
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - CATALOG_DIR
//   - BROWSER_ENABLED, BROWSER_CONTROL_URL, BROWSER_HEADLESS, BROWSER_NAV_TIMEOUT
//   - MATCH_MAX_DEPTH, MATCH_MAX_CHILDREN, OPERATION_TIMEOUT, BATCH_CONCURRENCY,
//     EVENT_HISTORY_LIMIT, SCRIPT_TIMEOUT, SNAPSHOT_POLL_INTERVAL
//   - WEBHOOK_URL, WEBHOOK_PATTERN, WEBHOOK_TIMEOUT, WEBHOOK_RETRIES, WEBHOOK_RPS
package config
