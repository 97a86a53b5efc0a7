/*
Package monitoring provides metrics collection for the runtime server.

# Overview

This package implements Prometheus-based metrics for HTTP requests, container
matching, operation execution, event bus traffic and live sessions.

# Features

- HTTP request metrics (latency, status) keyed by route template
- Snapshot matching duration and graph size
- Operation calls by name and status
- Event emits and handler failures by topic family
- Rule dispatch outcomes
- Session and WebSocket gauges

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics, "click")
	// ... run the operation ...
	timer.Stop(true)

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
