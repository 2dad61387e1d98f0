// Package metric provides Prometheus metrics for the aggregator.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: registry, metric definitions and HTTP handler
//
// Metrics include:
//
//   - Scheduler task gauges and outcome counters
//   - Shutdown sequence counters and duration histogram
//   - Trade ingest, publish and checkpoint counters
//
// Metrics are exposed at /metrics in Prometheus format by the
// metrics-http task. All recording methods are safe to call on a nil
// *Registry, which lets components run without metrics in tests.
package metric
