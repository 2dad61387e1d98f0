// Package connection talks to the HTTP endpoints of a running aggregator.
//
// The metrics listener serves /healthz and /checkpoints next to
// /metrics; the status command reads both through HTTPClient.
package connection
