// Package main provides the entry point for aggregator.
//
// aggregator ingests public trades from a crypto exchange websocket and
// republishes them to a message broker. A termination signal (SIGINT,
// SIGTERM or SIGHUP) sets the shutdown latch, cancels every ordinary task,
// lets consumer tasks drain their partitions and then stops the process.
//
// Usage:
//
//	aggregator --config aggregator.yaml run-aggregator
//	aggregator status --addr 127.0.0.1:9102
//	aggregator -o json checkpoints
package main
