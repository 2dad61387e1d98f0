// Package command defines the aggregator command line.
//
// Commands:
//
//	run-aggregator   run the ingest worker until a termination signal
//	status           query a running worker over its metrics listener
//	checkpoints      print the checkpoints stored on disk
//	config show      print the effective configuration, secrets masked
//	config validate  load and verify the configuration
//	version          print build information
//
// Configuration is layered: defaults, the --config YAML file, then
// AGGREGATOR_ environment variables, then --log-level.
package command
