// Package output renders command results for the aggregator CLI.
//
// Three formats are supported: table (default, for people), json and yaml
// (for scripts). Values opt into table rendering by implementing Tabler;
// anything else falls back to JSON.
package output
