// Package logger configures structured logging for the aggregator.
//
// It builds a log/slog logger with:
//
//   - JSON (default) or text output
//   - a process-wide level that can be changed at runtime
//   - redaction of attributes whose key looks like a secret (api_key, password, ...)
//   - task name and ID carried through context.Context
//
// Level names accept the usual debug/info/warn/error as well as
// NOTSET, WARNING, CRITICAL and FATAL.
package logger
