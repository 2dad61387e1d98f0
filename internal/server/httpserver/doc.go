// Package httpserver serves the worker's operational endpoints.
//
// It wraps net/http with the middleware chain used on every route
// (request IDs, panic recovery, access logs) and a Serve loop that shuts
// the listener down gracefully when its context is cancelled.
package httpserver
