// Package buildinfo exposes build information for the aggregator binary.
//
// Values are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/aggregator/internal/infra/buildinfo.Version=v1.0.0 \
//	  -X github.com/yndnr/aggregator/internal/infra/buildinfo.Commit=abc123"
package buildinfo
