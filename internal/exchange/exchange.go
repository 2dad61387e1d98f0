// Package exchange defines the market data types shared by stream clients
// and the worker.
package exchange

import (
	"context"
	"time"
)

// Trade is one public trade print.
type Trade struct {
	Exchange string    `json:"exchange"`
	Symbol   string    `json:"symbol"`
	Side     string    `json:"side"`
	Price    string    `json:"price"`
	Size     string    `json:"size"`
	TradeID  string    `json:"trade_id"`
	Time     time.Time `json:"time"`

	// Seq increases by one for every trade a stream emits.
	Seq uint64 `json:"seq"`
}

// Stream produces trades until ctx is cancelled.
type Stream interface {
	Name() string

	// Run sends trades to out. It returns the context error once ctx is
	// done and does not close out.
	Run(ctx context.Context, out chan<- Trade) error
}
