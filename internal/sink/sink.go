// Package sink publishes trades downstream.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yndnr/aggregator/internal/exchange"
	"github.com/yndnr/aggregator/internal/infra/tlsroots"
	"github.com/yndnr/aggregator/internal/sink/natssink"
	"github.com/yndnr/aggregator/internal/worker/config"
)

// Common errors.
var (
	ErrClosed        = errors.New("sink: closed")
	ErrUnknownDriver = errors.New("sink: unknown driver")
)

// Publisher delivers trades to a downstream system.
type Publisher interface {
	Publish(ctx context.Context, t exchange.Trade) error
	Close() error
}

// Open returns the publisher selected by cfg.Driver.
func Open(cfg config.SinkSection, apiKey string, logger *slog.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "log":
		return NewLog(logger), nil
	case "memory":
		return NewMemory(), nil
	case "nats":
		tlsConfig, err := tlsroots.LoadTLSConfig(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		p, err := natssink.New(natssink.Config{
			URL:           cfg.NATSURL,
			Token:         apiKey,
			TLSConfig:     tlsConfig,
			SubjectPrefix: cfg.SubjectPrefix,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Log writes every trade to a logger at debug level.
type Log struct {
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

// NewLog creates a Log publisher.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Publish(ctx context.Context, t exchange.Trade) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	l.logger.DebugContext(ctx, "trade",
		"exchange", t.Exchange,
		"symbol", t.Symbol,
		"side", t.Side,
		"price", t.Price,
		"size", t.Size,
		"seq", t.Seq,
	)
	return nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Memory keeps published trades in memory.
type Memory struct {
	mu     sync.Mutex
	trades []exchange.Trade
	closed bool
}

// NewMemory creates an empty Memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(ctx context.Context, t exchange.Trade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.trades = append(m.trades, t)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Trades returns a copy of everything published so far.
func (m *Memory) Trades() []exchange.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]exchange.Trade, len(m.trades))
	copy(out, m.trades)
	return out
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
