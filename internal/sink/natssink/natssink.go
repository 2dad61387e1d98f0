// Package natssink publishes trades to NATS subjects.
package natssink

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yndnr/aggregator/internal/exchange"
	"github.com/yndnr/aggregator/internal/infra/buildinfo"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("natssink: connection closed")

// Default connection settings.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReconnectWait  = 2 * time.Second
	DefaultDrainTimeout   = 10 * time.Second
)

// Config holds NATS connection configuration.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// Token for token-based auth.
	Token string

	// TLSConfig enables TLS with custom roots. Nil leaves TLS to the URL
	// scheme and server.
	TLSConfig *tls.Config

	// SubjectPrefix starts every subject: <prefix>.<exchange>.<symbol>.
	SubjectPrefix string

	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	DrainTimeout   time.Duration

	Logger *slog.Logger
}

// Publisher publishes JSON-encoded trades.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	closed chan struct{}
	logger *slog.Logger
}

// New connects to NATS.
func New(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Publisher{
		prefix: cfg.SubjectPrefix,
		closed: make(chan struct{}),
		logger: cfg.Logger,
	}

	conn, err := nats.Connect(cfg.URL, p.options(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	p.conn = conn
	p.logger.Info("connected to nats", "url", conn.ConnectedUrlRedacted())
	return p, nil
}

func (p *Publisher) options(cfg Config) []nats.Option {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	reconnectWait := cfg.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = DefaultReconnectWait
	}
	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}

	opts := []nats.Option{
		nats.Name(buildinfo.UserAgent()),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(-1),
		nats.DrainTimeout(drainTimeout),
		nats.ClosedHandler(func(*nats.Conn) {
			close(p.closed)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				p.logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			p.logger.Info("nats reconnected", "url", c.ConnectedUrlRedacted())
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, nats.Secure(cfg.TLSConfig))
	}
	return opts
}

// tokenReplacer strips characters that are special in NATS subjects.
var tokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// Subject returns the subject a trade is published on.
func Subject(prefix string, t exchange.Trade) string {
	parts := []string{prefix, t.Exchange, t.Symbol}
	for i, s := range parts {
		parts[i] = tokenReplacer.Replace(strings.ToLower(s))
	}
	return strings.Join(parts, ".")
}

// Publish sends t as JSON.
func (p *Publisher) Publish(ctx context.Context, t exchange.Trade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.conn.IsClosed() || p.conn.IsDraining() {
		return ErrClosed
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode trade: %w", err)
	}
	if err := p.conn.Publish(Subject(p.prefix, t), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close drains buffered messages and waits for the connection to close.
func (p *Publisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	<-p.closed
	return nil
}
