// Package bybit streams public trades from the Bybit v5 websocket API.
package bybit

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yndnr/aggregator/internal/exchange"
	"github.com/yndnr/aggregator/internal/infra/buildinfo"
	"github.com/yndnr/aggregator/internal/telemetry/metric"
)

// Name is the exchange name reported on every trade.
const Name = "bybit"

const (
	// maxArgsPerSubscribe is the server limit on topics per subscribe request.
	maxArgsPerSubscribe = 10

	dialTimeout  = 10 * time.Second
	readLimit    = 1 << 20
	topicPrefix  = "publicTrade."
	closeMessage = "client shutdown"
)

// ErrSubscribe is returned when the server rejects a subscription.
var ErrSubscribe = errors.New("bybit: subscribe rejected")

// Config configures a Client.
type Config struct {
	Endpoint       string
	Symbols        []string
	PingInterval   time.Duration
	ReconnectDelay time.Duration

	// TLSConfig overrides the roots used for wss endpoints. Nil uses the
	// system defaults.
	TLSConfig *tls.Config

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Client is a reconnecting public trade stream.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	limiter *rate.Limiter
	seq     atomic.Uint64
}

// New creates a client.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		logger:  logger.With("exchange", Name),
		limiter: rate.NewLimiter(rate.Every(cfg.ReconnectDelay), 1),
	}
}

// Name returns the exchange name.
func (c *Client) Name() string {
	return Name
}

// Run connects, subscribes and forwards trades until ctx is done.
// Dropped connections are re-established, at most once per ReconnectDelay.
func (c *Client) Run(ctx context.Context, out chan<- exchange.Trade) error {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			// The next token lies past the deadline.
			<-ctx.Done()
			return ctx.Err()
		}

		err := c.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrSubscribe) {
			return err
		}

		c.cfg.Metrics.IncReconnect()
		c.logger.Warn("stream disconnected, reconnecting", "error", err, "delay", c.cfg.ReconnectDelay)
	}
}

func (c *Client) session(ctx context.Context, out chan<- exchange.Trade) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	opts := &websocket.DialOptions{
		HTTPHeader: http.Header{"User-Agent": []string{buildinfo.UserAgent()}},
	}
	if c.cfg.TLSConfig != nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{TLSClientConfig: c.cfg.TLSConfig},
		}
	}
	conn, _, err := websocket.Dial(dialCtx, c.cfg.Endpoint, opts)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.Endpoint, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	for _, req := range subscribeRequests(c.cfg.Symbols) {
		if err := conn.Write(ctx, websocket.MessageText, req); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}
	c.logger.Info("stream connected", "endpoint", c.cfg.Endpoint, "symbols", len(c.cfg.Symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.readLoop(gctx, conn, out)
	})
	g.Go(func() error {
		return c.pingLoop(gctx, conn)
	})
	err = g.Wait()

	if ctx.Err() != nil {
		_ = conn.Close(websocket.StatusNormalClosure, closeMessage)
	}
	return err
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- exchange.Trade) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		msg, err := parseMessage(data)
		if err != nil {
			c.logger.Debug("skipping malformed frame", "error", err)
			continue
		}
		if msg.op == "subscribe" && !msg.success {
			return fmt.Errorf("%w: %s", ErrSubscribe, msg.retMsg)
		}

		for _, t := range msg.trades {
			t.Exchange = Name
			t.Seq = c.seq.Add(1)
			c.cfg.Metrics.IncTradeReceived(t.Symbol)
			select {
			case out <- t:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.Write(ctx, websocket.MessageText, pingRequest); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
