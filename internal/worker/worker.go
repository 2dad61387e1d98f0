// Package worker runs the exchange ingest pipeline on top of the shutdown
// handler.
//
// One ordinary task streams trades from the exchange and dispatches them to
// partitions. Each partition is drained by a consumer task that publishes to
// the sink. Consumers are spared by the shutdown sequence: they finish the
// buffered trades and write a final checkpoint before the sink and store
// close.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/aggregator/internal/exchange"
	"github.com/yndnr/aggregator/internal/exchange/bybit"
	"github.com/yndnr/aggregator/internal/infra/confloader"
	"github.com/yndnr/aggregator/internal/infra/scheduler"
	"github.com/yndnr/aggregator/internal/infra/shutdown"
	"github.com/yndnr/aggregator/internal/infra/tlsroots"
	"github.com/yndnr/aggregator/internal/server/httpserver"
	"github.com/yndnr/aggregator/internal/sink"
	"github.com/yndnr/aggregator/internal/storage/checkpoint"
	"github.com/yndnr/aggregator/internal/telemetry/logger"
	"github.com/yndnr/aggregator/internal/telemetry/metric"
	"github.com/yndnr/aggregator/internal/worker/config"
)

// Task names.
const (
	MetricsTaskName = "metrics-http"
	WatcherTaskName = "config-watcher"
)

// Common errors.
var (
	ErrUnknownExchange = errors.New("worker: unknown exchange")
	ErrStarted         = errors.New("worker: already started")
)

// NewStream returns the stream for cfg.Name.
func NewStream(cfg config.ExchangeSection, log *slog.Logger, m *metric.Registry) (exchange.Stream, error) {
	tlsConfig, err := tlsroots.LoadTLSConfig(cfg.CAFile)
	if err != nil {
		return nil, err
	}

	switch cfg.Name {
	case bybit.Name:
		return bybit.New(bybit.Config{
			Endpoint:       cfg.Endpoint,
			TLSConfig:      tlsConfig,
			Symbols:        cfg.Symbols,
			PingInterval:   cfg.PingInterval,
			ReconnectDelay: cfg.ReconnectDelay,
			Logger:         log,
			Metrics:        m,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExchange, cfg.Name)
	}
}

// Options wires a Worker.
type Options struct {
	Config    *config.Config
	Scheduler *scheduler.Scheduler
	Handler   *shutdown.Handler
	Stream    exchange.Stream
	Publisher sink.Publisher
	Store     *checkpoint.Store

	// ConfigPath enables the config watcher when set. Reload is called on
	// every change and its log level applied.
	ConfigPath string
	Reload     func() (*config.Config, error)

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Worker is the ingest pipeline.
type Worker struct {
	opts    Options
	cfg     *config.Config
	sched   *scheduler.Scheduler
	handler *shutdown.Handler
	logger  *slog.Logger
	metrics *metric.Registry

	partitions []chan exchange.Trade
	consumers  []*scheduler.Task

	mu       sync.Mutex
	started  bool
	listener net.Listener
}

// New validates opts and creates a worker.
func New(opts Options) (*Worker, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("worker: config is required")
	case opts.Scheduler == nil:
		return nil, errors.New("worker: scheduler is required")
	case opts.Handler == nil:
		return nil, errors.New("worker: shutdown handler is required")
	case opts.Stream == nil:
		return nil, errors.New("worker: stream is required")
	case opts.Publisher == nil:
		return nil, errors.New("worker: publisher is required")
	case opts.Store == nil:
		return nil, errors.New("worker: checkpoint store is required")
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	n := opts.Config.Exchange.Partitions
	if n < 1 {
		n = 1
	}
	buffer := opts.Config.Exchange.Buffer
	partitions := make([]chan exchange.Trade, n)
	for i := range partitions {
		partitions[i] = make(chan exchange.Trade, buffer)
	}

	return &Worker{
		opts:       opts,
		cfg:        opts.Config,
		sched:      opts.Scheduler,
		handler:    opts.Handler,
		logger:     log.With("component", "worker"),
		metrics:    opts.Metrics,
		partitions: partitions,
	}, nil
}

// Start spawns the pipeline tasks and registers the cleanup hook.
// It returns once every task is running.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrStarted
	}
	w.started = true

	w.logCheckpoints(ctx)

	if w.cfg.Metrics.Enabled {
		ln, err := net.Listen("tcp", w.cfg.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("metrics listen: %w", err)
		}
		w.listener = ln
		if _, err := w.sched.Go(MetricsTaskName, w.serveHTTP); err != nil {
			_ = ln.Close()
			return err
		}
	}

	if w.opts.ConfigPath != "" {
		watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(w.logger))
		if err != nil {
			return fmt.Errorf("config watcher: %w", err)
		}
		if err := watcher.Watch(w.opts.ConfigPath); err != nil {
			_ = watcher.Stop()
			return fmt.Errorf("config watcher: %w", err)
		}
		watcher.OnChange(w.reload)
		if _, err := w.sched.Go(WatcherTaskName, watcher.Run); err != nil {
			_ = watcher.Stop()
			return err
		}
	}

	for i := range w.partitions {
		c := newConsumer(w, i)
		t, err := w.sched.Go(c.name, c.run)
		if err != nil {
			return err
		}
		w.consumers = append(w.consumers, t)
	}

	if _, err := w.sched.Go("stream-"+w.opts.Stream.Name(), w.runStream); err != nil {
		return err
	}

	w.handler.OnShutdown(w.cleanup)

	w.logger.Info("worker started",
		"exchange", w.opts.Stream.Name(),
		"partitions", len(w.partitions),
		"symbols", len(w.cfg.Exchange.Symbols),
	)
	return nil
}

// Addr returns the metrics listener address, or "" when metrics are off.
func (w *Worker) Addr() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener == nil {
		return ""
	}
	return w.listener.Addr().String()
}

// runStream feeds the exchange stream into the partitions. Partition
// channels are closed once the stream stops so consumers can drain them.
// A stream that stops before shutdown triggers it.
func (w *Worker) runStream(ctx context.Context) error {
	in := make(chan exchange.Trade, w.cfg.Exchange.Buffer)

	var g errgroup.Group
	g.Go(func() error {
		defer close(in)
		return w.opts.Stream.Run(ctx, in)
	})
	g.Go(func() error {
		w.dispatch(in)
		return nil
	})
	err := g.Wait()

	// The stream gave up on its own; nothing will feed the consumers again.
	if ctx.Err() == nil {
		log := taskLogger(ctx, w.logger)
		log.Error("stream stopped, shutting down", "error", err)
		if terr := w.handler.Trigger(syscall.SIGTERM); terr != nil {
			log.Error("failed to trigger shutdown", "error", terr)
		}
	}
	return err
}

func (w *Worker) dispatch(in <-chan exchange.Trade) {
	defer func() {
		for _, p := range w.partitions {
			close(p)
		}
	}()
	for t := range in {
		w.partitions[Partition(t.Symbol, len(w.partitions))] <- t
	}
}

// cleanup waits for the consumers, then closes the sink and the store.
func (w *Worker) cleanup(ctx context.Context) error {
	for _, t := range w.consumers {
		select {
		case <-t.Done():
		case <-ctx.Done():
			w.logger.Warn("consumers did not finish before hook timeout", "task", t.Name())
			return w.closeOutputs(ctx.Err())
		}
	}
	return w.closeOutputs(nil)
}

func (w *Worker) closeOutputs(err error) error {
	errs := []error{err}
	if cerr := w.opts.Publisher.Close(); cerr != nil {
		errs = append(errs, fmt.Errorf("close sink: %w", cerr))
	}
	if cerr := w.opts.Store.Close(); cerr != nil {
		errs = append(errs, fmt.Errorf("close checkpoint store: %w", cerr))
	}
	return errors.Join(errs...)
}

func (w *Worker) logCheckpoints(ctx context.Context) {
	all, err := w.opts.Store.All(ctx)
	if err != nil {
		w.logger.Warn("failed to read checkpoints", "error", err)
		return
	}
	for _, cp := range all {
		w.logger.Info("last checkpoint",
			"stream", cp.Stream,
			"symbol", cp.Symbol,
			"trade_id", cp.TradeID,
			"trade_time", cp.TradeTime,
		)
	}
}

func (w *Worker) reload(path string) {
	if w.opts.Reload == nil {
		return
	}
	cfg, err := w.opts.Reload()
	if err != nil {
		w.logger.Error("config reload failed", "path", path, "error", err)
		return
	}
	if err := config.Verify(cfg); err != nil {
		w.logger.Error("reloaded config is invalid", "path", path, "error", err)
		return
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		w.logger.Error("failed to apply log level", "level", cfg.Log.Level, "error", err)
		return
	}
	w.logger.Info("log level reloaded", "level", cfg.Log.Level)
}

// taskLogger returns base annotated with the running task, if any.
func taskLogger(ctx context.Context, base *slog.Logger) *slog.Logger {
	ctx = logger.WithLogger(ctx, base)
	if t := scheduler.Current(ctx); t != nil {
		ctx = logger.WithTask(ctx, t.Name(), t.ID())
	}
	return logger.L(ctx)
}

func (w *Worker) serveHTTP(ctx context.Context) error {
	log := taskLogger(ctx, w.logger)
	log.Info("metrics server listening", "addr", w.listener.Addr().String())
	return httpserver.New(w.routes(), log).Serve(ctx, w.listener)
}
