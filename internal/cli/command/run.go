package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/aggregator/internal/infra/buildinfo"
	"github.com/yndnr/aggregator/internal/infra/scheduler"
	"github.com/yndnr/aggregator/internal/infra/shutdown"
	"github.com/yndnr/aggregator/internal/sink"
	"github.com/yndnr/aggregator/internal/storage/checkpoint"
	"github.com/yndnr/aggregator/internal/telemetry/logger"
	"github.com/yndnr/aggregator/internal/telemetry/metric"
	"github.com/yndnr/aggregator/internal/worker"
	"github.com/yndnr/aggregator/internal/worker/config"
)

// RunCommand returns the command that runs the worker.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run-aggregator",
		Aliases: []string{"run"},
		Usage:   "Run the ingest worker until SIGINT, SIGTERM or SIGHUP",
		Action:  runAggregator,
	}
}

func runAggregator(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	attrs := append(buildinfo.LogAttrs(),
		"config", flags.ConfigFile,
		"environment", cfg.App.Environment,
		"api_key", cfg.APIKey,
	)
	log.Info("starting aggregator", attrs...)

	return serve(c.Context, cfg, flags, log)
}

func serve(ctx context.Context, cfg *config.Config, flags *GlobalFlags, log *slog.Logger) error {
	m := metric.NewRegistry()
	sched := scheduler.New(scheduler.WithLogger(log), scheduler.WithMetrics(m))
	h := shutdown.NewHandler(sched,
		shutdown.WithTimeout(cfg.Shutdown.Timeout),
		shutdown.WithHookTimeout(cfg.Shutdown.HookTimeout),
		shutdown.WithConsumerPrefix(cfg.Shutdown.ConsumerPrefix),
		shutdown.WithLogger(log),
		shutdown.WithMetrics(m),
	)

	store, err := checkpoint.Open(checkpoint.Options{
		Dir:      cfg.Storage.DataDir,
		InMemory: cfg.Storage.InMemory,
		Logger:   log,
		Metrics:  m,
	})
	if err != nil {
		return fmt.Errorf("init checkpoint store: %w", err)
	}

	pub, err := sink.Open(cfg.Sink, cfg.APIKey, log)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("init sink: %w", err)
	}

	closeOutputs := func() {
		_ = pub.Close()
		_ = store.Close()
	}

	stream, err := worker.NewStream(cfg.Exchange, log, m)
	if err != nil {
		closeOutputs()
		return err
	}

	w, err := worker.New(worker.Options{
		Config:     cfg,
		Scheduler:  sched,
		Handler:    h,
		Stream:     stream,
		Publisher:  pub,
		Store:      store,
		ConfigPath: flags.ConfigFile,
		Reload: func() (*config.Config, error) {
			return LoadConfig(flags.ConfigFile, flags.LogLevel)
		},
		Logger:  log,
		Metrics: m,
	})
	if err != nil {
		closeOutputs()
		return err
	}

	if err := h.Install(); err != nil {
		closeOutputs()
		return fmt.Errorf("install signal handlers: %w", err)
	}
	defer h.Close()

	if err := w.Start(ctx); err != nil {
		// Tear down whatever did start before giving up.
		if h.Trigger(os.Interrupt) == nil {
			<-h.SequenceDone()
		}
		closeOutputs()
		return fmt.Errorf("start worker: %w", err)
	}

	log.Info("aggregator running, press Ctrl+C to stop", "metrics_addr", w.Addr())
	if err := h.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	if res, ok := h.Result(); ok {
		log.Info("aggregator stopped",
			"cancelled", len(res.Cancelled),
			"spared", len(res.Spared),
			"abandoned", len(res.Abandoned),
			"duration", res.Duration,
		)
	}
	return nil
}
