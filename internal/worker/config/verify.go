package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yndnr/aggregator/internal/telemetry/logger"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Verify validates the configuration.
func Verify(cfg *Config) error {
	checks := []func(*Config) error{
		verifyApp,
		verifyLog,
		verifyShutdown,
		verifyExchange,
		verifySink,
		verifyStorage,
		verifyMetrics,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	return nil
}

func verifyApp(cfg *Config) error {
	switch cfg.App.Environment {
	case EnvLocal, EnvDev, EnvProd:
		return nil
	default:
		return fmt.Errorf("app.environment %q must be one of local, dev, prod", cfg.App.Environment)
	}
}

func verifyLog(cfg *Config) error {
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text", "console":
		return nil
	default:
		return fmt.Errorf("log.format %q must be json or text", cfg.Log.Format)
	}
}

func verifyShutdown(cfg *Config) error {
	s := cfg.Shutdown
	if s.Timeout < 0 {
		return errors.New("shutdown.timeout must not be negative")
	}
	if s.HookTimeout <= 0 {
		return errors.New("shutdown.hook_timeout must be positive")
	}
	if s.ConsumerPrefix == "" {
		return errors.New("shutdown.consumer_prefix is required")
	}
	return nil
}

func verifyExchange(cfg *Config) error {
	e := cfg.Exchange
	if e.Name == "" {
		return errors.New("exchange.name is required")
	}
	if !strings.HasPrefix(e.Endpoint, "ws://") && !strings.HasPrefix(e.Endpoint, "wss://") {
		return fmt.Errorf("exchange.endpoint %q must be a ws:// or wss:// URL", e.Endpoint)
	}
	if len(e.Symbols) == 0 {
		return errors.New("exchange.symbols must not be empty")
	}
	for _, s := range e.Symbols {
		if strings.TrimSpace(s) == "" {
			return errors.New("exchange.symbols contains an empty symbol")
		}
	}
	if e.Partitions < 1 {
		return errors.New("exchange.partitions must be at least 1")
	}
	if e.Buffer < 1 {
		return errors.New("exchange.buffer must be at least 1")
	}
	if e.PingInterval <= 0 {
		return errors.New("exchange.ping_interval must be positive")
	}
	if e.ReconnectDelay <= 0 {
		return errors.New("exchange.reconnect_delay must be positive")
	}
	if e.CheckpointEvery < 1 {
		return errors.New("exchange.checkpoint_every must be at least 1")
	}
	return nil
}

func verifySink(cfg *Config) error {
	switch cfg.Sink.Driver {
	case "log", "memory":
	case "nats":
		if cfg.Sink.NATSURL == "" {
			return errors.New("sink.nats_url is required for the nats driver")
		}
	default:
		return fmt.Errorf("sink.driver %q must be one of log, nats, memory", cfg.Sink.Driver)
	}
	if cfg.Sink.SubjectPrefix == "" {
		return errors.New("sink.subject_prefix is required")
	}
	if cfg.App.Environment == EnvProd && cfg.Sink.Driver != "nats" {
		return errors.New("sink.driver must be nats in prod")
	}
	return nil
}

func verifyStorage(cfg *Config) error {
	if cfg.Storage.InMemory {
		if cfg.App.Environment == EnvProd {
			return errors.New("storage.in_memory is not allowed in prod")
		}
		return nil
	}
	if cfg.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	return nil
}

func verifyMetrics(cfg *Config) error {
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	return nil
}
