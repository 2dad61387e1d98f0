package config

import "time"

// Environment says where the service runs.
type Environment string

// Known environments.
const (
	EnvLocal Environment = "local"
	EnvDev   Environment = "dev"
	EnvProd  Environment = "prod"
)

// Config is the root configuration for the aggregator.
type Config struct {
	// APIKey authenticates against the message broker.
	APIKey string `koanf:"api_key" yaml:"api_key"`

	App      AppSection      `koanf:"app" yaml:"app"`
	Log      LogSection      `koanf:"log" yaml:"log"`
	Shutdown ShutdownSection `koanf:"shutdown" yaml:"shutdown"`
	Exchange ExchangeSection `koanf:"exchange" yaml:"exchange"`
	Sink     SinkSection     `koanf:"sink" yaml:"sink"`
	Storage  StorageSection  `koanf:"storage" yaml:"storage"`
	Metrics  MetricsSection  `koanf:"metrics" yaml:"metrics"`
}

// AppSection identifies the deployment.
type AppSection struct {
	Environment Environment `koanf:"environment" yaml:"environment"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// ShutdownSection configures graceful shutdown.
type ShutdownSection struct {
	// Timeout bounds the wait for cancelled tasks. 0 waits forever.
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`

	// HookTimeout bounds cleanup after the scheduler stops.
	HookTimeout time.Duration `koanf:"hook_timeout" yaml:"hook_timeout"`

	// ConsumerPrefix marks tasks spared from cancellation.
	ConsumerPrefix string `koanf:"consumer_prefix" yaml:"consumer_prefix"`
}

// ExchangeSection configures the market data stream.
type ExchangeSection struct {
	Name            string        `koanf:"name" yaml:"name"`
	Endpoint        string        `koanf:"endpoint" yaml:"endpoint"`
	Symbols         []string      `koanf:"symbols" yaml:"symbols"`
	Partitions      int           `koanf:"partitions" yaml:"partitions"`
	Buffer          int           `koanf:"buffer" yaml:"buffer"`
	PingInterval    time.Duration `koanf:"ping_interval" yaml:"ping_interval"`
	ReconnectDelay  time.Duration `koanf:"reconnect_delay" yaml:"reconnect_delay"`
	CheckpointEvery int           `koanf:"checkpoint_every" yaml:"checkpoint_every"`

	// CAFile adds a PEM bundle to the roots trusted for wss endpoints.
	CAFile string `koanf:"ca_file" yaml:"ca_file"`
}

// SinkSection configures where trades are published.
type SinkSection struct {
	// Driver is one of log, nats, memory.
	Driver        string `koanf:"driver" yaml:"driver"`
	NATSURL       string `koanf:"nats_url" yaml:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix" yaml:"subject_prefix"`
	CAFile        string `koanf:"ca_file" yaml:"ca_file"`
}

// StorageSection configures checkpoint storage.
type StorageSection struct {
	DataDir  string `koanf:"data_dir" yaml:"data_dir"`
	InMemory bool   `koanf:"in_memory" yaml:"in_memory"`
}

// MetricsSection configures the metrics endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
}
