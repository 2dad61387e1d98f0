package config

import "time"

// Default configuration values.
const (
	DefaultEnvironment = EnvLocal

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultShutdownTimeout = 30 * time.Second
	DefaultHookTimeout     = 15 * time.Second
	DefaultConsumerPrefix  = "consumer"

	DefaultExchange        = "bybit"
	DefaultEndpoint        = "wss://stream.bybit.com/v5/public/spot"
	DefaultPartitions      = 4
	DefaultBuffer          = 1024
	DefaultPingInterval    = 20 * time.Second
	DefaultReconnectDelay  = 2 * time.Second
	DefaultCheckpointEvery = 500

	DefaultSinkDriver    = "log"
	DefaultNATSURL       = "nats://127.0.0.1:4222"
	DefaultSubjectPrefix = "trades"

	DefaultDataDir = "./data"

	DefaultMetricsAddr = "127.0.0.1:9102"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		App: AppSection{
			Environment: DefaultEnvironment,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Shutdown: ShutdownSection{
			Timeout:        DefaultShutdownTimeout,
			HookTimeout:    DefaultHookTimeout,
			ConsumerPrefix: DefaultConsumerPrefix,
		},
		Exchange: ExchangeSection{
			Name:            DefaultExchange,
			Endpoint:        DefaultEndpoint,
			Symbols:         []string{"BTCUSDT", "ETHUSDT"},
			Partitions:      DefaultPartitions,
			Buffer:          DefaultBuffer,
			PingInterval:    DefaultPingInterval,
			ReconnectDelay:  DefaultReconnectDelay,
			CheckpointEvery: DefaultCheckpointEvery,
		},
		Sink: SinkSection{
			Driver:        DefaultSinkDriver,
			NATSURL:       DefaultNATSURL,
			SubjectPrefix: DefaultSubjectPrefix,
		},
		Storage: StorageSection{
			DataDir: DefaultDataDir,
		},
		Metrics: MetricsSection{
			Enabled: true,
			Addr:    DefaultMetricsAddr,
		},
	}
}
