package config

import "github.com/yndnr/aggregator/internal/telemetry/logger"

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg
	sanitized.Exchange.Symbols = append([]string(nil), cfg.Exchange.Symbols...)

	if sanitized.APIKey != "" {
		sanitized.APIKey = logger.Mask(sanitized.APIKey)
	}
	return &sanitized
}
