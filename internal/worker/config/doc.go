// Package config defines the aggregator configuration.
//
// Values are layered by confloader: Default, then the YAML file, then
// AGGREGATOR_* environment variables with "__" between sections:
//
//	AGGREGATOR_APP__ENVIRONMENT=prod
//	AGGREGATOR_SHUTDOWN__TIMEOUT=10s
//	AGGREGATOR_EXCHANGE__SYMBOLS=BTCUSDT,ETHUSDT
//	AGGREGATOR_API_KEY=...
package config
