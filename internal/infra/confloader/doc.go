// Package confloader loads layered configuration with koanf.
//
// Sources are applied in order, later ones overriding earlier ones:
//
//  1. defaults already present in the target struct
//  2. a YAML file
//  3. environment variables (AGGREGATOR_ prefix, "__" between sections)
//  4. explicit overrides, typically command-line flags
//
// AGGREGATOR_SHUTDOWN__CONSUMER_PREFIX=drain sets shutdown.consumer_prefix.
// A single underscore stays part of the key.
//
// Watcher reports writes to a config file through fsnotify.
package confloader
