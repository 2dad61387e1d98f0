// Package tlsroots builds client TLS configurations that trust a private
// CA in addition to the system roots.
//
// Deployments behind a corporate proxy or with a self-hosted broker set
// exchange.ca_file or sink.ca_file; both are loaded through LoadTLSConfig.
package tlsroots
