// Package http builds *http.Client values preconfigured for the external
// collaborators the core talks to: LLM providers, Google geospatial APIs,
// and TomTom. Every hand-rolled net/http adapter (OpenAI and Perplexity in
// pkg/provider, and the pkg/geo clients) gets its transport from here
// instead of constructing one ad hoc; the SDK-based provider adapters use
// their SDK's own transport.
package http

import (
	"crypto/tls"
	"net/http"
	"time"
)

// ClientConfig controls both the client-level timeout and the transport's
// connection-pooling knobs.
type ClientConfig struct {
	Timeout                 time.Duration
	MaxRetries              int
	DisableSSLVerification  bool
	MaxIdleConns            int
	IdleConnTimeout         time.Duration
	TLSHandshakeTimeout     time.Duration
	ResponseHeaderTimeout   time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:               30 * time.Second,
		MaxRetries:            3,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
}

func NewClient(config ClientConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
	}
	if config.DisableSSLVerification {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}
}

func NewClientWithTimeout(timeout time.Duration) *http.Client {
	config := DefaultClientConfig()
	config.Timeout = timeout
	return NewClient(config)
}

func NewDefaultClient() *http.Client {
	return NewClient(DefaultClientConfig())
}

// LLMClientConfig is tuned for chat-completion calls: a generous overall
// timeout but a response-header timeout of a third of it, so a provider
// that never starts streaming headers is detected well before the full
// deadline and can be classified as TIMEOUT instead of hanging the hedge.
func LLMClientConfig(timeout time.Duration) ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = timeout
	config.ResponseHeaderTimeout = timeout / 3
	return config
}

// GeoClientConfig is tuned for Places/Routes/Geocoding calls: short
// response-header timeout since these APIs are expected to respond quickly
// relative to LLM calls.
func GeoClientConfig(timeout time.Duration) ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = timeout
	config.ResponseHeaderTimeout = timeout / 2
	return config
}

// MetricsClientConfig is the default preset with the given timeout and
// MaxRetries set to 1. No code in this module calls it.
func MetricsClientConfig(timeout time.Duration) ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = timeout
	config.MaxRetries = 1
	return config
}
