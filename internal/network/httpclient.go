// File: internal/network/httpclient.go
package network

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/xkilldash9x/automate-cli/internal/config"
	"github.com/xkilldash9x/automate-cli/internal/observability"
)

// Defaults for talking to a single automation engine. The engine is usually
// local, so the pool is small and dials fail fast.
const (
	DefaultDialTimeout         = 5 * time.Second
	DefaultKeepAliveInterval   = 30 * time.Second
	DefaultTLSHandshakeTimeout = 5 * time.Second
	DefaultMaxIdleConns        = 10
	DefaultMaxIdleConnsPerHost = 4
	DefaultIdleConnTimeout     = 30 * time.Second

	requiredMinTLSVersion = tls.VersionTLS12
)

// defaultSecureCipherSuites lists the forward secret AEAD suites offered by default.
var defaultSecureCipherSuites = []uint16{
	tls.TLS_AES_256_GCM_SHA384,
	tls.TLS_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// ClientConfig holds the configuration for the HTTP client and transport layers.
type ClientConfig struct {
	// Security settings
	IgnoreTLSErrors bool
	TLSConfig       *tls.Config // Allows advanced customization if needed

	// Timeout settings. A zero RequestTimeout means no client-wide deadline;
	// callers bound each call with their context instead.
	RequestTimeout        time.Duration
	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration

	// Connection pool settings
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// Protocol settings
	ForceHTTP2 bool

	// Proxy settings
	ProxyURL *url.URL

	Logger *zap.Logger
}

// NewDefaultClientConfig creates a configuration suited to a local engine.
func NewDefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		DialTimeout:         DefaultDialTimeout,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		Logger:              observability.GetLogger().Named("httpclient"),
	}
}

// ClientConfigFrom maps the network section of the application config onto a ClientConfig.
func ClientConfigFrom(netCfg config.NetworkConfig, requestTimeout time.Duration) (*ClientConfig, error) {
	cc := NewDefaultClientConfig()
	cc.IgnoreTLSErrors = netCfg.IgnoreTLSErrors
	cc.ForceHTTP2 = netCfg.ForceHTTP2
	cc.RequestTimeout = requestTimeout
	cc.ResponseHeaderTimeout = netCfg.ResponseHeaderTimeout
	if netCfg.TLSHandshakeTimeout > 0 {
		cc.TLSHandshakeTimeout = netCfg.TLSHandshakeTimeout
	}
	if netCfg.IdleConnTimeout > 0 {
		cc.IdleConnTimeout = netCfg.IdleConnTimeout
	}
	if netCfg.MaxIdleConns > 0 {
		cc.MaxIdleConns = netCfg.MaxIdleConns
	}
	if netCfg.MaxIdleConnsPerHost > 0 {
		cc.MaxIdleConnsPerHost = netCfg.MaxIdleConnsPerHost
	}
	if netCfg.Proxy.Enabled {
		proxyURL, err := url.Parse(netCfg.Proxy.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address '%s': %w", netCfg.Proxy.Address, err)
		}
		cc.ProxyURL = proxyURL
	}
	return cc, nil
}

// NewHTTPTransport creates and configures an http.Transport based on the provided configuration.
func NewHTTPTransport(cfg *ClientConfig) *http.Transport {
	if cfg == nil {
		cfg = NewDefaultClientConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: DefaultKeepAliveInterval,
	}
	tlsConfig := configureTLS(cfg)

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     cfg.ForceHTTP2,
		Proxy:                 http.ProxyFromEnvironment,
	}

	if cfg.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.ProxyURL)
	}

	if cfg.ForceHTTP2 {
		// http2.ConfigureTransport modifies the transport in place to add HTTP/2 support.
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn("Failed to configure HTTP/2 transport, falling back to HTTP/1.1", zap.Error(err))
		}
	} else if len(tlsConfig.NextProtos) == 0 {
		tlsConfig.NextProtos = []string{"http/1.1"}
	}

	return transport
}

// NewClient creates an http.Client using the configured transport.
// The returned client is safe for concurrent use.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = NewDefaultClientConfig()
	}
	return &http.Client{
		Transport: NewHTTPTransport(cfg),
		Timeout:   cfg.RequestTimeout,
	}
}

// configureTLS clones or creates the TLS configuration and enforces the minimum version.
func configureTLS(cfg *ClientConfig) *tls.Config {
	if cfg == nil {
		cfg = NewDefaultClientConfig()
	}

	var tlsConfig *tls.Config
	if cfg.TLSConfig != nil {
		tlsConfig = cfg.TLSConfig.Clone()
	} else {
		tlsConfig = &tls.Config{}
	}

	if tlsConfig.MinVersion < requiredMinTLSVersion {
		tlsConfig.MinVersion = requiredMinTLSVersion
	}
	if len(tlsConfig.CipherSuites) == 0 {
		tlsConfig.CipherSuites = append([]uint16(nil), defaultSecureCipherSuites...)
	}
	if tlsConfig.ClientSessionCache == nil {
		tlsConfig.ClientSessionCache = tls.NewLRUClientSessionCache(64)
	}

	// Useful against engines that sit behind a self signed certificate.
	tlsConfig.InsecureSkipVerify = cfg.IgnoreTLSErrors

	return tlsConfig
}
