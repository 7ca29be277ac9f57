// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultEndpoint is the address of a locally running automation engine.
	DefaultEndpoint = "http://localhost:8000"
	// EnvPrefix namespaces environment overrides, e.g. AUTOMATE_AUTOMATION_ENDPOINT.
	EnvPrefix = "AUTOMATE"
)

// NewEnvKeyReplacer maps nested keys such as automation.endpoint onto
// environment variable names.
func NewEnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Automation() AutomationConfig
	Network() NetworkConfig
	Stub() StubConfig
	Snapshot() Snapshot

	// Automation Setters
	SetAutomationEndpoint(string)
	SetAutomationRequestTimeout(time.Duration)

	// Network Setters
	SetNetworkIgnoreTLSErrors(bool)
}

// Config holds the entire application configuration.
// It uses private fields to enforce access through the Interface's getter methods.
type Config struct {
	logger     LoggerConfig
	automation AutomationConfig
	network    NetworkConfig
	stub       StubConfig
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.logger }
func (c *Config) Automation() AutomationConfig { return c.automation }
func (c *Config) Network() NetworkConfig       { return c.network }
func (c *Config) Stub() StubConfig             { return c.stub }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetAutomationEndpoint(e string) { c.automation.Endpoint = e }
func (c *Config) SetAutomationRequestTimeout(d time.Duration) {
	c.automation.RequestTimeout = d
}
func (c *Config) SetNetworkIgnoreTLSErrors(b bool) { c.network.IgnoreTLSErrors = b }

// Snapshot exposes the private fields as a plain, serializable view.
func (c *Config) Snapshot() Snapshot {
	return Snapshot{
		Logger:     c.logger,
		Automation: c.automation,
		Network:    c.network,
		Stub:       c.stub,
	}
}

// Snapshot is the exported mirror of Config.
type Snapshot struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Automation AutomationConfig `mapstructure:"automation" yaml:"automation"`
	Network    NetworkConfig    `mapstructure:"network" yaml:"network"`
	Stub       StubConfig       `mapstructure:"stub" yaml:"stub"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AutomationConfig describes how to reach the remote automation engine.
type AutomationConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// RequestTimeout bounds a single call. Zero leaves it to the caller's context.
	RequestTimeout time.Duration     `mapstructure:"request_timeout" yaml:"request_timeout"`
	Headers        map[string]string `mapstructure:"headers" yaml:"headers"`
	HealthInterval time.Duration     `mapstructure:"health_interval" yaml:"health_interval"`
}

// NetworkConfig tunes the HTTP transport used to talk to the engine.
type NetworkConfig struct {
	IgnoreTLSErrors       bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ForceHTTP2            bool          `mapstructure:"force_http2" yaml:"force_http2"`
	TLSHandshakeTimeout   time.Duration `mapstructure:"tls_handshake_timeout" yaml:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout" yaml:"response_header_timeout"`
	IdleConnTimeout       time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns          int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	MaxIdleConnsPerHost   int           `mapstructure:"max_idle_conns_per_host" yaml:"max_idle_conns_per_host"`
	Proxy                 ProxyConfig   `mapstructure:"proxy" yaml:"proxy"`
}

// ProxyConfig defines the configuration for an outbound proxy.
type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

// StubConfig configures the local stub engine.
type StubConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	// TLS serves the stub over HTTPS with an ephemeral certificate authority.
	TLS bool `mapstructure:"tls" yaml:"tls"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := unmarshal(v)
	if err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "automate-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Automation --
	v.SetDefault("automation.endpoint", DefaultEndpoint)
	v.SetDefault("automation.request_timeout", "0s")
	v.SetDefault("automation.health_interval", "5s")

	// -- Network --
	v.SetDefault("network.ignore_tls_errors", false)
	v.SetDefault("network.force_http2", false)
	v.SetDefault("network.tls_handshake_timeout", "5s")
	v.SetDefault("network.response_header_timeout", "0s")
	v.SetDefault("network.idle_conn_timeout", "30s")
	v.SetDefault("network.max_idle_conns", 10)
	v.SetDefault("network.max_idle_conns_per_host", 4)
	v.SetDefault("network.proxy.enabled", false)

	// -- Stub engine --
	v.SetDefault("stub.listen_addr", "127.0.0.1:8000")
	v.SetDefault("stub.tls", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// unmarshal decodes through the exported Snapshot because viper cannot
// populate the unexported fields of Config directly.
func unmarshal(v *viper.Viper) (*Config, error) {
	var snap Snapshot
	if err := v.Unmarshal(&snap); err != nil {
		return nil, err
	}
	return &Config{
		logger:     snap.Logger,
		automation: snap.Automation,
		network:    snap.Network,
		stub:       snap.Stub,
	}, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.automation.Validate(); err != nil {
		return fmt.Errorf("automation configuration invalid: %w", err)
	}
	if err := c.network.Validate(); err != nil {
		return fmt.Errorf("network configuration invalid: %w", err)
	}
	if strings.TrimSpace(c.stub.ListenAddr) == "" {
		return fmt.Errorf("stub.listen_addr must not be empty")
	}
	return nil
}

// Validate checks the AutomationConfig settings.
// The endpoint is deliberately not parsed: the client accepts any address.
func (a *AutomationConfig) Validate() error {
	if strings.TrimSpace(a.Endpoint) == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if a.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if a.HealthInterval <= 0 {
		return fmt.Errorf("health_interval must be a positive duration")
	}
	return nil
}

// Validate checks the NetworkConfig settings.
func (n *NetworkConfig) Validate() error {
	if n.TLSHandshakeTimeout < 0 || n.ResponseHeaderTimeout < 0 || n.IdleConnTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if n.MaxIdleConns < 0 || n.MaxIdleConnsPerHost < 0 {
		return fmt.Errorf("connection pool sizes must not be negative")
	}
	if n.Proxy.Enabled {
		if n.Proxy.Address == "" {
			return fmt.Errorf("proxy.address is required when the proxy is enabled")
		}
		if _, err := url.Parse(n.Proxy.Address); err != nil {
			return fmt.Errorf("proxy.address is not a valid URL: %w", err)
		}
	}
	return nil
}
