// Package config defines the daemon configuration and its validation.
// Values arrive through viper: flags, RPCSERVER_* environment variables or
// a yaml file.
package config

import (
	"fmt"
	"strings"
)

// Config is the complete daemon configuration.
type Config struct {
	HTTP      HTTPConfig       `mapstructure:"http"`
	RPC       RPCConfig        `mapstructure:"rpc"`
	ACL       ACLConfig        `mapstructure:"acl"`
	Health    HealthConfig     `mapstructure:"health"`
	Resources []ResourceConfig `mapstructure:"resources"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Log       LogConfig        `mapstructure:"log"`
}

// HTTPConfig is the listen configuration.
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Validate checks the HTTP section.
func (c *HTTPConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("http-host is required")
	}
	if c.Port <= 0 || c.Port > MaxPort {
		return fmt.Errorf("http-port must be between 1 and %d", MaxPort)
	}
	return nil
}

// Addr renders the listen address.
func (c *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RPCConfig carries the protocol-level limits.
type RPCConfig struct {
	MaxRequestBodyMB  int64 `mapstructure:"max-request-body-mb"`
	MaxResponseBodyMB int64 `mapstructure:"max-response-body-mb"`
	MaxLogLength      int64 `mapstructure:"max-log-length"`
	BatchRequests     bool  `mapstructure:"batch-requests"`
}

// Validate checks the RPC section and applies defaults.
func (c *RPCConfig) Validate() error {
	if c.MaxRequestBodyMB <= 0 {
		c.MaxRequestBodyMB = DefaultMaxBodyMB
	}
	if c.MaxResponseBodyMB <= 0 {
		c.MaxResponseBodyMB = DefaultMaxBodyMB
	}
	if c.MaxLogLength <= 0 {
		c.MaxLogLength = DefaultMaxLogLength
	}
	return nil
}

// MaxRequestBodyBytes returns the request limit in bytes.
func (c *RPCConfig) MaxRequestBodyBytes() uint32 {
	return uint32(c.MaxRequestBodyMB) * 1024 * 1024
}

// MaxResponseBodyBytes returns the response budget in bytes.
func (c *RPCConfig) MaxResponseBodyBytes() uint32 {
	return uint32(c.MaxResponseBodyMB) * 1024 * 1024
}

// ACLConfig carries the allowlists. Entries support '*' wildcards; an empty
// list allows anything for that dimension.
type ACLConfig struct {
	AllowedHosts   []string `mapstructure:"allowed-hosts"`
	AllowedOrigins []string `mapstructure:"allowed-origins"`
	AllowedHeaders []string `mapstructure:"allowed-headers"`
}

// Validate checks the ACL section.
func (c *ACLConfig) Validate() error {
	return nil
}

// HealthConfig maps a GET path to an RPC method. An empty path disables the
// endpoint.
type HealthConfig struct {
	Path   string `mapstructure:"path"`
	Method string `mapstructure:"method"`
}

// Validate checks the health section.
func (c *HealthConfig) Validate() error {
	if c.Path == "" {
		return nil
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("health-path must start with '/', got: %s", c.Path)
	}
	if c.Method == "" {
		return fmt.Errorf("health-method is required when health-path is set")
	}
	return nil
}

// ResourceConfig declares one resource kind for the tracker.
type ResourceConfig struct {
	Label    string `mapstructure:"label"`
	Capacity uint16 `mapstructure:"capacity"`
	Default  uint16 `mapstructure:"default"`
}

// MetricsConfig exposes Prometheus metrics on a side listener when Addr is
// set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Validate checks the metrics section.
func (c *MetricsConfig) Validate() error {
	return nil
}

// LogConfig is the logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks the log section and applies defaults.
func (c *LogConfig) Validate() error {
	if c.Level == "" {
		c.Level = DefaultLogLevel
	}
	if !validLogLevels[strings.ToLower(c.Level)] {
		return fmt.Errorf("log-level must be one of: debug, info, warn, error, fatal, got: %s", c.Level)
	}
	if c.Format == "" {
		c.Format = DefaultLogFormat
	}
	if !validLogFormats[strings.ToLower(c.Format)] {
		return fmt.Errorf("log-format must be one of: json, text, got: %s", c.Format)
	}
	return nil
}

// Validate runs every section validator.
func (c *Config) Validate() error {
	validators := []Validator{&c.HTTP, &c.RPC, &c.ACL, &c.Health, &c.Metrics, &c.Log}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	seen := make(map[string]bool)
	for _, r := range c.Resources {
		if r.Label == "" {
			return fmt.Errorf("resource label cannot be empty")
		}
		if seen[r.Label] {
			return fmt.Errorf("duplicate resource label: %s", r.Label)
		}
		seen[r.Label] = true
		if r.Default > r.Capacity {
			return fmt.Errorf("resource %q: default %d exceeds capacity %d", r.Label, r.Default, r.Capacity)
		}
	}
	return nil
}

// String returns a loggable summary of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf(
		"HTTP: {Host: %s, Port: %d}, RPC: {MaxReqMB: %d, MaxRespMB: %d, Batch: %v}, "+
			"ACL: {Hosts: %v, Origins: %v, Headers: %v}, Health: {Path: %s, Method: %s}, "+
			"Resources: %d, Log: {Level: %s, Format: %s}",
		c.HTTP.Host, c.HTTP.Port,
		c.RPC.MaxRequestBodyMB, c.RPC.MaxResponseBodyMB, c.RPC.BatchRequests,
		c.ACL.AllowedHosts, c.ACL.AllowedOrigins, c.ACL.AllowedHeaders,
		c.Health.Path, c.Health.Method,
		len(c.Resources),
		c.Log.Level, c.Log.Format,
	)
}
