package statsnet

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFlushInterval is used when Config.FlushInterval is zero
	DefaultFlushInterval = 10 * time.Second

	// NoFlushInterval disables periodic flushing
	NoFlushInterval time.Duration = -1

	// InternalPostMetric is the timing reporting how long the previous post took
	InternalPostMetric = "jsclient.post"

	// FormField is the form field carrying the comma-joined payload
	FormField = "metrics"
)

// Transport kinds for Config.TransportKind
const (
	TransportHTTP        = "http"
	TransportRemoteWrite = "remote_write"
)

var (
	ErrMissingTargetURL   = errors.New("statsnet: must specify where metrics will be sent to (TargetURL)")
	ErrAlreadyInitialized = errors.New("statsnet: global client already initialized")
	ErrUnknownTransport   = errors.New("statsnet: unknown transport")
)

// Config defines the configuration of a Client
type Config struct {
	// TargetURL is the collector endpoint. Required.
	TargetURL string

	// Namespace is prefixed to every metric name as "<namespace>.<name>"
	Namespace string

	// FlushInterval is the pause between the end of one flush and the start
	// of the next. Zero means DefaultFlushInterval, NoFlushInterval disables
	// the scheduler.
	FlushInterval time.Duration

	// DisableInternalMetrics stops the client from reporting its own post latency
	DisableInternalMetrics bool

	// MaxBufferSize caps the entries sent per flush, keeping the newest. 0 means no limit.
	MaxBufferSize int

	// RuntimeStats samples Go runtime gauges before every scheduled flush
	RuntimeStats bool

	// Transport overrides the transport built from TransportKind
	Transport Transport

	// TransportKind selects the built-in transport: TransportHTTP (default)
	// or TransportRemoteWrite
	TransportKind string

	// RemoteWriteLabels are attached to every series when TransportKind is
	// TransportRemoteWrite
	RemoteWriteLabels map[string]string

	// Optional logger
	Logger *zap.Logger

	// DNS resolver options for the default HTTP transport
	DNSEnable       bool
	DNSCacheTTL     time.Duration
	DNSTimeout      time.Duration
	DNSUDPServers   []string // e.g. ["1.1.1.1:53", "8.8.8.8:53"]
	DNSTLSServers   []string // e.g. ["1.1.1.1:853"]
	DNSDoHEndpoints []string // e.g. ["https://cloudflare-dns.com/dns-query"]
}

// DefaultConfig returns a configuration posting to targetURL every 10 seconds
func DefaultConfig(targetURL string) Config {
	return Config{
		TargetURL:     targetURL,
		FlushInterval: DefaultFlushInterval,
	}
}

func (c *Config) applyDefaults() {
	c.TargetURL = strings.TrimSpace(c.TargetURL)
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxBufferSize < 0 {
		c.MaxBufferSize = 0
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

func (c *Config) validate() error {
	if c.TargetURL == "" {
		return ErrMissingTargetURL
	}
	return checkTransportKind(c.TransportKind)
}

func checkTransportKind(kind string) error {
	switch kind {
	case "", TransportHTTP, TransportRemoteWrite:
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownTransport, kind)
	}
}

// periodic reports whether the scheduler should run
func (c *Config) periodic() bool {
	return c.FlushInterval > 0
}

// ResolverConfig returns the DNS settings in the form NewResolver expects
func (c *Config) ResolverConfig() ResolverConfig {
	return ResolverConfig{
		CacheTTL:     c.DNSCacheTTL,
		Timeout:      c.DNSTimeout,
		UDPServers:   append([]string(nil), c.DNSUDPServers...),
		TLSServers:   append([]string(nil), c.DNSTLSServers...),
		DoHEndpoints: append([]string(nil), c.DNSDoHEndpoints...),
	}
}

// NewTransport builds the transport selected by TransportKind.
// DNS settings only apply to the HTTP transport.
func NewTransport(config Config) (Transport, error) {
	if err := checkTransportKind(config.TransportKind); err != nil {
		return nil, err
	}
	if config.TransportKind == TransportRemoteWrite {
		return NewRemoteWriteTransport(RemoteWriteOptions{
			Labels: config.RemoteWriteLabels,
			Logger: config.Logger,
		}), nil
	}

	opts := HTTPTransportOptions{Logger: config.Logger}
	if config.DNSEnable {
		opts.Resolver = NewResolver(config.ResolverConfig(), config.Logger)
	}
	return NewHTTPTransport(opts), nil
}

// fileConfig is the YAML representation of Config
type fileConfig struct {
	URL                  string `yaml:"url"`
	Namespace            string `yaml:"namespace"`
	FlushIntervalSeconds *int   `yaml:"flush_interval_seconds"`
	InternalMetrics      *bool  `yaml:"internal_metrics"`
	MaxBufferSize        int    `yaml:"max_buffer_size"`
	RuntimeStats         bool   `yaml:"runtime_stats"`
	Transport            string `yaml:"transport"`
	RemoteWrite          struct {
		Labels map[string]string `yaml:"labels"`
	} `yaml:"remote_write"`
	DNS                  struct {
		Enable       bool     `yaml:"enable"`
		CacheTTL     string   `yaml:"cache_ttl"`
		Timeout      string   `yaml:"timeout"`
		UDPServers   []string `yaml:"udp_servers"`
		TLSServers   []string `yaml:"tls_servers"`
		DoHEndpoints []string `yaml:"doh_endpoints"`
	} `yaml:"dns"`
}

// LoadConfig reads a YAML configuration file.
// flush_interval_seconds: -1 disables periodic flushing; internal_metrics
// defaults to true when absent.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("statsnet: config: read %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document into a Config
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("statsnet: config: parse: %w", err)
	}

	cfg := Config{
		TargetURL:       fc.URL,
		Namespace:       fc.Namespace,
		MaxBufferSize:   fc.MaxBufferSize,
		RuntimeStats:    fc.RuntimeStats,
		TransportKind:   fc.Transport,
		DNSEnable:       fc.DNS.Enable,
		DNSUDPServers:   fc.DNS.UDPServers,
		DNSTLSServers:   fc.DNS.TLSServers,
		DNSDoHEndpoints: fc.DNS.DoHEndpoints,
	}

	if fc.FlushIntervalSeconds != nil {
		switch n := *fc.FlushIntervalSeconds; {
		case n < 0:
			cfg.FlushInterval = NoFlushInterval
		case n > 0:
			cfg.FlushInterval = time.Duration(n) * time.Second
		}
	}
	if fc.InternalMetrics != nil {
		cfg.DisableInternalMetrics = !*fc.InternalMetrics
	}
	if fc.MaxBufferSize < 0 {
		return Config{}, fmt.Errorf("statsnet: config: max_buffer_size must be >= 0, got %d", fc.MaxBufferSize)
	}
	if err := checkTransportKind(fc.Transport); err != nil {
		return Config{}, fmt.Errorf("statsnet: config: transport: %w", err)
	}
	cfg.RemoteWriteLabels = fc.RemoteWrite.Labels

	if fc.DNS.CacheTTL != "" {
		d, err := time.ParseDuration(fc.DNS.CacheTTL)
		if err != nil {
			return Config{}, fmt.Errorf("statsnet: config: dns.cache_ttl: %w", err)
		}
		cfg.DNSCacheTTL = d
	}
	if fc.DNS.Timeout != "" {
		d, err := time.ParseDuration(fc.DNS.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("statsnet: config: dns.timeout: %w", err)
		}
		cfg.DNSTimeout = d
	}

	return cfg, nil
}
