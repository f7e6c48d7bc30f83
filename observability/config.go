package observability

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that outputs to stdout (for local development).
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the default environment name.
	EnvironmentDevelopment = "development"

	// DefaultInterval is the default metric export interval.
	DefaultInterval = 15 * time.Second
)

// Config defines the configuration for observability features.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, all observability operations become no-ops.
	Enabled bool

	// Service contains service identification metadata.
	Service ServiceConfig

	// Environment indicates the deployment environment.
	Environment string

	// Endpoint is "stdout" or an OTLP collector address. gRPC endpoints are
	// host:port; HTTP endpoints may carry a scheme.
	Endpoint string

	// Protocol is "http" or "grpc". Ignored for the stdout endpoint.
	Protocol string

	// Insecure disables TLS towards the collector.
	Insecure bool

	// Interval is the metric export interval.
	Interval time.Duration

	// Headers are sent with every export (e.g. an API key).
	Headers map[string]string
}

// ServiceConfig contains service identification metadata.
type ServiceConfig struct {
	Name    string
	Version string
}

// ApplyDefaults sets default values for any config fields that are not specified.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolHTTP
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	c.Headers = cloneHeaderMap(c.Headers)
}

// Validate checks the configuration. Disabled configurations are always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if c.Endpoint == EndpointStdout {
		return nil
	}
	switch c.Protocol {
	case ProtocolHTTP:
	case ProtocolGRPC:
		if strings.HasPrefix(c.Endpoint, "http://") || strings.HasPrefix(c.Endpoint, "https://") {
			return fmt.Errorf("grpc endpoint %q must be host:port: %w", c.Endpoint, ErrInvalidEndpointFormat)
		}
	default:
		return fmt.Errorf("protocol '%s': %w", c.Protocol, ErrInvalidProtocol)
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is empty: %w", ErrInvalidEndpointFormat)
	}
	return nil
}

// hostPort strips an http(s) scheme, which the OTLP HTTP exporters do not accept
// in WithEndpoint.
func (c *Config) hostPort() (string, bool) {
	switch {
	case strings.HasPrefix(c.Endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(c.Endpoint, "https://"), "/"), false
	case strings.HasPrefix(c.Endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(c.Endpoint, "http://"), "/"), true
	default:
		return c.Endpoint, c.Insecure
	}
}

// cloneHeaderMap creates a copy of a header map to avoid aliasing.
// Returns nil if the input is nil.
func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	maps.Copy(clone, headers)
	return clone
}
