package config

import "time"

// Config is the full lockdash configuration.
type Config struct {
	App           AppConfig           `koanf:"app" json:"app" yaml:"app"`
	Server        ServerConfig        `koanf:"server" json:"server" yaml:"server"`
	API           APIConfig           `koanf:"api" json:"api" yaml:"api"`
	Refresh       RefreshConfig       `koanf:"refresh" json:"refresh" yaml:"refresh"`
	Log           LogConfig           `koanf:"log" json:"log" yaml:"log"`
	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production"`
	Debug   bool   `koanf:"debug" json:"debug" yaml:"debug"`
}

// ServerConfig holds settings for the dashboard HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host" json:"host" yaml:"host"`
	Port    int           `koanf:"port" json:"port" yaml:"port" validate:"min=1,max=65535"`
	Timeout TimeoutConfig `koanf:"timeout" json:"timeout" yaml:"timeout"`
	Path    PathConfig    `koanf:"path" json:"path" yaml:"path"`
	Control RateConfig    `koanf:"control" json:"control" yaml:"control"`
}

// TimeoutConfig holds server timeouts. Write is zero by default so WebSocket
// streams are not cut off.
type TimeoutConfig struct {
	Read     time.Duration `koanf:"read" json:"read" yaml:"read" validate:"gt=0"`
	Write    time.Duration `koanf:"write" json:"write" yaml:"write" validate:"gte=0"`
	Idle     time.Duration `koanf:"idle" json:"idle" yaml:"idle" validate:"gte=0"`
	Shutdown time.Duration `koanf:"shutdown" json:"shutdown" yaml:"shutdown" validate:"gt=0"`
}

// PathConfig holds URL path settings for the server.
type PathConfig struct {
	Base   string `koanf:"base" json:"base" yaml:"base"`
	Health string `koanf:"health" json:"health" yaml:"health"`
	Ready  string `koanf:"ready" json:"ready" yaml:"ready"`
}

// RateConfig limits how often a single client may click surface controls.
// A zero Limit disables rate limiting.
type RateConfig struct {
	Limit int `koanf:"limit" json:"limit" yaml:"limit" validate:"gte=0"`
	Burst int `koanf:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
}

// APIConfig describes the upstream lock API and the fetcher's retry policy.
type APIConfig struct {
	URL      string            `koanf:"url" json:"url" yaml:"url" validate:"required,url"`
	Timeout  time.Duration     `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	Username string            `koanf:"username" json:"username" yaml:"username"`
	Password string            `koanf:"password" json:"-" yaml:"password"`
	Headers  map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
	Retry    RetryConfig       `koanf:"retry" json:"retry" yaml:"retry"`
	Login    LoginConfig       `koanf:"login" json:"login" yaml:"login"`
}

// RetryConfig is the default retry budget used for initial loads and manual retries.
type RetryConfig struct {
	Count    int           `koanf:"count" json:"count" yaml:"count" validate:"gte=0"`
	Delay    time.Duration `koanf:"delay" json:"delay" yaml:"delay" validate:"gt=0"`
	Factor   float64       `koanf:"factor" json:"factor" yaml:"factor" validate:"gte=1"`
	MaxDelay time.Duration `koanf:"maxdelay" json:"maxdelay" yaml:"maxdelay" validate:"gte=0"`
}

// LoginConfig controls the redirect issued when the API reports an expired session.
type LoginConfig struct {
	Path  string        `koanf:"path" json:"path" yaml:"path" validate:"required"`
	Delay time.Duration `koanf:"delay" json:"delay" yaml:"delay" validate:"gte=0"`
}

// RefreshConfig controls periodic re-fetching of dashboard widgets.
type RefreshConfig struct {
	Enabled  bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" validate:"gt=0"`
	Retries  int           `koanf:"retries" json:"retries" yaml:"retries" validate:"gte=0"`
	Delay    time.Duration `koanf:"delay" json:"delay" yaml:"delay" validate:"gt=0"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// ObservabilityConfig configures OpenTelemetry export. Endpoint "stdout"
// prints to the console; anything else is an OTLP collector address.
type ObservabilityConfig struct {
	Enabled     bool              `koanf:"enabled" json:"enabled" yaml:"enabled"`
	ServiceName string            `koanf:"servicename" json:"servicename" yaml:"servicename"`
	Endpoint    string            `koanf:"endpoint" json:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`
	Protocol    string            `koanf:"protocol" json:"protocol" yaml:"protocol" validate:"oneof=http grpc"`
	Insecure    bool              `koanf:"insecure" json:"insecure" yaml:"insecure"`
	Interval    time.Duration     `koanf:"interval" json:"interval" yaml:"interval" validate:"gt=0"`
	Headers     map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
}
