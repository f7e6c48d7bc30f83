// Package config loads lockdash configuration from defaults, YAML files and
// LOCKDASH_* environment variables using koanf.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override, e.g. LOCKDASH_API_URL -> api.url
	EnvPrefix = "LOCKDASH_"

	// EnvConfigFile overrides the base YAML file path
	EnvConfigFile = "LOCKDASH_CONFIG_FILE"

	defaultConfigFile = "config.yaml"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Load loads configuration with priority, highest first:
// 1. Environment variables
// 2. config.<env>.yaml
// 3. config.yaml (or the file named by LOCKDASH_CONFIG_FILE)
// 4. Defaults
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := os.Getenv(EnvConfigFile)
	if path == "" {
		path = defaultConfigFile
	}
	if err := loadOptionalFile(k, path); err != nil {
		return nil, err
	}

	// The environment may select the env-specific file, so peek at it before loading it fully
	env := k.String("app.env")
	if v := os.Getenv(EnvPrefix + "APP_ENV"); v != "" {
		env = v
	}
	if env != "" {
		if err := loadOptionalFile(k, fmt.Sprintf("config.%s.yaml", env)); err != nil {
			return nil, err
		}
	}

	return finish(k)
}

// LoadBytes loads configuration from defaults, the given YAML document and
// the environment. It is used by tests and embedded configurations.
func LoadBytes(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}

	return finish(k)
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func finish(k *koanf.Koanf) (*Config, error) {
	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "lockdash",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,
		"app.debug":   false,

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.timeout.read":     "15s",
		"server.timeout.write":    "0s",
		"server.timeout.idle":     "60s",
		"server.timeout.shutdown": "10s",
		"server.path.base":        "",
		"server.path.health":      "/health",
		"server.path.ready":       "/ready",
		"server.control.limit":    2,
		"server.control.burst":    4,

		"api.url":            "http://localhost:5000",
		"api.timeout":        "20s",
		"api.retry.count":    3,
		"api.retry.delay":    "1s",
		"api.retry.factor":   1.5,
		"api.retry.maxdelay": "0s",
		"api.login.path":     "/login",
		"api.login.delay":    "3s",

		"refresh.enabled":  true,
		"refresh.interval": "60s",
		"refresh.retries":  1,
		"refresh.delay":    "1s",

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":     false,
		"observability.servicename": "lockdash",
		"observability.endpoint":    "stdout",
		"observability.protocol":    "http",
		"observability.insecure":    true,
		"observability.interval":    "30s",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
