package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"
)

const testServiceName = "lockdash-test"

func TestNewProviderDisabledReturnsNoop(t *testing.T) {
	p, err := NewProvider(&Config{Enabled: false}, nil)
	require.NoError(t, err)

	assert.IsType(t, noop.NewTracerProvider(), p.TracerProvider())
	assert.IsType(t, metricnoop.NewMeterProvider(), p.MeterProvider())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderNilConfig(t *testing.T) {
	_, err := NewProvider(nil, nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestNewProviderStdout(t *testing.T) {
	p, err := NewProvider(&Config{
		Enabled:  true,
		Service:  ServiceConfig{Name: testServiceName},
		Endpoint: EndpointStdout,
	}, nil)
	require.NoError(t, err)

	tracer := p.TracerProvider().Tracer("test")
	_, span := tracer.Start(context.Background(), "test-span")
	span.End()

	counter, err := CreateCounter(p.MeterProvider().Meter("test"), "test.counter", "test counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	assert.NoError(t, Shutdown(p, 0))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "disabled config is always valid",
			cfg:  Config{Protocol: "carrier-pigeon"},
		},
		{
			name:    "missing service name",
			cfg:     Config{Enabled: true, Endpoint: EndpointStdout},
			wantErr: ErrMissingServiceName,
		},
		{
			name:    "invalid protocol",
			cfg:     Config{Enabled: true, Service: ServiceConfig{Name: testServiceName}, Endpoint: "collector:4317", Protocol: "udp"},
			wantErr: ErrInvalidProtocol,
		},
		{
			name:    "grpc endpoint with scheme",
			cfg:     Config{Enabled: true, Service: ServiceConfig{Name: testServiceName}, Endpoint: "http://collector:4317", Protocol: ProtocolGRPC},
			wantErr: ErrInvalidEndpointFormat,
		},
		{
			name:    "empty otlp endpoint",
			cfg:     Config{Enabled: true, Service: ServiceConfig{Name: testServiceName}, Protocol: ProtocolHTTP},
			wantErr: ErrInvalidEndpointFormat,
		},
		{
			name: "http endpoint",
			cfg:  Config{Enabled: true, Service: ServiceConfig{Name: testServiceName}, Endpoint: "https://otlp.example.com", Protocol: ProtocolHTTP},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	headers := map[string]string{"api-key": "secret"}
	cfg := Config{Headers: headers}
	cfg.ApplyDefaults()

	assert.Equal(t, "unknown", cfg.Service.Version)
	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, DefaultInterval, cfg.Interval)

	cfg.Headers["api-key"] = "changed"
	assert.Equal(t, "secret", headers["api-key"])
}

func TestConfigHostPort(t *testing.T) {
	cfg := Config{Endpoint: "https://otlp.example.com/"}
	host, insecureConn := cfg.hostPort()
	assert.Equal(t, "otlp.example.com", host)
	assert.False(t, insecureConn)

	cfg = Config{Endpoint: "http://localhost:4318"}
	host, insecureConn = cfg.hostPort()
	assert.Equal(t, "localhost:4318", host)
	assert.True(t, insecureConn)

	cfg = Config{Endpoint: "collector:4317", Insecure: true}
	host, insecureConn = cfg.hostPort()
	assert.Equal(t, "collector:4317", host)
	assert.True(t, insecureConn)
}

func TestShutdownNilProvider(t *testing.T) {
	assert.NoError(t, Shutdown(nil, 0))
}
