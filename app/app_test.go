package app

import (
	"context"
	"fmt"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockwatch/lockdash/config"
	lockhttp "github.com/lockwatch/lockdash/http"
	"github.com/lockwatch/lockdash/logger"
	"github.com/lockwatch/lockdash/observability"
	"github.com/lockwatch/lockdash/testing/fixtures"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T, port int) *config.Config {
	t.Helper()
	cfg, err := config.LoadBytes([]byte(fmt.Sprintf(`
app:
  name: lockdash
  version: test
server:
  host: 127.0.0.1
  port: %d
  timeout:
    shutdown: 2s
refresh:
  enabled: false
`, port)))
	require.NoError(t, err)
	return cfg
}

func TestRunContextServesDashboard(t *testing.T) {
	port := freePort(t)
	a, err := NewWithConfig(testConfig(t, port), Options{
		Logger: logger.Nop(),
		Client: fixtures.NewWorkingClient(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.RunContext(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := nethttp.Get(base + "/ready")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == nethttp.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := nethttp.Get(base + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Find("#lockStatusContainer .lock-card").Length())
	assert.Equal(t, 2, doc.Find("#recentActivityContainer tbody tr").Length())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunContext did not return after cancellation")
	}
}

func TestNewWithConfigRequiresConfig(t *testing.T) {
	_, err := NewWithConfig(nil, Options{})
	assert.Error(t, err)
}

func TestObservabilityConfig(t *testing.T) {
	cfg := testConfig(t, 8080)
	cfg.Observability.Enabled = true
	cfg.Observability.Endpoint = "collector:4317"
	cfg.Observability.Protocol = observability.ProtocolGRPC
	cfg.Observability.Headers = map[string]string{"api-key": "k"}

	oc := observabilityConfig(cfg)
	assert.True(t, oc.Enabled)
	assert.Equal(t, "lockdash", oc.Service.Name)
	assert.Equal(t, "test", oc.Service.Version)
	assert.Equal(t, config.EnvDevelopment, oc.Environment)
	assert.Equal(t, "collector:4317", oc.Endpoint)
	assert.Equal(t, observability.ProtocolGRPC, oc.Protocol)
	assert.Equal(t, "k", oc.Headers["api-key"])
	assert.NoError(t, oc.Validate())
}

func TestNewClientAppliesUpstreamSettings(t *testing.T) {
	upstream := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		if r.Header.Get("X-Api-Key") != "abc" || r.URL.Path != "/api/status" {
			w.WriteHeader(nethttp.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fixtures.LockStatusJSON))
	}))
	defer upstream.Close()

	cfg := testConfig(t, 8080)
	cfg.API.URL = upstream.URL
	cfg.API.Username = "admin"
	cfg.API.Password = "secret"
	cfg.API.Headers = map[string]string{"X-Api-Key": "abc"}

	provider, err := observability.NewProvider(&observability.Config{}, logger.Nop())
	require.NoError(t, err)
	client := newClient(cfg, logger.Nop(), provider)
	resp, err := client.Get(context.Background(), &lockhttp.Request{URL: "/api/status"})
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.JSONEq(t, fixtures.LockStatusJSON, string(resp.Body))
}
