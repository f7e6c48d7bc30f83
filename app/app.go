// Package app wires configuration, telemetry, the upstream client, the
// fetcher, the dashboard loader and the HTTP server into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lockwatch/lockdash/clock"
	"github.com/lockwatch/lockdash/config"
	"github.com/lockwatch/lockdash/dashboard"
	"github.com/lockwatch/lockdash/fetcher"
	lockhttp "github.com/lockwatch/lockdash/http"
	"github.com/lockwatch/lockdash/logger"
	"github.com/lockwatch/lockdash/observability"
	"github.com/lockwatch/lockdash/server"
	"github.com/lockwatch/lockdash/surface"
)

// ErrNotReady is reported by the readiness probe until the initial load finishes.
var ErrNotReady = errors.New("initial dashboard load in progress")

// Options overrides collaborators, mainly for tests. Zero values select
// the production implementations.
type Options struct {
	Logger logger.Logger
	Client lockhttp.Client
	Clock  clock.Clock
}

// App represents the main application instance.
type App struct {
	cfg      *config.Config
	logger   logger.Logger
	provider observability.Provider
	board    *surface.Board
	fetcher  *fetcher.Fetcher
	loader   *dashboard.Loader
	server   *server.Server
}

// New loads configuration from files and environment and builds the app.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(cfg, Options{})
}

// NewWithConfig builds the app from an already loaded configuration.
func NewWithConfig(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	}
	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Env).
		Str("version", cfg.App.Version).
		Msg("Starting application")

	provider, err := observability.NewProvider(observabilityConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	client := opts.Client
	if client == nil {
		client = newClient(cfg, log, provider)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	board := surface.NewBoard(log)

	f, err := fetcher.New(fetcher.Options{
		Client:         client,
		Registry:       board,
		Navigator:      board,
		Clock:          clk,
		Logger:         log,
		MeterProvider:  provider.MeterProvider(),
		TracerProvider: provider.TracerProvider(),
		Retries:        cfg.API.Retry.Count,
		Delay:          cfg.API.Retry.Delay,
		Factor:         cfg.API.Retry.Factor,
		MaxDelay:       cfg.API.Retry.MaxDelay,
		LoginPath:      cfg.API.Login.Path,
		LoginDelay:     cfg.API.Login.Delay,
	})
	if err != nil {
		return nil, errors.Join(err, provider.Shutdown(context.Background()))
	}

	loader, err := dashboard.NewLoader(dashboard.Options{
		Fetcher:   f,
		Registrar: board,
		Clock:     clk,
		Logger:    log,
		Refresh: dashboard.Refresh{
			Enabled:  cfg.Refresh.Enabled,
			Interval: cfg.Refresh.Interval,
			Retries:  cfg.Refresh.Retries,
			Delay:    cfg.Refresh.Delay,
		},
	})
	if err != nil {
		return nil, errors.Join(err, provider.Shutdown(context.Background()))
	}

	srv, err := server.New(cfg, log, server.Deps{
		Hub:            board,
		Pages:          loader.Pages(),
		TracerProvider: provider.TracerProvider(),
		MeterProvider:  provider.MeterProvider(),
		Ready: func(context.Context) error {
			select {
			case <-loader.Loaded():
				return nil
			default:
				return ErrNotReady
			}
		},
	})
	if err != nil {
		return nil, errors.Join(err, provider.Shutdown(context.Background()))
	}

	return &App{
		cfg:      cfg,
		logger:   log,
		provider: provider,
		board:    board,
		fetcher:  f,
		loader:   loader,
		server:   srv,
	}, nil
}

// Server returns the HTTP server.
func (a *App) Server() *server.Server {
	return a.server
}

// Board returns the surface board.
func (a *App) Board() *surface.Board {
	return a.board
}

// Run starts the app and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the server and the dashboard loader and blocks until ctx
// is done or the server fails, then shuts everything down.
func (a *App) RunContext(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.server.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.loader.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("Shutting down application")
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown stops the HTTP server and flushes telemetry within the
// configured shutdown timeout.
func (a *App) Shutdown() error {
	timeout := a.cfg.Server.Timeout.Shutdown
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Failed to shutdown server")
		errs = append(errs, err)
	}
	if err := observability.Shutdown(a.provider, timeout); err != nil {
		a.logger.Error().Err(err).Msg("Failed to shutdown observability")
		errs = append(errs, err)
	}

	a.logger.Info().Msg("Application shutdown complete")
	return errors.Join(errs...)
}

func observabilityConfig(cfg *config.Config) *observability.Config {
	return &observability.Config{
		Enabled:     cfg.Observability.Enabled,
		Service:     observability.ServiceConfig{Name: cfg.Observability.ServiceName, Version: cfg.App.Version},
		Environment: cfg.App.Env,
		Endpoint:    cfg.Observability.Endpoint,
		Protocol:    cfg.Observability.Protocol,
		Insecure:    cfg.Observability.Insecure,
		Interval:    cfg.Observability.Interval,
		Headers:     cfg.Observability.Headers,
	}
}

// newClient builds the upstream client. The otelhttp transport adds client
// spans and propagates trace context to the lock API.
func newClient(cfg *config.Config, log logger.Logger, provider observability.Provider) lockhttp.Client {
	transport := otelhttp.NewTransport(nethttp.DefaultTransport,
		otelhttp.WithTracerProvider(provider.TracerProvider()),
		otelhttp.WithMeterProvider(provider.MeterProvider()),
	)
	b := lockhttp.NewBuilder(log).
		WithBaseURL(cfg.API.URL).
		WithTimeout(cfg.API.Timeout).
		WithTransport(transport)
	if cfg.API.Username != "" {
		b = b.WithBasicAuth(cfg.API.Username, cfg.API.Password)
	}
	for k, v := range cfg.API.Headers {
		b = b.WithDefaultHeader(k, v)
	}
	return b.Build()
}
