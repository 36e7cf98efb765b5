package librebrowser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/librebrowser/internal/config"
	"github.com/loykin/librebrowser/internal/engine"
	"github.com/loykin/librebrowser/internal/fetch"
	"github.com/loykin/librebrowser/internal/logger"
	"github.com/loykin/librebrowser/internal/metrics"
	"github.com/loykin/librebrowser/internal/monitor"
	"github.com/loykin/librebrowser/internal/paths"
	"github.com/loykin/librebrowser/internal/platform"
	"github.com/loykin/librebrowser/internal/profile"
	"github.com/loykin/librebrowser/internal/server"
	"github.com/loykin/librebrowser/internal/store"
	"github.com/loykin/librebrowser/internal/store/factory"
	"github.com/loykin/librebrowser/internal/surface"
)

// Re-export core types for external consumers.

type Config = config.Config

type OpenRequest = profile.OpenRequest

type EngineVersion = engine.Version

type ProfileInfo = profile.Info

// LoadConfig reads a TOML config file; an empty path yields defaults plus
// LIBREBROWSER_* environment overrides.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

const shutdownTimeout = 5 * time.Second

// App wires the engine store, profile manager and their collaborators for
// one host run.
type App struct {
	cfg      Config
	paths    paths.Resolver
	sink     *logger.Sink
	logger   *slog.Logger
	ledger   store.Store
	engines  *engine.Store
	profiles *profile.Manager
}

// Option overrides a collaborator, mainly for embedding and tests.
type Option func(*options)

type options struct {
	platform platform.Capabilities
	fetcher  fetch.Fetcher
	surface  surface.Surface
	logger   *slog.Logger
}

// WithPlatform replaces the OS capabilities.
func WithPlatform(c platform.Capabilities) Option { return func(o *options) { o.platform = c } }

// WithFetcher replaces the engine downloader.
func WithFetcher(f fetch.Fetcher) Option { return func(o *options) { o.fetcher = f } }

// WithSurface replaces the embedded web surface.
func WithSurface(s surface.Surface) Option { return func(o *options) { o.surface = s } }

// WithLogger uses l instead of building the rotating file sink.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// New builds an App from cfg. The caller must Close it.
func New(cfg Config, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	r := cfg.Resolver()
	a := &App{cfg: cfg, paths: r}

	if o.logger != nil {
		a.logger = o.logger
	} else {
		sink, err := logger.New(cfg.LoggerConfig(r))
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.sink = sink
		a.logger = sink.Logger
	}
	a.logger.Info("librebrowser starting", "root", r.Root())

	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			_ = a.closeSink()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	if dsn := cfg.LedgerDSN(r); dsn != "" {
		ledger, err := factory.NewFromDSN(dsn)
		if err == nil {
			err = ledger.EnsureSchema(context.Background())
			if err != nil {
				_ = ledger.Close()
			}
		}
		if err != nil {
			// the ledger is informational; run without it
			a.logger.Warn("session ledger unavailable", "error", err)
		} else {
			a.ledger = ledger
		}
	}

	caps := o.platform
	if caps == nil {
		caps = platform.Current(platform.Options{
			Logger:           a.logger,
			DiscoveryTimeout: cfg.Profile.DiscoveryTimeout,
		})
	}
	fetcher := o.fetcher
	if fetcher == nil {
		hf := fetch.New()
		hf.UserAgent = cfg.Engine.UserAgent
		fetcher = hf
	}
	surf := o.surface
	if surf == nil {
		surf = surface.NewRegistry()
	}

	a.engines = engine.NewStore(r, engine.Options{
		Fetcher:  fetcher,
		Repairer: caps,
		Logger:   a.logger,
	})

	mon := monitor.New(a.logger)
	mon.Interval = cfg.Profile.MonitorInterval
	mon.CrashThreshold = cfg.Profile.CrashThreshold

	pm := profile.Options{
		Paths:          r,
		Engines:        a.engines,
		Platform:       caps,
		Surface:        surf,
		DefaultURL:     cfg.Profile.DefaultSurfaceURL,
		Monitor:        mon,
		Logger:         a.logger,
		Ledger:         a.ledger,
		TerminateGrace: cfg.Profile.TerminateGrace,
	}
	a.profiles = profile.NewManager(pm)
	return a, nil
}

// Logger returns the host logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Paths returns the resolved on-disk layout.
func (a *App) Paths() paths.Resolver { return a.paths }

// Engines returns the engine version store.
func (a *App) Engines() *engine.Store { return a.engines }

// Profiles returns the profile process manager.
func (a *App) Profiles() *profile.Manager { return a.profiles }

// Router builds the HTTP API for this App.
func (a *App) Router() *server.Router {
	opts := []server.Option{server.WithLogger(a.logger)}
	if a.sink != nil && a.sink.Path() != "" {
		opts = append(opts, server.WithLogPath(a.sink.Path()))
	}
	if a.cfg.Metrics.Enabled && a.cfg.Metrics.Listen == "" {
		opts = append(opts, server.WithMetrics(metrics.Handler()))
	}
	return server.NewRouter(a.engines, a.profiles, a.cfg.Server.BasePath, opts...)
}

// ListenAndServe serves the API on the configured address until ctx is done.
func (a *App) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.Listen, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves the API on ln until ctx is done, then stops the servers and
// the lifecycle watchers. Running engines are left alone.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	api := server.NewServer(ln.Addr().String(), a.Router())
	servers := []*http.Server{api}
	errCh := make(chan error, 2)
	go func() { errCh <- api.Serve(ln) }()
	a.logger.Info("api listening", "addr", ln.Addr().String(), "base_path", a.cfg.Server.BasePath)

	if a.cfg.Metrics.Enabled && a.cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		ms := &http.Server{
			Addr:              a.cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		servers = append(servers, ms)
		go func() { errCh <- ms.ListenAndServe() }()
		a.logger.Info("metrics listening", "addr", a.cfg.Metrics.Listen)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if serveErr != nil {
		errs = append(errs, serveErr)
	}
	for _, s := range servers {
		if err := s.Shutdown(sctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.profiles.Shutdown(sctx); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("api stopped")
	return errors.Join(errs...)
}

// Close stops lifecycle watchers and releases the ledger and log file.
// Engine processes keep running.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := a.profiles.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.closeSink(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeSink() error {
	if a.sink == nil {
		return nil
	}
	return a.sink.Close()
}

// RegisterMetrics registers the librebrowser collectors with r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
