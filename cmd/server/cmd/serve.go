package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/witw-events/server/internal/api"
	"github.com/witw-events/server/internal/auth"
	"github.com/witw-events/server/internal/config"
	"github.com/witw-events/server/internal/domain/events"
	"github.com/witw-events/server/internal/geocoding"
	"github.com/witw-events/server/internal/geocoding/nominatim"
	"github.com/witw-events/server/internal/metrics"
	"github.com/witw-events/server/internal/storage"
	"github.com/witw-events/server/internal/storage/memory"
	"github.com/witw-events/server/internal/storage/postgres"
	"github.com/witw-events/server/internal/telemetry"
)

const (
	dbConnectTimeout  = 10 * time.Second
	dbMetricsInterval = 15 * time.Second
	geocodingDisabled = "address lookup disabled"
	readHeaderTimeout = 5 * time.Second
	maxHeaderBytes    = 1 << 20
)

type serveOptions struct {
	*globalOptions
	host    string
	port    int
	memory  bool
	migrate bool
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{globalOptions: global}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and serve until SIGINT or SIGTERM.

Examples:
  # PostgreSQL from DATABASE_URL, applying pending migrations first
  server serve --migrate

  # No database; users and events live in memory
  server serve --memory --log-format console`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "", "listen host (overrides SERVER_HOST)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port (overrides SERVER_PORT)")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "keep users and events in memory instead of PostgreSQL")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("environment", cfg.Environment).
		Bool("memory", opts.memory).
		Msg("starting server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown")
		}
	}()

	codec, err := newCodec(cfg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var store storage.Repository
	if opts.memory {
		logger.Warn().Msg("in-memory store: data is lost on restart")
		store = memory.NewRepository()
	} else {
		pool, err := openPool(ctx, cfg, opts.migrate, logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		repo, err := postgres.NewRepository(pool)
		if err != nil {
			return err
		}
		store = repo

		collector := metrics.NewDBCollector(pool)
		g.Go(func() error { return collector.Run(gctx, dbMetricsInterval) })
	}

	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(gctx, api.Dependencies{
			Config:   cfg,
			Logger:   logger,
			Store:    store,
			Codec:    codec,
			Hasher:   auth.NewBcryptHasher(cfg.Auth.BcryptCost),
			Geocoder: newGeocoder(cfg.Geocoding, logger),
			Build:    api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
		}),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newCodec derives the token signing key from JWT_SECRET.
func newCodec(cfg config.Config) (*auth.JWTManager, error) {
	key, err := auth.DeriveSessionKey([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	codec, err := auth.NewJWTManager(key, cfg.Auth.JWTIssuer)
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}
	return codec, nil
}

func openPool(ctx context.Context, cfg config.Config, migrate bool, logger zerolog.Logger) (*pgxpool.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL is required unless --memory is set")
	}

	if migrate {
		if err := postgres.MigrateUp(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			return nil, err
		}
		logger.Info().Msg("migrations applied")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if cfg.Database.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	}

	connectCtx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

func newGeocoder(cfg config.GeocodingConfig, logger zerolog.Logger) events.AddressResolver {
	if !cfg.Enabled {
		return geocoding.StaticResolver(geocodingDisabled)
	}
	client := nominatim.NewClient(cfg.BaseURL, cfg.Email,
		nominatim.WithTimeouts(cfg.ConnectTimeout, cfg.ReadTimeout),
		nominatim.WithRateLimit(cfg.RateLimit),
	)
	return geocoding.NewResolver(client, logger,
		geocoding.WithLookupTimeout(cfg.ConnectTimeout+cfg.ReadTimeout),
	)
}
