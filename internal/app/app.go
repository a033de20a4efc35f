// Package app wires the settlement service together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/pos-settlement/internal/domain/sale"
	"github.com/xenking/pos-settlement/internal/handler"
	"github.com/xenking/pos-settlement/internal/idempotency"
	"github.com/xenking/pos-settlement/internal/storage/memory"
	"github.com/xenking/pos-settlement/internal/storage/postgres"
	"github.com/xenking/pos-settlement/pkg/health"
	"github.com/xenking/pos-settlement/pkg/httpmiddleware"
)

// store is a sale unit of work that can report its availability.
type store interface {
	sale.Store
	health.Pinger
}

// openStore returns the postgres store, or the in-memory store when no
// database is configured.
func openStore(ctx context.Context, lg *zap.Logger, cfg *Config) (store, func(), error) {
	if cfg.DatabaseURL == "" {
		lg.Warn("No database configured, using in-memory store")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "run migrations")
	}
	return postgres.NewStore(pool), pool.Close, nil
}

// openIdempotency returns the redis-backed replay store, or a no-op store
// when redis is not configured.
func openIdempotency(ctx context.Context, cfg *Config) (idempotency.Store, *idempotency.Redis, error) {
	if cfg.Redis.Addr == "" {
		return idempotency.Noop{}, nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	r := idempotency.NewRedis(client, cfg.Idempotency.TTL)
	if err := r.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "ping redis")
	}
	return r, r, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	st, closeStore, err := openStore(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	idem, rdb, err := openIdempotency(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("store", 5*time.Second, health.PingCheck(st))
	if rdb != nil {
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(rdb))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	sales, err := sale.NewService(st, m.TracerProvider(), m.MeterProvider(), time.Now)
	if err != nil {
		return errors.Wrap(err, "create sale service")
	}

	router := handler.NewRouter(handler.NewHandler(sales, idem), handler.Routes{
		Security: handler.NewSecurityHandler([]byte(cfg.JWTSecret)),
		Health:   healthSvc,
		SaleLimit: httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins: cfg.CORS.Origins,
				Headers: []string{"Content-Type", "Authorization", handler.HeaderIdempotencyKey, httpmiddleware.HeaderRequestID},
				MaxAge:  cfg.CORS.MaxAge,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			func(next http.Handler) http.Handler {
				return otelhttp.NewHandler(next, "pos-api",
					otelhttp.WithTracerProvider(m.TracerProvider()),
					otelhttp.WithMeterProvider(m.MeterProvider()),
				)
			},
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
