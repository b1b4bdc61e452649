package app

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/barflow/barflow/internal/domain/auth"
	"github.com/barflow/barflow/internal/domain/order"
	"github.com/barflow/barflow/internal/handler"
	"github.com/barflow/barflow/internal/payment/stripe"
	"github.com/barflow/barflow/internal/recipegen"
	"github.com/barflow/barflow/internal/storage/postgres"
	"github.com/barflow/barflow/pkg/health"
	"github.com/barflow/barflow/pkg/httpmiddleware"
)

const serviceName = "barflow-api"

// Telemetry provides the OpenTelemetry providers. *app.Telemetry from
// go-faster/sdk satisfies it.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Env,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return errors.Wrap(err, "init sentry")
		}
		defer sentry.Flush(2 * time.Second)
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	if cfg.Recipes.HealthURL != "" {
		healthSvc.AddReadinessCheck("recipes", 5*time.Second,
			health.HTTPCheck(&http.Client{Timeout: 5 * time.Second}, cfg.Recipes.HealthURL))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	barRepo := postgres.NewBarRepository(pool)
	drinkRepo := postgres.NewDrinkRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// Outbound services.
	payments, err := stripe.New(stripe.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
	if err != nil {
		return errors.Wrap(err, "create payment provider")
	}
	recipes, err := recipegen.New(cfg.Recipes.BaseURL,
		recipegen.WithTimeout(cfg.Recipes.Timeout),
		recipegen.WithMaxRetries(cfg.Recipes.MaxRetries),
		recipegen.WithTracerProvider(m.TracerProvider()),
		recipegen.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create recipe client")
	}
	authn, err := auth.New(cfg.AuthenticatorConfig())
	if err != nil {
		return errors.Wrap(err, "create authenticator")
	}
	if cfg.Auth.Mode == string(auth.ModeDev) {
		lg.Warn("Dev auth bypass enabled", zap.String("role", cfg.Auth.DevRole))
	}

	// Domain services.
	orderService, err := order.NewService(barRepo, drinkRepo, orderRepo, payments,
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// HTTP handlers.
	h := handler.NewHandler(barRepo, drinkRepo, orderService, payments, recipes, authn)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/v1/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Recipe generation may take the full upstream deadline plus retries.
		WriteTimeout:   cfg.Recipes.Timeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.Sentry(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   handler.IsWebhook,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		healthSvc.Stop()
		return nil
	})
	return g.Wait()
}
