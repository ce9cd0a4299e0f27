package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/IT-Gio/ShopElec/internal/domain/checkout"
	"github.com/IT-Gio/ShopElec/internal/domain/coupon"
	"github.com/IT-Gio/ShopElec/internal/domain/payment"
	"github.com/IT-Gio/ShopElec/internal/domain/review"
	"github.com/IT-Gio/ShopElec/internal/handler"
	"github.com/IT-Gio/ShopElec/internal/identity"
	"github.com/IT-Gio/ShopElec/internal/notify"
	paymentgw "github.com/IT-Gio/ShopElec/internal/payment"
	"github.com/IT-Gio/ShopElec/internal/storage/postgres"
	"github.com/IT-Gio/ShopElec/pkg/health"
	"github.com/IT-Gio/ShopElec/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("payment_provider", cfg.Payment.Provider),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New(lg.Named("health"))
	healthSvc.Register(health.Readiness, "postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.Register(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))

	gateway, err := newGateway(cfg.Payment, lg)
	if err != nil {
		return err
	}

	var notifier checkout.Notifier = notify.NewLogNotifier(lg.Named("notify"), cfg.Notify.From)
	if cfg.Notify.AMQPURL != "" {
		publisher, err := notify.DialAMQP(notify.AMQPConfig{
			URL:        cfg.Notify.AMQPURL,
			Exchange:   cfg.Notify.Exchange,
			RoutingKey: cfg.Notify.RoutingKey,
			Queue:      cfg.Notify.Queue,
			From:       cfg.Notify.From,
		})
		if err != nil {
			return errors.Wrap(err, "connect notifications broker")
		}
		defer func() { _ = publisher.Close() }()
		healthSvc.Register(health.Readiness, "amqp", time.Second, publisher.Check)
		notifier = publisher
	}

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	reviewRepo := postgres.NewReviewRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)

	// Domain services.
	checkoutSvc := checkout.NewService(checkout.Dependencies{
		Coupons:        coupon.NewValidator(couponRepo),
		Catalog:        productRepo,
		Orders:         orderRepo,
		Gateway:        gateway,
		Sessions:       sessionRepo,
		Carts:          cartRepo,
		Notifier:       notifier,
		Currency:       cfg.Payment.Currency,
		TracerProvider: m.TracerProvider(),
	})
	reviewSvc := review.NewService(productRepo, orderRepo, reviewRepo)

	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})
	h, err := handler.NewHandler(
		handler.Config{
			SessionTTL:    cfg.Session.TTL,
			SecureCookies: cfg.Session.SecureCookies,
			CheckoutLimit: limiter.Middleware(),
		},
		checkoutSvc,
		reviewSvc,
		identity.NewVerifier(cfg.Auth.JWTSecret),
		m.MeterProvider(),
	)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}
	instrument, err := httpmiddleware.Instrument("shop-api", m)
	if err != nil {
		return errors.Wrap(err, "create instrumentation")
	}

	// Router: health endpoints + API routes on one server.
	mux := chi.NewRouter()
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)
	mux.Mount("/", h.Router())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Covers a full gateway round trip on completion.
		WriteTimeout:   cfg.Payment.Timeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.SessionHeader},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			instrument,
			httpmiddleware.LogRequests(),
		),
	}

	g, ctx := errgroup.WithContext(ctx)
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	g.Go(func() error {
		limiter.Run(ctx)
		return nil
	})
	g.Go(func() error {
		sweepSessions(ctx, lg, sessionRepo, cfg.Session)
		return nil
	})

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
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
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

func newGateway(cfg PaymentConfig, lg *zap.Logger) (payment.Gateway, error) {
	if cfg.Provider != "stripe" {
		lg.Warn("Using sandbox payment gateway, payments always succeed")
		return paymentgw.NewSandbox(), nil
	}
	gw, err := paymentgw.NewStripeGateway(paymentgw.StripeConfig{
		SecretKey: cfg.StripeSecretKey,
		Timeout:   cfg.Timeout,
		BaseURL:   cfg.StripeBaseURL,
	}, lg.Named("stripe"))
	if err != nil {
		return nil, errors.Wrap(err, "create stripe gateway")
	}
	return gw, nil
}

type staleSessions interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// sweepSessions deletes sessions idle for longer than the session TTL.
func sweepSessions(ctx context.Context, lg *zap.Logger, sessions staleSessions, cfg SessionConfig) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := sessions.DeleteStale(ctx, now.UTC().Add(-cfg.TTL))
			if err != nil {
				lg.Warn("Sweep stale sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Debug("Stale sessions deleted", zap.Int64("count", n))
			}
		}
	}
}
