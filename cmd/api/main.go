package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gharbazaar/backend/api/routes"
	"github.com/gharbazaar/backend/internal/entitlements"
	"github.com/gharbazaar/backend/internal/ledger"
	"github.com/gharbazaar/backend/internal/listings"
	"github.com/gharbazaar/backend/internal/memberships"
	"github.com/gharbazaar/backend/internal/notifications"
	corepayments "github.com/gharbazaar/backend/internal/payments"
	"github.com/gharbazaar/backend/internal/plans"
	"github.com/gharbazaar/backend/internal/users"
	"github.com/gharbazaar/backend/internal/webhooks"
	razorpaywebhook "github.com/gharbazaar/backend/internal/webhooks/razorpay"
	stripewebhook "github.com/gharbazaar/backend/internal/webhooks/stripe"
	"github.com/gharbazaar/backend/pkg/config"
	"github.com/gharbazaar/backend/pkg/db"
	"github.com/gharbazaar/backend/pkg/logger"
	"github.com/gharbazaar/backend/pkg/metrics"
	"github.com/gharbazaar/backend/pkg/migrate"
	"github.com/gharbazaar/backend/pkg/razorpay"
	"github.com/gharbazaar/backend/pkg/redis"
	pkgstripe "github.com/gharbazaar/backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "payments-api"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "payments-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(promRegistry)

	mailer := notifications.NewMailer(cfg.SMTP, logg)

	planRepo := plans.NewRepository(dbClient.DB())
	membershipRepo := memberships.NewRepository(dbClient.DB())
	listingRepo := listings.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())

	planService, err := plans.NewService(planRepo)
	if err != nil {
		logg.Error(ctx, "failed to create plan service", err)
		os.Exit(1)
	}
	membershipService, err := memberships.NewService(membershipRepo)
	if err != nil {
		logg.Error(ctx, "failed to create membership service", err)
		os.Exit(1)
	}
	ledgerService, err := ledger.NewService(ledgerRepo)
	if err != nil {
		logg.Error(ctx, "failed to create ledger service", err)
		os.Exit(1)
	}
	entitlementService, err := entitlements.NewService(planRepo, membershipRepo, listingRepo, userRepo, mailer, logg)
	if err != nil {
		logg.Error(ctx, "failed to create entitlement service", err)
		os.Exit(1)
	}

	razorpayClient, err := razorpay.NewClient(ctx, cfg.Razorpay, logg)
	if err != nil {
		logg.Error(ctx, "failed to create razorpay client", err)
		os.Exit(1)
	}
	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to create stripe client", err)
		os.Exit(1)
	}

	razorpayGateway, err := corepayments.NewRazorpayGateway(razorpayClient)
	if err != nil {
		logg.Error(ctx, "failed to create razorpay gateway", err)
		os.Exit(1)
	}
	stripeGateway, err := corepayments.NewStripeGateway(stripeClient, nil)
	if err != nil {
		logg.Error(ctx, "failed to create stripe gateway", err)
		os.Exit(1)
	}
	registry, err := corepayments.NewRegistry(razorpayGateway, stripeGateway)
	if err != nil {
		logg.Error(ctx, "failed to create gateway registry", err)
		os.Exit(1)
	}

	intentBuilder, err := corepayments.NewIntentBuilder(planService)
	if err != nil {
		logg.Error(ctx, "failed to create intent builder", err)
		os.Exit(1)
	}
	orderService, err := corepayments.NewOrderService(intentBuilder, registry, logg)
	if err != nil {
		logg.Error(ctx, "failed to create order service", err)
		os.Exit(1)
	}
	verifier, err := corepayments.NewVerifier(registry, ledgerService, entitlementService, userRepo, mailer, paymentMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create payment verifier", err)
		os.Exit(1)
	}

	razorpayWebhookService, err := razorpaywebhook.NewService(razorpaywebhook.ServiceParams{
		Ledger:       ledgerService,
		Entitlements: entitlementService,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create razorpay webhook service", err)
		os.Exit(1)
	}
	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Ledger:       ledgerService,
		Entitlements: entitlementService,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create stripe webhook service", err)
		os.Exit(1)
	}
	razorpayWebhookGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, "razorpay")
	if err != nil {
		logg.Error(ctx, "failed to create razorpay webhook guard", err)
		os.Exit(1)
	}
	stripeWebhookGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, "stripe")
	if err != nil {
		logg.Error(ctx, "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting payments api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promRegistry,
			paymentMetrics,
			planService,
			membershipService,
			orderService,
			verifier,
			userRepo,
			razorpayClient,
			stripeClient,
			razorpayWebhookService,
			razorpayWebhookGuard,
			stripeWebhookService,
			stripeWebhookGuard,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(startCtx, "payments api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		sigCtx := logg.WithField(ctx, "signal", sig.String())
		logg.Info(sigCtx, "shutting down payments api server")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(sigCtx, "graceful shutdown failed", err)
		}
	}
}
