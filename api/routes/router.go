package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	healthcontrollers "github.com/gharbazaar/backend/api/controllers/health"
	membershipcontrollers "github.com/gharbazaar/backend/api/controllers/memberships"
	paymentcontrollers "github.com/gharbazaar/backend/api/controllers/payments"
	plancontrollers "github.com/gharbazaar/backend/api/controllers/plans"
	webhookcontrollers "github.com/gharbazaar/backend/api/controllers/webhooks"
	"github.com/gharbazaar/backend/api/middleware"
	"github.com/gharbazaar/backend/internal/memberships"
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
	"github.com/gharbazaar/backend/pkg/razorpay"
	"github.com/gharbazaar/backend/pkg/redis"
	pkgstripe "github.com/gharbazaar/backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	paymentMetrics *metrics.PaymentMetrics,
	planService plans.Service,
	membershipService memberships.Service,
	orderService *corepayments.OrderService,
	verifier *corepayments.Verifier,
	userRepo *users.Repository,
	razorpayClient *razorpay.Client,
	stripeClient *pkgstripe.Client,
	razorpayWebhookService *razorpaywebhook.Service,
	razorpayWebhookGuard *webhooks.IdempotencyGuard,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *webhooks.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	paymentPolicy := middleware.NewPaymentRateLimitPolicy(
		"payments",
		cfg.PaymentRateLimit.Window,
		cfg.PaymentRateLimit.IPLimit,
		cfg.PaymentRateLimit.UserLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", healthcontrollers.Live())
		r.Get("/ready", healthcontrollers.Ready(dbP, redisClient, logg))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	// Webhooks authenticate by provider signature, not by bearer token, and
	// are never throttled.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(razorpayWebhookService, razorpayClient, razorpayWebhookGuard, paymentMetrics, logg))
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, paymentMetrics, logg))
	})

	r.Get("/api/v1/plans", plancontrollers.Catalog(planService, logg))

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.PaymentRateLimit(paymentPolicy, redisClient, logg))
		r.Post("/{provider}/order", paymentcontrollers.CreateOrder(orderService, userRepo, logg))
		r.Post("/{provider}/verify", paymentcontrollers.VerifyPayment(verifier, logg))
	})

	r.Route("/api/v1/memberships", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/me", membershipcontrollers.Me(membershipService, logg))
	})

	r.Route("/api/admin/v1/plans", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))
		r.Get("/", plancontrollers.List(planService, logg))
		r.Post("/", plancontrollers.Create(planService, logg))
		r.Patch("/{planID}", plancontrollers.Update(planService, logg))
		r.Patch("/{planID}/status", plancontrollers.SetStatus(planService, logg))
	})

	return r
}
