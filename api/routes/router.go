package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forkline/forkline-backend/api/controllers"
	webhookcontrollers "github.com/forkline/forkline-backend/api/controllers/webhooks"
	"github.com/forkline/forkline-backend/api/middleware"
	cartsvc "github.com/forkline/forkline-backend/internal/cart"
	checkoutsvc "github.com/forkline/forkline-backend/internal/checkout"
	orderssvc "github.com/forkline/forkline-backend/internal/orders"
	stripewebhook "github.com/forkline/forkline-backend/internal/webhooks/stripe"
	"github.com/forkline/forkline-backend/pkg/config"
	"github.com/forkline/forkline-backend/pkg/db"
	"github.com/forkline/forkline-backend/pkg/logger"
	"github.com/forkline/forkline-backend/pkg/redis"
	"github.com/forkline/forkline-backend/pkg/stripe"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    redis.Pinger
	Registry *prometheus.Registry

	CartService     cartsvc.Service
	OrdersService   orderssvc.Service
	CheckoutService checkoutsvc.Service

	StripeClient *stripe.Client
	WebhookSvc   *stripewebhook.Service
	WebhookGuard *stripewebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.DB, p.Redis, p.Logger))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.WebhookSvc, p.StripeClient, p.WebhookGuard, p.Logger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(p.Config.JWT, p.Logger))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartList(p.CartService, p.Logger))
			r.Delete("/", controllers.CartClear(p.CartService, p.Logger))
			r.Post("/items", controllers.CartAddItem(p.CartService, p.Logger))
			r.Put("/items/{optionID}", controllers.CartSetItemQuantity(p.CartService, p.Logger))
			r.Delete("/items/{optionID}", controllers.CartRemoveItem(p.CartService, p.Logger))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/cart", controllers.CheckoutCart(p.CheckoutService, p.Logger))
			r.Post("/buy-now", controllers.BuyNow(p.CheckoutService, p.Logger))
			r.Post("/orders/{orderID}/retry", controllers.RetryOrder(p.CheckoutService, p.Logger))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(p.OrdersService, p.Logger))
			r.Get("/{orderID}", controllers.OrderGet(p.OrdersService, p.Logger))
		})
	})

	return r
}
