package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/orderflow-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/orderflow-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/orderflow-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/orderflow-backend/api/controllers/payments"
	"github.com/angelmondragon/orderflow-backend/api/middleware"
	"github.com/angelmondragon/orderflow-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/orderflow-backend/internal/checkout"
	"github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/internal/payments/vnpay"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/redis"
)

// Services bundles the domain services the router exposes.
type Services struct {
	Cart     cart.Service
	Checkout checkoutsvc.Service
	Orders   orders.Service
	VNPay    vnpay.Service
}

// Stores are the shared backends the middleware and probes depend on.
type Stores struct {
	DB          controllers.Pinger
	RedisPinger controllers.Pinger
	Redis       *redis.Client
}

func NewRouter(cfg *config.Config, logg *logger.Logger, stores Stores, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	idempotencyStore, limiterStore := redisBackends(stores.Redis)
	idempotent := middleware.Idempotent(idempotencyStore, logg, middleware.DefaultIdempotencyTTL)
	critical := middleware.Idempotent(idempotencyStore, logg, middleware.CriticalIdempotencyTTL)
	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.Checkout.RateLimitWindow,
		cfg.Checkout.RateLimitPerWindow,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": stores.DB,
			"redis":    stores.RedisPinger,
		}))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/payments/vnpay/callback", paymentcontrollers.Callback(svc.VNPay, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.Get(svc.Cart, logg))
				r.Delete("/", cartcontrollers.Clear(svc.Cart, logg))
				r.With(idempotent).Post("/items", cartcontrollers.AddItem(svc.Cart, logg))
				r.Patch("/items/{itemId}", cartcontrollers.UpdateItem(svc.Cart, logg))
				r.Delete("/items/{itemId}", cartcontrollers.RemoveItem(svc.Cart, logg))
			})

			r.With(middleware.RateLimit(checkoutPolicy, limiterStore, logg), critical).
				Post("/checkout", controllers.Checkout(svc.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(svc.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Get(svc.Orders, logg))
				r.With(critical).Post("/{orderId}/cancel", ordercontrollers.Cancel(svc.Orders, logg))
				r.With(idempotent).Post("/{orderId}/payments/vnpay", paymentcontrollers.CreatePayment(svc.VNPay, logg))
			})

			r.Route("/seller/orders", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleSeller, enums.UserRoleAdmin))
				r.With(idempotent).Post("/{orderId}/{action}", ordercontrollers.SellerAction(svc.Orders, logg))
			})
		})
	})

	return r
}

// redisBackends returns untyped nils when redis is absent so the
// middleware's nil checks disable the feature instead of panicking.
func redisBackends(client *redis.Client) (middleware.IdempotencyStore, middleware.WindowLimiter) {
	if client == nil {
		return nil, nil
	}
	return client, client
}
