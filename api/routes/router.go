package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hasanarpat/memento-mori/api/controllers"
	cartcontrollers "github.com/hasanarpat/memento-mori/api/controllers/cart"
	ordercontrollers "github.com/hasanarpat/memento-mori/api/controllers/orders"
	"github.com/hasanarpat/memento-mori/api/middleware"
	"github.com/hasanarpat/memento-mori/internal/auth"
	"github.com/hasanarpat/memento-mori/internal/cart"
	checkoutsvc "github.com/hasanarpat/memento-mori/internal/checkout"
	"github.com/hasanarpat/memento-mori/internal/content"
	"github.com/hasanarpat/memento-mori/internal/coupons"
	"github.com/hasanarpat/memento-mori/internal/orders"
	"github.com/hasanarpat/memento-mori/internal/products"
	"github.com/hasanarpat/memento-mori/internal/wishlist"
	"github.com/hasanarpat/memento-mori/pkg/auth/session"
	"github.com/hasanarpat/memento-mori/pkg/config"
	"github.com/hasanarpat/memento-mori/pkg/db"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	"github.com/hasanarpat/memento-mori/pkg/logger"
	"github.com/hasanarpat/memento-mori/pkg/metrics"
	"github.com/hasanarpat/memento-mori/pkg/redis"
)

// RouterDeps carries everything the HTTP surface needs. Nil services answer
// 500 on their routes instead of panicking.
type RouterDeps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Sessions    session.AccessSessionChecker
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Auth     auth.Service
	Products products.Service
	Content  content.Service
	Coupons  coupons.Service
	Cart     cart.Service
	Wishlist wishlist.Service
	Checkout checkoutsvc.Service
	Orders   orders.Service
}

func NewRouter(deps RouterDeps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	requireAuth := middleware.Auth(cfg.JWT, deps.Sessions, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, deps.Sessions, logg)
	// A nil *redis.Client must reach the middleware as a nil interface.
	var (
		limiter middleware.RateLimitStore
		replays middleware.IdempotencyStore
	)
	if deps.Redis != nil {
		limiter, replays = deps.Redis, deps.Redis
	}
	idempotent := middleware.Idempotency(replays, cfg.Shop.IdempotencyTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(deps)))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, limiter, logg)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
		r.Post("/verify-email", controllers.AuthVerifyEmail(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
			r.Get("/me", controllers.AuthMe(deps.Auth, logg))
		})
	})

	r.Route("/api/shop", func(r chi.Router) {
		r.Get("/products", controllers.ProductList(deps.Products, logg))
		r.Get("/search", controllers.ProductSearch(deps.Products, logg))
		r.Get("/products/{slug}", controllers.ProductDetail(deps.Products, logg))
		r.Get("/categories", controllers.CategoryList(deps.Content, logg))
		r.Get("/categories/{slug}", controllers.CategoryDetail(deps.Content, logg))
		r.Get("/coupons", controllers.CouponList(deps.Coupons, logg))

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Post("/validate-coupon", controllers.CouponValidate(deps.Coupons, logg))
			r.With(idempotent).Post("/checkout", controllers.Checkout(deps.Checkout, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/cart", cartcontrollers.CartFetch(deps.Cart, logg))
			r.Post("/cart", cartcontrollers.CartReplace(deps.Cart, logg))
			r.Post("/cart/merge", cartcontrollers.CartMerge(deps.Cart, logg))
			r.Get("/wishlist", controllers.WishlistFetch(deps.Wishlist, logg))
			r.Post("/wishlist", controllers.WishlistSet(deps.Wishlist, logg))
			r.Post("/wishlist/{productId}", controllers.WishlistAdd(deps.Wishlist, logg))
			r.Delete("/wishlist/{productId}", controllers.WishlistRemove(deps.Wishlist, logg))
		})
	})

	r.Route("/api/content", func(r chi.Router) {
		r.Get("/pages/{slug}", controllers.PageDetail(deps.Content, logg))
		r.Get("/testimonials", controllers.TestimonialList(deps.Content, logg))
		r.Get("/reels", controllers.ReelList(deps.Content, logg))
	})

	r.Route("/api/account", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/orders", ordercontrollers.AccountList(deps.Orders, logg))
		r.Get("/orders/{orderId}", ordercontrollers.AccountDetail(deps.Orders, logg))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Get("/orders", ordercontrollers.AdminList(deps.Orders, logg))
		r.With(idempotent).Patch("/orders/{orderId}/status", ordercontrollers.AdminUpdateStatus(deps.Orders, logg))
	})

	return r
}

func readinessDeps(deps RouterDeps) map[string]controllers.Pinger {
	out := map[string]controllers.Pinger{}
	if deps.DB != nil {
		out["database"] = deps.DB
	}
	if deps.Redis != nil {
		out["redis"] = deps.Redis
	}
	return out
}
