package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kariteco/storefront-core/api/controllers"
	"github.com/kariteco/storefront-core/api/middleware"
	"github.com/kariteco/storefront-core/internal/auth"
	"github.com/kariteco/storefront-core/internal/cart"
	"github.com/kariteco/storefront-core/internal/guestcart"
	"github.com/kariteco/storefront-core/internal/products"
	"github.com/kariteco/storefront-core/pkg/auth/session"
	"github.com/kariteco/storefront-core/pkg/config"
	"github.com/kariteco/storefront-core/pkg/logger"
	"github.com/kariteco/storefront-core/pkg/metrics"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RouterParams bundles everything the HTTP surface needs.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	Metrics        *metrics.HTTPMetrics
	SessionManager sessionManager
	RateLimiter    rateLimiterStore
	AuthService    auth.Service
	CartService    cart.Service
	GuestCart      guestcart.Service
	ProductsRepo   *products.Repository
	ReadyChecks    []controllers.Pinger
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)
	if p.Metrics != nil {
		r.Use(p.Metrics.Middleware())
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.ReadyChecks...))
	})

	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	limits := cfg.AuthRateLimit
	loginPolicy := middleware.NewAuthRateLimitPolicy("login", limits.LoginWindow, limits.LoginIPLimit, limits.LoginEmailLimit)
	registerPolicy := middleware.NewAuthRateLimitPolicy("register", limits.RegisterWindow, limits.RegisterIPLimit, limits.RegisterEmailLimit)
	forgotPolicy := middleware.NewAuthRateLimitPolicy("forgot", limits.ForgotWindow, limits.ForgotIPLimit, limits.ForgotEmailLimit)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, p.RateLimiter, logg)).
			Post("/register", controllers.AuthRegister(p.AuthService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, p.RateLimiter, logg)).
			Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.SessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.SessionManager, cfg.JWT, logg))
		r.With(middleware.AuthRateLimit(forgotPolicy, p.RateLimiter, logg)).
			Post("/forgot-password", controllers.AuthForgotPassword(p.AuthService, logg))
		r.Post("/reset-password", controllers.AuthResetPassword(p.AuthService, logg))
		r.Post("/verify-email", controllers.AuthVerifyEmail(p.AuthService, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductsList(p.ProductsRepo, logg))
		r.Get("/{productID}", controllers.ProductsGet(p.ProductsRepo, logg))
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionManager, logg))
		r.Get("/", controllers.CartGet(p.CartService, logg))
		r.Delete("/", controllers.CartClear(p.CartService, logg))
		r.Post("/items", controllers.CartAddItem(p.CartService, logg))
		r.Post("/items/bulk", controllers.CartBulkAdd(p.CartService, logg))
		r.Put("/items/{itemID}", controllers.CartUpdateItem(p.CartService, logg))
		r.Delete("/items/{itemID}", controllers.CartRemoveItem(p.CartService, logg))
	})

	r.Route("/api/v1/guest/cart", func(r chi.Router) {
		r.Use(middleware.GuestSession(logg))
		r.Get("/", controllers.GuestCartGet(p.GuestCart, logg))
		r.Delete("/", controllers.GuestCartClear(p.GuestCart, logg))
		r.Post("/items", controllers.GuestCartAddItem(p.GuestCart, logg))
		r.Put("/items/{itemID}", controllers.GuestCartUpdateItem(p.GuestCart, logg))
		r.Delete("/items/{itemID}", controllers.GuestCartRemoveItem(p.GuestCart, logg))
	})

	return r
}
