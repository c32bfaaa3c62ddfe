package main

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/kariteco/storefront-core/api/controllers"
	"github.com/kariteco/storefront-core/api/routes"
	"github.com/kariteco/storefront-core/internal/auth"
	"github.com/kariteco/storefront-core/internal/cart"
	"github.com/kariteco/storefront-core/internal/guestcart"
	"github.com/kariteco/storefront-core/internal/products"
	"github.com/kariteco/storefront-core/internal/users"
	"github.com/kariteco/storefront-core/pkg/auth/session"
	"github.com/kariteco/storefront-core/pkg/config"
	"github.com/kariteco/storefront-core/pkg/db"
	"github.com/kariteco/storefront-core/pkg/logger"
	"github.com/kariteco/storefront-core/pkg/mail"
	"github.com/kariteco/storefront-core/pkg/metrics"
	"github.com/kariteco/storefront-core/pkg/migrate"
	"github.com/kariteco/storefront-core/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	closers := []io.Closer{dbClient}
	defer func() {
		if err := closeAll(closers); err != nil {
			logg.Error(context.Background(), "error during shutdown", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	closers = append(closers, redisClient)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())

	tokenStore, err := auth.NewTokenStore(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create token store", err)
		os.Exit(1)
	}
	mailer := mail.NewService(cfg.Mail)
	if !mailer.Enabled() {
		logg.Warn(context.Background(), "mailgun credentials missing, transactional mail disabled")
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Tokens:         tokenStore,
		Mailer:         mailer,
		Logger:         logg,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:    cart.NewRepository(dbClient.DB()),
		Catalog: productsRepo,
		Config:  cfg.Cart,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	guestStore, err := guestcart.NewStore(redisClient, redisClient, cfg.Cart.GuestCartTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create guest cart store", err)
		os.Exit(1)
	}
	guestService, err := guestcart.NewService(guestcart.ServiceParams{
		Store:   guestStore,
		Catalog: productsRepo,
		Config:  cfg.Cart,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create guest cart service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:         cfg,
		Logger:         logg,
		Metrics:        metrics.NewHTTPMetrics(),
		SessionManager: sessionManager,
		RateLimiter:    redisClient,
		AuthService:    authService,
		CartService:    cartService,
		GuestCart:      guestService,
		ProductsRepo:   productsRepo,
		ReadyChecks:    []controllers.Pinger{dbClient, redisClient},
	})

	addr := ":" + cfg.App.Port
	ctx := logg.WithField(context.Background(), "addr", addr)
	logg.Info(ctx, "storefront api listening")

	if err := http.ListenAndServe(addr, router); err != nil {
		logg.Error(context.Background(), "server stopped", err)
		os.Exit(1)
	}
}

// closeAll shuts dependencies down in reverse order, collecting every error.
func closeAll(closers []io.Closer) error {
	var err error
	for i := len(closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, closers[i].Close())
	}
	return err
}
