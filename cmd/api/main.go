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

	"github.com/hasanarpat/memento-mori/api/routes"
	"github.com/hasanarpat/memento-mori/internal/auth"
	"github.com/hasanarpat/memento-mori/internal/cart"
	"github.com/hasanarpat/memento-mori/internal/checkout"
	"github.com/hasanarpat/memento-mori/internal/content"
	"github.com/hasanarpat/memento-mori/internal/coupons"
	"github.com/hasanarpat/memento-mori/internal/orders"
	"github.com/hasanarpat/memento-mori/internal/products"
	"github.com/hasanarpat/memento-mori/internal/users"
	"github.com/hasanarpat/memento-mori/internal/wishlist"
	"github.com/hasanarpat/memento-mori/pkg/auth/session"
	"github.com/hasanarpat/memento-mori/pkg/config"
	"github.com/hasanarpat/memento-mori/pkg/db"
	"github.com/hasanarpat/memento-mori/pkg/logger"
	"github.com/hasanarpat/memento-mori/pkg/mailer"
	"github.com/hasanarpat/memento-mori/pkg/metrics"
	"github.com/hasanarpat/memento-mori/pkg/migrate"
	"github.com/hasanarpat/memento-mori/pkg/outbox"
	"github.com/hasanarpat/memento-mori/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)
	shopMetrics := metrics.NewShopMetrics(registry)

	deps, err := buildServices(cfg, logg, dbClient, redisClient, sessionManager, shopMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.Config = cfg
	deps.Logger = logg
	deps.DB = dbClient
	deps.Redis = redisClient
	deps.Sessions = sessionManager
	deps.Gatherer = registry
	deps.HTTPMetrics = httpMetrics

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	shopMetrics *metrics.ShopMetrics,
) (routes.RouterDeps, error) {
	conn := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)
	mail := mailer.New(cfg.Mail, logg)
	productRepo := products.NewRepository(conn)

	authService, err := auth.NewService(auth.ServiceParams{
		Tx:             dbClient,
		Users:          users.NewRepository(conn),
		SessionManager: sessionManager,
		Tokens:         redisClient,
		Outbox:         outboxService,
		Mailer:         mail,
		Logger:         logg,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		AuthConfig:     cfg.Auth,
		PublicURL:      cfg.App.PublicURL,
	})
	if err != nil {
		return routes.RouterDeps{}, err
	}

	productService, err := products.NewService(productRepo, cfg.Shop)
	if err != nil {
		return routes.RouterDeps{}, err
	}

	contentService, err := content.NewService(content.NewRepository(conn))
	if err != nil {
		return routes.RouterDeps{}, err
	}

	couponService, err := coupons.NewService(coupons.NewRepository(conn), shopMetrics)
	if err != nil {
		return routes.RouterDeps{}, err
	}

	cartService, err := cart.NewService(cart.NewRepository(conn), productRepo, dbClient, logg)
	if err != nil {
		return routes.RouterDeps{}, err
	}

	wishlistService, err := wishlist.NewService(wishlist.NewRepository(conn), productRepo, dbClient)
	if err != nil {
		return routes.RouterDeps{}, err
	}

	orderRepo := orders.NewRepository(conn)
	checkoutService, err := checkout.NewService(checkout.Deps{
		Tx:       dbClient,
		Orders:   orderRepo,
		Products: productRepo,
		Coupons:  couponService,
		Outbox:   outboxService,
		Cart:     cartService,
		Mailer:   mail,
		Metrics:  shopMetrics,
		Logger:   logg,
		Shop:     cfg.Shop,
	})
	if err != nil {
		return routes.RouterDeps{}, err
	}

	orderService, err := orders.NewService(orderRepo, dbClient, outboxService, productRepo, logg)
	if err != nil {
		return routes.RouterDeps{}, err
	}

	return routes.RouterDeps{
		Auth:     authService,
		Products: productService,
		Content:  contentService,
		Coupons:  couponService,
		Cart:     cartService,
		Wishlist: wishlistService,
		Checkout: checkoutService,
		Orders:   orderService,
	}, nil
}
