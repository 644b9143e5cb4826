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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fixersapp/fixers-backend/api/routes"
	"github.com/fixersapp/fixers-backend/internal/badges"
	"github.com/fixersapp/fixers-backend/internal/commissions"
	"github.com/fixersapp/fixers-backend/internal/notifications"
	"github.com/fixersapp/fixers-backend/internal/vetting"
	stripewebhook "github.com/fixersapp/fixers-backend/internal/webhooks/stripe"
	"github.com/fixersapp/fixers-backend/pkg/config"
	"github.com/fixersapp/fixers-backend/pkg/db"
	"github.com/fixersapp/fixers-backend/pkg/instance"
	"github.com/fixersapp/fixers-backend/pkg/logger"
	"github.com/fixersapp/fixers-backend/pkg/mailer"
	"github.com/fixersapp/fixers-backend/pkg/metrics"
	"github.com/fixersapp/fixers-backend/pkg/migrate"
	"github.com/fixersapp/fixers-backend/pkg/redis"
	"github.com/fixersapp/fixers-backend/pkg/stripe"
)

const (
	webhookIdempotencyScope = "stripe-webhook"
	shutdownTimeout         = 15 * time.Second
)

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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Repo:       notificationsRepo,
		Mailer:     mailer.New(cfg.SMTP, logg),
		AdminEmail: cfg.Notifications.AdminEmail,
		Logger:     logg,
	})
	requireService(logg, "notification dispatcher", err)

	notificationsService, err := notifications.NewService(notificationsRepo)
	requireService(logg, "notifications service", err)

	commissionsService, err := commissions.NewService(commissions.ServiceParams{
		Repo:     commissions.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Notifier: dispatcher,
		Logger:   logg,
	})
	requireService(logg, "commissions service", err)

	vettingService, err := vetting.NewService(vetting.ServiceParams{
		Repo:     vetting.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Notifier: dispatcher,
		Logger:   logg,
	})
	requireService(logg, "vetting service", err)

	badgesService, err := badges.NewService(badges.ServiceParams{
		Repo:                badges.NewRepository(dbClient.DB()),
		Tx:                  dbClient,
		Payments:            stripeClient,
		Notifier:            dispatcher,
		Logger:              logg,
		TopPerformerPercent: cfg.Badges.TopPerformerPercent,
	})
	requireService(logg, "badges service", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Repo:              stripewebhook.NewRepository(dbClient.DB()),
		Tx:                dbClient,
		Notifier:          dispatcher,
		Payments:          stripeClient,
		Logger:            logg,
		MaxFailedAttempts: cfg.Badges.MaxFailedPaymentAttempts,
	})
	requireService(logg, "stripe webhook service", err)

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Badges.WebhookIdempotencyTTL, webhookIdempotencyScope)
	requireService(logg, "stripe webhook idempotency guard", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:               cfg,
			Logger:               logg,
			DB:                   dbClient,
			Redis:                redisClient,
			Commissions:          commissionsService,
			Vetting:              vettingService,
			Badges:               badgesService,
			Notifications:        notificationsService,
			Stripe:               stripeClient,
			StripeWebhookService: webhookService,
			StripeWebhookGuard:   webhookGuard,
			WebhookMetrics:       metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
			MetricsHandler:       promhttp.Handler(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name, err)
	os.Exit(1)
}
