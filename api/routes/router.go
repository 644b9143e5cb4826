package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fixersapp/fixers-backend/api/controllers"
	webhookcontrollers "github.com/fixersapp/fixers-backend/api/controllers/webhooks"
	"github.com/fixersapp/fixers-backend/api/middleware"
	"github.com/fixersapp/fixers-backend/internal/badges"
	"github.com/fixersapp/fixers-backend/internal/commissions"
	"github.com/fixersapp/fixers-backend/internal/notifications"
	"github.com/fixersapp/fixers-backend/internal/vetting"
	stripewebhook "github.com/fixersapp/fixers-backend/internal/webhooks/stripe"
	"github.com/fixersapp/fixers-backend/pkg/config"
	"github.com/fixersapp/fixers-backend/pkg/db"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	"github.com/fixersapp/fixers-backend/pkg/logger"
	"github.com/fixersapp/fixers-backend/pkg/metrics"
	"github.com/fixersapp/fixers-backend/pkg/redis"
)

// redisClient is the slice of *redis.Client the router needs.
type redisClient interface {
	redis.Pinger
	redis.ResponseStore
}

type signingSecretProvider interface {
	SigningSecret() string
}

// Dependencies carries everything the HTTP surface is wired to.
type Dependencies struct {
	Config *config.Config
	Logger *logger.Logger

	DB    db.Pinger
	Redis redisClient

	Commissions   commissions.Service
	Vetting       vetting.Service
	Badges        badges.Service
	Notifications notifications.Service

	Stripe               signingSecretProvider
	StripeWebhookService webhookcontrollers.StripeWebhookService
	StripeWebhookGuard   *stripewebhook.IdempotencyGuard
	WebhookMetrics       *metrics.WebhookMetrics

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhookService, deps.Stripe, deps.StripeWebhookGuard, deps.WebhookMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Get("/badges", controllers.ListBadges(deps.Badges, logg))
		r.Route("/fixers/{fixerId}", func(r chi.Router) {
			r.Get("/badge-tier", controllers.FixerBadgeTier(deps.Badges, logg))
			r.Get("/top-performer", controllers.FixerTopPerformer(deps.Badges, logg))
		})

		r.Route("/agent", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAgent))
			r.Route("/commissions", func(r chi.Router) {
				r.Get("/", controllers.AgentCommissionList(deps.Commissions, logg))
				r.Get("/summary", controllers.AgentCommissionSummary(deps.Commissions, logg))
				r.Get("/analytics", controllers.AgentEarningsAnalytics(deps.Commissions, logg))
				r.Post("/withdraw", controllers.AgentWithdraw(deps.Commissions, logg))
			})
			r.Post("/fixers", controllers.AgentAssignFixer(deps.Vetting, logg))
			r.Post("/fixers/{fixerId}/vetting", controllers.AgentSubmitVetting(deps.Vetting, logg))
		})

		r.Route("/fixer", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleFixer))
			r.Get("/badges/{badgeId}/eligibility", controllers.FixerBadgeEligibility(deps.Badges, logg))
			r.Post("/badge-requests", controllers.FixerCreateBadgeRequest(deps.Badges, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Post("/orders/{orderId}/complete", controllers.AdminCompleteOrder(deps.Commissions, logg))
			r.Route("/vetting", func(r chi.Router) {
				r.Get("/", controllers.AdminPendingVetting(deps.Vetting, logg))
				r.Post("/{agentFixerId}/approve", controllers.AdminApproveVetting(deps.Vetting, logg))
				r.Post("/{agentFixerId}/reject", controllers.AdminRejectVetting(deps.Vetting, logg))
			})
			r.Route("/badge-requests/{requestId}", func(r chi.Router) {
				r.Post("/review", controllers.AdminStartBadgeReview(deps.Badges, logg))
				r.Post("/approve", controllers.AdminApproveBadgeRequest(deps.Badges, logg))
				r.Post("/reject", controllers.AdminRejectBadgeRequest(deps.Badges, logg))
			})
		})
	})

	return r
}
