package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/fixersapp/fixers-backend/api/responses"
	stripewebhook "github.com/fixersapp/fixers-backend/internal/webhooks/stripe"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
	"github.com/fixersapp/fixers-backend/pkg/logger"
)

// maxWebhookBodyBytes is far above any Stripe event; larger bodies get 413
// instead of being truncated into a signature failure.
const maxWebhookBodyBytes = 1 << 20

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (stripewebhook.Outcome, error)
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

type webhookMetrics interface {
	IncOutcome(eventType, outcome string)
	IncSignatureRejected()
}

type stripeWebhookAck struct {
	EventID string                `json:"event_id"`
	Type    string                `json:"type"`
	Outcome stripewebhook.Outcome `json:"outcome"`
}

// StripeWebhook verifies and applies Stripe badge payment events. Once the
// signature checks out the response is always 200 so Stripe stops retrying;
// business failures are logged and reported in the outcome field.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, metrics webhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodePayloadTooLarge, err, "webhook payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			rejectSignature(ctx, w, metrics, logg, pkgerrors.New(pkgerrors.CodeSignature, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			rejectSignature(ctx, w, metrics, logg, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "verify signature"))
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"stripe_event_id":   event.ID,
				"stripe_event_type": string(event.Type),
			})
		}
		ack := stripeWebhookAck{EventID: event.ID, Type: string(event.Type)}

		if guard != nil {
			seen, err := guard.CheckAndMark(ctx, event.ID)
			switch {
			case err != nil:
				// the state machine is idempotent on its own; carry on without the guard
				if logg != nil {
					logg.Warn(ctx, "stripe webhook idempotency guard unavailable: "+err.Error())
				}
			case seen:
				ack.Outcome = stripewebhook.OutcomeIgnoredDuplicate
				finish(ctx, w, metrics, logg, ack)
				return
			}
		}

		outcome, err := svc.HandleEvent(ctx, &event)
		if err != nil {
			if guard != nil {
				_ = guard.Delete(ctx, event.ID)
			}
			if logg != nil {
				logg.Error(ctx, "stripe webhook processing failed", err)
			}
			outcome = stripewebhook.OutcomeFailed
		}
		ack.Outcome = outcome
		finish(ctx, w, metrics, logg, ack)
	}
}

func rejectSignature(ctx context.Context, w http.ResponseWriter, metrics webhookMetrics, logg *logger.Logger, err error) {
	if metrics != nil {
		metrics.IncSignatureRejected()
	}
	responses.WriteError(ctx, logg, w, err)
}

func finish(ctx context.Context, w http.ResponseWriter, metrics webhookMetrics, logg *logger.Logger, ack stripeWebhookAck) {
	if metrics != nil {
		metrics.IncOutcome(ack.Type, string(ack.Outcome))
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "outcome", string(ack.Outcome)), "stripe event handled")
	}
	responses.WriteSuccess(w, ack)
}
