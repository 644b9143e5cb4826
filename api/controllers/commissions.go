package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fixersapp/fixers-backend/api/responses"
	"github.com/fixersapp/fixers-backend/api/validators"
	"github.com/fixersapp/fixers-backend/internal/commissions"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
	"github.com/fixersapp/fixers-backend/pkg/logger"
	"github.com/fixersapp/fixers-backend/pkg/pagination"
)

const (
	defaultAnalyticsMonths = 6
	maxAnalyticsMonths     = 24
)

type withdrawRequest struct {
	CommissionIDs []string        `json:"commission_ids" validate:"required,min=1,max=500,dive,uuid"`
	Amount        decimal.Decimal `json:"amount"`
}

type completeOrderRequest struct {
	AgentFixerID string          `json:"agent_fixer_id" validate:"required,uuid"`
	Amount       decimal.Decimal `json:"amount"`
}

// AgentCommissionSummary returns the wallet and earnings totals of the calling agent.
func AgentCommissionSummary(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commissions service unavailable"))
			return
		}
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.GetAgentCommissionSummary(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func AgentEarningsAnalytics(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commissions service unavailable"))
			return
		}
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		months, err := validators.ParseQueryInt(r, "months", defaultAnalyticsMonths, 1, maxAnalyticsMonths)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		analytics, err := svc.GetAgentEarningsAnalytics(r.Context(), userID, months)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, analytics)
	}
}

// AgentCommissionList pages through the agent's ledger, newest first.
func AgentCommissionList(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commissions service unavailable"))
			return
		}
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		params := commissions.ListParams{
			AgentUserID: userID,
			Limit:       limit,
			Cursor:      strings.TrimSpace(query.Get("cursor")),
		}
		if raw := strings.TrimSpace(query.Get("type")); raw != "" {
			kind, err := enums.ParseCommissionType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid commission type"))
				return
			}
			params.Type = &kind
		}
		if params.IsPaid, err = validators.ParseQueryBool(r, "isPaid"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListCommissions(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AgentWithdraw debits the wallet and marks the listed commissions paid.
func AgentWithdraw(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commissions service unavailable"))
			return
		}
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body withdrawRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, err := parseUUIDs(body.CommissionIDs, "commission_ids")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.MarkCommissionsAsPaid(r.Context(), commissions.MarkPaidInput{
			AgentUserID:      userID,
			CommissionIDs:    ids,
			WithdrawalAmount: body.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminCompleteOrder runs the commission pipeline for a completed order.
func AdminCompleteOrder(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commissions service unavailable"))
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body completeOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, err := parseUUIDs([]string{body.AgentFixerID}, "agent_fixer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ProcessCompletedOrder(r.Context(), commissions.CompletedOrderInput{
			OrderID:      orderID,
			AgentFixerID: ids[0],
			OrderAmount:  body.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
