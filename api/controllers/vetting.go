package controllers

import (
	"net/http"
	"strings"

	"github.com/fixersapp/fixers-backend/api/responses"
	"github.com/fixersapp/fixers-backend/api/validators"
	"github.com/fixersapp/fixers-backend/internal/vetting"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
	"github.com/fixersapp/fixers-backend/pkg/logger"
	"github.com/fixersapp/fixers-backend/pkg/pagination"
)

type assignFixerRequest struct {
	FixerID string `json:"fixer_id" validate:"required,uuid"`
}

type vettingNotesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type vettingRejectRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// AgentAssignFixer adds a fixer to the calling agent's roster.
func AgentAssignFixer(svc vetting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vetting service unavailable"))
			return
		}
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body assignFixerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, err := parseUUIDs([]string{body.FixerID}, "fixer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rel, err := svc.AssignFixer(r.Context(), vetting.AssignFixerInput{AgentUserID: userID, FixerID: ids[0]})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, rel)
	}
}

func AgentSubmitVetting(svc vetting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vetting service unavailable"))
			return
		}
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fixerID, err := pathUUID(r, "fixerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body vettingNotesRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rel, err := svc.SubmitFixerForVetting(r.Context(), vetting.SubmitInput{
			AgentUserID: userID,
			FixerID:     fixerID,
			Notes:       validators.SanitizeString(body.Notes, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rel)
	}
}

// AdminPendingVetting lists submitted relationships waiting for a decision, oldest first.
func AdminPendingVetting(svc vetting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vetting service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListPendingVetting(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminApproveVetting(svc vetting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vetting service unavailable"))
			return
		}
		input, err := decisionInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body vettingNotesRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.Reason = validators.SanitizeString(body.Notes, 2000)
		rel, err := svc.ApproveVettedFixer(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rel)
	}
}

func AdminRejectVetting(svc vetting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vetting service unavailable"))
			return
		}
		input, err := decisionInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body vettingRejectRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.Reason = validators.SanitizeString(body.Reason, 2000)
		rel, err := svc.RejectVettedFixer(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rel)
	}
}

func decisionInput(r *http.Request) (vetting.DecisionInput, error) {
	adminID, err := actorID(r)
	if err != nil {
		return vetting.DecisionInput{}, err
	}
	relID, err := pathUUID(r, "agentFixerId")
	if err != nil {
		return vetting.DecisionInput{}, err
	}
	return vetting.DecisionInput{AgentFixerID: relID, AdminUserID: adminID}, nil
}
