package controllers

import (
	"net/http"

	"github.com/fixersapp/fixers-backend/api/responses"
	"github.com/fixersapp/fixers-backend/api/validators"
	"github.com/fixersapp/fixers-backend/internal/badges"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
	"github.com/fixersapp/fixers-backend/pkg/logger"
)

type createBadgeRequestBody struct {
	BadgeID string `json:"badge_id" validate:"required,uuid"`
}

type badgeReviewBody struct {
	Notes string `json:"notes" validate:"max=2000"`
}

func ListBadges(svc badges.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "badges service unavailable"))
			return
		}
		rows, err := svc.ListBadges(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// FixerBadgeTier returns the public tier of any fixer.
func FixerBadgeTier(svc badges.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "badges service unavailable"))
			return
		}
		fixerID, err := pathUUID(r, "fixerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tier, err := svc.GetFixerBadgeTier(r.Context(), fixerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tier)
	}
}

func FixerTopPerformer(svc badges.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "badges service unavailable"))
			return
		}
		fixerID, err := pathUUID(r, "fixerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ranking, err := svc.CheckTopPerformerStatus(r.Context(), fixerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ranking)
	}
}

// FixerBadgeEligibility checks the calling fixer against one badge's criteria.
func FixerBadgeEligibility(svc badges.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "badges service unavailable"))
			return
		}
		fixerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		badgeID, err := pathUUID(r, "badgeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CheckQualityPerformanceCriteria(r.Context(), fixerID, badgeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func FixerCreateBadgeRequest(svc badges.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "badges service unavailable"))
			return
		}
		fixerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createBadgeRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, err := parseUUIDs([]string{body.BadgeID}, "badge_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CreateBadgeRequest(r.Context(), badges.CreateRequestInput{FixerID: fixerID, BadgeID: ids[0]})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func AdminStartBadgeReview(svc badges.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "badges service unavailable"))
			return
		}
		input, err := reviewInput(r, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.StartReview(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func AdminApproveBadgeRequest(svc badges.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "badges service unavailable"))
			return
		}
		input, err := reviewInput(r, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ApproveBadgeRequest(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminRejectBadgeRequest(svc badges.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "badges service unavailable"))
			return
		}
		input, err := reviewInput(r, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.RejectBadgeRequest(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func reviewInput(r *http.Request, withNotes bool) (badges.ReviewInput, error) {
	adminID, err := actorID(r)
	if err != nil {
		return badges.ReviewInput{}, err
	}
	requestID, err := pathUUID(r, "requestId")
	if err != nil {
		return badges.ReviewInput{}, err
	}
	input := badges.ReviewInput{RequestID: requestID, AdminUserID: adminID}
	if withNotes {
		var body badgeReviewBody
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			return badges.ReviewInput{}, err
		}
		input.Notes = validators.SanitizeString(body.Notes, 2000)
	}
	return input, nil
}
