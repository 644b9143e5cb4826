package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixersapp/fixers-backend/internal/badges"
	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
)

type fakeBadges struct {
	badges.Service
	created *badges.CreateRequestInput
	review  *badges.ReviewInput
}

func (f *fakeBadges) GetFixerBadgeTier(_ context.Context, fixerID uuid.UUID) (*badges.TierResult, error) {
	return &badges.TierResult{FixerID: fixerID, Tier: enums.BadgeTierGold, ActiveBadges: 5}, nil
}

func (f *fakeBadges) CheckTopPerformerStatus(_ context.Context, _ uuid.UUID) (*badges.Ranking, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fixer profile not found")
}

func (f *fakeBadges) CreateBadgeRequest(_ context.Context, input badges.CreateRequestInput) (*badges.CreateRequestResult, error) {
	f.created = &input
	return &badges.CreateRequestResult{Request: &models.BadgeRequest{}, ClientSecret: "secret_1"}, nil
}

func (f *fakeBadges) RejectBadgeRequest(_ context.Context, input badges.ReviewInput) (*models.BadgeRequest, error) {
	f.review = &input
	return &models.BadgeRequest{Status: enums.BadgeRequestStatusRejected}, nil
}

func TestFixerBadgeTier(t *testing.T) {
	fixerID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/fixers/"+fixerID.String()+"/badge-tier", nil)
	req = asUser(req, uuid.New(), enums.UserRoleClient)
	req = addRouteParam(req, "fixerId", fixerID.String())
	resp := httptest.NewRecorder()
	FixerBadgeTier(&fakeBadges{}, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"tier":"GOLD"`)
}

func TestFixerTopPerformerNotFound(t *testing.T) {
	fixerID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/fixers/"+fixerID.String()+"/top-performer", nil)
	req = addRouteParam(req, "fixerId", fixerID.String())
	resp := httptest.NewRecorder()
	FixerTopPerformer(&fakeBadges{}, testLogger())(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestFixerCreateBadgeRequestUsesCaller(t *testing.T) {
	svc := &fakeBadges{}
	fixerID, badgeID := uuid.New(), uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/fixer/badge-requests", strings.NewReader(`{"badge_id":"`+badgeID.String()+`"}`))
	req = asUser(req, fixerID, enums.UserRoleFixer)
	resp := httptest.NewRecorder()
	FixerCreateBadgeRequest(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.NotNil(t, svc.created)
	assert.Equal(t, fixerID, svc.created.FixerID)
	assert.Equal(t, badgeID, svc.created.BadgeID)
	assert.Contains(t, resp.Body.String(), "secret_1")
}

func TestAdminRejectBadgeRequestPassesNotes(t *testing.T) {
	svc := &fakeBadges{}
	adminID, requestID := uuid.New(), uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/badge-requests/"+requestID.String()+"/reject", strings.NewReader(`{"notes":"photos missing"}`))
	req = asUser(req, adminID, enums.UserRoleAdmin)
	req = addRouteParam(req, "requestId", requestID.String())
	resp := httptest.NewRecorder()
	AdminRejectBadgeRequest(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.review)
	assert.Equal(t, requestID, svc.review.RequestID)
	assert.Equal(t, adminID, svc.review.AdminUserID)
	assert.Equal(t, "photos missing", svc.review.Notes)
}
