package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixersapp/fixers-backend/internal/commissions"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
)

type fakeCommissions struct {
	commissions.Service
	markPaid  func(commissions.MarkPaidInput) (*commissions.MarkPaidResult, error)
	list      func(commissions.ListParams) (*commissions.ListResult, error)
	months    int
	completed *commissions.CompletedOrderInput
}

func (f *fakeCommissions) MarkCommissionsAsPaid(_ context.Context, input commissions.MarkPaidInput) (*commissions.MarkPaidResult, error) {
	return f.markPaid(input)
}

func (f *fakeCommissions) ListCommissions(_ context.Context, params commissions.ListParams) (*commissions.ListResult, error) {
	return f.list(params)
}

func (f *fakeCommissions) GetAgentEarningsAnalytics(_ context.Context, _ uuid.UUID, months int) (*commissions.EarningsAnalytics, error) {
	f.months = months
	return &commissions.EarningsAnalytics{}, nil
}

func (f *fakeCommissions) ProcessCompletedOrder(_ context.Context, input commissions.CompletedOrderInput) (*commissions.CompletedOrderResult, error) {
	f.completed = &input
	return &commissions.CompletedOrderResult{}, nil
}

func TestAgentWithdrawPassesBatch(t *testing.T) {
	agentID := uuid.New()
	first, second := uuid.New(), uuid.New()
	var got commissions.MarkPaidInput
	svc := &fakeCommissions{markPaid: func(input commissions.MarkPaidInput) (*commissions.MarkPaidResult, error) {
		got = input
		return &commissions.MarkPaidResult{MarkedPaid: 2}, nil
	}}

	body := `{"commission_ids":["` + first.String() + `","` + second.String() + `"],"amount":"125.50"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/agent/commissions/withdraw", strings.NewReader(body))
	req.ContentLength = int64(len(body))
	req = asUser(req, agentID, enums.UserRoleAgent)
	resp := httptest.NewRecorder()
	AgentWithdraw(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, agentID, got.AgentUserID)
	assert.Equal(t, []uuid.UUID{first, second}, got.CommissionIDs)
	assert.True(t, decimal.RequireFromString("125.5").Equal(got.WithdrawalAmount))
}

func TestAgentWithdrawMapsInsufficientBalance(t *testing.T) {
	svc := &fakeCommissions{markPaid: func(commissions.MarkPaidInput) (*commissions.MarkPaidResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficient, "wallet balance too low")
	}}
	body := `{"commission_ids":["` + uuid.NewString() + `"],"amount":900}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/agent/commissions/withdraw", strings.NewReader(body))
	req = asUser(req, uuid.New(), enums.UserRoleAgent)
	resp := httptest.NewRecorder()
	AgentWithdraw(svc, testLogger())(resp, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Body.String(), "INSUFFICIENT_BALANCE")
}

func TestAgentWithdrawRejectsBadIDs(t *testing.T) {
	svc := &fakeCommissions{}
	for _, body := range []string{
		`{"commission_ids":[],"amount":10}`,
		`{"commission_ids":["nope"],"amount":10}`,
		`{"amount":10}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/agent/commissions/withdraw", strings.NewReader(body))
		req = asUser(req, uuid.New(), enums.UserRoleAgent)
		resp := httptest.NewRecorder()
		AgentWithdraw(svc, testLogger())(resp, req)
		assert.Equal(t, http.StatusBadRequest, resp.Code, body)
	}
}

func TestAgentCommissionListFilters(t *testing.T) {
	var got commissions.ListParams
	svc := &fakeCommissions{list: func(params commissions.ListParams) (*commissions.ListResult, error) {
		got = params
		return &commissions.ListResult{}, nil
	}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agent/commissions?type=FIXER_BONUS&isPaid=false&limit=5", nil)
	req = asUser(req, uuid.New(), enums.UserRoleAgent)
	resp := httptest.NewRecorder()
	AgentCommissionList(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, got.Type)
	assert.Equal(t, enums.CommissionTypeFixerBonus, *got.Type)
	require.NotNil(t, got.IsPaid)
	assert.False(t, *got.IsPaid)
	assert.Equal(t, 5, got.Limit)

	bad := httptest.NewRequest(http.MethodGet, "/api/v1/agent/commissions?type=TIP", nil)
	bad = asUser(bad, uuid.New(), enums.UserRoleAgent)
	resp = httptest.NewRecorder()
	AgentCommissionList(svc, testLogger())(resp, bad)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAgentEarningsAnalyticsMonths(t *testing.T) {
	svc := &fakeCommissions{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agent/commissions/analytics", nil)
	req = asUser(req, uuid.New(), enums.UserRoleAgent)
	resp := httptest.NewRecorder()
	AgentEarningsAnalytics(svc, testLogger())(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, defaultAnalyticsMonths, svc.months)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/agent/commissions/analytics?months=36", nil)
	req = asUser(req, uuid.New(), enums.UserRoleAgent)
	resp = httptest.NewRecorder()
	AgentEarningsAnalytics(svc, testLogger())(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdminCompleteOrder(t *testing.T) {
	svc := &fakeCommissions{}
	orderID, relID := uuid.New(), uuid.New()
	body := `{"agent_fixer_id":"` + relID.String() + `","amount":"10000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/"+orderID.String()+"/complete", strings.NewReader(body))
	req = asUser(req, uuid.New(), enums.UserRoleAdmin)
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	AdminCompleteOrder(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.NotNil(t, svc.completed)
	assert.Equal(t, orderID, svc.completed.OrderID)
	assert.Equal(t, relID, svc.completed.AgentFixerID)
	assert.True(t, decimal.NewFromInt(10000).Equal(svc.completed.OrderAmount))
}
