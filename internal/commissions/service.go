package commissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fixersapp/fixers-backend/internal/notifications"
	"github.com/fixersapp/fixers-backend/pkg/db"
	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
	"github.com/fixersapp/fixers-backend/pkg/logger"
	"github.com/fixersapp/fixers-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service records agent earnings and withdrawals.
type Service interface {
	RecordCommission(ctx context.Context, input RecordCommissionInput) (*models.AgentCommission, error)
	MarkCommissionsAsPaid(ctx context.Context, input MarkPaidInput) (*MarkPaidResult, error)
	GetAgentCommissionSummary(ctx context.Context, agentUserID uuid.UUID) (*Summary, error)
	GetAgentEarningsAnalytics(ctx context.Context, agentUserID uuid.UUID, months int) (*EarningsAnalytics, error)
	ListCommissions(ctx context.Context, params ListParams) (*ListResult, error)

	ShouldPayFixerBonus(ctx context.Context, orderID, agentFixerID uuid.UUID) (bool, error)
	PayFixerBonus(ctx context.Context, agentFixerID, orderID uuid.UUID) (*BonusResult, error)
	ProcessCompletedOrder(ctx context.Context, input CompletedOrderInput) (*CompletedOrderResult, error)
}

// ServiceParams wires a commissions service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Notifier notifications.Notifier
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

// RecordCommissionInput credits an agent for one completed order.
type RecordCommissionInput struct {
	OrderID      uuid.UUID
	AgentUserID  uuid.UUID
	AgentFixerID *uuid.UUID
	Calculation  Calculation
}

// MarkPaidInput withdraws WithdrawalAmount and marks the listed commissions
// paid. Callers must pass a batch whose amounts sum to WithdrawalAmount; the
// ledger does not reconcile the two.
type MarkPaidInput struct {
	AgentUserID      uuid.UUID
	CommissionIDs    []uuid.UUID
	WithdrawalAmount decimal.Decimal
}

type MarkPaidResult struct {
	AgentID          uuid.UUID       `json:"agent_id"`
	WithdrawalAmount decimal.Decimal `json:"withdrawal_amount"`
	MarkedPaid       int64           `json:"marked_paid"`
	PaidAt           time.Time       `json:"paid_at"`
}

// NewService builds a commissions service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("commissions repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		notifier: params.Notifier,
		logg:     params.Logger,
		now:      func() time.Time { return clock().UTC() },
	}, nil
}

func (s *service) RecordCommission(ctx context.Context, input RecordCommissionInput) (*models.AgentCommission, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AgentUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent user id required")
	}
	amount := input.Calculation.CommissionAmount
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission amount must be positive")
	}

	var (
		agent      *models.Agent
		commission *models.AgentCommission
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		agent, err = repo.FindAgentByUserID(ctx, input.AgentUserID)
		if err != nil {
			return mapLookupError(err, "agent not found", "load agent")
		}

		exists, err := repo.HasOrderCommission(ctx, agent.ID, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing commission")
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "commission already recorded for order")
		}

		orderID := input.OrderID
		commission = &models.AgentCommission{
			AgentID:      agent.ID,
			OrderID:      &orderID,
			AgentFixerID: input.AgentFixerID,
			Type:         enums.CommissionTypeOrder,
			Amount:       amount,
			Description:  fmt.Sprintf("%s%% commission on order %s", input.Calculation.Percentage.String(), orderID),
		}
		if err := repo.CreateCommission(ctx, commission); err != nil {
			if db.IsUniqueViolation(err, "ux_agent_commissions_order") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "commission already recorded for order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create commission")
		}

		if err := repo.CreditWallet(ctx, agent.ID, amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit agent wallet")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Message{
		Recipient: notifications.ToUser(agent.UserID),
		Type:      enums.NotificationTypeCommissionEarned,
		Title:     "Commission earned",
		Body:      fmt.Sprintf("You earned %s commission on order %s.", amount.StringFixed(moneyScale), input.OrderID),
		Link:      "/agent/commissions",
	})
	return commission, nil
}

func (s *service) MarkCommissionsAsPaid(ctx context.Context, input MarkPaidInput) (*MarkPaidResult, error) {
	if input.AgentUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent user id required")
	}
	if len(input.CommissionIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one commission id required")
	}
	if !input.WithdrawalAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal amount must be positive")
	}

	now := s.now()
	result := &MarkPaidResult{WithdrawalAmount: input.WithdrawalAmount, PaidAt: now}
	var agent *models.Agent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		agent, err = repo.FindAgentByUserID(ctx, input.AgentUserID)
		if err != nil {
			return mapLookupError(err, "agent not found", "load agent")
		}
		result.AgentID = agent.ID

		ok, err := repo.DebitWallet(ctx, agent.ID, input.WithdrawalAmount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit agent wallet")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInsufficient, "wallet balance is lower than the withdrawal amount").
				WithDetails(map[string]any{"requested": input.WithdrawalAmount.StringFixed(moneyScale)})
		}

		marked, err := repo.MarkPaid(ctx, agent.ID, input.CommissionIDs, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark commissions paid")
		}
		result.MarkedPaid = marked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Message{
		Recipient: notifications.ToUser(agent.UserID),
		Type:      enums.NotificationTypeCommissionsPaid,
		Title:     "Commissions paid out",
		Body:      fmt.Sprintf("%s was withdrawn from your wallet.", input.WithdrawalAmount.StringFixed(moneyScale)),
		Link:      "/agent/wallet",
		SendEmail: true,
	})
	return result, nil
}

// ListParams configures commission history pagination.
type ListParams struct {
	AgentUserID uuid.UUID
	Type        *enums.CommissionType
	IsPaid      *bool
	Limit       int
	Cursor      string
}

type ListResult struct {
	Items  []models.AgentCommission `json:"items"`
	Cursor string                   `json:"cursor"`
}

func (s *service) ListCommissions(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.AgentUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent user id required")
	}
	if params.Type != nil && !params.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid commission type")
	}

	agent, err := s.repo.FindAgentByUserID(ctx, params.AgentUserID)
	if err != nil {
		return nil, mapLookupError(err, "agent not found", "load agent")
	}

	query := listCommissionsParams{
		AgentID: agent.ID,
		Type:    params.Type,
		IsPaid:  params.IsPaid,
		Limit:   params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commissions")
	}
	out := &ListResult{Items: rows}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func mapLookupError(err error, notFoundMsg, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
