package commissions

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fixersapp/fixers-backend/internal/notifications"
	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
)

type bonusTier struct {
	minFixers int
	amount    decimal.Decimal
}

// bonusTiers must stay sorted by minFixers; each tier runs until the next one starts.
var bonusTiers = []bonusTier{
	{minFixers: 1, amount: decimal.NewFromInt(50)},
	{minFixers: 11, amount: decimal.NewFromInt(75)},
	{minFixers: 26, amount: decimal.NewFromInt(100)},
	{minFixers: 51, amount: decimal.NewFromInt(150)},
}

// FixerBonusAmount returns the one-time onboarding bonus for an agent that
// manages totalFixers fixers. Counts below one earn nothing.
func FixerBonusAmount(totalFixers int) decimal.Decimal {
	if totalFixers < bonusTiers[0].minFixers {
		return decimal.Zero
	}
	idx := sort.Search(len(bonusTiers), func(i int) bool {
		return bonusTiers[i].minFixers > totalFixers
	})
	return bonusTiers[idx-1].amount
}

// BonusResult reports the outcome of a bonus attempt. Paid is false when the
// bonus was already paid, disabled, or lost to a concurrent payer.
type BonusResult struct {
	Paid       bool                    `json:"paid"`
	Amount     decimal.Decimal         `json:"amount"`
	Commission *models.AgentCommission `json:"commission,omitempty"`
	Reason     string                  `json:"reason,omitempty"`
}

const (
	bonusSkipAlreadyPaid = "already_paid"
	bonusSkipDisabled    = "bonus_disabled"
	bonusSkipNoTier      = "no_tier"
)

func (s *service) ShouldPayFixerBonus(ctx context.Context, orderID, agentFixerID uuid.UUID) (bool, error) {
	if orderID == uuid.Nil || agentFixerID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id and agent fixer id required")
	}
	rel, err := s.repo.FindAgentFixer(ctx, agentFixerID)
	if err != nil {
		return false, mapLookupError(err, "agent fixer relationship not found", "load agent fixer")
	}
	return shouldPayBonus(rel, orderID), nil
}

func shouldPayBonus(rel *models.AgentFixer, orderID uuid.UUID) bool {
	if rel.BonusPaid {
		return false
	}
	return rel.FirstOrderID == nil || *rel.FirstOrderID == orderID
}

// PayFixerBonus pays the one-time onboarding bonus for a relationship.
// Repeated or concurrent calls pay at most once.
func (s *service) PayFixerBonus(ctx context.Context, agentFixerID, orderID uuid.UUID) (*BonusResult, error) {
	if agentFixerID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent fixer id and order id required")
	}

	result := &BonusResult{Amount: decimal.Zero}
	var agent *models.Agent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		rel, err := repo.LockAgentFixer(ctx, agentFixerID)
		if err != nil {
			return mapLookupError(err, "agent fixer relationship not found", "load agent fixer")
		}
		if rel.BonusPaid {
			result.Reason = bonusSkipAlreadyPaid
			return nil
		}

		agent, err = repo.FindAgentByID(ctx, rel.AgentID)
		if err != nil {
			return mapLookupError(err, "agent not found", "load agent")
		}
		if !agent.FixerBonusEnabled {
			result.Reason = bonusSkipDisabled
			return nil
		}

		amount := FixerBonusAmount(agent.TotalFixersManaged)
		if !amount.IsPositive() {
			result.Reason = bonusSkipNoTier
			return nil
		}

		now := s.now()
		won, err := repo.MarkBonusPaid(ctx, rel.ID, orderID, amount, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark bonus paid")
		}
		if !won {
			result.Reason = bonusSkipAlreadyPaid
			return nil
		}

		relID := rel.ID
		oid := orderID
		commission := &models.AgentCommission{
			AgentID:      agent.ID,
			OrderID:      &oid,
			AgentFixerID: &relID,
			Type:         enums.CommissionTypeFixerBonus,
			Amount:       amount,
			Description:  fmt.Sprintf("onboarding bonus for fixer %s (%d managed)", rel.FixerID, agent.TotalFixersManaged),
			IsPaid:       true,
			PaidAt:       &now,
		}
		if err := repo.CreateCommission(ctx, commission); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bonus commission")
		}
		if err := repo.CreditWallet(ctx, agent.ID, amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit agent wallet")
		}

		result.Paid = true
		result.Amount = amount
		result.Commission = commission
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Paid {
		s.notifier.Notify(ctx, notifications.Message{
			Recipient: notifications.ToUser(agent.UserID),
			Type:      enums.NotificationTypeFixerBonusPaid,
			Title:     "Fixer bonus earned",
			Body:      fmt.Sprintf("A %s onboarding bonus was added to your wallet.", result.Amount.StringFixed(moneyScale)),
			Link:      "/agent/wallet",
		})
	}
	return result, nil
}
