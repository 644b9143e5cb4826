package commissions

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fixersapp/fixers-backend/pkg/db/models"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
)

// CompletedOrderInput describes an order that just moved to COMPLETED.
type CompletedOrderInput struct {
	OrderID      uuid.UUID
	AgentFixerID uuid.UUID
	OrderAmount  decimal.Decimal
}

// CompletedOrderResult reports each money step. AlreadyRecorded is set when
// an earlier run credited the order commission.
type CompletedOrderResult struct {
	Calculation     Calculation             `json:"calculation"`
	Commission      *models.AgentCommission `json:"commission,omitempty"`
	AlreadyRecorded bool                    `json:"already_recorded,omitempty"`
	Bonus           *BonusResult            `json:"bonus,omitempty"`
}

// ProcessCompletedOrder runs the order-completion money flow: split the
// amount, credit the agent, then pay the onboarding bonus when due. Each step
// commits on its own; a failed bonus leaves the recorded commission in place
// and running the same order again skips straight to the bonus.
func (s *service) ProcessCompletedOrder(ctx context.Context, input CompletedOrderInput) (*CompletedOrderResult, error) {
	if input.OrderID == uuid.Nil || input.AgentFixerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and agent fixer id required")
	}

	rel, err := s.repo.FindAgentFixer(ctx, input.AgentFixerID)
	if err != nil {
		return nil, mapLookupError(err, "agent fixer relationship not found", "load agent fixer")
	}
	if !rel.CanReceiveWork() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "fixer is not vetted for commission-bearing work").
			WithDetails(map[string]any{"status": rel.Status, "vet_status": rel.VetStatus})
	}

	agent, err := s.repo.FindAgentByID(ctx, rel.AgentID)
	if err != nil {
		return nil, mapLookupError(err, "agent not found", "load agent")
	}

	calc, err := CalculateCommission(input.OrderAmount, agent.CommissionPercentage)
	if err != nil {
		return nil, err
	}
	out := &CompletedOrderResult{Calculation: calc}

	if calc.CommissionAmount.IsPositive() {
		relID := rel.ID
		out.Commission, err = s.RecordCommission(ctx, RecordCommissionInput{
			OrderID:      input.OrderID,
			AgentUserID:  agent.UserID,
			AgentFixerID: &relID,
			Calculation:  calc,
		})
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
			out.Commission = nil
			out.AlreadyRecorded = true
			s.logg.Info(s.logg.WithField(ctx, "order_id", input.OrderID.String()), "order commission already recorded, continuing to bonus")
		case err != nil:
			return nil, err
		}
	}

	if shouldPayBonus(rel, input.OrderID) {
		out.Bonus, err = s.PayFixerBonus(ctx, rel.ID, input.OrderID)
		if err != nil {
			ctx = s.logg.WithFields(ctx, map[string]any{"order_id": input.OrderID.String(), "agent_fixer_id": rel.ID.String()})
			s.logg.Error(ctx, "fixer bonus failed after commission was recorded", err)
			return out, err
		}
	}
	return out, nil
}
