package commissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
)

const (
	defaultAnalyticsMonths = 6
	maxAnalyticsMonths     = 24
	monthKeyLayout         = "2006-01"
)

// Summary is a point-in-time view of an agent's wallet and commission history.
type Summary struct {
	AgentID              uuid.UUID       `json:"agent_id"`
	CommissionPercentage decimal.Decimal `json:"commission_percentage"`
	WalletBalance        decimal.Decimal `json:"wallet_balance"`
	TotalEarned          decimal.Decimal `json:"total_earned"`
	TotalWithdrawn       decimal.Decimal `json:"total_withdrawn"`
	PaidTotal            decimal.Decimal `json:"paid_total"`
	UnpaidTotal          decimal.Decimal `json:"unpaid_total"`
	OrderCommissionTotal decimal.Decimal `json:"order_commission_total"`
	FixerBonusTotal      decimal.Decimal `json:"fixer_bonus_total"`
	PaidCount            int64           `json:"paid_count"`
	UnpaidCount          int64           `json:"unpaid_count"`
	TotalFixersManaged   int             `json:"total_fixers_managed"`
}

// MonthlyEarnings is one zero-filled calendar month (UTC).
type MonthlyEarnings struct {
	Month            string          `json:"month"`
	OrderCommissions decimal.Decimal `json:"order_commissions"`
	FixerBonuses     decimal.Decimal `json:"fixer_bonuses"`
	Total            decimal.Decimal `json:"total"`
	Count            int             `json:"count"`
}

type EarningsAnalytics struct {
	AgentID uuid.UUID         `json:"agent_id"`
	Months  []MonthlyEarnings `json:"months"`
	Total   decimal.Decimal   `json:"total"`
}

func (s *service) GetAgentCommissionSummary(ctx context.Context, agentUserID uuid.UUID) (*Summary, error) {
	if agentUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent user id required")
	}

	var summary *Summary
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		agent, err := repo.FindAgentByUserID(ctx, agentUserID)
		if err != nil {
			return mapLookupError(err, "agent not found", "load agent")
		}
		totals, err := repo.Totals(ctx, agent.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum commissions")
		}
		summary = buildSummary(agent, totals)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func buildSummary(agent *models.Agent, totals []commissionTotal) *Summary {
	out := &Summary{
		AgentID:              agent.ID,
		CommissionPercentage: agent.CommissionPercentage,
		WalletBalance:        agent.WalletBalance,
		TotalEarned:          agent.TotalEarned,
		TotalWithdrawn:       agent.TotalWithdrawn,
		PaidTotal:            decimal.Zero,
		UnpaidTotal:          decimal.Zero,
		OrderCommissionTotal: decimal.Zero,
		FixerBonusTotal:      decimal.Zero,
		TotalFixersManaged:   agent.TotalFixersManaged,
	}
	for _, row := range totals {
		if row.IsPaid {
			out.PaidTotal = out.PaidTotal.Add(row.Total)
			out.PaidCount += row.Count
		} else {
			out.UnpaidTotal = out.UnpaidTotal.Add(row.Total)
			out.UnpaidCount += row.Count
		}
		switch row.Type {
		case enums.CommissionTypeOrder:
			out.OrderCommissionTotal = out.OrderCommissionTotal.Add(row.Total)
		case enums.CommissionTypeFixerBonus:
			out.FixerBonusTotal = out.FixerBonusTotal.Add(row.Total)
		}
	}
	return out
}

func (s *service) GetAgentEarningsAnalytics(ctx context.Context, agentUserID uuid.UUID, months int) (*EarningsAnalytics, error) {
	if agentUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent user id required")
	}
	if months <= 0 {
		months = defaultAnalyticsMonths
	}
	if months > maxAnalyticsMonths {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "months must be 24 or fewer")
	}

	agent, err := s.repo.FindAgentByUserID(ctx, agentUserID)
	if err != nil {
		return nil, mapLookupError(err, "agent not found", "load agent")
	}

	buckets := monthBuckets(s.now(), months)
	rows, err := s.repo.ListSince(ctx, agent.ID, buckets[0].start)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commissions")
	}

	out := &EarningsAnalytics{AgentID: agent.ID, Total: decimal.Zero}
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		index[b.key] = i
		out.Months = append(out.Months, MonthlyEarnings{
			Month:            b.key,
			OrderCommissions: decimal.Zero,
			FixerBonuses:     decimal.Zero,
			Total:            decimal.Zero,
		})
	}

	for _, row := range rows {
		i, ok := index[row.CreatedAt.UTC().Format(monthKeyLayout)]
		if !ok {
			continue
		}
		m := &out.Months[i]
		switch row.Type {
		case enums.CommissionTypeOrder:
			m.OrderCommissions = m.OrderCommissions.Add(row.Amount)
		case enums.CommissionTypeFixerBonus:
			m.FixerBonuses = m.FixerBonuses.Add(row.Amount)
		}
		m.Total = m.Total.Add(row.Amount)
		m.Count++
		out.Total = out.Total.Add(row.Amount)
	}
	return out, nil
}

type monthBucket struct {
	key   string
	start time.Time
}

// monthBuckets returns the last n calendar months ending with the month of now, oldest first.
func monthBuckets(now time.Time, n int) []monthBucket {
	now = now.UTC()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]monthBucket, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := current.AddDate(0, -i, 0)
		out = append(out, monthBucket{key: start.Format(monthKeyLayout), start: start})
	}
	return out
}
