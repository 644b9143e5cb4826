package commissions

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
)

const moneyScale = 2

var (
	hundred = decimal.NewFromInt(100)
)

// Calculation is the split of one order amount between agent and fixer.
// CommissionAmount + NetToFixer == OrderAmount exactly.
type Calculation struct {
	OrderAmount      decimal.Decimal `json:"order_amount"`
	Percentage       decimal.Decimal `json:"percentage"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	NetToFixer       decimal.Decimal `json:"net_to_fixer"`
}

// CalculateCommission splits orderAmount using the agent's percentage. The
// commission is rounded half-up to cents and the fixer receives the remainder.
func CalculateCommission(orderAmount, percentage decimal.Decimal) (Calculation, error) {
	if orderAmount.IsNegative() {
		return Calculation{}, pkgerrors.New(pkgerrors.CodeValidation, "order amount must not be negative")
	}
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return Calculation{}, pkgerrors.New(pkgerrors.CodeValidation, "commission percentage must be between 0 and 100")
	}

	commission := orderAmount.Mul(percentage).Div(hundred).Round(moneyScale)
	return Calculation{
		OrderAmount:      orderAmount,
		Percentage:       percentage,
		CommissionAmount: commission,
		NetToFixer:       orderAmount.Sub(commission),
	}, nil
}
