package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Budget is the per-project singleton aggregate. Used is derived from expenses.
type Budget struct {
	Total     decimal.Decimal `json:"total_budget"`
	Used      decimal.Decimal `json:"used_budget"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BudgetSummary is the reporting view of a budget.
type BudgetSummary struct {
	Total       decimal.Decimal `json:"total"`
	Used        decimal.Decimal `json:"used"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed decimal.Decimal `json:"percent_used"`
}

// Summary computes remaining and percent used. Remaining may be negative.
func (b Budget) Summary() BudgetSummary {
	percent := decimal.Zero
	if b.Total.IsPositive() {
		percent = b.Used.Div(b.Total).Mul(hundred).Round(2)
	}
	return BudgetSummary{
		Total:       b.Total,
		Used:        b.Used,
		Remaining:   b.Total.Sub(b.Used),
		PercentUsed: percent,
	}
}

// OverBudget reports whether used exceeds total.
func (s BudgetSummary) OverBudget() bool {
	return s.Remaining.IsNegative()
}
