package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hylla/sitebook/internal/domain"
)

// BudgetAggregator is the only writer of used budget. Used is always a full
// fold over expense facts, never an increment.
type BudgetAggregator struct {
	expenses     ExpenseStore
	budgets      BudgetStore
	recorder     *ActivityRecorder
	defaultTotal decimal.Decimal
	clock        Clock
	logger       Logger
	metrics      *Metrics
}

// NewBudgetAggregator constructs an aggregator. defaultTotal stands in for a missing budget row.
func NewBudgetAggregator(expenses ExpenseStore, budgets BudgetStore, recorder *ActivityRecorder, defaultTotal decimal.Decimal, clock Clock, logger Logger, metrics *Metrics) *BudgetAggregator {
	return &BudgetAggregator{
		expenses:     expenses,
		budgets:      budgets,
		recorder:     recorder,
		defaultTotal: defaultTotal,
		clock:        clockOrNow(clock),
		logger:       loggerOrNop(logger),
		metrics:      metrics,
	}
}

// Recalculate sums every expense and writes the result to the budget row.
func (a *BudgetAggregator) Recalculate(ctx context.Context) (domain.Budget, error) {
	expenses, err := a.expenses.ListExpenses(ctx, ExpenseFilter{})
	if err != nil {
		a.metrics.budgetRecalc("error", domain.Budget{})
		return domain.Budget{}, fmt.Errorf("list expenses: %w", err)
	}
	used := domain.SumExpenses(expenses)

	status := "ok"
	if _, err := a.budgets.GetBudget(ctx); err != nil {
		if !errors.Is(err, ErrNotFound) {
			a.metrics.budgetRecalc("error", domain.Budget{})
			return domain.Budget{}, fmt.Errorf("get budget: %w", err)
		}
		status = "degraded"
		a.logger.Warn("budget row missing, using default total", "default_total", a.defaultTotal.String())
	}

	budget, err := a.budgets.UpdateUsedBudget(ctx, used, a.defaultTotal, a.clock())
	if err != nil {
		a.metrics.budgetRecalc("error", domain.Budget{})
		return domain.Budget{}, fmt.Errorf("update used budget: %w", err)
	}
	a.metrics.budgetRecalc(status, budget)

	summary := budget.Summary()
	a.recorder.Record(ctx, domain.CollectionBudget, domain.ActionBudgetRecalculated, "budget",
		fmt.Sprintf("used budget recalculated to %s", used.StringFixed(2)),
		map[string]string{
			"used":      summary.Used.String(),
			"total":     summary.Total.String(),
			"remaining": summary.Remaining.String(),
			"expenses":  fmt.Sprint(len(expenses)),
		})
	return budget, nil
}

// Summary reports the stored budget. With no budget row it reports the
// default total against a live sum of expenses.
func (a *BudgetAggregator) Summary(ctx context.Context) (domain.BudgetSummary, error) {
	budget, err := a.budgets.GetBudget(ctx)
	if err == nil {
		return budget.Summary(), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.BudgetSummary{}, fmt.Errorf("get budget: %w", err)
	}
	expenses, err := a.expenses.ListExpenses(ctx, ExpenseFilter{})
	if err != nil {
		return domain.BudgetSummary{}, fmt.Errorf("list expenses: %w", err)
	}
	return domain.Budget{Total: a.defaultTotal, Used: domain.SumExpenses(expenses)}.Summary(), nil
}

// Attach recalculates on every expenses notification until the returned Unsubscribe runs.
func (a *BudgetAggregator) Attach(n *Notifier) (Unsubscribe, error) {
	return n.Subscribe(domain.CollectionExpenses, func(ctx context.Context, _ domain.Collection) {
		if _, err := a.Recalculate(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("budget recalculation failed", "err", err)
		}
	})
}
