package main

import (
	"github.com/spf13/cobra"

	"github.com/hylla/sitebook/internal/adapters/server/common"
	"github.com/hylla/sitebook/internal/domain"
)

func newExpenseCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Record and list site expenses",
	}
	cmd.AddCommand(newExpenseAddCommand(opts))
	cmd.AddCommand(newExpenseListCommand(opts))
	return cmd
}

func newExpenseAddCommand(opts *rootOptions) *cobra.Command {
	var req common.RecordExpenseRequest
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a manual expense",
		Long:  "Record a manual expense. The labor category is reserved for costs derived from attendance.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Date == "" {
				req.Date = opts.today()
			}
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				expense, err := rt.api.RecordExpense(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printExpenses(p, expense, []domain.ExpenseRecord{expense})
			})
		},
	}
	cmd.Flags().StringVar(&req.Category, "category", "", "expense category")
	cmd.Flags().StringVar(&req.Amount, "amount", "", "amount")
	cmd.Flags().StringVar(&req.Date, "date", "", "expense date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&req.Description, "description", "", "optional description")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newExpenseListCommand(opts *rootOptions) *cobra.Command {
	var req common.ListExpensesRequest
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				expenses, err := rt.api.ListExpenses(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printExpenses(p, expenses, expenses)
			})
		},
	}
	cmd.Flags().StringVar(&req.Category, "category", "", "filter by category")
	cmd.Flags().StringVar(&req.WorkerID, "worker", "", "filter labor rows by worker id")
	cmd.Flags().StringVar(&req.Start, "start", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&req.End, "end", "", "last date YYYY-MM-DD, inclusive")
	return cmd
}

func printExpenses(p *printer, v any, expenses []domain.ExpenseRecord) error {
	rows := make([][]string, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, []string{e.Date.String(), e.Category, money(e.Amount), e.WorkerID, e.Description})
	}
	return p.Table(v, []string{"Date", "Category", "Amount", "Worker", "Description"}, rows)
}
