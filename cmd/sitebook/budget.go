package main

import (
	"github.com/spf13/cobra"

	"github.com/hylla/sitebook/internal/adapters/server/common"
	"github.com/hylla/sitebook/internal/domain"
)

func newBudgetCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show and maintain the project budget",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show total, used, and remaining budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				summary, err := rt.api.BudgetSummary(cmd.Context())
				if err != nil {
					return err
				}
				return printBudget(p, summary)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <total>",
		Short: "Replace the project total budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				summary, err := rt.api.SetBudget(cmd.Context(), common.SetBudgetRequest{Total: args[0]})
				if err != nil {
					return err
				}
				return printBudget(p, summary)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "recalc",
		Short: "Recompute used budget from the expense ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				summary, err := rt.api.RecalculateBudget(cmd.Context())
				if err != nil {
					return err
				}
				return printBudget(p, summary)
			})
		},
	})
	return cmd
}

func printBudget(p *printer, s domain.BudgetSummary) error {
	remaining := money(s.Remaining)
	if s.OverBudget() {
		remaining = warnStyle.Render(remaining)
	}
	return p.Fields(s,
		[2]string{"total", money(s.Total)},
		[2]string{"used", money(s.Used)},
		[2]string{"remaining", remaining},
		[2]string{"percent used", s.PercentUsed.StringFixed(1) + "%"},
	)
}
