package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hylla/sitebook/internal/adapters/server/common"
	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/domain"
)

func newPayrollCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "payroll",
		Short:   "Derive, commit, and settle payroll",
		Long: `Payroll is derived from attendance on every read. Periods default to the
current week; pass --start and --end together for any other inclusive range.`,
	}
	cmd.AddCommand(newPayrollViewCommand(opts))
	cmd.AddCommand(newPayrollBoardCommand(opts))
	cmd.AddCommand(newPayrollCommitCommand(opts))
	cmd.AddCommand(newPayrollPaidCommand(opts))
	cmd.AddCommand(newPayrollUnpaidCommand(opts))
	cmd.AddCommand(newPayrollLedgerCommand(opts))
	return cmd
}

func addPeriodFlags(cmd *cobra.Command, req *common.PeriodRequest) {
	cmd.Flags().StringVar(&req.Start, "start", "", "period start YYYY-MM-DD (default current week)")
	cmd.Flags().StringVar(&req.End, "end", "", "period end YYYY-MM-DD, inclusive")
}

func newPayrollViewCommand(opts *rootOptions) *cobra.Command {
	var req common.PayrollRequest
	cmd := &cobra.Command{
		Use:   "view <worker-id>",
		Short: "Derive one worker's payroll for a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.WorkerID = args[0]
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				c, err := rt.api.PayrollView(cmd.Context(), req)
				if err != nil {
					return err
				}
				return p.Fields(c, computationFields(c)...)
			})
		},
	}
	addPeriodFlags(cmd, &req.PeriodRequest)
	return cmd
}

func newPayrollBoardCommand(opts *rootOptions) *cobra.Command {
	var req common.PeriodRequest
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show derived payroll for every active worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				board, err := rt.api.PayrollBoard(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printBoard(p, board)
			})
		},
	}
	addPeriodFlags(cmd, &req)
	return cmd
}

func newPayrollCommitCommand(opts *rootOptions) *cobra.Command {
	var req common.CommitPayrollRequest
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Write derived payroll into the ledger as pending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				entries, err := rt.api.CommitPayroll(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printLedger(p, entries, entries)
			})
		},
	}
	cmd.Flags().StringVar(&req.WorkerID, "worker", "", "commit one worker instead of every active worker")
	addPeriodFlags(cmd, &req.PeriodRequest)
	return cmd
}

func newPayrollPaidCommand(opts *rootOptions) *cobra.Command {
	var req common.PayrollRequest
	cmd := &cobra.Command{
		Use:   "pay <worker-id>",
		Short: "Mark a worker's period paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.WorkerID = args[0]
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				entry, err := rt.api.MarkPaid(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printLedger(p, entry, []domain.PayrollLedgerEntry{entry})
			})
		},
	}
	addPeriodFlags(cmd, &req.PeriodRequest)
	return cmd
}

func newPayrollUnpaidCommand(opts *rootOptions) *cobra.Command {
	var req common.PayrollRequest
	cmd := &cobra.Command{
		Use:   "unpay <worker-id>",
		Short: "Return a worker's period to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.WorkerID = args[0]
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				out, err := rt.api.MarkUnpaid(cmd.Context(), req)
				if err != nil {
					return err
				}
				if out.Entry == nil {
					return p.Fields(out, [2]string{"found", "no"}, [2]string{"note", "no ledger entry for this period"})
				}
				return printLedger(p, out, []domain.PayrollLedgerEntry{*out.Entry})
			})
		},
	}
	addPeriodFlags(cmd, &req.PeriodRequest)
	return cmd
}

func newPayrollLedgerCommand(opts *rootOptions) *cobra.Command {
	var req common.ListLedgerRequest
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List committed payroll ledger entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				entries, err := rt.api.ListLedger(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printLedger(p, entries, entries)
			})
		},
	}
	cmd.Flags().StringVar(&req.WorkerID, "worker", "", "filter by worker id")
	cmd.Flags().StringVar(&req.Status, "status", "", "filter by status: pending or paid")
	cmd.Flags().StringVar(&req.Start, "start", "", "period start YYYY-MM-DD")
	cmd.Flags().StringVar(&req.End, "end", "", "period end YYYY-MM-DD, inclusive")
	return cmd
}

func computationFields(c domain.PayrollComputation) [][2]string {
	return [][2]string{
		{"worker", c.WorkerID},
		{"period", c.Period.String()},
		{"days worked", fmt.Sprint(c.DaysWorked)},
		{"lunch days", fmt.Sprint(c.LunchDays)},
		{"daily rate", money(c.DailyRate)},
		{"lunch allowance", money(c.LunchAllowance)},
		{"gross", money(c.Gross)},
		{"lunch total", money(c.LunchTotal)},
		{"net", money(c.Net)},
	}
}

func printBoard(p *printer, board []app.PayrollRow) error {
	rows := make([][]string, 0, len(board))
	for _, r := range board {
		status := "uncommitted"
		if r.Ledger != nil {
			status = statusText(string(r.Ledger.Status))
		}
		rows = append(rows, []string{
			r.Worker.Name,
			fmt.Sprint(r.Payroll.DaysWorked),
			fmt.Sprint(r.Payroll.LunchDays),
			money(r.Payroll.Gross),
			money(r.Payroll.LunchTotal),
			money(r.Payroll.Net),
			status,
		})
	}
	return p.Table(board, []string{"Worker", "Days", "Lunch days", "Gross", "Lunch", "Net", "Status"}, rows)
}

func printLedger(p *printer, v any, entries []domain.PayrollLedgerEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		paid := ""
		if e.PaidAt != nil {
			paid = e.PaidAt.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{e.WorkerID, e.Period.String(), fmt.Sprint(e.DaysWorked), money(e.Net), statusText(string(e.Status)), paid})
	}
	return p.Table(v, []string{"Worker", "Period", "Days", "Net", "Status", "Paid at"}, rows)
}
