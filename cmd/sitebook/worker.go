package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hylla/sitebook/internal/adapters/server/common"
	"github.com/hylla/sitebook/internal/domain"
)

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage the worker roster",
	}
	cmd.AddCommand(newWorkerAddCommand(opts))
	cmd.AddCommand(newWorkerListCommand(opts))
	cmd.AddCommand(newWorkerActiveCommand(opts, "activate", true))
	cmd.AddCommand(newWorkerActiveCommand(opts, "deactivate", false))
	cmd.AddCommand(newWorkerRatesCommand(opts))
	return cmd
}

func newWorkerAddCommand(opts *rootOptions) *cobra.Command {
	var req common.CreateWorkerRequest
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				worker, err := rt.api.CreateWorker(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printWorkers(p, worker, []domain.Worker{worker})
			})
		},
	}
	cmd.Flags().StringVar(&req.Role, "role", "", "trade or role")
	cmd.Flags().StringVar(&req.DailyRate, "rate", "", "daily rate")
	cmd.Flags().StringVar(&req.LunchAllowance, "lunch", "0", "lunch allowance per day")
	_ = cmd.MarkFlagRequired("rate")
	return cmd
}

func newWorkerListCommand(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				workers, err := rt.api.ListWorkers(cmd.Context(), all)
				if err != nil {
					return err
				}
				return printWorkers(p, workers, workers)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include inactive workers")
	return cmd
}

func newWorkerActiveCommand(opts *rootOptions, use string, active bool) *cobra.Command {
	short := "Deactivate a worker so no new attendance can be marked"
	if active {
		short = "Reactivate a worker"
	}
	return &cobra.Command{
		Use:   use + " <worker-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				worker, err := rt.api.SetWorkerActive(cmd.Context(), common.SetWorkerActiveRequest{WorkerID: args[0], Active: active})
				if err != nil {
					return err
				}
				return printWorkers(p, worker, []domain.Worker{worker})
			})
		},
	}
}

// newWorkerRatesCommand changes rates for future derivations. Ledger rows keep their snapshot.
func newWorkerRatesCommand(opts *rootOptions) *cobra.Command {
	var rate, lunch string
	cmd := &cobra.Command{
		Use:   "rates <worker-id>",
		Short: "Change a worker's daily rate and lunch allowance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dailyRate, err := decimal.NewFromString(rate)
			if err != nil {
				return fmt.Errorf("invalid --rate %q: %w", rate, err)
			}
			lunchAllowance, err := decimal.NewFromString(lunch)
			if err != nil {
				return fmt.Errorf("invalid --lunch %q: %w", lunch, err)
			}
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				worker, err := rt.service.UpdateWorkerRates(cmd.Context(), args[0], dailyRate, lunchAllowance)
				if err != nil {
					return err
				}
				return printWorkers(p, worker, []domain.Worker{worker})
			})
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "daily rate")
	cmd.Flags().StringVar(&lunch, "lunch", "0", "lunch allowance per day")
	_ = cmd.MarkFlagRequired("rate")
	return cmd
}

func printWorkers(p *printer, v any, workers []domain.Worker) error {
	rows := make([][]string, 0, len(workers))
	for _, w := range workers {
		rows = append(rows, []string{w.ID, w.Name, w.Role, money(w.DailyRate), money(w.LunchAllowance), yesNo(w.Active)})
	}
	return p.Table(v, []string{"ID", "Name", "Role", "Daily rate", "Lunch", "Active"}, rows)
}
