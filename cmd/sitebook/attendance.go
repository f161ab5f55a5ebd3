package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hylla/sitebook/internal/adapters/server/common"
	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/domain"
)

func newAttendanceCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "attendance",
		Aliases: []string{"att"},
		Short:   "Record and review daily attendance",
	}
	cmd.AddCommand(newAttendanceWriteCommand(opts, "mark", "Record a worker's attendance for one day"))
	cmd.AddCommand(newAttendanceWriteCommand(opts, "correct", "Correct an existing attendance record and reconcile its labor cost"))
	cmd.AddCommand(newAttendanceListCommand(opts))
	cmd.AddCommand(newAttendanceHistoryCommand(opts))
	return cmd
}

// today returns the local calendar day, honoring a test clock.
func (o *rootOptions) today() string {
	now := time.Now
	if o.now != nil {
		now = o.now
	}
	return domain.DateOf(now()).String()
}

func newAttendanceWriteCommand(opts *rootOptions, use, short string) *cobra.Command {
	var req common.MarkAttendanceRequest
	cmd := &cobra.Command{
		Use:   use + " <worker-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.WorkerID = args[0]
			if req.Date == "" {
				req.Date = opts.today()
			}
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				var (
					out app.AttendanceResult
					err error
				)
				if use == "correct" {
					out, err = rt.api.CorrectAttendance(cmd.Context(), common.CorrectAttendanceRequest(req))
				} else {
					out, err = rt.api.MarkAttendance(cmd.Context(), req)
				}
				if err != nil {
					return err
				}
				pairs := attendanceFields(out.Attendance)
				if out.LaborExpense != nil {
					pairs = append(pairs, [2]string{"labor", money(out.LaborExpense.Amount)})
				}
				return p.Fields(out, pairs...)
			})
		},
	}
	cmd.Flags().StringVar(&req.Date, "date", "", "attendance date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&req.Status, "status", string(domain.AttendancePresent), "present, absent, late, or half-day")
	cmd.Flags().BoolVar(&req.LunchTaken, "lunch", false, "lunch was taken")
	cmd.Flags().Float64Var(&req.Hours, "hours", 0, "hours worked")
	cmd.Flags().StringVar(&req.Note, "note", "", "optional note")
	return cmd
}

func newAttendanceListCommand(opts *rootOptions) *cobra.Command {
	var req common.ListAttendanceRequest
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List attendance records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				records, err := rt.api.ListAttendance(cmd.Context(), req)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(records))
				for _, r := range records {
					rows = append(rows, []string{r.Date.String(), r.WorkerID, string(r.Status), yesNo(r.LunchTaken), fmt.Sprint(r.Hours), fmt.Sprint(r.Version), r.Note})
				}
				return p.Table(records, []string{"Date", "Worker", "Status", "Lunch", "Hours", "Version", "Note"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&req.WorkerID, "worker", "", "filter by worker id")
	cmd.Flags().StringVar(&req.Start, "start", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&req.End, "end", "", "last date YYYY-MM-DD, inclusive")
	return cmd
}

func newAttendanceHistoryCommand(opts *rootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "history <worker-id>",
		Short: "Show superseded versions of one attendance record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = opts.today()
			}
			day, err := domain.ParseDate(date)
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				revisions, err := rt.service.AttendanceHistory(cmd.Context(), args[0], day)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(revisions))
				for _, r := range revisions {
					rows = append(rows, []string{fmt.Sprint(r.Version), string(r.Status), yesNo(r.LunchTaken), fmt.Sprint(r.Hours), r.SupersededAt.Format(time.RFC3339)})
				}
				return p.Table(revisions, []string{"Version", "Status", "Lunch", "Hours", "Superseded"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "attendance date YYYY-MM-DD (default today)")
	return cmd
}

func attendanceFields(r domain.AttendanceRecord) [][2]string {
	return [][2]string{
		{"id", r.ID},
		{"worker", r.WorkerID},
		{"date", r.Date.String()},
		{"status", string(r.Status)},
		{"lunch", yesNo(r.LunchTaken)},
		{"hours", fmt.Sprint(r.Hours)},
		{"version", fmt.Sprint(r.Version)},
	}
}
