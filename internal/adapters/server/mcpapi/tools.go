package mcpapi

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/sitebook/internal/adapters/server/common"
)

// attendanceStatuses lists the status values advertised to MCP clients.
var attendanceStatuses = []string{"present", "absent", "late", "half-day"}

// boundTool adapts one request-struct service call into a tool handler. Arguments
// bind straight onto the request's JSON tags and the result is encoded under key,
// or as the bare value when key is empty.
func boundTool[Req any, Out any](name, key string, call func(context.Context, Req) (Out, error)) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args Req
		if err := req.BindArguments(&args); err != nil {
			return invalidRequestToolResult(err), nil
		}
		out, err := call(ctx, args)
		if err != nil {
			return toolResultFromError(err), nil
		}
		return encodeResult(name, key, out)
	}
}

// encodeResult renders one structured tool result.
func encodeResult(name, key string, out any) (*mcp.CallToolResult, error) {
	var payload any = out
	if key != "" {
		payload = map[string]any{key: out}
	}
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", name, err)
	}
	return result, nil
}

// periodOptions declares the optional inclusive period bounds shared by payroll tools.
func periodOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("start", mcp.Description("Period start date YYYY-MM-DD (defaults to the current week)")),
		mcp.WithString("end", mcp.Description("Period end date YYYY-MM-DD, inclusive")),
	}
}

func toolOptions(description string, opts ...[]mcp.ToolOption) []mcp.ToolOption {
	out := []mcp.ToolOption{mcp.WithDescription(description)}
	for _, group := range opts {
		out = append(out, group...)
	}
	return out
}

// registerWorkerTools registers worker roster tools.
func registerWorkerTools(srv *mcpserver.MCPServer, service common.PayrollService) {
	srv.AddTool(
		mcp.NewTool(
			"sitebook.list_workers",
			mcp.WithDescription("List workers ordered by name."),
			mcp.WithBoolean("include_inactive", mcp.Description("Include deactivated workers")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := service.ListWorkers(ctx, req.GetBool("include_inactive", false))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return encodeResult("list_workers", "workers", rows)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sitebook.create_worker",
			mcp.WithDescription("Create one worker with a daily rate and lunch allowance."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Worker name")),
			mcp.WithString("role", mcp.Description("Trade or role")),
			mcp.WithString("daily_rate", mcp.Required(), mcp.Description("Daily rate as a decimal string")),
			mcp.WithString("lunch_allowance", mcp.Description("Lunch allowance per day as a decimal string")),
		),
		boundTool("create_worker", "", service.CreateWorker),
	)

	srv.AddTool(
		mcp.NewTool(
			"sitebook.set_worker_active",
			mcp.WithDescription("Activate or deactivate one worker. Inactive workers cannot receive new attendance."),
			mcp.WithString("worker_id", mcp.Required(), mcp.Description("Worker identifier")),
			mcp.WithBoolean("active", mcp.Required(), mcp.Description("Whether the worker is active")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			workerID, err := req.RequireString("worker_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			active, err := req.RequireBool("active")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			worker, err := service.SetWorkerActive(ctx, common.SetWorkerActiveRequest{WorkerID: workerID, Active: active})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return encodeResult("set_worker_active", "", worker)
		},
	)
}

// attendanceOptions declares the arguments shared by mark and correct.
func attendanceOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("worker_id", mcp.Required(), mcp.Description("Worker identifier")),
		mcp.WithString("date", mcp.Required(), mcp.Description("Attendance date YYYY-MM-DD")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Attendance status"), mcp.Enum(attendanceStatuses...)),
		mcp.WithBoolean("lunch_taken", mcp.Description("Whether lunch was taken")),
		mcp.WithNumber("hours", mcp.Description("Hours worked, 0 to 24")),
		mcp.WithString("note", mcp.Description("Optional note")),
	}
}

// registerAttendanceTools registers attendance tools.
func registerAttendanceTools(srv *mcpserver.MCPServer, service common.PayrollService) {
	srv.AddTool(
		mcp.NewTool("sitebook.mark_attendance", toolOptions(
			"Record one attendance fact. A second mark for the same worker and date is rejected as duplicate_attendance.",
			attendanceOptions(),
		)...),
		boundTool("mark_attendance", "", service.MarkAttendance),
	)

	srv.AddTool(
		mcp.NewTool("sitebook.correct_attendance", toolOptions(
			"Replace an existing attendance fact and reconcile its labor cost.",
			attendanceOptions(),
		)...),
		boundTool("correct_attendance", "", service.CorrectAttendance),
	)

	srv.AddTool(
		mcp.NewTool("sitebook.list_attendance", toolOptions(
			"List attendance facts, optionally filtered by worker and inclusive date range.",
			[]mcp.ToolOption{mcp.WithString("worker_id", mcp.Description("Worker identifier"))},
			periodOptions(),
		)...),
		boundTool("list_attendance", "attendance", service.ListAttendance),
	)
}

// registerExpenseTools registers expense tools.
func registerExpenseTools(srv *mcpserver.MCPServer, service common.PayrollService) {
	srv.AddTool(
		mcp.NewTool(
			"sitebook.record_expense",
			mcp.WithDescription("Record one manual expense. Labor is reserved for attendance-derived costs."),
			mcp.WithString("category", mcp.Required(), mcp.Description("Expense category")),
			mcp.WithString("amount", mcp.Required(), mcp.Description("Amount as a decimal string")),
			mcp.WithString("date", mcp.Required(), mcp.Description("Expense date YYYY-MM-DD")),
			mcp.WithString("description", mcp.Description("Optional description")),
		),
		boundTool("record_expense", "", service.RecordExpense),
	)

	srv.AddTool(
		mcp.NewTool("sitebook.list_expenses", toolOptions(
			"List expenses, optionally filtered by category, worker, and inclusive date range.",
			[]mcp.ToolOption{
				mcp.WithString("category", mcp.Description("Expense category")),
				mcp.WithString("worker_id", mcp.Description("Worker identifier for labor rows")),
			},
			periodOptions(),
		)...),
		boundTool("list_expenses", "expenses", service.ListExpenses),
	)
}

// registerPayrollTools registers payroll derivation and ledger tools.
func registerPayrollTools(srv *mcpserver.MCPServer, service common.PayrollService) {
	workerRequired := []mcp.ToolOption{mcp.WithString("worker_id", mcp.Required(), mcp.Description("Worker identifier"))}

	srv.AddTool(
		mcp.NewTool("sitebook.payroll_view", toolOptions(
			"Derive one worker's payroll for a period from attendance.",
			workerRequired,
			periodOptions(),
		)...),
		boundTool("payroll_view", "", service.PayrollView),
	)

	srv.AddTool(
		mcp.NewTool("sitebook.payroll_board", toolOptions(
			"Derive payroll rows for every active worker with their ledger status.",
			periodOptions(),
		)...),
		boundTool("payroll_board", "rows", service.PayrollBoard),
	)

	srv.AddTool(
		mcp.NewTool("sitebook.commit_payroll", toolOptions(
			"Write derived payroll into the ledger as pending. Omit worker_id to commit every active worker.",
			[]mcp.ToolOption{mcp.WithString("worker_id", mcp.Description("Worker identifier"))},
			periodOptions(),
		)...),
		boundTool("commit_payroll", "entries", service.CommitPayroll),
	)

	srv.AddTool(
		mcp.NewTool("sitebook.mark_paid", toolOptions(
			"Mark one worker's period paid, creating the ledger entry when missing.",
			workerRequired,
			periodOptions(),
		)...),
		boundTool("mark_paid", "", service.MarkPaid),
	)

	srv.AddTool(
		mcp.NewTool("sitebook.mark_unpaid", toolOptions(
			"Return one worker's period to pending. Reports found=false when no ledger entry exists.",
			workerRequired,
			periodOptions(),
		)...),
		boundTool("mark_unpaid", "", service.MarkUnpaid),
	)

	srv.AddTool(
		mcp.NewTool("sitebook.list_ledger", toolOptions(
			"List payroll ledger entries.",
			[]mcp.ToolOption{
				mcp.WithString("worker_id", mcp.Description("Worker identifier")),
				mcp.WithString("status", mcp.Description("Ledger status"), mcp.Enum("pending", "paid")),
			},
			periodOptions(),
		)...),
		boundTool("list_ledger", "entries", service.ListLedger),
	)
}

// registerBudgetTools registers budget tools.
func registerBudgetTools(srv *mcpserver.MCPServer, service common.PayrollService) {
	srv.AddTool(
		mcp.NewTool(
			"sitebook.budget_summary",
			mcp.WithDescription("Return total, used, remaining, and percent used."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			summary, err := service.BudgetSummary(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return encodeResult("budget_summary", "", summary)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sitebook.set_budget",
			mcp.WithDescription("Replace the project total budget."),
			mcp.WithString("total_budget", mcp.Required(), mcp.Description("Total budget as a decimal string")),
		),
		boundTool("set_budget", "", service.SetBudget),
	)

	srv.AddTool(
		mcp.NewTool(
			"sitebook.recalculate_budget",
			mcp.WithDescription("Recompute used budget from the expense ledger."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			summary, err := service.RecalculateBudget(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return encodeResult("recalculate_budget", "", summary)
		},
	)
}

// registerActivityTools registers the activity log tool.
func registerActivityTools(srv *mcpserver.MCPServer, service common.PayrollService) {
	srv.AddTool(
		mcp.NewTool(
			"sitebook.list_activity",
			mcp.WithDescription("List recent activity, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum entries to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			entries, err := service.ListActivity(ctx, req.GetInt("limit", 0))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return encodeResult("list_activity", "entries", entries)
		},
	)
}
