// Package common provides transport-agnostic server contracts used by HTTP, MCP, and websocket adapters.
package common

import (
	"context"
	"errors"

	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/domain"
)

// ErrInvalidRequest reports malformed or semantically invalid input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports writes rejected by a uniqueness or version check.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports a surface whose backing component is not configured.
var ErrUnavailable = errors.New("unavailable")

// CreateWorkerRequest captures input for a new worker.
type CreateWorkerRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	Role           string `json:"role,omitempty" validate:"max=100"`
	DailyRate      string `json:"daily_rate" validate:"required,decimal"`
	LunchAllowance string `json:"lunch_allowance" validate:"omitempty,decimal"`
}

// SetWorkerActiveRequest toggles whether a worker may receive new attendance.
type SetWorkerActiveRequest struct {
	WorkerID string `json:"worker_id" validate:"required"`
	Active   bool   `json:"active"`
}

// MarkAttendanceRequest records one attendance fact.
type MarkAttendanceRequest struct {
	WorkerID   string  `json:"worker_id" validate:"required"`
	Date       string  `json:"date" validate:"required,isodate"`
	Status     string  `json:"status" validate:"required,attendance_status"`
	LunchTaken bool    `json:"lunch_taken"`
	Hours      float64 `json:"hours" validate:"gte=0,lte=24"`
	Note       string  `json:"note,omitempty" validate:"max=500"`
}

// CorrectAttendanceRequest replaces the values of an existing attendance fact.
type CorrectAttendanceRequest MarkAttendanceRequest

// ListAttendanceRequest filters attendance facts. Start and End are inclusive.
type ListAttendanceRequest struct {
	WorkerID string `json:"worker_id,omitempty"`
	Start    string `json:"start,omitempty" validate:"required_with=End,omitempty,isodate"`
	End      string `json:"end,omitempty" validate:"required_with=Start,omitempty,isodate"`
}

// RecordExpenseRequest captures a manually entered expense.
type RecordExpenseRequest struct {
	Category    string `json:"category" validate:"required,max=100"`
	Amount      string `json:"amount" validate:"required,decimal"`
	Date        string `json:"date" validate:"required,isodate"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

// ListExpensesRequest filters expenses.
type ListExpensesRequest struct {
	Category string `json:"category,omitempty"`
	WorkerID string `json:"worker_id,omitempty"`
	Start    string `json:"start,omitempty" validate:"required_with=End,omitempty,isodate"`
	End      string `json:"end,omitempty" validate:"required_with=Start,omitempty,isodate"`
}

// PeriodRequest names an inclusive payroll period. Empty bounds mean the current week.
type PeriodRequest struct {
	Start string `json:"start,omitempty" validate:"required_with=End,omitempty,isodate"`
	End   string `json:"end,omitempty" validate:"required_with=Start,omitempty,isodate"`
}

// PayrollRequest names one worker and period.
type PayrollRequest struct {
	WorkerID string `json:"worker_id" validate:"required"`
	PeriodRequest
}

// CommitPayrollRequest commits one worker, or every active worker when WorkerID is empty.
type CommitPayrollRequest struct {
	WorkerID string `json:"worker_id,omitempty"`
	PeriodRequest
}

// ListLedgerRequest filters payroll ledger entries.
type ListLedgerRequest struct {
	WorkerID string `json:"worker_id,omitempty"`
	Status   string `json:"status,omitempty" validate:"omitempty,oneof=pending paid"`
	PeriodRequest
}

// SetBudgetRequest replaces the project total budget.
type SetBudgetRequest struct {
	Total string `json:"total_budget" validate:"required,decimal"`
}

// UnpaidResult reports the outcome of an unpaid transition. Found is false when
// no ledger entry existed, which is not an error.
type UnpaidResult struct {
	Found bool                       `json:"found"`
	Entry *domain.PayrollLedgerEntry `json:"entry,omitempty"`
}

// PayrollService is the operation surface every transport exposes.
type PayrollService interface {
	CreateWorker(context.Context, CreateWorkerRequest) (domain.Worker, error)
	ListWorkers(context.Context, bool) ([]domain.Worker, error)
	SetWorkerActive(context.Context, SetWorkerActiveRequest) (domain.Worker, error)
	MarkAttendance(context.Context, MarkAttendanceRequest) (app.AttendanceResult, error)
	CorrectAttendance(context.Context, CorrectAttendanceRequest) (app.AttendanceResult, error)
	ListAttendance(context.Context, ListAttendanceRequest) ([]domain.AttendanceRecord, error)
	RecordExpense(context.Context, RecordExpenseRequest) (domain.ExpenseRecord, error)
	ListExpenses(context.Context, ListExpensesRequest) ([]domain.ExpenseRecord, error)
	PayrollView(context.Context, PayrollRequest) (domain.PayrollComputation, error)
	PayrollBoard(context.Context, PeriodRequest) ([]app.PayrollRow, error)
	CommitPayroll(context.Context, CommitPayrollRequest) ([]domain.PayrollLedgerEntry, error)
	MarkPaid(context.Context, PayrollRequest) (domain.PayrollLedgerEntry, error)
	MarkUnpaid(context.Context, PayrollRequest) (UnpaidResult, error)
	ListLedger(context.Context, ListLedgerRequest) ([]domain.PayrollLedgerEntry, error)
	BudgetSummary(context.Context) (domain.BudgetSummary, error)
	SetBudget(context.Context, SetBudgetRequest) (domain.BudgetSummary, error)
	RecalculateBudget(context.Context) (domain.BudgetSummary, error)
	ListActivity(context.Context, int) ([]domain.ActivityEntry, error)
}

// BoardReader exposes the latest live payroll board snapshot.
type BoardReader interface {
	Snapshot() app.BoardSnapshot
}

// ChangeFeed lets remote clients follow collection changes.
type ChangeFeed interface {
	Subscribe(domain.Collection, app.ChangeHandler) (app.Unsubscribe, error)
}
