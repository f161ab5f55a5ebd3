package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hylla/sitebook/internal/domain"
)

// AttendanceFilter narrows attendance listings. Zero values match everything.
type AttendanceFilter struct {
	WorkerID string
	Period   *domain.Period
}

// ExpenseFilter narrows expense listings. Zero values match everything.
type ExpenseFilter struct {
	Category     string
	WorkerID     string
	AttendanceID string
	Period       *domain.Period
}

// LedgerFilter narrows payroll ledger listings.
type LedgerFilter struct {
	WorkerID string
	Period   *domain.Period
	Status   domain.PaymentStatus
}

// WorkerStore persists worker records.
type WorkerStore interface {
	CreateWorker(context.Context, domain.Worker) error
	UpdateWorker(context.Context, domain.Worker) error
	GetWorker(context.Context, string) (domain.Worker, error)
	ListWorkers(context.Context, bool) ([]domain.Worker, error)
}

// AttendanceStore persists attendance facts.
// CreateAttendance returns domain.ErrDuplicateAttendance when (worker_id, date) exists.
type AttendanceStore interface {
	CreateAttendance(context.Context, domain.AttendanceRecord) error
	GetAttendance(context.Context, string, domain.Date) (domain.AttendanceRecord, error)
	ReviseAttendance(context.Context, domain.AttendanceRecord, domain.AttendanceRevision) error
	ListAttendance(context.Context, AttendanceFilter) ([]domain.AttendanceRecord, error)
	ListAttendanceRevisions(context.Context, string) ([]domain.AttendanceRevision, error)
}

// ExpenseStore persists expense facts. Rows are never edited.
type ExpenseStore interface {
	CreateExpense(context.Context, domain.ExpenseRecord) error
	ListExpenses(context.Context, ExpenseFilter) ([]domain.ExpenseRecord, error)
}

// LedgerStore persists payroll ledger entries keyed by (worker_id, period_start, period_end).
// Implementations must enforce the key at the storage layer and upsert on it.
type LedgerStore interface {
	CommitPayrollEntry(context.Context, domain.PayrollComputation, time.Time) (domain.PayrollLedgerEntry, error)
	MarkPayrollPaid(context.Context, domain.PayrollComputation, time.Time) (domain.PayrollLedgerEntry, error)
	MarkPayrollUnpaid(context.Context, domain.LedgerKey, time.Time) (domain.PayrollLedgerEntry, bool, error)
	GetPayrollEntry(context.Context, domain.LedgerKey) (domain.PayrollLedgerEntry, error)
	ListPayrollEntries(context.Context, LedgerFilter) ([]domain.PayrollLedgerEntry, error)
}

// BudgetStore persists the singleton budget row. GetBudget returns ErrNotFound before the first write.
type BudgetStore interface {
	GetBudget(context.Context) (domain.Budget, error)
	SetBudgetTotal(context.Context, decimal.Decimal, time.Time) (domain.Budget, error)
	UpdateUsedBudget(context.Context, decimal.Decimal, decimal.Decimal, time.Time) (domain.Budget, error)
}

// ActivityStore appends and lists audit-log entries.
type ActivityStore interface {
	AppendActivity(context.Context, domain.ActivityEntry) (domain.ActivityEntry, error)
	ListActivity(context.Context, int) ([]domain.ActivityEntry, error)
}

// Repository represents the full fact store and derived-state persistence used by Service.
type Repository interface {
	WorkerStore
	AttendanceStore
	ExpenseStore
	LedgerStore
	BudgetStore
	ActivityStore
}
