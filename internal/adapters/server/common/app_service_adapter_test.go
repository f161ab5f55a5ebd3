package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hylla/sitebook/internal/adapters/storage/sqlite"
	"github.com/hylla/sitebook/internal/app"
)

func newTestAdapter(t *testing.T) *AppServiceAdapter {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	ids := 0
	svc := app.NewService(repo, func() string {
		ids++
		return fmt.Sprintf("id-%03d", ids)
	}, func() time.Time {
		return time.Date(2024, 1, 3, 17, 0, 0, 0, time.UTC)
	}, app.ServiceConfig{DefaultBudgetTotal: decimal.RequireFromString("50000")})
	t.Cleanup(svc.Close)
	return NewAppServiceAdapter(svc)
}

func TestValidateRequestReportsFields(t *testing.T) {
	err := ValidateRequest(MarkAttendanceRequest{WorkerID: "w1", Date: "2024-13-01", Status: "sleeping", Hours: -1})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	for _, want := range []string{"date", "status", "hours"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}

	if err := ValidateRequest(PeriodRequest{Start: "2024-01-01"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected half-open period to be rejected, got %v", err)
	}
	if err := ValidateRequest(PeriodRequest{}); err != nil {
		t.Fatalf("empty period should be accepted, got %v", err)
	}
	if err := ValidateRequest(CreateWorkerRequest{Name: "A", DailyRate: "12.5x"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected bad decimal to be rejected, got %v", err)
	}
	if err := ValidateRequest(MarkAttendanceRequest{WorkerID: "w1", Date: "2024-01-01", Status: "half_day"}); err != nil {
		t.Fatalf("half_day alias should be accepted, got %v", err)
	}
}

func TestAdapterPayrollFlow(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	w, err := a.CreateWorker(ctx, CreateWorkerRequest{Name: "Rosa", DailyRate: "5000", LunchAllowance: "500"})
	if err != nil {
		t.Fatalf("CreateWorker() error = %v", err)
	}
	for _, day := range []string{"2024-01-01", "2024-01-02"} {
		if _, err := a.MarkAttendance(ctx, MarkAttendanceRequest{WorkerID: w.ID, Date: day, Status: "present", LunchTaken: true, Hours: 8}); err != nil {
			t.Fatalf("MarkAttendance(%s) error = %v", day, err)
		}
	}
	if _, err := a.MarkAttendance(ctx, MarkAttendanceRequest{WorkerID: w.ID, Date: "2024-01-03", Status: "absent"}); err != nil {
		t.Fatalf("MarkAttendance(absent) error = %v", err)
	}

	_, err = a.MarkAttendance(ctx, MarkAttendanceRequest{WorkerID: w.ID, Date: "2024-01-01", Status: "late"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate attendance, got %v", err)
	}

	period := PeriodRequest{Start: "2024-01-01", End: "2024-01-03"}
	view, err := a.PayrollView(ctx, PayrollRequest{WorkerID: w.ID, PeriodRequest: period})
	if err != nil {
		t.Fatalf("PayrollView() error = %v", err)
	}
	if view.DaysWorked != 2 || !view.Net.Equal(decimal.RequireFromString("9000")) {
		t.Fatalf("unexpected payroll view %#v", view)
	}

	// No explicit period resolves to the current week, which holds the same three days.
	current, err := a.PayrollView(ctx, PayrollRequest{WorkerID: w.ID})
	if err != nil {
		t.Fatalf("PayrollView(current week) error = %v", err)
	}
	if current.DaysWorked != 2 {
		t.Fatalf("unexpected current week view %#v", current)
	}

	unpaid, err := a.MarkUnpaid(ctx, PayrollRequest{WorkerID: w.ID, PeriodRequest: period})
	if err != nil || unpaid.Found {
		t.Fatalf("MarkUnpaid() before commit = %#v, %v", unpaid, err)
	}
	paid, err := a.MarkPaid(ctx, PayrollRequest{WorkerID: w.ID, PeriodRequest: period})
	if err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}
	if paid.PaidAt == nil {
		t.Fatal("expected paid_at")
	}
	unpaid, err = a.MarkUnpaid(ctx, PayrollRequest{WorkerID: w.ID, PeriodRequest: period})
	if err != nil || !unpaid.Found || unpaid.Entry.PaidAt != nil {
		t.Fatalf("MarkUnpaid() = %#v, %v", unpaid, err)
	}

	entries, err := a.ListLedger(ctx, ListLedgerRequest{Status: "pending"})
	if err != nil {
		t.Fatalf("ListLedger() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one pending entry, got %d", len(entries))
	}

	summary, err := a.BudgetSummary(ctx)
	if err != nil {
		t.Fatalf("BudgetSummary() error = %v", err)
	}
	if !summary.Used.Equal(decimal.RequireFromString("10000")) || !summary.PercentUsed.Equal(decimal.RequireFromString("20")) {
		t.Fatalf("unexpected budget summary %#v", summary)
	}
}

func TestAdapterMapsErrors(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	if _, err := a.PayrollView(ctx, PayrollRequest{WorkerID: "ghost", PeriodRequest: PeriodRequest{Start: "2024-01-01", End: "2024-01-07"}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := a.PayrollBoard(ctx, PeriodRequest{Start: "2024-01-07", End: "2024-01-01"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected inverted period to be invalid, got %v", err)
	}
	if _, err := a.RecordExpense(ctx, RecordExpenseRequest{Category: "Labor", Amount: "10", Date: "2024-01-01"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected manual labor expense to be invalid, got %v", err)
	}
	if _, err := a.SetBudget(ctx, SetBudgetRequest{Total: "-5"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected negative budget to be invalid, got %v", err)
	}
	if _, err := a.ListActivity(ctx, -1); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected negative limit to be invalid, got %v", err)
	}

	var nilAdapter *AppServiceAdapter
	if _, err := nilAdapter.ListWorkers(ctx, true); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAdapterCommitWholePeriod(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	for _, name := range []string{"A", "B"} {
		if _, err := a.CreateWorker(ctx, CreateWorkerRequest{Name: name, DailyRate: "100"}); err != nil {
			t.Fatalf("CreateWorker(%s) error = %v", name, err)
		}
	}
	entries, err := a.CommitPayroll(ctx, CommitPayrollRequest{PeriodRequest: PeriodRequest{Start: "2024-01-01", End: "2024-01-07"}})
	if err != nil {
		t.Fatalf("CommitPayroll() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two committed entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Status != "pending" {
			t.Fatalf("commit must leave entries pending, got %q", e.Status)
		}
	}
}
