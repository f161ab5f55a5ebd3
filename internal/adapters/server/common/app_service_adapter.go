package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/domain"
)

// requestValidate checks request shapes before they reach app.Service.
var requestValidate = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseAttendanceStatus(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidateRequest runs struct-tag validation and reports failures as ErrInvalidRequest.
func ValidateRequest(req any) error {
	err := requestValidate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(parts, "; "))
}

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return nil
}

func (a *AppServiceAdapter) CreateWorker(ctx context.Context, in CreateWorkerRequest) (domain.Worker, error) {
	if err := a.ready(); err != nil {
		return domain.Worker{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return domain.Worker{}, err
	}
	lunch := decimal.Zero
	if strings.TrimSpace(in.LunchAllowance) != "" {
		lunch = mustDecimal(in.LunchAllowance)
	}
	worker, err := a.service.CreateWorker(ctx, app.CreateWorkerInput{
		Name:           in.Name,
		Role:           in.Role,
		DailyRate:      mustDecimal(in.DailyRate),
		LunchAllowance: lunch,
	})
	if err != nil {
		return domain.Worker{}, mapAppError("create worker", err)
	}
	return worker, nil
}

func (a *AppServiceAdapter) ListWorkers(ctx context.Context, includeInactive bool) ([]domain.Worker, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	workers, err := a.service.ListWorkers(ctx, includeInactive)
	if err != nil {
		return nil, mapAppError("list workers", err)
	}
	return workers, nil
}

func (a *AppServiceAdapter) SetWorkerActive(ctx context.Context, in SetWorkerActiveRequest) (domain.Worker, error) {
	if err := a.ready(); err != nil {
		return domain.Worker{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return domain.Worker{}, err
	}
	worker, err := a.service.SetWorkerActive(ctx, in.WorkerID, in.Active)
	if err != nil {
		return domain.Worker{}, mapAppError("set worker active", err)
	}
	return worker, nil
}

func (a *AppServiceAdapter) MarkAttendance(ctx context.Context, in MarkAttendanceRequest) (app.AttendanceResult, error) {
	if err := a.ready(); err != nil {
		return app.AttendanceResult{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return app.AttendanceResult{}, err
	}
	status, _ := domain.ParseAttendanceStatus(in.Status)
	out, err := a.service.MarkAttendance(ctx, app.MarkAttendanceInput{
		WorkerID:   in.WorkerID,
		Date:       domain.MustParseDate(in.Date),
		Status:     status,
		LunchTaken: in.LunchTaken,
		Hours:      in.Hours,
		Note:       in.Note,
	})
	if err != nil {
		return app.AttendanceResult{}, mapAppError("mark attendance", err)
	}
	return out, nil
}

func (a *AppServiceAdapter) CorrectAttendance(ctx context.Context, in CorrectAttendanceRequest) (app.AttendanceResult, error) {
	if err := a.ready(); err != nil {
		return app.AttendanceResult{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return app.AttendanceResult{}, err
	}
	status, _ := domain.ParseAttendanceStatus(in.Status)
	out, err := a.service.CorrectAttendance(ctx, app.CorrectAttendanceInput{
		WorkerID:   in.WorkerID,
		Date:       domain.MustParseDate(in.Date),
		Status:     status,
		LunchTaken: in.LunchTaken,
		Hours:      in.Hours,
		Note:       in.Note,
	})
	if err != nil {
		return app.AttendanceResult{}, mapAppError("correct attendance", err)
	}
	return out, nil
}

func (a *AppServiceAdapter) ListAttendance(ctx context.Context, in ListAttendanceRequest) ([]domain.AttendanceRecord, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if err := ValidateRequest(in); err != nil {
		return nil, err
	}
	period, err := optionalPeriod(in.Start, in.End)
	if err != nil {
		return nil, err
	}
	facts, err := a.service.ListAttendance(ctx, app.AttendanceFilter{WorkerID: strings.TrimSpace(in.WorkerID), Period: period})
	if err != nil {
		return nil, mapAppError("list attendance", err)
	}
	return facts, nil
}

func (a *AppServiceAdapter) RecordExpense(ctx context.Context, in RecordExpenseRequest) (domain.ExpenseRecord, error) {
	if err := a.ready(); err != nil {
		return domain.ExpenseRecord{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return domain.ExpenseRecord{}, err
	}
	expense, err := a.service.RecordExpense(ctx, app.RecordExpenseInput{
		Category:    in.Category,
		Amount:      mustDecimal(in.Amount),
		Date:        domain.MustParseDate(in.Date),
		Description: in.Description,
	})
	if err != nil {
		return domain.ExpenseRecord{}, mapAppError("record expense", err)
	}
	return expense, nil
}

func (a *AppServiceAdapter) ListExpenses(ctx context.Context, in ListExpensesRequest) ([]domain.ExpenseRecord, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if err := ValidateRequest(in); err != nil {
		return nil, err
	}
	period, err := optionalPeriod(in.Start, in.End)
	if err != nil {
		return nil, err
	}
	expenses, err := a.service.ListExpenses(ctx, app.ExpenseFilter{
		Category: strings.TrimSpace(in.Category),
		WorkerID: strings.TrimSpace(in.WorkerID),
		Period:   period,
	})
	if err != nil {
		return nil, mapAppError("list expenses", err)
	}
	return expenses, nil
}

func (a *AppServiceAdapter) PayrollView(ctx context.Context, in PayrollRequest) (domain.PayrollComputation, error) {
	if err := a.ready(); err != nil {
		return domain.PayrollComputation{}, err
	}
	period, err := a.requestPeriod(in.PeriodRequest)
	if err != nil {
		return domain.PayrollComputation{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return domain.PayrollComputation{}, err
	}
	c, err := a.service.PayrollView(ctx, in.WorkerID, period)
	if err != nil {
		return domain.PayrollComputation{}, mapAppError("payroll view", err)
	}
	return c, nil
}

func (a *AppServiceAdapter) PayrollBoard(ctx context.Context, in PeriodRequest) ([]app.PayrollRow, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	period, err := a.requestPeriod(in)
	if err != nil {
		return nil, err
	}
	rows, err := a.service.PayrollBoard(ctx, period)
	if err != nil {
		return nil, mapAppError("payroll board", err)
	}
	return rows, nil
}

// CommitPayroll commits one worker's snapshot, or the whole period when no worker is named.
func (a *AppServiceAdapter) CommitPayroll(ctx context.Context, in CommitPayrollRequest) ([]domain.PayrollLedgerEntry, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	period, err := a.requestPeriod(in.PeriodRequest)
	if err != nil {
		return nil, err
	}
	if workerID := strings.TrimSpace(in.WorkerID); workerID != "" {
		entry, err := a.service.CommitPayroll(ctx, workerID, period)
		if err != nil {
			return nil, mapAppError("commit payroll", err)
		}
		return []domain.PayrollLedgerEntry{entry}, nil
	}
	entries, err := a.service.CommitPeriod(ctx, period)
	if err != nil {
		return nil, mapAppError("commit payroll period", err)
	}
	return entries, nil
}

func (a *AppServiceAdapter) MarkPaid(ctx context.Context, in PayrollRequest) (domain.PayrollLedgerEntry, error) {
	if err := a.ready(); err != nil {
		return domain.PayrollLedgerEntry{}, err
	}
	period, err := a.requestPeriod(in.PeriodRequest)
	if err != nil {
		return domain.PayrollLedgerEntry{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return domain.PayrollLedgerEntry{}, err
	}
	entry, err := a.service.MarkPaid(ctx, in.WorkerID, period)
	if err != nil {
		return domain.PayrollLedgerEntry{}, mapAppError("mark paid", err)
	}
	return entry, nil
}

func (a *AppServiceAdapter) MarkUnpaid(ctx context.Context, in PayrollRequest) (UnpaidResult, error) {
	if err := a.ready(); err != nil {
		return UnpaidResult{}, err
	}
	period, err := a.requestPeriod(in.PeriodRequest)
	if err != nil {
		return UnpaidResult{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return UnpaidResult{}, err
	}
	entry, found, err := a.service.MarkUnpaid(ctx, in.WorkerID, period)
	if err != nil {
		return UnpaidResult{}, mapAppError("mark unpaid", err)
	}
	if !found {
		return UnpaidResult{}, nil
	}
	return UnpaidResult{Found: true, Entry: &entry}, nil
}

func (a *AppServiceAdapter) ListLedger(ctx context.Context, in ListLedgerRequest) ([]domain.PayrollLedgerEntry, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if err := ValidateRequest(in); err != nil {
		return nil, err
	}
	period, err := optionalPeriod(in.Start, in.End)
	if err != nil {
		return nil, err
	}
	filter := app.LedgerFilter{WorkerID: strings.TrimSpace(in.WorkerID), Period: period}
	if in.Status != "" {
		filter.Status = domain.PaymentStatus(in.Status)
	}
	entries, err := a.service.ListLedger(ctx, filter)
	if err != nil {
		return nil, mapAppError("list ledger", err)
	}
	return entries, nil
}

func (a *AppServiceAdapter) BudgetSummary(ctx context.Context) (domain.BudgetSummary, error) {
	if err := a.ready(); err != nil {
		return domain.BudgetSummary{}, err
	}
	summary, err := a.service.BudgetSummary(ctx)
	if err != nil {
		return domain.BudgetSummary{}, mapAppError("budget summary", err)
	}
	return summary, nil
}

func (a *AppServiceAdapter) SetBudget(ctx context.Context, in SetBudgetRequest) (domain.BudgetSummary, error) {
	if err := a.ready(); err != nil {
		return domain.BudgetSummary{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return domain.BudgetSummary{}, err
	}
	budget, err := a.service.SetTotalBudget(ctx, mustDecimal(in.Total))
	if err != nil {
		return domain.BudgetSummary{}, mapAppError("set budget", err)
	}
	return budget.Summary(), nil
}

func (a *AppServiceAdapter) RecalculateBudget(ctx context.Context) (domain.BudgetSummary, error) {
	if err := a.ready(); err != nil {
		return domain.BudgetSummary{}, err
	}
	budget, err := a.service.RecalculateBudget(ctx)
	if err != nil {
		return domain.BudgetSummary{}, mapAppError("recalculate budget", err)
	}
	return budget.Summary(), nil
}

func (a *AppServiceAdapter) ListActivity(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	entries, err := a.service.ListActivity(ctx, limit)
	if err != nil {
		return nil, mapAppError("list activity", err)
	}
	return entries, nil
}

// requestPeriod resolves an explicit period or falls back to the current week.
func (a *AppServiceAdapter) requestPeriod(in PeriodRequest) (domain.Period, error) {
	if err := ValidateRequest(in); err != nil {
		return domain.Period{}, err
	}
	if strings.TrimSpace(in.Start) == "" {
		return a.service.CurrentWeek(), nil
	}
	period, err := domain.ParsePeriod(in.Start, in.End)
	if err != nil {
		return domain.Period{}, mapAppError("parse period", err)
	}
	return period, nil
}

func optionalPeriod(start, end string) (*domain.Period, error) {
	if strings.TrimSpace(start) == "" {
		return nil, nil
	}
	period, err := domain.ParsePeriod(start, end)
	if err != nil {
		return nil, mapAppError("parse period", err)
	}
	return &period, nil
}

// mustDecimal parses a value already accepted by the "decimal" validation tag.
func mustDecimal(raw string) decimal.Decimal {
	return decimal.RequireFromString(strings.TrimSpace(raw))
}

// mapAppError maps app/domain errors into transport-layer error sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrDuplicateAttendance),
		errors.Is(err, app.ErrVersionConflict):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrInvalidRate),
		errors.Is(err, domain.ErrInvalidLunch),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidHours),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrReservedCategory),
		errors.Is(err, domain.ErrInvalidPayment),
		errors.Is(err, domain.ErrWorkerInactive),
		errors.Is(err, domain.ErrAttendanceUnchanged),
		errors.Is(err, domain.ErrAttendanceWorkerDiff),
		errors.Is(err, app.ErrInvalidLimit):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
