package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hylla/sitebook/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	Policy             domain.PayPolicy
	WeekStart          time.Weekday
	DefaultBudgetTotal decimal.Decimal

	// Notifier fans out change signals. When nil, budget recalculation runs inline.
	Notifier *Notifier
	Logger   Logger
	Metrics  *Metrics
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service is the application entry point for workers, attendance, expenses,
// payroll and budget operations.
type Service struct {
	repo      Repository
	idGen     IDGenerator
	clock     Clock
	policy    domain.PayPolicy
	weekStart time.Weekday

	ledger   *PayrollLedger
	budget   *BudgetAggregator
	activity *ActivityRecorder
	notifier *Notifier
	detach   Unsubscribe
	logger   Logger
	metrics  *Metrics
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	clock = clockOrNow(clock)
	if len(cfg.Policy.PaidStatuses) == 0 {
		cfg.Policy = domain.DefaultPayPolicy()
	}
	logger := loggerOrNop(cfg.Logger)
	recorder := NewActivityRecorder(repo, cfg.Notifier, clock, logger, cfg.Metrics)

	s := &Service{
		repo:      repo,
		idGen:     idGen,
		clock:     clock,
		policy:    cfg.Policy,
		weekStart: cfg.WeekStart,
		ledger:    NewPayrollLedger(repo, clock),
		budget:    NewBudgetAggregator(repo, repo, recorder, cfg.DefaultBudgetTotal, clock, logger, cfg.Metrics),
		activity:  recorder,
		notifier:  cfg.Notifier,
		logger:    logger,
		metrics:   cfg.Metrics,
	}
	if cfg.Notifier != nil {
		detach, err := s.budget.Attach(cfg.Notifier)
		if err != nil {
			logger.Warn("budget aggregator not attached, recalculating inline", "err", err)
		} else {
			s.detach = detach
		}
	}
	return s
}

// Close detaches background subscribers owned by the service.
func (s *Service) Close() {
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
}

// Policy returns the pay policy in effect.
func (s *Service) Policy() domain.PayPolicy {
	return s.policy
}

// WeekOf returns the configured week containing d.
func (s *Service) WeekOf(d domain.Date) domain.Period {
	return domain.WeekOf(d, s.weekStart)
}

// CurrentWeek returns the configured week containing today.
func (s *Service) CurrentWeek() domain.Period {
	return s.WeekOf(domain.DateOf(s.clock()))
}

// CreateWorkerInput holds input values for create worker operations.
type CreateWorkerInput struct {
	Name           string
	Role           string
	DailyRate      decimal.Decimal
	LunchAllowance decimal.Decimal
}

// CreateWorker creates worker.
func (s *Service) CreateWorker(ctx context.Context, in CreateWorkerInput) (domain.Worker, error) {
	worker, err := domain.NewWorker(domain.WorkerInput{
		ID:             s.idGen(),
		Name:           in.Name,
		Role:           in.Role,
		DailyRate:      in.DailyRate,
		LunchAllowance: in.LunchAllowance,
	}, s.clock())
	if err != nil {
		return domain.Worker{}, err
	}
	if err := s.repo.CreateWorker(ctx, worker); err != nil {
		return domain.Worker{}, err
	}
	s.activity.Record(ctx, domain.CollectionWorkers, domain.ActionWorkerCreated, worker.ID,
		fmt.Sprintf("worker %s added at %s/day", worker.Name, worker.DailyRate.StringFixed(2)), nil)
	return worker, nil
}

// GetWorker returns one worker by id.
func (s *Service) GetWorker(ctx context.Context, id string) (domain.Worker, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Worker{}, domain.ErrInvalidID
	}
	return s.repo.GetWorker(ctx, id)
}

// ListWorkers lists workers ordered by name.
func (s *Service) ListWorkers(ctx context.Context, includeInactive bool) ([]domain.Worker, error) {
	return s.repo.ListWorkers(ctx, includeInactive)
}

// SetWorkerActive toggles whether a worker appears in boards and period commits.
func (s *Service) SetWorkerActive(ctx context.Context, id string, active bool) (domain.Worker, error) {
	worker, err := s.GetWorker(ctx, id)
	if err != nil {
		return domain.Worker{}, err
	}
	if worker.Active == active {
		return worker, nil
	}
	worker.SetActive(active, s.clock())
	if err := s.repo.UpdateWorker(ctx, worker); err != nil {
		return domain.Worker{}, err
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	s.activity.Record(ctx, domain.CollectionWorkers, domain.ActionWorkerUpdated, worker.ID,
		fmt.Sprintf("worker %s %s", worker.Name, state), map[string]string{"is_active": fmt.Sprint(active)})
	return worker, nil
}

// UpdateWorkerRates changes the rates used by future derivations and labor expenses.
func (s *Service) UpdateWorkerRates(ctx context.Context, id string, dailyRate, lunchAllowance decimal.Decimal) (domain.Worker, error) {
	worker, err := s.GetWorker(ctx, id)
	if err != nil {
		return domain.Worker{}, err
	}
	if err := worker.UpdateRates(dailyRate, lunchAllowance, s.clock()); err != nil {
		return domain.Worker{}, err
	}
	if err := s.repo.UpdateWorker(ctx, worker); err != nil {
		return domain.Worker{}, err
	}
	s.activity.Record(ctx, domain.CollectionWorkers, domain.ActionWorkerUpdated, worker.ID,
		fmt.Sprintf("worker %s rates set to %s/day, lunch %s", worker.Name, dailyRate.StringFixed(2), lunchAllowance.StringFixed(2)),
		map[string]string{"daily_rate": dailyRate.String(), "lunch_allowance": lunchAllowance.String()})
	return worker, nil
}

// MarkAttendanceInput holds input values for mark attendance operations.
type MarkAttendanceInput struct {
	WorkerID   string
	Date       domain.Date
	Status     domain.AttendanceStatus
	LunchTaken bool
	Hours      float64
	Note       string
}

// AttendanceResult is an attendance write plus the labor expense it produced.
type AttendanceResult struct {
	Attendance   domain.AttendanceRecord `json:"attendance"`
	LaborExpense *domain.ExpenseRecord   `json:"labor_expense,omitempty"`
}

// MarkAttendance records a new attendance fact. A second mark for the same
// worker and date fails with domain.ErrDuplicateAttendance and changes nothing.
func (s *Service) MarkAttendance(ctx context.Context, in MarkAttendanceInput) (AttendanceResult, error) {
	worker, err := s.GetWorker(ctx, in.WorkerID)
	if err != nil {
		return AttendanceResult{}, err
	}
	if !worker.Active {
		return AttendanceResult{}, domain.ErrWorkerInactive
	}
	now := s.clock()
	rec, err := domain.NewAttendanceRecord(domain.AttendanceInput{
		ID:         s.idGen(),
		WorkerID:   worker.ID,
		Date:       in.Date,
		Status:     in.Status,
		LunchTaken: in.LunchTaken,
		Hours:      in.Hours,
		Note:       in.Note,
	}, now)
	if err != nil {
		return AttendanceResult{}, err
	}
	if err := s.repo.CreateAttendance(ctx, rec); err != nil {
		return AttendanceResult{}, err
	}
	s.activity.Record(ctx, domain.CollectionAttendance, domain.ActionAttendanceMarked, rec.ID,
		fmt.Sprintf("%s marked %s on %s", worker.Name, rec.Status, rec.Date),
		map[string]string{"worker_id": worker.ID, "date": rec.Date.String(), "status": string(rec.Status)})

	out := AttendanceResult{Attendance: rec}
	if !s.policy.WritesLabor(rec.Status) {
		return out, nil
	}
	expense, err := s.appendLabor(ctx, worker, rec, worker.DailyRate)
	if err != nil {
		return out, err
	}
	out.LaborExpense = &expense
	return out, nil
}

// CorrectAttendanceInput holds replacement values for an existing attendance fact.
type CorrectAttendanceInput struct {
	WorkerID   string
	Date       domain.Date
	Status     domain.AttendanceStatus
	LunchTaken bool
	Hours      float64
	Note       string
}

// CorrectAttendance applies a versioned correction. The superseded version is
// kept as a revision and labor expenses are reconciled by appending a delta row.
func (s *Service) CorrectAttendance(ctx context.Context, in CorrectAttendanceInput) (AttendanceResult, error) {
	worker, err := s.GetWorker(ctx, in.WorkerID)
	if err != nil {
		return AttendanceResult{}, err
	}
	if in.Date.IsZero() {
		return AttendanceResult{}, domain.ErrInvalidDate
	}
	rec, err := s.repo.GetAttendance(ctx, worker.ID, in.Date)
	if err != nil {
		return AttendanceResult{}, err
	}
	prev, err := rec.Correct(domain.AttendanceCorrection{
		Status:     in.Status,
		LunchTaken: in.LunchTaken,
		Hours:      in.Hours,
		Note:       in.Note,
	}, s.clock())
	if err != nil {
		return AttendanceResult{}, err
	}
	if err := s.repo.ReviseAttendance(ctx, rec, prev); err != nil {
		return AttendanceResult{}, err
	}
	s.activity.Record(ctx, domain.CollectionAttendance, domain.ActionAttendanceCorrected, rec.ID,
		fmt.Sprintf("%s on %s corrected from %s to %s", worker.Name, rec.Date, prev.Status, rec.Status),
		map[string]string{
			"worker_id":   worker.ID,
			"date":        rec.Date.String(),
			"from_status": string(prev.Status),
			"to_status":   string(rec.Status),
			"version":     fmt.Sprint(rec.Version),
		})

	out := AttendanceResult{Attendance: rec}
	wasLabor, isLabor := s.policy.WritesLabor(prev.Status), s.policy.WritesLabor(rec.Status)
	if wasLabor == isLabor {
		return out, nil
	}
	existing, err := s.repo.ListExpenses(ctx, ExpenseFilter{AttendanceID: rec.ID, Category: domain.CategoryLabor})
	if err != nil {
		return out, fmt.Errorf("list labor expenses for attendance %s: %w", rec.ID, err)
	}
	// Reversals undo exactly what was booked; re-added labor uses the current rate.
	delta := domain.SumExpenses(existing).Neg()
	if isLabor {
		delta = worker.DailyRate.Sub(domain.SumExpenses(existing))
	}
	if delta.IsZero() {
		return out, nil
	}
	expense, err := s.appendLabor(ctx, worker, rec, delta)
	if err != nil {
		return out, err
	}
	out.LaborExpense = &expense
	return out, nil
}

// appendLabor writes one derived labor expense row for rec.
func (s *Service) appendLabor(ctx context.Context, worker domain.Worker, rec domain.AttendanceRecord, amount decimal.Decimal) (domain.ExpenseRecord, error) {
	expense, err := domain.NewLaborExpense(s.idGen(), worker, rec, amount, s.clock())
	if err != nil {
		return domain.ExpenseRecord{}, err
	}
	if err := s.repo.CreateExpense(ctx, expense); err != nil {
		return domain.ExpenseRecord{}, fmt.Errorf("record labor expense for attendance %s: %w", rec.ID, err)
	}
	s.expenseRecorded(ctx, expense)
	return expense, nil
}

// ListAttendance lists attendance facts matching filter, ordered by date.
func (s *Service) ListAttendance(ctx context.Context, filter AttendanceFilter) ([]domain.AttendanceRecord, error) {
	if filter.Period != nil && !filter.Period.Valid() {
		return nil, domain.ErrInvalidPeriod
	}
	return s.repo.ListAttendance(ctx, filter)
}

// AttendanceHistory returns the superseded versions of one attendance fact, oldest first.
func (s *Service) AttendanceHistory(ctx context.Context, workerID string, date domain.Date) ([]domain.AttendanceRevision, error) {
	rec, err := s.repo.GetAttendance(ctx, workerID, date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAttendanceRevisions(ctx, rec.ID)
}

// RecordExpenseInput holds input values for a manual expense.
type RecordExpenseInput struct {
	Category    string
	Amount      decimal.Decimal
	Date        domain.Date
	Description string
}

// RecordExpense records a manual expense. Labor rows only come from attendance.
func (s *Service) RecordExpense(ctx context.Context, in RecordExpenseInput) (domain.ExpenseRecord, error) {
	expense, err := domain.NewExpense(domain.ExpenseInput{
		ID:          s.idGen(),
		Category:    in.Category,
		Amount:      in.Amount,
		Date:        in.Date,
		Description: in.Description,
	}, s.clock())
	if err != nil {
		return domain.ExpenseRecord{}, err
	}
	if err := s.repo.CreateExpense(ctx, expense); err != nil {
		return domain.ExpenseRecord{}, err
	}
	s.expenseRecorded(ctx, expense)
	return expense, nil
}

// expenseRecorded publishes the expense write and brings the budget up to date.
func (s *Service) expenseRecorded(ctx context.Context, e domain.ExpenseRecord) {
	s.activity.Record(ctx, domain.CollectionExpenses, domain.ActionExpenseRecorded, e.ID,
		fmt.Sprintf("%s expense of %s on %s", e.Category, e.Amount.StringFixed(2), e.Date),
		map[string]string{"category": e.Category, "amount": e.Amount.String()})
	if s.detach != nil {
		return
	}
	if _, err := s.budget.Recalculate(ctx); err != nil {
		s.logger.Error("budget recalculation failed", "err", err)
	}
}

// ListExpenses lists expenses matching filter, ordered by date.
func (s *Service) ListExpenses(ctx context.Context, filter ExpenseFilter) ([]domain.ExpenseRecord, error) {
	if filter.Period != nil && !filter.Period.Valid() {
		return nil, domain.ErrInvalidPeriod
	}
	return s.repo.ListExpenses(ctx, filter)
}

// PayrollView derives the live computation for one worker and period. Nothing is persisted.
func (s *Service) PayrollView(ctx context.Context, workerID string, period domain.Period) (domain.PayrollComputation, error) {
	if !period.Valid() {
		return domain.PayrollComputation{}, domain.ErrInvalidPeriod
	}
	worker, err := s.GetWorker(ctx, workerID)
	if err != nil {
		return domain.PayrollComputation{}, err
	}
	facts, err := s.repo.ListAttendance(ctx, AttendanceFilter{WorkerID: worker.ID, Period: &period})
	if err != nil {
		return domain.PayrollComputation{}, fmt.Errorf("list attendance: %w", err)
	}
	s.metrics.derived(1)
	return domain.DerivePayroll(worker, facts, period, s.policy), nil
}

// PayrollBoard derives payroll for every active worker in period.
func (s *Service) PayrollBoard(ctx context.Context, period domain.Period) ([]PayrollRow, error) {
	if !period.Valid() {
		return nil, domain.ErrInvalidPeriod
	}
	workers, err := s.repo.ListWorkers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	facts, err := s.repo.ListAttendance(ctx, AttendanceFilter{Period: &period})
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	entries, err := s.ledger.List(ctx, LedgerFilter{Period: &period})
	if err != nil {
		return nil, fmt.Errorf("list payroll ledger: %w", err)
	}
	rows := buildPayrollRows(workers, facts, entries, period, s.policy)
	s.metrics.derived(len(rows))
	return rows, nil
}

// CommitPayroll upserts the current computation into the ledger without touching payment state.
func (s *Service) CommitPayroll(ctx context.Context, workerID string, period domain.Period) (domain.PayrollLedgerEntry, error) {
	c, err := s.PayrollView(ctx, workerID, period)
	if err != nil {
		return domain.PayrollLedgerEntry{}, err
	}
	entry, err := s.ledger.Commit(ctx, c)
	if err != nil {
		return domain.PayrollLedgerEntry{}, err
	}
	s.activity.Record(ctx, domain.CollectionPayroll, domain.ActionPayrollCommitted, ledgerSubject(entry.Key()),
		fmt.Sprintf("payroll committed for %s %s: net %s", c.WorkerID, c.Period, c.Net.StringFixed(2)),
		ledgerMetadata(entry))
	return entry, nil
}

// CommitPeriod commits payroll for every active worker in period.
func (s *Service) CommitPeriod(ctx context.Context, period domain.Period) ([]domain.PayrollLedgerEntry, error) {
	workers, err := s.repo.ListWorkers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	out := make([]domain.PayrollLedgerEntry, 0, len(workers))
	for _, w := range workers {
		entry, err := s.CommitPayroll(ctx, w.ID, period)
		if err != nil {
			return out, fmt.Errorf("commit payroll for worker %s: %w", w.ID, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// MarkPaid refreshes the ledger snapshot from current facts and sets status paid.
func (s *Service) MarkPaid(ctx context.Context, workerID string, period domain.Period) (domain.PayrollLedgerEntry, error) {
	c, err := s.PayrollView(ctx, workerID, period)
	if err != nil {
		return domain.PayrollLedgerEntry{}, err
	}
	entry, err := s.ledger.MarkPaid(ctx, c)
	if err != nil {
		return domain.PayrollLedgerEntry{}, err
	}
	s.activity.Record(ctx, domain.CollectionPayroll, domain.ActionPayrollPaid, ledgerSubject(entry.Key()),
		fmt.Sprintf("payroll paid for %s %s: net %s", c.WorkerID, c.Period, c.Net.StringFixed(2)),
		ledgerMetadata(entry))
	return entry, nil
}

// MarkUnpaid returns a ledger entry to pending. found is false when the period was never committed.
func (s *Service) MarkUnpaid(ctx context.Context, workerID string, period domain.Period) (domain.PayrollLedgerEntry, bool, error) {
	key := domain.LedgerKey{WorkerID: strings.TrimSpace(workerID), Period: period}
	entry, found, err := s.ledger.MarkUnpaid(ctx, key)
	if err != nil || !found {
		return entry, found, err
	}
	s.activity.Record(ctx, domain.CollectionPayroll, domain.ActionPayrollUnpaid, ledgerSubject(key),
		fmt.Sprintf("payroll for %s %s returned to pending", key.WorkerID, key.Period),
		ledgerMetadata(entry))
	return entry, true, nil
}

// ListLedger lists committed ledger entries.
func (s *Service) ListLedger(ctx context.Context, filter LedgerFilter) ([]domain.PayrollLedgerEntry, error) {
	if filter.Period != nil && !filter.Period.Valid() {
		return nil, domain.ErrInvalidPeriod
	}
	return s.ledger.List(ctx, filter)
}

func ledgerSubject(key domain.LedgerKey) string {
	return key.WorkerID + "@" + key.Period.String()
}

func ledgerMetadata(e domain.PayrollLedgerEntry) map[string]string {
	return map[string]string{
		"worker_id":    e.WorkerID,
		"period_start": e.Period.Start.String(),
		"period_end":   e.Period.End.String(),
		"status":       string(e.Status),
		"net_amount":   e.Net.String(),
	}
}

// SetTotalBudget sets the operator-owned total. Used budget is left to the aggregator.
func (s *Service) SetTotalBudget(ctx context.Context, total decimal.Decimal) (domain.Budget, error) {
	if total.IsNegative() {
		return domain.Budget{}, domain.ErrInvalidAmount
	}
	budget, err := s.repo.SetBudgetTotal(ctx, total, s.clock())
	if err != nil {
		return domain.Budget{}, err
	}
	s.activity.Record(ctx, domain.CollectionBudget, domain.ActionBudgetSet, "budget",
		fmt.Sprintf("total budget set to %s", total.StringFixed(2)),
		map[string]string{"total": total.String()})
	return budget, nil
}

// BudgetSummary reports total, used, remaining and percent used.
func (s *Service) BudgetSummary(ctx context.Context) (domain.BudgetSummary, error) {
	return s.budget.Summary(ctx)
}

// RecalculateBudget runs the aggregator on operator request.
func (s *Service) RecalculateBudget(ctx context.Context) (domain.Budget, error) {
	return s.budget.Recalculate(ctx)
}

// ListActivity returns the newest audit entries first.
func (s *Service) ListActivity(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	return s.activity.List(ctx, limit)
}
