package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hylla/sitebook/internal/domain"
)

// PayrollLedger persists committed payroll computations and their payment state.
// It never derives; callers hand it a computation.
type PayrollLedger struct {
	store LedgerStore
	clock Clock
}

// NewPayrollLedger constructs a ledger over store.
func NewPayrollLedger(store LedgerStore, clock Clock) *PayrollLedger {
	return &PayrollLedger{store: store, clock: clockOrNow(clock)}
}

// Commit inserts a pending entry or refreshes the snapshot of an existing one.
// Payment state is left untouched on refresh.
func (l *PayrollLedger) Commit(ctx context.Context, c domain.PayrollComputation) (domain.PayrollLedgerEntry, error) {
	if err := validComputation(c); err != nil {
		return domain.PayrollLedgerEntry{}, err
	}
	entry, err := l.store.CommitPayrollEntry(ctx, c, l.clock())
	if err != nil {
		return domain.PayrollLedgerEntry{}, fmt.Errorf("commit payroll %s %s: %w", c.WorkerID, c.Period, err)
	}
	return entry, nil
}

// MarkPaid upserts the snapshot and sets status paid.
// Repeated calls keep the first paid_at of the current paid spell.
func (l *PayrollLedger) MarkPaid(ctx context.Context, c domain.PayrollComputation) (domain.PayrollLedgerEntry, error) {
	if err := validComputation(c); err != nil {
		return domain.PayrollLedgerEntry{}, err
	}
	entry, err := l.store.MarkPayrollPaid(ctx, c, l.clock())
	if err != nil {
		return domain.PayrollLedgerEntry{}, fmt.Errorf("mark payroll paid %s %s: %w", c.WorkerID, c.Period, err)
	}
	return entry, nil
}

// MarkUnpaid returns an entry to pending. found is false, with no error, when no entry exists.
func (l *PayrollLedger) MarkUnpaid(ctx context.Context, key domain.LedgerKey) (domain.PayrollLedgerEntry, bool, error) {
	if key.WorkerID == "" {
		return domain.PayrollLedgerEntry{}, false, domain.ErrInvalidID
	}
	if !key.Period.Valid() {
		return domain.PayrollLedgerEntry{}, false, domain.ErrInvalidPeriod
	}
	entry, found, err := l.store.MarkPayrollUnpaid(ctx, key, l.clock())
	if err != nil {
		return domain.PayrollLedgerEntry{}, false, fmt.Errorf("mark payroll unpaid %s %s: %w", key.WorkerID, key.Period, err)
	}
	return entry, found, nil
}

// Get returns the entry for key or ErrNotFound.
func (l *PayrollLedger) Get(ctx context.Context, key domain.LedgerKey) (domain.PayrollLedgerEntry, error) {
	return l.store.GetPayrollEntry(ctx, key)
}

// List returns entries matching filter.
func (l *PayrollLedger) List(ctx context.Context, filter LedgerFilter) ([]domain.PayrollLedgerEntry, error) {
	return l.store.ListPayrollEntries(ctx, filter)
}

func validComputation(c domain.PayrollComputation) error {
	if c.WorkerID == "" {
		return domain.ErrInvalidID
	}
	if !c.Period.Valid() {
		return domain.ErrInvalidPeriod
	}
	return nil
}

func clockOrNow(clock Clock) Clock {
	if clock == nil {
		return time.Now
	}
	return clock
}
