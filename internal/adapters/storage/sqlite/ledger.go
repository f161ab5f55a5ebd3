package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/domain"
)

const ledgerColumns = `worker_id, period_start, period_end, days_worked, lunch_days, daily_rate, lunch_allowance,
	gross_amount, lunch_total, net_amount, status, paid_at, committed_at, updated_at`

// ledgerSnapshotUpdate refreshes the computation columns from the proposed row.
const ledgerSnapshotUpdate = `
	days_worked = excluded.days_worked,
	lunch_days = excluded.lunch_days,
	daily_rate = excluded.daily_rate,
	lunch_allowance = excluded.lunch_allowance,
	gross_amount = excluded.gross_amount,
	lunch_total = excluded.lunch_total,
	net_amount = excluded.net_amount,
	updated_at = excluded.updated_at`

// CommitPayrollEntry inserts a pending entry or refreshes an existing snapshot.
// status and paid_at of an existing row are never touched here.
func (r *Repository) CommitPayrollEntry(ctx context.Context, c domain.PayrollComputation, now time.Time) (domain.PayrollLedgerEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO payroll_ledger(`+ledgerColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', NULL, ?, ?)
		ON CONFLICT(worker_id, period_start, period_end) DO UPDATE SET`+ledgerSnapshotUpdate+`
		RETURNING `+ledgerColumns,
		append(ledgerArgs(c), ts(now), ts(now))...)
	return scanLedgerEntry(row)
}

// MarkPayrollPaid upserts the snapshot with status paid. A row that is
// already paid keeps its paid_at so repeated calls never move it.
func (r *Repository) MarkPayrollPaid(ctx context.Context, c domain.PayrollComputation, now time.Time) (domain.PayrollLedgerEntry, error) {
	args := ledgerArgs(c)
	args = append(args, ts(now), ts(now), ts(now))
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO payroll_ledger(`+ledgerColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'paid', ?, ?, ?)
		ON CONFLICT(worker_id, period_start, period_end) DO UPDATE SET`+ledgerSnapshotUpdate+`,
			paid_at = CASE
				WHEN payroll_ledger.status = 'paid' AND payroll_ledger.paid_at IS NOT NULL THEN payroll_ledger.paid_at
				ELSE excluded.paid_at
			END,
			status = 'paid'
		RETURNING `+ledgerColumns,
		args...)
	return scanLedgerEntry(row)
}

// MarkPayrollUnpaid resets an existing entry to pending. found is false when no row matches.
func (r *Repository) MarkPayrollUnpaid(ctx context.Context, key domain.LedgerKey, now time.Time) (domain.PayrollLedgerEntry, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE payroll_ledger
		SET status = 'pending', paid_at = NULL, updated_at = ?
		WHERE worker_id = ? AND period_start = ? AND period_end = ?
		RETURNING `+ledgerColumns,
		ts(now), key.WorkerID, key.Period.Start, key.Period.End)
	entry, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PayrollLedgerEntry{}, false, nil
	}
	if err != nil {
		return domain.PayrollLedgerEntry{}, false, err
	}
	return entry, true, nil
}

// GetPayrollEntry returns the entry for key.
func (r *Repository) GetPayrollEntry(ctx context.Context, key domain.LedgerKey) (domain.PayrollLedgerEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM payroll_ledger
		WHERE worker_id = ? AND period_start = ? AND period_end = ?
	`, key.WorkerID, key.Period.Start, key.Period.End)
	entry, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PayrollLedgerEntry{}, app.ErrNotFound
	}
	return entry, err
}

// ListPayrollEntries lists entries newest period first.
func (r *Repository) ListPayrollEntries(ctx context.Context, filter app.LedgerFilter) ([]domain.PayrollLedgerEntry, error) {
	where, args := []string{}, []any{}
	if filter.WorkerID != "" {
		where = append(where, "worker_id = ?")
		args = append(args, filter.WorkerID)
	}
	if filter.Period != nil {
		where = append(where, "period_start = ? AND period_end = ?")
		args = append(args, filter.Period.Start, filter.Period.End)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+ledgerColumns+` FROM payroll_ledger`+whereClause(where)+
		` ORDER BY period_start DESC, period_end DESC, worker_id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PayrollLedgerEntry, 0)
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// ledgerArgs returns the ten computation columns in ledgerColumns order.
func ledgerArgs(c domain.PayrollComputation) []any {
	return []any{
		c.WorkerID, c.Period.Start, c.Period.End,
		c.DaysWorked, c.LunchDays,
		c.DailyRate, c.LunchAllowance,
		c.Gross, c.LunchTotal, c.Net,
	}
}

func scanLedgerEntry(s scanner) (domain.PayrollLedgerEntry, error) {
	var (
		e            domain.PayrollLedgerEntry
		status       string
		paidRaw      sql.NullString
		committedRaw string
		updatedRaw   string
	)
	err := s.Scan(
		&e.WorkerID, &e.Period.Start, &e.Period.End,
		&e.DaysWorked, &e.LunchDays,
		&e.DailyRate, &e.LunchAllowance,
		&e.Gross, &e.LunchTotal, &e.Net,
		&status, &paidRaw, &committedRaw, &updatedRaw,
	)
	if err != nil {
		return domain.PayrollLedgerEntry{}, err
	}
	e.Status, err = domain.ParsePaymentStatus(status)
	if err != nil {
		return domain.PayrollLedgerEntry{}, fmt.Errorf("decode payroll_ledger.status: %w", err)
	}
	e.PaidAt = parseNullTS(paidRaw)
	e.CommittedAt = parseTS(committedRaw)
	e.UpdatedAt = parseTS(updatedRaw)
	return e, nil
}

// GetBudget returns the singleton budget row.
func (r *Repository) GetBudget(ctx context.Context) (domain.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT total_budget, used_budget, updated_at FROM budget WHERE id = 1`)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Budget{}, app.ErrNotFound
	}
	return b, err
}

// SetBudgetTotal creates or updates the operator-owned total.
func (r *Repository) SetBudgetTotal(ctx context.Context, total decimal.Decimal, now time.Time) (domain.Budget, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO budget(id, total_budget, used_budget, updated_at)
		VALUES(1, ?, '0', ?)
		ON CONFLICT(id) DO UPDATE SET total_budget = excluded.total_budget, updated_at = excluded.updated_at
		RETURNING total_budget, used_budget, updated_at
	`, total, ts(now))
	return scanBudget(row)
}

// UpdateUsedBudget writes used. A missing row is created with defaultTotal.
func (r *Repository) UpdateUsedBudget(ctx context.Context, used, defaultTotal decimal.Decimal, now time.Time) (domain.Budget, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO budget(id, total_budget, used_budget, updated_at)
		VALUES(1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET used_budget = excluded.used_budget, updated_at = excluded.updated_at
		RETURNING total_budget, used_budget, updated_at
	`, defaultTotal, used, ts(now))
	return scanBudget(row)
}

func scanBudget(s scanner) (domain.Budget, error) {
	var (
		b          domain.Budget
		updatedRaw string
	)
	if err := s.Scan(&b.Total, &b.Used, &updatedRaw); err != nil {
		return domain.Budget{}, err
	}
	b.UpdatedAt = parseTS(updatedRaw)
	return b, nil
}

// AppendActivity inserts an audit entry and returns it with its assigned id.
func (r *Repository) AppendActivity(ctx context.Context, e domain.ActivityEntry) (domain.ActivityEntry, error) {
	metadata, err := marshalMetadata(e.Metadata)
	if err != nil {
		return domain.ActivityEntry{}, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log(action_type, collection, subject_id, message, metadata_json, occurred_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, string(e.Action), string(e.Collection), e.SubjectID, e.Message, metadata, ts(e.OccurredAt))
	if err != nil {
		return domain.ActivityEntry{}, err
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return domain.ActivityEntry{}, err
	}
	return e, nil
}

// ListActivity lists recent entries newest first.
func (r *Repository) ListActivity(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action_type, collection, subject_id, message, metadata_json, occurred_at
		FROM activity_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ActivityEntry, 0)
	for rows.Next() {
		var (
			e           domain.ActivityEntry
			action      string
			collection  string
			metadataRaw string
			occurredRaw string
		)
		if err := rows.Scan(&e.ID, &action, &collection, &e.SubjectID, &e.Message, &metadataRaw, &occurredRaw); err != nil {
			return nil, err
		}
		e.Action = domain.ActivityAction(action)
		e.Collection = domain.Collection(collection)
		e.OccurredAt = parseTS(occurredRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode activity_log.metadata_json: %w", err)
		}
		if e.Metadata == nil {
			e.Metadata = map[string]string{}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
