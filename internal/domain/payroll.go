package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// PayPolicy decides which attendance statuses count toward pay and which write labor expenses.
type PayPolicy struct {
	PaidStatuses  []AttendanceStatus
	LaborStatuses []AttendanceStatus
}

// DefaultPayPolicy counts only present days toward pay and writes labor for present and late.
func DefaultPayPolicy() PayPolicy {
	return PayPolicy{
		PaidStatuses:  []AttendanceStatus{AttendancePresent},
		LaborStatuses: []AttendanceStatus{AttendancePresent, AttendanceLate},
	}
}

// NewPayPolicy parses configured status names.
func NewPayPolicy(paid, labor []string) (PayPolicy, error) {
	out := PayPolicy{}
	for _, raw := range paid {
		s, err := ParseAttendanceStatus(raw)
		if err != nil {
			return PayPolicy{}, fmt.Errorf("%w: paid status %q", ErrInvalidPolicy, raw)
		}
		if !slices.Contains(out.PaidStatuses, s) {
			out.PaidStatuses = append(out.PaidStatuses, s)
		}
	}
	for _, raw := range labor {
		s, err := ParseAttendanceStatus(raw)
		if err != nil {
			return PayPolicy{}, fmt.Errorf("%w: labor status %q", ErrInvalidPolicy, raw)
		}
		if !slices.Contains(out.LaborStatuses, s) {
			out.LaborStatuses = append(out.LaborStatuses, s)
		}
	}
	if len(out.PaidStatuses) == 0 {
		return PayPolicy{}, fmt.Errorf("%w: no paid statuses", ErrInvalidPolicy)
	}
	if slices.Contains(out.PaidStatuses, AttendanceAbsent) || slices.Contains(out.LaborStatuses, AttendanceAbsent) {
		return PayPolicy{}, fmt.Errorf("%w: absent days cannot be paid", ErrInvalidPolicy)
	}
	return out, nil
}

// Counts reports whether status contributes to days worked.
func (p PayPolicy) Counts(status AttendanceStatus) bool {
	return slices.Contains(p.PaidStatuses, status)
}

// WritesLabor reports whether marking status records a labor expense.
func (p PayPolicy) WritesLabor(status AttendanceStatus) bool {
	return slices.Contains(p.LaborStatuses, status)
}

// PayrollComputation is the derived wage breakdown for one worker over one period.
type PayrollComputation struct {
	WorkerID       string          `json:"worker_id"`
	Period         Period          `json:"period"`
	DaysWorked     int             `json:"days_worked"`
	LunchDays      int             `json:"lunch_days"`
	DailyRate      decimal.Decimal `json:"daily_rate"`
	LunchAllowance decimal.Decimal `json:"lunch_allowance"`
	Gross          decimal.Decimal `json:"gross_amount"`
	LunchTotal     decimal.Decimal `json:"lunch_total"`
	Net            decimal.Decimal `json:"net_amount"`
}

// Key returns the ledger natural key for the computation.
func (c PayrollComputation) Key() LedgerKey {
	return LedgerKey{WorkerID: c.WorkerID, Period: c.Period}
}

// DerivePayroll computes pay for worker from attendance facts inside period.
// Facts may be unsorted and may include other workers or dates; both are filtered.
// When the same day appears more than once the highest version wins.
// Callers validate the period first; an inverted period or negative rate panics.
func DerivePayroll(worker Worker, facts []AttendanceRecord, period Period, policy PayPolicy) PayrollComputation {
	if !period.Valid() {
		panic(fmt.Sprintf("domain: derive payroll with invalid period %s", period))
	}
	if worker.DailyRate.IsNegative() || worker.LunchAllowance.IsNegative() {
		panic(fmt.Sprintf("domain: derive payroll with negative rate for worker %q", worker.ID))
	}

	byDay := map[Date]AttendanceRecord{}
	for _, f := range facts {
		if f.WorkerID != worker.ID || !period.Contains(f.Date) {
			continue
		}
		cur, ok := byDay[f.Date]
		if !ok || f.Version > cur.Version || (f.Version == cur.Version && f.ID > cur.ID) {
			byDay[f.Date] = f
		}
	}

	days, lunchDays := 0, 0
	for _, f := range byDay {
		if !policy.Counts(f.Status) {
			continue
		}
		days++
		if f.LunchTaken {
			lunchDays++
		}
	}

	gross := worker.DailyRate.Mul(decimal.NewFromInt(int64(days)))
	lunch := worker.LunchAllowance.Mul(decimal.NewFromInt(int64(lunchDays)))
	return PayrollComputation{
		WorkerID:       worker.ID,
		Period:         period,
		DaysWorked:     days,
		LunchDays:      lunchDays,
		DailyRate:      worker.DailyRate,
		LunchAllowance: worker.LunchAllowance,
		Gross:          gross,
		LunchTotal:     lunch,
		Net:            gross.Sub(lunch),
	}
}

// DerivePayrollDefault derives with DefaultPayPolicy.
func DerivePayrollDefault(worker Worker, facts []AttendanceRecord, period Period) PayrollComputation {
	return DerivePayroll(worker, facts, period, DefaultPayPolicy())
}

// PaymentStatus is the payment state of a ledger entry.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// ParsePaymentStatus validates raw payment state.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch PaymentStatus(raw) {
	case PaymentPending:
		return PaymentPending, nil
	case PaymentPaid:
		return PaymentPaid, nil
	default:
		return "", ErrInvalidPayment
	}
}

// LedgerKey is the natural key of the payroll ledger.
type LedgerKey struct {
	WorkerID string
	Period   Period
}

// PayrollLedgerEntry is a committed computation snapshot plus payment state.
type PayrollLedgerEntry struct {
	PayrollComputation
	Status      PaymentStatus `json:"status"`
	PaidAt      *time.Time    `json:"paid_at"`
	CommittedAt time.Time     `json:"committed_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewPendingEntry wraps c as a pending ledger entry.
func NewPendingEntry(c PayrollComputation, now time.Time) PayrollLedgerEntry {
	return PayrollLedgerEntry{
		PayrollComputation: c,
		Status:             PaymentPending,
		CommittedAt:        now.UTC(),
		UpdatedAt:          now.UTC(),
	}
}

// NewPaidEntry wraps c as a paid ledger entry stamped at now.
func NewPaidEntry(c PayrollComputation, now time.Time) PayrollLedgerEntry {
	paidAt := now.UTC()
	return PayrollLedgerEntry{
		PayrollComputation: c,
		Status:             PaymentPaid,
		PaidAt:             &paidAt,
		CommittedAt:        now.UTC(),
		UpdatedAt:          now.UTC(),
	}
}
