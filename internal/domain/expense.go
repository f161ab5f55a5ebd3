package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryLabor is reserved for wage expenses derived from attendance.
const CategoryLabor = "Labor"

// ExpenseRecord is one money-out fact charged against the project budget.
type ExpenseRecord struct {
	ID           string          `json:"id"`
	Category     string          `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	Date         Date            `json:"date"`
	Description  string          `json:"description,omitempty"`
	WorkerID     string          `json:"worker_id,omitempty"`
	AttendanceID string          `json:"attendance_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ExpenseInput holds values for a manually entered expense.
type ExpenseInput struct {
	ID          string
	Category    string
	Amount      decimal.Decimal
	Date        Date
	Description string
}

// IsLaborCategory reports whether category is the reserved labor category.
func IsLaborCategory(category string) bool {
	return strings.EqualFold(strings.TrimSpace(category), CategoryLabor)
}

// IsLabor reports whether e is a derived wage expense.
func (e ExpenseRecord) IsLabor() bool {
	return IsLaborCategory(e.Category)
}

// NewExpense constructs a manual expense. Labor rows are only written through attendance.
func NewExpense(in ExpenseInput, now time.Time) (ExpenseRecord, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Category = strings.TrimSpace(in.Category)
	if in.ID == "" {
		return ExpenseRecord{}, ErrInvalidID
	}
	if in.Category == "" {
		return ExpenseRecord{}, ErrInvalidCategory
	}
	if IsLaborCategory(in.Category) {
		return ExpenseRecord{}, ErrReservedCategory
	}
	if !in.Amount.IsPositive() {
		return ExpenseRecord{}, ErrInvalidAmount
	}
	if in.Date.IsZero() {
		return ExpenseRecord{}, ErrInvalidDate
	}
	return ExpenseRecord{
		ID:          in.ID,
		Category:    in.Category,
		Amount:      in.Amount,
		Date:        in.Date,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now.UTC(),
	}, nil
}

// NewLaborExpense constructs the derived wage row for one attendance fact.
// A negative amount reverses previously recorded labor after a correction.
func NewLaborExpense(id string, worker Worker, rec AttendanceRecord, amount decimal.Decimal, now time.Time) (ExpenseRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ExpenseRecord{}, ErrInvalidID
	}
	if amount.IsZero() {
		return ExpenseRecord{}, ErrInvalidAmount
	}
	if rec.WorkerID != worker.ID {
		return ExpenseRecord{}, ErrAttendanceWorkerDiff
	}
	description := "wage: " + worker.Name + " (" + string(rec.Status) + ")"
	if amount.IsNegative() {
		description = "wage reversal: " + worker.Name + " (" + string(rec.Status) + ")"
	}
	return ExpenseRecord{
		ID:           id,
		Category:     CategoryLabor,
		Amount:       amount,
		Date:         rec.Date,
		Description:  description,
		WorkerID:     worker.ID,
		AttendanceID: rec.ID,
		CreatedAt:    now.UTC(),
	}, nil
}

// SumExpenses folds every expense amount into one total.
func SumExpenses(expenses []ExpenseRecord) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
