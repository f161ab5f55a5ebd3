package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Worker represents one site worker and the rates payroll derives from.
type Worker struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Role           string          `json:"role,omitempty"`
	DailyRate      decimal.Decimal `json:"daily_rate"`
	LunchAllowance decimal.Decimal `json:"lunch_allowance"`
	Active         bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// WorkerInput holds values for NewWorker.
type WorkerInput struct {
	ID             string
	Name           string
	Role           string
	DailyRate      decimal.Decimal
	LunchAllowance decimal.Decimal
}

// NewWorker constructs an active worker after validating rates.
func NewWorker(in WorkerInput, now time.Time) (Worker, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.Role = strings.TrimSpace(in.Role)
	if in.ID == "" {
		return Worker{}, ErrInvalidID
	}
	if in.Name == "" {
		return Worker{}, ErrInvalidName
	}
	if err := validateRates(in.DailyRate, in.LunchAllowance); err != nil {
		return Worker{}, err
	}
	return Worker{
		ID:             in.ID,
		Name:           in.Name,
		Role:           in.Role,
		DailyRate:      in.DailyRate,
		LunchAllowance: in.LunchAllowance,
		Active:         true,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}, nil
}

// SetActive toggles inclusion in aggregate listings. Workers are never hard-deleted.
func (w *Worker) SetActive(active bool, now time.Time) {
	w.Active = active
	w.UpdatedAt = now.UTC()
}

// UpdateRates replaces the daily rate and lunch allowance used by future derivations.
func (w *Worker) UpdateRates(dailyRate, lunchAllowance decimal.Decimal, now time.Time) error {
	if err := validateRates(dailyRate, lunchAllowance); err != nil {
		return err
	}
	w.DailyRate = dailyRate
	w.LunchAllowance = lunchAllowance
	w.UpdatedAt = now.UTC()
	return nil
}

// validateRates enforces rate > 0 and 0 <= lunch <= rate.
func validateRates(dailyRate, lunchAllowance decimal.Decimal) error {
	if !dailyRate.IsPositive() {
		return ErrInvalidRate
	}
	if lunchAllowance.IsNegative() || lunchAllowance.GreaterThan(dailyRate) {
		return ErrInvalidLunch
	}
	return nil
}
