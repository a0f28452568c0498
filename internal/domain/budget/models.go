package budget

import (
	"time"

	"moneymind/internal/domain/transaction"
	"moneymind/internal/shared/apperr"
)

type Period string

const (
	Monthly Period = "monthly"
	Weekly  Period = "weekly"
)

func (p Period) Valid() bool {
	return p == Monthly || p == Weekly
}

var ErrBudgetConflict = apperr.Conflictf("budget was modified concurrently")

// Budget caps spending in one category over a period. There is at most one
// Budget per (user, category, period).
type Budget struct {
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	Period    Period    `json:"period"`
	Limit     int64     `json:"limit"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key is the document id that enforces the uniqueness of a budget.
func Key(category string, period Period) string {
	return category + "_" + string(period)
}

func (b *Budget) Key() string {
	return Key(b.Category, b.Period)
}

type PutParams struct {
	UserID   string
	Category string
	Period   Period
	Limit    int64
}

func (p PutParams) Validate() error {
	if p.UserID == "" {
		return apperr.Validation("user id is required")
	}
	if err := transaction.ValidateCategory(p.Category); err != nil {
		return err
	}
	if !p.Period.Valid() {
		return apperr.Validation("period must be monthly or weekly")
	}
	if p.Limit < 0 {
		return apperr.Validation("limit must be a non-negative integer")
	}
	return nil
}
