package transaction

import (
	"strings"
	"time"
	"unicode/utf8"

	"moneymind/internal/shared/apperr"
)

const (
	// PageSize is the maximum number of items returned per list call.
	PageSize = 200

	maxCategoryLen = 64
	maxNoteLen     = 1024
)

var (
	ErrTransactionNotFound = apperr.NotFoundf("transaction not found")
	ErrForbidden           = apperr.ForbiddenErr("transaction belongs to another user")
	ErrInvalidPageToken    = apperr.Validation("invalid page token")
)

// Transaction is a single spend or income record. Amount is in the
// currency's minor units.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
	// CreatedAt is server-assigned and monotonic per user.
	CreatedAt time.Time `json:"created_at"`
}

type CreateParams struct {
	UserID    string
	Amount    int64
	Currency  string
	Category  string
	Timestamp time.Time
	Note      string
}

// Normalize trims free text and moves the timestamp to UTC millisecond precision.
func (p *CreateParams) Normalize() {
	p.Currency = strings.TrimSpace(p.Currency)
	p.Category = strings.TrimSpace(p.Category)
	p.Timestamp = NormalizeTime(p.Timestamp)
}

func (p CreateParams) Validate() error {
	if p.UserID == "" {
		return apperr.Validation("user id is required")
	}
	if p.Amount < 0 {
		return apperr.Validation("amount must be a non-negative integer")
	}
	if !ValidCurrency(p.Currency) {
		return apperr.Validation("currency must be three uppercase letters")
	}
	if err := ValidateCategory(p.Category); err != nil {
		return err
	}
	if p.Timestamp.IsZero() {
		return apperr.Validation("timestamp is required")
	}
	if utf8.RuneCountInString(p.Note) > maxNoteLen {
		return apperr.Validation("note must be at most %d characters", maxNoteLen)
	}
	return nil
}

// ValidCurrency reports whether code is three uppercase ASCII letters.
func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

// ValidateCategory rejects categories that cannot be used as part of a
// document key.
func ValidateCategory(category string) error {
	switch {
	case category == "":
		return apperr.Validation("category is required")
	case utf8.RuneCountInString(category) > maxCategoryLen:
		return apperr.Validation("category must be at most %d characters", maxCategoryLen)
	case strings.ContainsAny(category, "/"), category == ".", category == "..":
		return apperr.Validation("category contains invalid characters")
	}
	return nil
}

// NormalizeTime returns t in UTC truncated to milliseconds.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Window is the half-open interval [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (w Window) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return apperr.Validation("window requires both from and to")
	}
	if w.From.After(w.To) {
		return apperr.Validation("window from must not be after to")
	}
	return nil
}

// Empty reports whether no timestamp can fall inside the window.
func (w Window) Empty() bool {
	return !w.From.Before(w.To)
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

func (w Window) Normalize() Window {
	return Window{From: NormalizeTime(w.From), To: NormalizeTime(w.To)}
}

// Page is one slice of a list result. Next is empty on the last page.
type Page struct {
	Items []*Transaction `json:"items"`
	Next  string         `json:"next,omitempty"`
}
