package advice

import (
	"sort"
	"time"

	"moneymind/internal/domain/budget"
	"moneymind/internal/domain/transaction"
)

const (
	// MaxTransactions caps how many transactions are summarized per request.
	MaxTransactions = 1000
	topItems        = 5
)

type Request struct {
	Prompt string
	Window *transaction.Window
}

// CategoryTotal sums spending in one category and currency.
type CategoryTotal struct {
	Category string `json:"category"`
	Currency string `json:"currency"`
	Total    int64  `json:"total"`
	Count    int    `json:"count"`
}

type LineItem struct {
	Category  string    `json:"category"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

type BudgetLine struct {
	Category string        `json:"category"`
	Period   budget.Period `json:"period"`
	Limit    int64         `json:"limit"`
}

// Summary is the compact structured context handed to the model.
type Summary struct {
	Window           *transaction.Window `json:"window,omitempty"`
	TransactionCount int                 `json:"transaction_count"`
	Truncated        bool                `json:"truncated,omitempty"`
	CategoryTotals   []CategoryTotal     `json:"category_totals"`
	TopItems         []LineItem          `json:"top_items"`
	Budgets          []BudgetLine        `json:"budgets,omitempty"`
}

// Total returns the summed amount for category in currency, 0 if absent.
func (s *Summary) Total(category, currency string) int64 {
	for _, t := range s.CategoryTotals {
		if t.Category == category && t.Currency == currency {
			return t.Total
		}
	}
	return 0
}

// Summarize folds transactions into per-category totals and the largest
// line items. Output order is deterministic.
func Summarize(window *transaction.Window, txs []*transaction.Transaction, budgets []*budget.Budget) *Summary {
	type key struct{ category, currency string }
	totals := make(map[key]*CategoryTotal)

	for _, tx := range txs {
		k := key{tx.Category, tx.Currency}
		ct, ok := totals[k]
		if !ok {
			ct = &CategoryTotal{Category: tx.Category, Currency: tx.Currency}
			totals[k] = ct
		}
		ct.Total += tx.Amount
		ct.Count++
	}

	s := &Summary{
		Window:           window,
		TransactionCount: len(txs),
		CategoryTotals:   make([]CategoryTotal, 0, len(totals)),
		TopItems:         make([]LineItem, 0, topItems),
	}
	for _, ct := range totals {
		s.CategoryTotals = append(s.CategoryTotals, *ct)
	}
	sort.Slice(s.CategoryTotals, func(i, j int) bool {
		a, b := s.CategoryTotals[i], s.CategoryTotals[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Currency < b.Currency
	})

	sorted := make([]*transaction.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Amount != sorted[j].Amount {
			return sorted[i].Amount > sorted[j].Amount
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	for i := 0; i < len(sorted) && i < topItems; i++ {
		tx := sorted[i]
		s.TopItems = append(s.TopItems, LineItem{
			Category:  tx.Category,
			Amount:    tx.Amount,
			Currency:  tx.Currency,
			Timestamp: tx.Timestamp,
			Note:      tx.Note,
		})
	}

	for _, b := range budgets {
		s.Budgets = append(s.Budgets, BudgetLine{Category: b.Category, Period: b.Period, Limit: b.Limit})
	}

	return s
}
