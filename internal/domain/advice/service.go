package advice

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"moneymind/internal/domain/budget"
	"moneymind/internal/domain/chat"
	"moneymind/internal/domain/transaction"
)

// Generator produces model text for a prompt and optional structured context.
type Generator interface {
	Generate(ctx context.Context, prompt string, data any) (string, error)
}

type TransactionLister interface {
	ListAll(ctx context.Context, callerID string, window transaction.Window, limit int) ([]*transaction.Transaction, bool, error)
}

type BudgetLister interface {
	List(ctx context.Context, callerID string) ([]*budget.Budget, error)
}

type Service struct {
	llm          Generator
	transactions TransactionLister
	budgets      BudgetLister
}

func NewService(llm Generator, transactions TransactionLister, budgets BudgetLister) *Service {
	return &Service{llm: llm, transactions: transactions, budgets: budgets}
}

// Advise answers prompt for the caller. When a window is given, the caller's
// transactions in it and their budgets are fetched in parallel and summarized
// into the model context; both fetches complete before the model is called.
func (s *Service) Advise(ctx context.Context, callerID string, req Request) (string, error) {
	if err := chat.ValidatePrompt(req.Prompt); err != nil {
		return "", err
	}
	if req.Window == nil {
		return s.llm.Generate(ctx, req.Prompt, nil)
	}
	if err := req.Window.Validate(); err != nil {
		return "", err
	}
	window := req.Window.Normalize()

	var (
		txs       []*transaction.Transaction
		truncated bool
		budgets   []*budget.Budget
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, truncated, err = s.transactions.ListAll(gctx, callerID, window, MaxTransactions)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = s.budgets.List(gctx, callerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	summary := Summarize(&window, txs, budgets)
	summary.Truncated = truncated
	slog.DebugContext(ctx, "Built advice context",
		"transactions", summary.TransactionCount,
		"categories", len(summary.CategoryTotals),
		"truncated", truncated,
	)

	return s.llm.Generate(ctx, req.Prompt, summary)
}
