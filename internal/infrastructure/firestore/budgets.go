package firestore

import (
	"context"
	"fmt"

	fs "cloud.google.com/go/firestore"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"moneymind/internal/domain/budget"
)

type budgetDoc struct {
	UserID    string `firestore:"user_id"`
	Category  string `firestore:"category"`
	Period    string `firestore:"period"`
	Limit     int64  `firestore:"limit"`
	UpdatedAt int64  `firestore:"updated_at"`
}

type BudgetRepository struct {
	store *Store
}

func NewBudgetRepository(store *Store) *BudgetRepository {
	return &BudgetRepository{store: store}
}

func (r *BudgetRepository) collection(uid string) *fs.CollectionRef {
	return r.store.user(uid).Collection(budgetsCollection)
}

func (r *BudgetRepository) List(ctx context.Context, userID string) ([]*budget.Budget, error) {
	if !validID(userID) {
		return []*budget.Budget{}, nil
	}

	var budgets []*budget.Budget
	err := r.store.run(ctx, "budgets.list", func(ctx context.Context) error {
		docs, err := r.collection(userID).Documents(ctx).GetAll()
		if err != nil {
			return err
		}
		budgets = make([]*budget.Budget, 0, len(docs))
		for _, snap := range docs {
			var doc budgetDoc
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode budget %s: %w", snap.Ref.ID, err)
			}
			budgets = append(budgets, toBudget(doc))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return budgets, nil
}

// Put writes the budget under its (category, period) key inside a datastore
// transaction, so two puts for the same key never yield two documents.
func (r *BudgetRepository) Put(ctx context.Context, params budget.PutParams) (*budget.Budget, bool, error) {
	if !validID(params.UserID) {
		return nil, false, fmt.Errorf("invalid user id %q", params.UserID)
	}

	ref := r.collection(params.UserID).Doc(budget.Key(params.Category, params.Period))
	var (
		saved   *budget.Budget
		created bool
	)

	err := r.store.run(ctx, "budgets.put", func(ctx context.Context) error {
		err := r.store.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
			_, err := tx.Get(ref)
			exists := err == nil
			if err != nil && !isNotFound(err) {
				return err
			}

			stamp, err := r.store.nextStamp(tx, params.UserID, streamBudgets)
			if err != nil {
				return err
			}

			doc := budgetDoc{
				UserID:    params.UserID,
				Category:  params.Category,
				Period:    string(params.Period),
				Limit:     params.Limit,
				UpdatedAt: stamp,
			}
			if err := tx.Set(ref, doc); err != nil {
				return err
			}
			if err := r.store.setStamp(tx, params.UserID, streamBudgets, stamp); err != nil {
				return err
			}

			saved = toBudget(doc)
			created = !exists
			return nil
		})
		// Contention that outlived the transaction's own retries.
		if status.Code(err) == grpccodes.Aborted {
			return budget.ErrBudgetConflict
		}
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return saved, created, nil
}

func toBudget(doc budgetDoc) *budget.Budget {
	return &budget.Budget{
		UserID:    doc.UserID,
		Category:  doc.Category,
		Period:    budget.Period(doc.Period),
		Limit:     doc.Limit,
		UpdatedAt: fromMillis(doc.UpdatedAt),
	}
}
