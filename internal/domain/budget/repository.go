package budget

import "context"

// Repository defines the interface for budget data access
type Repository interface {
	List(ctx context.Context, userID string) ([]*Budget, error)

	// Put creates or replaces the budget keyed by (category, period).
	// created is true when no budget existed under that key.
	Put(ctx context.Context, params PutParams) (b *Budget, created bool, err error)
}
