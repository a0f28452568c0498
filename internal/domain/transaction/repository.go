package transaction

import "context"

// Repository defines the interface for transaction data access
type Repository interface {
	// Create stores a new transaction under a server-assigned id.
	Create(ctx context.Context, params CreateParams) (*Transaction, error)

	// Get returns ErrTransactionNotFound when absent.
	Get(ctx context.Context, userID, id string) (*Transaction, error)

	// List returns at most limit transactions in the window ordered by
	// (timestamp, id), resuming after pageToken when it is non-empty.
	List(ctx context.Context, userID string, window Window, pageToken string, limit int) (*Page, error)

	Delete(ctx context.Context, userID, id string) error
}
