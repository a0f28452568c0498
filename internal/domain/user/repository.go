package user

import "context"

// Repository defines the interface for user data access
type Repository interface {
	// Get returns ErrUserNotFound when the document is absent.
	Get(ctx context.Context, id string) (*User, error)

	// Upsert creates the user if absent. An existing document keeps its
	// CreatedAt; a non-empty DisplayName replaces the stored one.
	Upsert(ctx context.Context, u *User) (*User, error)
}

// Directory looks up profile data held by the identity provider.
type Directory interface {
	DisplayName(ctx context.Context, uid string) (string, error)
}
