package firestore

import (
	"context"
	"errors"
	"fmt"

	fs "cloud.google.com/go/firestore"

	"moneymind/internal/domain/user"
)

type userDoc struct {
	DisplayName string           `firestore:"display_name"`
	CreatedAt   int64            `firestore:"created_at"`
	Stamps      map[string]int64 `firestore:"stamps,omitempty"`
}

type UserRepository struct {
	store *Store
}

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	if !validID(id) {
		return nil, user.ErrUserNotFound
	}

	var u *user.User
	err := r.store.run(ctx, "users.get", func(ctx context.Context) error {
		snap, err := r.store.user(id).Get(ctx)
		if isNotFound(err) {
			return user.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		u, err = decodeUser(snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Upsert creates the user document, or refreshes the display name of an
// existing one. Stream stamps written before the profile are preserved.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) (*user.User, error) {
	if !validID(u.ID) {
		return nil, fmt.Errorf("invalid user id %q", u.ID)
	}

	var saved *user.User
	err := r.store.run(ctx, "users.upsert", func(ctx context.Context) error {
		return r.store.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
			ref := r.store.user(u.ID)
			out := &user.User{ID: u.ID, DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}

			snap, err := tx.Get(ref)
			if err != nil && !isNotFound(err) {
				return err
			}
			if err == nil {
				existing, err := decodeUser(snap)
				if err != nil && !errors.Is(err, user.ErrUserNotFound) {
					return err
				}
				if existing != nil {
					out.CreatedAt = existing.CreatedAt
					if out.DisplayName == "" {
						out.DisplayName = existing.DisplayName
					}
				}
			}
			if out.CreatedAt.IsZero() {
				out.CreatedAt = fromMillis(millis(r.store.now()))
			}

			saved = out
			return tx.Set(ref, map[string]any{
				"display_name": out.DisplayName,
				"created_at":   millis(out.CreatedAt),
			}, fs.MergeAll)
		})
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// decodeUser treats a document that only holds stream stamps as absent.
func decodeUser(snap *fs.DocumentSnapshot) (*user.User, error) {
	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
	}
	if doc.CreatedAt == 0 {
		return nil, user.ErrUserNotFound
	}
	return &user.User{
		ID:          snap.Ref.ID,
		DisplayName: doc.DisplayName,
		CreatedAt:   fromMillis(doc.CreatedAt),
	}, nil
}
