package user

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Service struct {
	repo      Repository
	directory Directory
	now       func() time.Time
}

// NewService creates a user service. directory may be nil.
func NewService(repo Repository, directory Directory) *Service {
	return &Service{repo: repo, directory: directory, now: time.Now}
}

// Ensure returns the caller's record, creating it on first sight.
func (s *Service) Ensure(ctx context.Context, uid string) (*User, error) {
	u, err := s.repo.Get(ctx, uid)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	var name string
	if s.directory != nil {
		name, err = s.directory.DisplayName(ctx, uid)
		if err != nil {
			// Display name is optional.
			slog.WarnContext(ctx, "Failed to look up display name", "error", err)
			name = ""
		}
	}

	return s.repo.Upsert(ctx, &User{
		ID:          uid,
		DisplayName: name,
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	})
}
