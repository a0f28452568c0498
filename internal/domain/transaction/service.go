package transaction

import (
	"context"
	"log/slog"
)

// Service contains the business logic for transaction operations
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create stores a transaction owned by callerID. Any user id carried in
// params is replaced so clients cannot forge ownership.
func (s *Service) Create(ctx context.Context, callerID string, params CreateParams) (*Transaction, error) {
	params.UserID = callerID
	params.Normalize()

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, params)
}

// List returns one page of the caller's transactions in window.
func (s *Service) List(ctx context.Context, callerID string, window Window, pageToken string) (*Page, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	window = window.Normalize()
	if window.Empty() {
		return &Page{Items: []*Transaction{}}, nil
	}

	page, err := s.repo.List(ctx, callerID, window, pageToken, PageSize)
	if err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []*Transaction{}
	}
	return page, nil
}

// ListAll walks pages until the window is exhausted or limit items are
// collected. truncated reports whether items were left behind.
func (s *Service) ListAll(ctx context.Context, callerID string, window Window, limit int) (items []*Transaction, truncated bool, err error) {
	var token string
	for {
		page, err := s.List(ctx, callerID, window, token)
		if err != nil {
			return nil, false, err
		}
		items = append(items, page.Items...)

		if len(items) >= limit {
			return items[:limit], len(items) > limit || page.Next != "", nil
		}
		if page.Next == "" {
			return items, false, nil
		}
		token = page.Next
	}
}

// Delete removes a transaction after verifying ownership.
func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	tx, err := s.repo.Get(ctx, callerID, id)
	if err != nil {
		return err
	}

	if tx.UserID != callerID {
		slog.WarnContext(ctx, "Ownership mismatch on transaction delete", "transaction_id", id, "owner", tx.UserID)
		return ErrForbidden
	}

	return s.repo.Delete(ctx, callerID, id)
}
