package budget

import (
	"context"
	"sort"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Put upserts the caller's budget for (category, period).
func (s *Service) Put(ctx context.Context, callerID string, params PutParams) (*Budget, bool, error) {
	params.UserID = callerID
	params.Category = strings.TrimSpace(params.Category)

	if err := params.Validate(); err != nil {
		return nil, false, err
	}

	return s.repo.Put(ctx, params)
}

// List returns the caller's budgets ordered by category then period.
func (s *Service) List(ctx context.Context, callerID string) ([]*Budget, error) {
	budgets, err := s.repo.List(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if budgets == nil {
		budgets = []*Budget{}
	}

	sort.Slice(budgets, func(i, j int) bool {
		if budgets[i].Category != budgets[j].Category {
			return budgets[i].Category < budgets[j].Category
		}
		return budgets[i].Period < budgets[j].Period
	})
	return budgets, nil
}
