package http

import (
	"net/http"

	"moneymind/internal/domain/budget"
)

type BudgetHandler struct {
	budgetService *budget.Service
}

func NewBudgetHandler(budgetService *budget.Service) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService}
}

type PutBudgetRequest struct {
	Category string `json:"category" validate:"required,max=64"`
	Period   string `json:"period" validate:"required,oneof=monthly weekly"`
	Limit    *int64 `json:"limit" validate:"required,min=0"`
}

type ListBudgetsResponse struct {
	Items []*budget.Budget `json:"items"`
}

// HandleListBudgets returns the caller's budgets.
func (h *BudgetHandler) HandleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	budgets, err := h.budgetService.List(r.Context(), userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListBudgetsResponse{Items: budgets})
}

// HandlePutBudget creates or replaces the caller's budget for a category
// and period: 201 when created, 200 when an existing one was replaced.
func (h *BudgetHandler) HandlePutBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req PutBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	b, created, err := h.budgetService.Put(r.Context(), userID, budget.PutParams{
		Category: req.Category,
		Period:   budget.Period(req.Period),
		Limit:    *req.Limit,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, b)
}
