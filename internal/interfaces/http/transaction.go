package http

import (
	"net/http"
	"time"

	"moneymind/internal/domain/transaction"
	"moneymind/internal/shared/apperr"
)

type TransactionHandler struct {
	transactionService *transaction.Service
}

func NewTransactionHandler(transactionService *transaction.Service) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// CreateTransactionRequest is the body of POST /transactions. A user_id in
// the body is ignored; ownership always comes from the bearer token.
type CreateTransactionRequest struct {
	Amount    *int64    `json:"amount" validate:"required,min=0"`
	Currency  string    `json:"currency" validate:"required,len=3,uppercase,alpha"`
	Category  string    `json:"category" validate:"required,max=64"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note" validate:"max=1024"`
}

type CreateTransactionResponse struct {
	ID string `json:"id"`
}

// HandleListTransactions returns one page of the caller's transactions with
// timestamps in [from, to).
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	window, err := parseWindow(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	page, err := h.transactionService.List(r.Context(), userID, window, r.URL.Query().Get("page"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// HandleCreateTransaction stores a transaction owned by the caller.
func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req CreateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	tx, err := h.transactionService.Create(r.Context(), userID, transaction.CreateParams{
		Amount:    *req.Amount,
		Currency:  req.Currency,
		Category:  req.Category,
		Timestamp: req.Timestamp,
		Note:      req.Note,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateTransactionResponse{ID: tx.ID})
}

// HandleDeleteTransaction removes one of the caller's transactions.
func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.transactionService.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseWindow reads RFC 3339 query bounds.
func parseWindow(from, to string) (transaction.Window, error) {
	if from == "" || to == "" {
		return transaction.Window{}, apperr.Validation("from and to are required")
	}
	f, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return transaction.Window{}, apperr.Wrap(apperr.ValidationFailed, "from must be an RFC 3339 timestamp", err)
	}
	t, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return transaction.Window{}, apperr.Wrap(apperr.ValidationFailed, "to must be an RFC 3339 timestamp", err)
	}
	return transaction.Window{From: f, To: t}, nil
}
