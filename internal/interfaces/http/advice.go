package http

import (
	"net/http"
	"time"

	"moneymind/internal/domain/advice"
	"moneymind/internal/domain/transaction"
)

type AdviceHandler struct {
	adviceService *advice.Service
}

func NewAdviceHandler(adviceService *advice.Service) *AdviceHandler {
	return &AdviceHandler{adviceService: adviceService}
}

type AdviceRequest struct {
	Prompt string        `json:"prompt" validate:"required"`
	Window *WindowParams `json:"window,omitempty"`
}

// WindowParams is the half-open interval [from, to).
type WindowParams struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type AdviceResponse struct {
	Text string `json:"text"`
}

// HandleAdvice answers a finance question, optionally grounded in the
// caller's transactions inside a window.
func (h *AdviceHandler) HandleAdvice(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req AdviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	in := advice.Request{Prompt: req.Prompt}
	if req.Window != nil {
		in.Window = &transaction.Window{From: req.Window.From, To: req.Window.To}
	}

	text, err := h.adviceService.Advise(r.Context(), userID, in)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AdviceResponse{Text: text})
}
