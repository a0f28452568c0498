package http

import (
	"net/http"

	"moneymind/internal/domain/user"
)

type UserHandler struct {
	userService *user.Service
}

func NewUserHandler(userService *user.Service) *UserHandler {
	return &UserHandler{userService: userService}
}

// HandleMe returns the caller's profile.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	u, err := h.userService.Ensure(r.Context(), userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}
