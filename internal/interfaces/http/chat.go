package http

import (
	"net/http"

	"moneymind/internal/domain/chat"
)

type ChatHandler struct {
	chatService *chat.Service
}

func NewChatHandler(chatService *chat.Service) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type SendMessageRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type RenameSessionRequest struct {
	Title string `json:"title" validate:"required"`
}

type ListSessionsResponse struct {
	Sessions []*chat.Session `json:"sessions"`
}

type SessionResponse struct {
	Session *chat.Session `json:"session"`
}

type HistoryResponse struct {
	History []chat.Message `json:"history"`
}

type SendMessageResponse struct {
	Response       string        `json:"response"`
	UpdatedSession *chat.Session `json:"updated_session,omitempty"`
}

func (h *ChatHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	sessions, err := h.chatService.List(r.Context(), userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListSessionsResponse{Sessions: sessions})
}

func (h *ChatHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	session, err := h.chatService.Create(r.Context(), userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, SessionResponse{Session: session})
}

func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	history, err := h.chatService.History(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{History: history})
}

// HandleSendMessage continues a session with a new prompt. The session is
// returned as updated_session only when the exchange renamed it.
func (h *ChatHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := h.chatService.Send(r.Context(), userID, r.PathValue("id"), req.Prompt)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SendMessageResponse{Response: res.Reply, UpdatedSession: res.Updated})
}

func (h *ChatHandler) HandleRenameSession(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req RenameSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	session, err := h.chatService.Rename(r.Context(), userID, r.PathValue("id"), req.Title)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{Session: session})
}

func (h *ChatHandler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.chatService.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
