package http

import (
	"net/http"
	"strings"
	"time"

	"moneymind/internal/shared/middleware"
)

// HealthPath is the only route served without a bearer token.
const HealthPath = "/healthz"

// Handlers groups the route handlers.
type Handlers struct {
	Advice       *AdviceHandler
	Transactions *TransactionHandler
	Budgets      *BudgetHandler
	Chats        *ChatHandler
	Users        *UserHandler
}

// RouterConfig carries what the middleware chain needs besides the handlers.
type RouterConfig struct {
	Verifier       middleware.TokenVerifier
	Users          middleware.UserEnsurer
	AllowedOrigins []string
	RequestTimeout time.Duration
	// LongTimeout applies to routes that wait on the model.
	LongTimeout time.Duration
	HSTS        bool
}

// NewRouter registers every route and wraps the mux in the middleware chain.
func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+HealthPath, HandleHealth)

	mux.HandleFunc("POST /advice", h.Advice.HandleAdvice)

	mux.HandleFunc("GET /transactions", h.Transactions.HandleListTransactions)
	mux.HandleFunc("POST /transactions", h.Transactions.HandleCreateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", h.Transactions.HandleDeleteTransaction)

	mux.HandleFunc("GET /budgets", h.Budgets.HandleListBudgets)
	mux.HandleFunc("PUT /budgets", h.Budgets.HandlePutBudget)

	mux.HandleFunc("GET /chats", h.Chats.HandleListSessions)
	mux.HandleFunc("POST /chats", h.Chats.HandleCreateSession)
	mux.HandleFunc("GET /chats/{id}/history", h.Chats.HandleHistory)
	mux.HandleFunc("POST /chats/{id}/message", h.Chats.HandleSendMessage)
	mux.HandleFunc("PUT /chats/{id}/rename", h.Chats.HandleRenameSession)
	mux.HandleFunc("DELETE /chats/{id}", h.Chats.HandleDeleteSession)

	mux.HandleFunc("GET /me", h.Users.HandleMe)

	mux.HandleFunc("/", HandleNotFound)

	timeoutFor := func(r *http.Request) time.Duration {
		if isLongRoute(r) {
			return cfg.LongTimeout
		}
		return cfg.RequestTimeout
	}

	routeOf := func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		return pattern
	}

	// Innermost first.
	var handler http.Handler = mux
	handler = middleware.Auth(cfg.Verifier, cfg.Users, WriteError, HealthPath)(handler)
	handler = middleware.Deadline(timeoutFor, WriteError)(handler)
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	handler = middleware.SecurityHeaders(handler)
	if cfg.HSTS {
		handler = middleware.HSTS(handler)
	}
	handler = middleware.RouteMetrics(routeOf)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Telemetry(handler)

	return handler
}

// isLongRoute reports whether r goes to /advice or /chats/{id}/message.
func isLongRoute(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	path := r.URL.Path
	if path == "/advice" {
		return true
	}
	rest, ok := strings.CutPrefix(path, "/chats/")
	if !ok {
		return false
	}
	id, tail, ok := strings.Cut(rest, "/")
	return ok && id != "" && tail == "message"
}
