package http

import (
	"context"
	"net/http"
	"time"

	"moneymind/internal/domain/budget"
	"moneymind/internal/domain/chat"
	"moneymind/internal/domain/transaction"
	"moneymind/internal/shared/requestctx"
)

// MockTransactionRepo implements transaction.Repository for testing
type MockTransactionRepo struct {
	CreateFunc func(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error)
	GetFunc    func(ctx context.Context, userID, id string) (*transaction.Transaction, error)
	ListFunc   func(ctx context.Context, userID string, window transaction.Window, pageToken string, limit int) (*transaction.Page, error)
	DeleteFunc func(ctx context.Context, userID, id string) error
}

func (m *MockTransactionRepo) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockTransactionRepo) Get(ctx context.Context, userID, id string) (*transaction.Transaction, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID, id)
	}
	return nil, transaction.ErrTransactionNotFound
}

func (m *MockTransactionRepo) List(ctx context.Context, userID string, window transaction.Window, pageToken string, limit int) (*transaction.Page, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, window, pageToken, limit)
	}
	return &transaction.Page{}, nil
}

func (m *MockTransactionRepo) Delete(ctx context.Context, userID, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}

// MockBudgetRepo implements budget.Repository for testing
type MockBudgetRepo struct {
	ListFunc func(ctx context.Context, userID string) ([]*budget.Budget, error)
	PutFunc  func(ctx context.Context, params budget.PutParams) (*budget.Budget, bool, error)
}

func (m *MockBudgetRepo) List(ctx context.Context, userID string) ([]*budget.Budget, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockBudgetRepo) Put(ctx context.Context, params budget.PutParams) (*budget.Budget, bool, error) {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, params)
	}
	return nil, false, nil
}

// MockChatRepo implements chat.Repository for testing
type MockChatRepo struct {
	ListSessionsFunc   func(ctx context.Context, userID string) ([]*chat.Session, error)
	CreateSessionFunc  func(ctx context.Context, userID, title string) (*chat.Session, error)
	GetSessionFunc     func(ctx context.Context, userID, sessionID string) (*chat.Session, error)
	HistoryFunc        func(ctx context.Context, userID, sessionID string, limit int) ([]chat.Message, error)
	AppendExchangeFunc func(ctx context.Context, userID, sessionID, prompt, reply, title string) (*chat.Session, error)
	RenameSessionFunc  func(ctx context.Context, userID, sessionID, title string) (*chat.Session, error)
	DeleteSessionFunc  func(ctx context.Context, userID, sessionID string) error
}

func (m *MockChatRepo) ListSessions(ctx context.Context, userID string) ([]*chat.Session, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockChatRepo) CreateSession(ctx context.Context, userID, title string) (*chat.Session, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, userID, title)
	}
	return &chat.Session{ID: "s1", UserID: userID, Title: title}, nil
}

func (m *MockChatRepo) GetSession(ctx context.Context, userID, sessionID string) (*chat.Session, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, userID, sessionID)
	}
	return nil, chat.ErrSessionNotFound
}

func (m *MockChatRepo) History(ctx context.Context, userID, sessionID string, limit int) ([]chat.Message, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, userID, sessionID, limit)
	}
	return nil, nil
}

func (m *MockChatRepo) AppendExchange(ctx context.Context, userID, sessionID, prompt, reply, title string) (*chat.Session, error) {
	if m.AppendExchangeFunc != nil {
		return m.AppendExchangeFunc(ctx, userID, sessionID, prompt, reply, title)
	}
	return &chat.Session{ID: sessionID, UserID: userID, Title: title}, nil
}

func (m *MockChatRepo) RenameSession(ctx context.Context, userID, sessionID, title string) (*chat.Session, error) {
	if m.RenameSessionFunc != nil {
		return m.RenameSessionFunc(ctx, userID, sessionID, title)
	}
	return &chat.Session{ID: sessionID, UserID: userID, Title: title}, nil
}

func (m *MockChatRepo) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, userID, sessionID)
	}
	return nil
}

// MockLLM implements both the advice generator and the chat conversation.
type MockLLM struct {
	GenerateFunc func(ctx context.Context, prompt string, data any) (string, error)
	ConverseFunc func(ctx context.Context, history []chat.Message, prompt string) (string, error)
}

func (m *MockLLM) Generate(ctx context.Context, prompt string, data any) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, data)
	}
	return "ok", nil
}

func (m *MockLLM) Converse(ctx context.Context, history []chat.Message, prompt string) (string, error) {
	if m.ConverseFunc != nil {
		return m.ConverseFunc(ctx, history, prompt)
	}
	return "ok", nil
}

// withUser attaches a verified caller the way the auth middleware does.
func withUser(req *http.Request, userID string) *http.Request {
	ctx := requestctx.WithUser(req.Context(), userID, time.Now().Add(time.Hour))
	return req.WithContext(ctx)
}
