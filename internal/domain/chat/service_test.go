package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"moneymind/internal/shared/apperr"
)

type MockRepository struct {
	ListSessionsFunc   func(ctx context.Context, userID string) ([]*Session, error)
	CreateSessionFunc  func(ctx context.Context, userID, title string) (*Session, error)
	GetSessionFunc     func(ctx context.Context, userID, sessionID string) (*Session, error)
	HistoryFunc        func(ctx context.Context, userID, sessionID string, limit int) ([]Message, error)
	AppendExchangeFunc func(ctx context.Context, userID, sessionID, prompt, reply, title string) (*Session, error)
	RenameSessionFunc  func(ctx context.Context, userID, sessionID, title string) (*Session, error)
	DeleteSessionFunc  func(ctx context.Context, userID, sessionID string) error
}

func (m *MockRepository) ListSessions(ctx context.Context, userID string) ([]*Session, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockRepository) CreateSession(ctx context.Context, userID, title string) (*Session, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, userID, title)
	}
	return &Session{ID: "s1", UserID: userID, Title: title}, nil
}

func (m *MockRepository) GetSession(ctx context.Context, userID, sessionID string) (*Session, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, userID, sessionID)
	}
	return &Session{ID: sessionID, UserID: userID, Title: "New Chat - Jun 01, 12:00"}, nil
}

func (m *MockRepository) History(ctx context.Context, userID, sessionID string, limit int) ([]Message, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, userID, sessionID, limit)
	}
	return nil, nil
}

func (m *MockRepository) AppendExchange(ctx context.Context, userID, sessionID, prompt, reply, title string) (*Session, error) {
	if m.AppendExchangeFunc != nil {
		return m.AppendExchangeFunc(ctx, userID, sessionID, prompt, reply, title)
	}
	return &Session{ID: sessionID, Title: title}, nil
}

func (m *MockRepository) RenameSession(ctx context.Context, userID, sessionID, title string) (*Session, error) {
	if m.RenameSessionFunc != nil {
		return m.RenameSessionFunc(ctx, userID, sessionID, title)
	}
	return &Session{ID: sessionID, Title: title}, nil
}

func (m *MockRepository) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, userID, sessionID)
	}
	return nil
}

type mockConversation struct {
	ConverseFunc func(ctx context.Context, history []Message, prompt string) (string, error)
}

func (m *mockConversation) Converse(ctx context.Context, history []Message, prompt string) (string, error) {
	return m.ConverseFunc(ctx, history, prompt)
}

func echoLLM() *mockConversation {
	return &mockConversation{ConverseFunc: func(ctx context.Context, history []Message, prompt string) (string, error) {
		return "reply to " + prompt, nil
	}}
}

func TestDefaultTitle(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 5, 0, 0, time.UTC)
	if got := DefaultTitle(now); got != "New Chat - Jun 01, 09:05" {
		t.Errorf("DefaultTitle() = %q", got)
	}
	if !HasDefaultTitle(DefaultTitle(now)) {
		t.Error("HasDefaultTitle(DefaultTitle()) = false")
	}
}

func TestTitleFromPrompt(t *testing.T) {
	tests := map[string]string{
		"How do index funds work":                         "How do index funds work",
		"What is the difference between stocks and bonds": "What is the difference between stocks and...",
		"  spaced   out  ":                                "spaced out",
	}
	for in, want := range tests {
		if got := TitleFromPrompt(in); got != want {
			t.Errorf("TitleFromPrompt(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestService_Send_FirstMessageRenames(t *testing.T) {
	var savedTitle string
	repo := &MockRepository{
		AppendExchangeFunc: func(ctx context.Context, userID, sessionID, prompt, reply, title string) (*Session, error) {
			savedTitle = title
			return &Session{ID: sessionID, Title: title}, nil
		},
	}

	res, err := NewService(repo, echoLLM()).Send(context.Background(), "u", "s1", "What is the difference between stocks and bonds")
	if err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if res.Reply != "reply to What is the difference between stocks and bonds" {
		t.Errorf("Reply = %q", res.Reply)
	}
	if savedTitle != "What is the difference between stocks and..." {
		t.Errorf("saved title = %q", savedTitle)
	}
	if res.Updated == nil || res.Updated.Title != savedTitle {
		t.Errorf("Updated = %+v, want renamed session", res.Updated)
	}
}

func TestService_Send_WithHistoryKeepsTitle(t *testing.T) {
	var seenHistory []Message
	repo := &MockRepository{
		HistoryFunc: func(ctx context.Context, userID, sessionID string, limit int) ([]Message, error) {
			if limit != HistoryLimit {
				t.Errorf("limit = %d, want %d", limit, HistoryLimit)
			}
			return []Message{
				{Role: RoleUser, Parts: []string{"hi"}},
				{Role: RoleModel, Parts: []string{"hello"}},
			}, nil
		},
		AppendExchangeFunc: func(ctx context.Context, userID, sessionID, prompt, reply, title string) (*Session, error) {
			if title != "" {
				t.Errorf("title = %q, want no rename", title)
			}
			return &Session{ID: sessionID}, nil
		},
	}
	llm := &mockConversation{ConverseFunc: func(ctx context.Context, history []Message, prompt string) (string, error) {
		seenHistory = history
		return "ok", nil
	}}

	res, err := NewService(repo, llm).Send(context.Background(), "u", "s1", "and now?")
	if err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if res.Updated != nil {
		t.Errorf("Updated = %+v, want nil", res.Updated)
	}
	if len(seenHistory) != 2 {
		t.Errorf("history passed to model = %d messages, want 2", len(seenHistory))
	}
}

func TestService_Send_CustomTitleKept(t *testing.T) {
	repo := &MockRepository{
		GetSessionFunc: func(ctx context.Context, userID, sessionID string) (*Session, error) {
			return &Session{ID: sessionID, Title: "Retirement plan"}, nil
		},
	}

	res, err := NewService(repo, echoLLM()).Send(context.Background(), "u", "s1", "first question")
	if err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if res.Updated != nil {
		t.Error("a renamed session must keep its title")
	}
}

func TestService_Send_Errors(t *testing.T) {
	llmErr := apperr.Unavailable(apperr.UpstreamLLM, errors.New("503"))

	tests := []struct {
		name     string
		prompt   string
		repo     *MockRepository
		llm      *mockConversation
		wantKind apperr.Kind
	}{
		{
			name:     "blank prompt",
			prompt:   "   ",
			repo:     &MockRepository{},
			llm:      echoLLM(),
			wantKind: apperr.ValidationFailed,
		},
		{
			name:     "prompt too large",
			prompt:   strings.Repeat("a", MaxPromptBytes+1),
			repo:     &MockRepository{},
			llm:      echoLLM(),
			wantKind: apperr.ValidationFailed,
		},
		{
			name:   "unknown session",
			prompt: "hi",
			repo: &MockRepository{GetSessionFunc: func(ctx context.Context, userID, sessionID string) (*Session, error) {
				return nil, ErrSessionNotFound
			}},
			llm:      echoLLM(),
			wantKind: apperr.NotFound,
		},
		{
			name:   "model unavailable",
			prompt: "hi",
			repo:   &MockRepository{},
			llm: &mockConversation{ConverseFunc: func(ctx context.Context, history []Message, prompt string) (string, error) {
				return "", llmErr
			}},
			wantKind: apperr.UpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.repo, tt.llm).Send(context.Background(), "u", "s1", tt.prompt)
			if got := apperr.KindOf(err); got != tt.wantKind {
				t.Errorf("Send() kind = %s, want %s (err: %v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestService_Rename(t *testing.T) {
	svc := NewService(&MockRepository{}, echoLLM())

	s, err := svc.Rename(context.Background(), "u", "s1", "  Budget ideas  ")
	if err != nil {
		t.Fatalf("Rename() failed: %v", err)
	}
	if s.Title != "Budget ideas" {
		t.Errorf("Title = %q, want trimmed", s.Title)
	}

	if _, err := svc.Rename(context.Background(), "u", "s1", "   "); !apperr.IsKind(err, apperr.ValidationFailed) {
		t.Errorf("Rename(blank) error = %v, want ValidationFailed", err)
	}
}

func TestService_Delete_Missing(t *testing.T) {
	deleted := false
	repo := &MockRepository{
		GetSessionFunc: func(ctx context.Context, userID, sessionID string) (*Session, error) {
			return nil, ErrSessionNotFound
		},
		DeleteSessionFunc: func(ctx context.Context, userID, sessionID string) error {
			deleted = true
			return nil
		},
	}

	err := NewService(repo, echoLLM()).Delete(context.Background(), "u", "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Delete() error = %v, want ErrSessionNotFound", err)
	}
	if deleted {
		t.Error("DeleteSession called for a missing session")
	}
}
