package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

type Service struct {
	repo Repository
	llm  Conversation
	now  func() time.Time
}

func NewService(repo Repository, llm Conversation) *Service {
	return &Service{repo: repo, llm: llm, now: time.Now}
}

func (s *Service) List(ctx context.Context, callerID string) ([]*Session, error) {
	sessions, err := s.repo.ListSessions(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*Session{}
	}
	return sessions, nil
}

func (s *Service) Create(ctx context.Context, callerID string) (*Session, error) {
	return s.repo.CreateSession(ctx, callerID, DefaultTitle(s.now()))
}

// History returns the stored turns of a session the caller owns.
func (s *Service) History(ctx context.Context, callerID, sessionID string) ([]Message, error) {
	if _, err := s.repo.GetSession(ctx, callerID, sessionID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.History(ctx, callerID, sessionID, HistoryLimit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// SendResult is the model reply and, when the exchange renamed the session,
// the updated session.
type SendResult struct {
	Reply   string
	Updated *Session
}

// Send replays the stored history to the model with prompt and persists the
// exchange. The first exchange of a session with an automatic title renames
// it after the prompt.
func (s *Service) Send(ctx context.Context, callerID, sessionID, prompt string) (*SendResult, error) {
	if err := ValidatePrompt(prompt); err != nil {
		return nil, err
	}

	session, err := s.repo.GetSession(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.History(ctx, callerID, sessionID, HistoryLimit)
	if err != nil {
		return nil, err
	}

	reply, err := s.llm.Converse(ctx, history, prompt)
	if err != nil {
		return nil, err
	}

	var title string
	if len(history) == 0 && HasDefaultTitle(session.Title) {
		title = TitleFromPrompt(prompt)
	}

	updated, err := s.repo.AppendExchange(ctx, callerID, sessionID, prompt, reply, title)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "Saved chat exchange", "chat_id", sessionID, "renamed", title != "")

	res := &SendResult{Reply: reply}
	if title != "" {
		res.Updated = updated
	}
	return res, nil
}

func (s *Service) Rename(ctx context.Context, callerID, sessionID, title string) (*Session, error) {
	title = strings.TrimSpace(title)
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	return s.repo.RenameSession(ctx, callerID, sessionID, title)
}

func (s *Service) Delete(ctx context.Context, callerID, sessionID string) error {
	if _, err := s.repo.GetSession(ctx, callerID, sessionID); err != nil {
		return err
	}
	return s.repo.DeleteSession(ctx, callerID, sessionID)
}
