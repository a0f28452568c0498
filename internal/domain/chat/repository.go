package chat

import "context"

// Repository defines the interface for chat session storage
type Repository interface {
	// ListSessions orders by LastUpdatedAt then CreatedAt, newest first.
	ListSessions(ctx context.Context, userID string) ([]*Session, error)

	// CreateSession assigns the id and timestamps.
	CreateSession(ctx context.Context, userID, title string) (*Session, error)

	GetSession(ctx context.Context, userID, sessionID string) (*Session, error)

	// History returns the most recent limit messages in ascending
	// (Timestamp, LogIndex) order.
	History(ctx context.Context, userID, sessionID string, limit int) ([]Message, error)

	// AppendExchange atomically stores a user turn and a model turn and
	// bumps the session's LastUpdatedAt. A non-empty title replaces the
	// session title in the same write.
	AppendExchange(ctx context.Context, userID, sessionID, prompt, reply, title string) (*Session, error)

	RenameSession(ctx context.Context, userID, sessionID, title string) (*Session, error)

	// DeleteSession removes the messages in batches, then the session.
	DeleteSession(ctx context.Context, userID, sessionID string) error
}

// Conversation continues a multi-turn exchange with the model.
type Conversation interface {
	Converse(ctx context.Context, history []Message, prompt string) (string, error)
}
