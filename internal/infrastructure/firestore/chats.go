package firestore

import (
	"context"
	"fmt"
	"slices"

	fs "cloud.google.com/go/firestore"

	"moneymind/internal/domain/chat"
	"moneymind/internal/shared/ids"
)

type sessionDoc struct {
	UserID        string `firestore:"user_id"`
	Title         string `firestore:"title"`
	CreatedAt     int64  `firestore:"created_at"`
	LastUpdatedAt int64  `firestore:"last_updated_at"`
}

type messageDoc struct {
	Role      string   `firestore:"role"`
	Parts     []string `firestore:"parts"`
	Timestamp int64    `firestore:"timestamp"`
	LogIndex  int      `firestore:"log_index"`
}

type ChatRepository struct {
	store *Store
}

func NewChatRepository(store *Store) *ChatRepository {
	return &ChatRepository{store: store}
}

func (r *ChatRepository) sessions(uid string) *fs.CollectionRef {
	return r.store.user(uid).Collection(sessionsCollection)
}

func (r *ChatRepository) messages(uid, sessionID string) *fs.CollectionRef {
	return r.sessions(uid).Doc(sessionID).Collection(messagesCollection)
}

func (r *ChatRepository) ListSessions(ctx context.Context, userID string) ([]*chat.Session, error) {
	if !validID(userID) {
		return []*chat.Session{}, nil
	}

	var sessions []*chat.Session
	err := r.store.run(ctx, "chats.list", func(ctx context.Context) error {
		docs, err := r.sessions(userID).
			OrderBy("last_updated_at", fs.Desc).
			OrderBy("created_at", fs.Desc).
			Documents(ctx).GetAll()
		if err != nil {
			return err
		}
		sessions = make([]*chat.Session, 0, len(docs))
		for _, snap := range docs {
			s, err := decodeSession(snap)
			if err != nil {
				return err
			}
			sessions = append(sessions, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *ChatRepository) CreateSession(ctx context.Context, userID, title string) (*chat.Session, error) {
	if !validID(userID) {
		return nil, fmt.Errorf("invalid user id %q", userID)
	}

	ref := r.sessions(userID).Doc(ids.New())
	var created *chat.Session

	err := r.store.run(ctx, "chats.create", func(ctx context.Context) error {
		return r.store.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
			stamp, err := r.store.nextStamp(tx, userID, streamChats)
			if err != nil {
				return err
			}
			doc := sessionDoc{UserID: userID, Title: title, CreatedAt: stamp, LastUpdatedAt: stamp}
			if err := tx.Create(ref, doc); err != nil {
				return err
			}
			if err := r.store.setStamp(tx, userID, streamChats, stamp); err != nil {
				return err
			}
			created = toSession(ref.ID, doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *ChatRepository) GetSession(ctx context.Context, userID, sessionID string) (*chat.Session, error) {
	if !validID(userID) || !validID(sessionID) {
		return nil, chat.ErrSessionNotFound
	}

	var s *chat.Session
	err := r.store.run(ctx, "chats.get", func(ctx context.Context) error {
		snap, err := r.sessions(userID).Doc(sessionID).Get(ctx)
		if isNotFound(err) {
			return chat.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		s, err = decodeSession(snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// History reads the newest limit messages and returns them oldest first.
func (r *ChatRepository) History(ctx context.Context, userID, sessionID string, limit int) ([]chat.Message, error) {
	if !validID(userID) || !validID(sessionID) {
		return nil, chat.ErrSessionNotFound
	}

	var msgs []chat.Message
	err := r.store.run(ctx, "chats.history", func(ctx context.Context) error {
		docs, err := r.messages(userID, sessionID).
			OrderBy("timestamp", fs.Desc).
			OrderBy("log_index", fs.Desc).
			Limit(limit).
			Documents(ctx).GetAll()
		if err != nil {
			return err
		}
		msgs = make([]chat.Message, 0, len(docs))
		for _, snap := range docs {
			var doc messageDoc
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode message %s: %w", snap.Ref.ID, err)
			}
			msgs = append(msgs, toMessage(doc))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Reverse(msgs)
	return msgs, nil
}

// AppendExchange writes the user turn, the model turn and the session bump in
// one datastore transaction.
func (r *ChatRepository) AppendExchange(ctx context.Context, userID, sessionID, prompt, reply, title string) (*chat.Session, error) {
	if !validID(userID) || !validID(sessionID) {
		return nil, chat.ErrSessionNotFound
	}

	ref := r.sessions(userID).Doc(sessionID)
	msgs := r.messages(userID, sessionID)
	userRef, modelRef := msgs.Doc(ids.New()), msgs.Doc(ids.New())
	var updated *chat.Session

	err := r.store.run(ctx, "chats.append", func(ctx context.Context) error {
		return r.store.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
			snap, err := tx.Get(ref)
			if isNotFound(err) {
				return chat.ErrSessionNotFound
			}
			if err != nil {
				return err
			}
			s, err := decodeSession(snap)
			if err != nil {
				return err
			}
			stamp, err := r.store.nextStamp(tx, userID, streamChats)
			if err != nil {
				return err
			}

			turns := []struct {
				ref *fs.DocumentRef
				doc messageDoc
			}{
				{userRef, messageDoc{Role: string(chat.RoleUser), Parts: []string{prompt}, Timestamp: stamp, LogIndex: 0}},
				{modelRef, messageDoc{Role: string(chat.RoleModel), Parts: []string{reply}, Timestamp: stamp, LogIndex: 1}},
			}
			for _, turn := range turns {
				if err := tx.Create(turn.ref, turn.doc); err != nil {
					return err
				}
			}

			changes := []fs.Update{{Path: "last_updated_at", Value: stamp}}
			if title != "" {
				changes = append(changes, fs.Update{Path: "title", Value: title})
				s.Title = title
			}
			if err := tx.Update(ref, changes); err != nil {
				return err
			}
			if err := r.store.setStamp(tx, userID, streamChats, stamp); err != nil {
				return err
			}

			s.LastUpdatedAt = fromMillis(stamp)
			updated = s
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *ChatRepository) RenameSession(ctx context.Context, userID, sessionID, title string) (*chat.Session, error) {
	if !validID(userID) || !validID(sessionID) {
		return nil, chat.ErrSessionNotFound
	}

	ref := r.sessions(userID).Doc(sessionID)
	var renamed *chat.Session

	err := r.store.run(ctx, "chats.rename", func(ctx context.Context) error {
		return r.store.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
			snap, err := tx.Get(ref)
			if isNotFound(err) {
				return chat.ErrSessionNotFound
			}
			if err != nil {
				return err
			}
			s, err := decodeSession(snap)
			if err != nil {
				return err
			}
			stamp, err := r.store.nextStamp(tx, userID, streamChats)
			if err != nil {
				return err
			}

			if err := tx.Update(ref, []fs.Update{
				{Path: "title", Value: title},
				{Path: "last_updated_at", Value: stamp},
			}); err != nil {
				return err
			}
			if err := r.store.setStamp(tx, userID, streamChats, stamp); err != nil {
				return err
			}

			s.Title = title
			s.LastUpdatedAt = fromMillis(stamp)
			renamed = s
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// DeleteSession drains the message subcollection in batches through a bulk
// writer, then removes the session document itself.
func (r *ChatRepository) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if !validID(userID) || !validID(sessionID) {
		return chat.ErrSessionNotFound
	}

	msgs := r.messages(userID, sessionID)
	for {
		var deleted int
		err := r.store.run(ctx, "chats.delete_messages", func(ctx context.Context) error {
			docs, err := msgs.Limit(chat.DeleteBatchSize).Documents(ctx).GetAll()
			if err != nil {
				return err
			}
			deleted = len(docs)
			if deleted == 0 {
				return nil
			}
			return deleteAll(ctx, r.store.client, docs)
		})
		if err != nil {
			return err
		}
		if deleted < chat.DeleteBatchSize {
			break
		}
	}

	return r.store.run(ctx, "chats.delete", func(ctx context.Context) error {
		_, err := r.sessions(userID).Doc(sessionID).Delete(ctx)
		return err
	})
}

func deleteAll(ctx context.Context, client *fs.Client, docs []*fs.DocumentSnapshot) error {
	bw := client.BulkWriter(ctx)
	jobs := make([]*fs.BulkWriterJob, 0, len(docs))
	for _, snap := range docs {
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return err
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil && !isNotFound(err) {
			return err
		}
	}
	return nil
}

func decodeSession(snap *fs.DocumentSnapshot) (*chat.Session, error) {
	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode chat session %s: %w", snap.Ref.ID, err)
	}
	return toSession(snap.Ref.ID, doc), nil
}

func toSession(id string, doc sessionDoc) *chat.Session {
	return &chat.Session{
		ID:            id,
		UserID:        doc.UserID,
		Title:         doc.Title,
		CreatedAt:     fromMillis(doc.CreatedAt),
		LastUpdatedAt: fromMillis(doc.LastUpdatedAt),
	}
}

func toMessage(doc messageDoc) chat.Message {
	return chat.Message{
		Role:      chat.Role(doc.Role),
		Parts:     doc.Parts,
		Timestamp: fromMillis(doc.Timestamp),
		LogIndex:  doc.LogIndex,
	}
}
