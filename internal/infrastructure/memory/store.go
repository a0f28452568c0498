// Package memory is an in-process datastore with the same ordering, paging
// and stamping rules as the Firestore store. It backs the router tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"moneymind/internal/domain/budget"
	"moneymind/internal/domain/chat"
	"moneymind/internal/domain/transaction"
	"moneymind/internal/domain/user"
	"moneymind/internal/shared/ids"
)

const (
	streamTransactions = "transactions"
	streamBudgets      = "budgets"
	streamChats        = "chats"
)

type userData struct {
	profile      *user.User
	stamps       map[string]int64
	transactions map[string]*transaction.Transaction
	budgets      map[string]*budget.Budget
	sessions     map[string]*chat.Session
	messages     map[string][]chat.Message
}

// Store keeps every user's documents behind one mutex.
type Store struct {
	mu    sync.RWMutex
	users map[string]*userData
	now   func() time.Time
}

func New() *Store {
	return &Store{users: make(map[string]*userData), now: time.Now}
}

// SetClock replaces the time source used for server-assigned stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) data(uid string) *userData {
	d, ok := s.users[uid]
	if !ok {
		d = &userData{
			stamps:       make(map[string]int64),
			transactions: make(map[string]*transaction.Transaction),
			budgets:      make(map[string]*budget.Budget),
			sessions:     make(map[string]*chat.Session),
			messages:     make(map[string][]chat.Message),
		}
		s.users[uid] = d
	}
	return d
}

// stamp issues the next monotonic stamp for a stream. Callers hold mu.
func (s *Store) stamp(d *userData, stream string) time.Time {
	now := s.now().UnixMilli()
	if last := d.stamps[stream]; now <= last {
		now = last + 1
	}
	d.stamps[stream] = now
	return time.UnixMilli(now).UTC()
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

func (s *Store) Transactions() *TransactionRepository {
	return &TransactionRepository{s: s}
}

func (s *Store) Budgets() *BudgetRepository {
	return &BudgetRepository{s: s}
}

func (s *Store) Chats() *ChatRepository {
	return &ChatRepository{s: s}
}

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.users[id]
	if !ok || d.profile == nil {
		return nil, user.ErrUserNotFound
	}
	u := *d.profile
	return &u, nil
}

func (r *UserRepository) Upsert(ctx context.Context, u *user.User) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.data(u.ID)
	saved := *u
	if d.profile != nil {
		saved.CreatedAt = d.profile.CreatedAt
		if saved.DisplayName == "" {
			saved.DisplayName = d.profile.DisplayName
		}
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = r.s.now().UTC().Truncate(time.Millisecond)
	}
	d.profile = &saved

	out := saved
	return &out, nil
}

type TransactionRepository struct {
	s *Store
}

func (r *TransactionRepository) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.data(params.UserID)
	t := &transaction.Transaction{
		ID:        ids.New(),
		UserID:    params.UserID,
		Amount:    params.Amount,
		Currency:  params.Currency,
		Category:  params.Category,
		Timestamp: transaction.NormalizeTime(params.Timestamp),
		Note:      params.Note,
		CreatedAt: r.s.stamp(d, streamTransactions),
	}
	d.transactions[t.ID] = t

	out := *t
	return &out, nil
}

func (r *TransactionRepository) Get(ctx context.Context, userID, id string) (*transaction.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.users[userID]
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	t, ok := d.transactions[id]
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	out := *t
	return &out, nil
}

func (r *TransactionRepository) List(ctx context.Context, userID string, window transaction.Window, pageToken string, limit int) (*transaction.Page, error) {
	var cursor *transaction.Cursor
	if pageToken != "" {
		c, err := transaction.DecodeCursor(pageToken)
		if err != nil {
			return nil, err
		}
		cursor = &c
	}

	r.s.mu.RLock()
	var matched []*transaction.Transaction
	if d, ok := r.s.users[userID]; ok {
		for _, t := range d.transactions {
			if !window.Contains(t.Timestamp) || (cursor != nil && !cursor.After(t)) {
				continue
			}
			out := *t
			matched = append(matched, &out)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *transaction.Transaction) int {
		switch {
		case transaction.Less(a, b):
			return -1
		case transaction.Less(b, a):
			return 1
		}
		return 0
	})

	if len(matched) <= limit {
		if matched == nil {
			matched = []*transaction.Transaction{}
		}
		return &transaction.Page{Items: matched}, nil
	}
	items := matched[:limit]
	return &transaction.Page{
		Items: items,
		Next:  transaction.CursorAfter(items[len(items)-1]).Encode(),
	}, nil
}

func (r *TransactionRepository) Delete(ctx context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.users[userID]
	if !ok {
		return transaction.ErrTransactionNotFound
	}
	if _, ok := d.transactions[id]; !ok {
		return transaction.ErrTransactionNotFound
	}
	delete(d.transactions, id)
	return nil
}

type BudgetRepository struct {
	s *Store
}

func (r *BudgetRepository) List(ctx context.Context, userID string) ([]*budget.Budget, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	budgets := []*budget.Budget{}
	if d, ok := r.s.users[userID]; ok {
		for _, b := range d.budgets {
			out := *b
			budgets = append(budgets, &out)
		}
	}
	return budgets, nil
}

func (r *BudgetRepository) Put(ctx context.Context, params budget.PutParams) (*budget.Budget, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.data(params.UserID)
	key := budget.Key(params.Category, params.Period)
	_, exists := d.budgets[key]

	b := &budget.Budget{
		UserID:    params.UserID,
		Category:  params.Category,
		Period:    params.Period,
		Limit:     params.Limit,
		UpdatedAt: r.s.stamp(d, streamBudgets),
	}
	d.budgets[key] = b

	out := *b
	return &out, !exists, nil
}

type ChatRepository struct {
	s *Store
}

func (r *ChatRepository) ListSessions(ctx context.Context, userID string) ([]*chat.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sessions := []*chat.Session{}
	if d, ok := r.s.users[userID]; ok {
		for _, s := range d.sessions {
			out := *s
			sessions = append(sessions, &out)
		}
	}
	slices.SortFunc(sessions, func(a, b *chat.Session) int {
		if c := b.LastUpdatedAt.Compare(a.LastUpdatedAt); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sessions, nil
}

func (r *ChatRepository) CreateSession(ctx context.Context, userID, title string) (*chat.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.data(userID)
	stamp := r.s.stamp(d, streamChats)
	s := &chat.Session{
		ID:            ids.New(),
		UserID:        userID,
		Title:         title,
		CreatedAt:     stamp,
		LastUpdatedAt: stamp,
	}
	d.sessions[s.ID] = s

	out := *s
	return &out, nil
}

// session returns the caller's session or ErrSessionNotFound. Callers hold mu.
func (r *ChatRepository) session(userID, sessionID string) (*userData, *chat.Session, error) {
	d, ok := r.s.users[userID]
	if !ok {
		return nil, nil, chat.ErrSessionNotFound
	}
	s, ok := d.sessions[sessionID]
	if !ok {
		return nil, nil, chat.ErrSessionNotFound
	}
	return d, s, nil
}

func (r *ChatRepository) GetSession(ctx context.Context, userID, sessionID string) (*chat.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, s, err := r.session(userID, sessionID)
	if err != nil {
		return nil, err
	}
	out := *s
	return &out, nil
}

func (r *ChatRepository) History(ctx context.Context, userID, sessionID string, limit int) ([]chat.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, _, err := r.session(userID, sessionID)
	if err != nil {
		return nil, err
	}
	stored := d.messages[sessionID]
	if len(stored) > limit {
		stored = stored[len(stored)-limit:]
	}
	msgs := make([]chat.Message, 0, len(stored))
	for _, m := range stored {
		m.Parts = slices.Clone(m.Parts)
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (r *ChatRepository) AppendExchange(ctx context.Context, userID, sessionID, prompt, reply, title string) (*chat.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, s, err := r.session(userID, sessionID)
	if err != nil {
		return nil, err
	}
	stamp := r.s.stamp(d, streamChats)
	d.messages[sessionID] = append(d.messages[sessionID],
		chat.Message{Role: chat.RoleUser, Parts: []string{prompt}, Timestamp: stamp, LogIndex: 0},
		chat.Message{Role: chat.RoleModel, Parts: []string{reply}, Timestamp: stamp, LogIndex: 1},
	)
	if title != "" {
		s.Title = title
	}
	s.LastUpdatedAt = stamp

	out := *s
	return &out, nil
}

func (r *ChatRepository) RenameSession(ctx context.Context, userID, sessionID, title string) (*chat.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, s, err := r.session(userID, sessionID)
	if err != nil {
		return nil, err
	}
	s.Title = title
	s.LastUpdatedAt = r.s.stamp(d, streamChats)

	out := *s
	return &out, nil
}

func (r *ChatRepository) DeleteSession(ctx context.Context, userID, sessionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, _, err := r.session(userID, sessionID)
	if err != nil {
		return err
	}
	delete(d.messages, sessionID)
	delete(d.sessions, sessionID)
	return nil
}
