package firestore

import (
	"context"
	"fmt"

	fs "cloud.google.com/go/firestore"

	"moneymind/internal/domain/transaction"
	"moneymind/internal/shared/ids"
)

type transactionDoc struct {
	UserID    string `firestore:"user_id"`
	Amount    int64  `firestore:"amount"`
	Currency  string `firestore:"currency"`
	Category  string `firestore:"category"`
	Timestamp int64  `firestore:"timestamp"`
	Note      string `firestore:"note"`
	CreatedAt int64  `firestore:"created_at"`
}

type TransactionRepository struct {
	store *Store
}

func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

func (r *TransactionRepository) collection(uid string) *fs.CollectionRef {
	return r.store.user(uid).Collection(transactionsCollection)
}

func (r *TransactionRepository) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	if !validID(params.UserID) {
		return nil, fmt.Errorf("invalid user id %q", params.UserID)
	}

	ref := r.collection(params.UserID).Doc(ids.New())
	var (
		created  *transaction.Transaction
		attempts int
	)

	err := r.store.run(ctx, "transactions.create", func(ctx context.Context) error {
		attempts++
		err := r.store.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
			stamp, err := r.store.nextStamp(tx, params.UserID, streamTransactions)
			if err != nil {
				return err
			}

			doc := transactionDoc{
				UserID:    params.UserID,
				Amount:    params.Amount,
				Currency:  params.Currency,
				Category:  params.Category,
				Timestamp: millis(params.Timestamp),
				Note:      params.Note,
				CreatedAt: stamp,
			}
			if err := tx.Create(ref, doc); err != nil {
				return err
			}
			if err := r.store.setStamp(tx, params.UserID, streamTransactions, stamp); err != nil {
				return err
			}
			created = toTransaction(ref.ID, doc)
			return nil
		})
		if !lostCommit(attempts, err) {
			return err
		}
		snap, err := ref.Get(ctx)
		if err != nil {
			return err
		}
		created, err = decodeTransaction(snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *TransactionRepository) Get(ctx context.Context, userID, id string) (*transaction.Transaction, error) {
	if !validID(userID) || !validID(id) {
		return nil, transaction.ErrTransactionNotFound
	}

	var t *transaction.Transaction
	err := r.store.run(ctx, "transactions.get", func(ctx context.Context) error {
		snap, err := r.collection(userID).Doc(id).Get(ctx)
		if isNotFound(err) {
			return transaction.ErrTransactionNotFound
		}
		if err != nil {
			return err
		}
		t, err = decodeTransaction(snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List pages through the window in (timestamp, document id) order. One extra
// document is fetched to learn whether another page exists.
func (r *TransactionRepository) List(ctx context.Context, userID string, window transaction.Window, pageToken string, limit int) (*transaction.Page, error) {
	if !validID(userID) {
		return &transaction.Page{Items: []*transaction.Transaction{}}, nil
	}

	q := r.collection(userID).
		Where("timestamp", ">=", millis(window.From)).
		Where("timestamp", "<", millis(window.To)).
		OrderBy("timestamp", fs.Asc).
		OrderBy(fs.DocumentID, fs.Asc)

	if pageToken != "" {
		c, err := transaction.DecodeCursor(pageToken)
		if err != nil {
			return nil, err
		}
		q = q.StartAfter(c.Timestamp, c.ID)
	}
	q = q.Limit(limit + 1)

	var items []*transaction.Transaction
	err := r.store.run(ctx, "transactions.list", func(ctx context.Context) error {
		docs, err := q.Documents(ctx).GetAll()
		if err != nil {
			return err
		}
		items = make([]*transaction.Transaction, 0, len(docs))
		for _, snap := range docs {
			t, err := decodeTransaction(snap)
			if err != nil {
				return err
			}
			items = append(items, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return pageOf(items, limit), nil
}

func (r *TransactionRepository) Delete(ctx context.Context, userID, id string) error {
	if !validID(userID) || !validID(id) {
		return transaction.ErrTransactionNotFound
	}

	return r.store.run(ctx, "transactions.delete", func(ctx context.Context) error {
		_, err := r.collection(userID).Doc(id).Delete(ctx, fs.Exists)
		if isNotFound(err) {
			return transaction.ErrTransactionNotFound
		}
		return err
	})
}

// pageOf cuts items, fetched with one extra element, into a page.
func pageOf(items []*transaction.Transaction, limit int) *transaction.Page {
	if len(items) <= limit {
		return &transaction.Page{Items: items}
	}
	items = items[:limit]
	return &transaction.Page{
		Items: items,
		Next:  transaction.CursorAfter(items[len(items)-1]).Encode(),
	}
}

func decodeTransaction(snap *fs.DocumentSnapshot) (*transaction.Transaction, error) {
	var doc transactionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", snap.Ref.ID, err)
	}
	return toTransaction(snap.Ref.ID, doc), nil
}

func toTransaction(id string, doc transactionDoc) *transaction.Transaction {
	return &transaction.Transaction{
		ID:        id,
		UserID:    doc.UserID,
		Amount:    doc.Amount,
		Currency:  doc.Currency,
		Category:  doc.Category,
		Timestamp: fromMillis(doc.Timestamp),
		Note:      doc.Note,
		CreatedAt: fromMillis(doc.CreatedAt),
	}
}
