package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	fs "cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"moneymind/internal/shared/apperr"
	"moneymind/internal/shared/retry"
)

var (
	storeTracer        = otel.Tracer("moneymind/datastore")
	storeMeter         = otel.Meter("moneymind/datastore")
	storeOpDuration, _ = storeMeter.Float64Histogram("datastore.operation.duration",
		metric.WithDescription("Datastore operation duration in seconds"),
		metric.WithUnit("s"),
	)
	storeOpTotal, _ = storeMeter.Int64Counter("datastore.operation.total",
		metric.WithDescription("Total datastore operations by outcome"),
	)
)

// Collection names of the persisted layout.
const (
	usersCollection        = "users"
	transactionsCollection = "transactions"
	budgetsCollection      = "budgets"
	sessionsCollection     = "chat_sessions"
	messagesCollection     = "messages"
)

// Streams that carry a per-user monotonic stamp on the user document.
const (
	streamTransactions = "transactions"
	streamBudgets      = "budgets"
	streamChats        = "chats"
)

// Store is the Firestore-backed datastore. Repositories for each entity are
// thin views over one Store.
type Store struct {
	client *fs.Client
	policy retry.Policy
	now    func() time.Time
}

func New(client *fs.Client) *Store {
	return &Store{
		client: client,
		policy: retry.Datastore.WithRetryable(transient),
		now:    time.Now,
	}
}

// Close releases the client's gRPC connections.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) user(uid string) *fs.DocumentRef {
	return s.client.Collection(usersCollection).Doc(uid)
}

// run executes op under a span with the datastore retry policy and maps the
// final error onto an apperr kind.
func (s *Store) run(ctx context.Context, name string, op func(ctx context.Context) error) error {
	ctx, span := storeTracer.Start(ctx, "datastore."+name, trace.WithAttributes(
		attribute.String("db.system", "firestore"),
		attribute.String("db.operation", name),
	))
	defer span.End()

	start := time.Now()
	attempts := 0
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		attempts++
		return op(ctx)
	})
	err = mapError(ctx, name, err)

	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		if apperr.KindOf(err) != apperr.NotFound {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.SetAttributes(attribute.Int("db.attempts", attempts))

	attrs := metric.WithAttributes(
		attribute.String("db.operation", name),
		attribute.String("outcome", outcome),
	)
	storeOpDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	storeOpTotal.Add(ctx, 1, attrs)
	return err
}

// transient reports whether a datastore error is worth another attempt.
func transient(err error) bool {
	if _, ok := apperr.As(err); ok {
		return false
	}
	switch status.Code(err) {
	case grpccodes.Unavailable, grpccodes.ResourceExhausted, grpccodes.Aborted, grpccodes.DeadlineExceeded:
		return true
	}
	return false
}

func mapError(ctx context.Context, name string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("datastore %s: %w", name, cerr)
	}
	switch status.Code(err) {
	case grpccodes.NotFound:
		return apperr.Wrap(apperr.NotFound, "document not found", err)
	case grpccodes.AlreadyExists:
		return apperr.Wrap(apperr.Conflict, "document already exists", err)
	}
	if transient(err) {
		return apperr.Unavailable(apperr.UpstreamDatastore, err)
	}
	return fmt.Errorf("datastore %s: %w", name, err)
}

// lostCommit reports whether a retried create collided with its own earlier
// attempt, which committed although its response never arrived.
func lostCommit(attempt int, err error) bool {
	return attempt > 1 && status.Code(err) == grpccodes.AlreadyExists
}

func isNotFound(err error) bool {
	return status.Code(err) == grpccodes.NotFound
}

// validID rejects ids that would address a different document path.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.Contains(id, "/") && len(id) <= 1500
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// nextStamp reads the stream's last stamp from the user document inside tx and
// returns the next monotonic value. Callers must issue all other reads before
// writing with setStamp.
func (s *Store) nextStamp(tx *fs.Transaction, uid, stream string) (int64, error) {
	var last int64
	snap, err := tx.Get(s.user(uid))
	switch {
	case isNotFound(err):
	case err != nil:
		return 0, err
	default:
		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return 0, fmt.Errorf("decode user %s: %w", uid, err)
		}
		last = doc.Stamps[stream]
	}
	return stampAfter(millis(s.now()), last), nil
}

func (s *Store) setStamp(tx *fs.Transaction, uid, stream string, stamp int64) error {
	return tx.Set(s.user(uid),
		map[string]any{"stamps": map[string]any{stream: stamp}},
		fs.Merge([]string{"stamps", stream}),
	)
}

// stampAfter returns now unless the stream already issued a stamp at or past it.
func stampAfter(now, last int64) int64 {
	if now <= last {
		return last + 1
	}
	return now
}
