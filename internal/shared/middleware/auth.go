package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"moneymind/internal/domain/user"
	"moneymind/internal/shared/apperr"
	"moneymind/internal/shared/auth"
	"moneymind/internal/shared/requestctx"
)

// ErrorWriter renders a failure. The HTTP layer supplies it so that every
// error response has the same status mapping and body.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type TokenVerifier interface {
	Verify(ctx context.Context, authorization string) (auth.Identity, error)
}

type UserEnsurer interface {
	Ensure(ctx context.Context, uid string) (*user.User, error)
}

// Auth verifies the bearer token on every request except the listed public
// paths and preflights, then makes sure the caller's user record exists.
func Auth(verifier TokenVerifier, users UserEnsurer, writeError ErrorWriter, publicPaths ...string) func(http.Handler) http.Handler {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			id, err := verifier.Verify(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, r, authError(err))
				return
			}

			ctx := requestctx.WithUser(r.Context(), id.UserID, id.ExpiresAt)
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("enduser.id", id.UserID))

			if _, err := users.Ensure(ctx, id.UserID); err != nil {
				writeError(w, r.WithContext(ctx), err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authError turns a verification failure into a client error. Failures to
// reach the identity provider keep their upstream kind.
func authError(err error) error {
	var ve *auth.VerifyError
	if !errors.As(err, &ve) {
		if _, ok := apperr.As(err); ok {
			return err
		}
		if apperr.IsKind(err, apperr.DeadlineExceeded) {
			return err
		}
		return apperr.Wrap(apperr.AuthInvalid, "invalid bearer token", err)
	}
	switch ve.Reason {
	case auth.Missing:
		return apperr.Wrap(ve.Kind(), "missing bearer token", err)
	case auth.Expired:
		return apperr.Wrap(ve.Kind(), "bearer token has expired", err)
	default:
		return apperr.Wrap(ve.Kind(), "invalid bearer token", err)
	}
}
