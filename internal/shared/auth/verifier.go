package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"moneymind/internal/shared/apperr"
)

// Reason is why a bearer token was refused.
type Reason string

const (
	Missing          Reason = "Missing"
	Malformed        Reason = "Malformed"
	Expired          Reason = "Expired"
	SignatureInvalid Reason = "SignatureInvalid"
	IssuerUnknown    Reason = "IssuerUnknown"
)

type VerifyError struct {
	Reason Reason
	Err    error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token %s: %v", strings.ToLower(string(e.Reason)), e.Err)
	}
	return "token " + strings.ToLower(string(e.Reason))
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

// Kind is the client-visible classification of the failure.
func (e *VerifyError) Kind() apperr.Kind {
	switch e.Reason {
	case Missing:
		return apperr.AuthMissing
	case Expired:
		return apperr.AuthExpired
	default:
		return apperr.AuthInvalid
	}
}

// Identity is the outcome of a successful verification.
type Identity struct {
	UserID    string
	ExpiresAt time.Time
}

type Claims struct {
	jwt.RegisteredClaims
	AuthTime int64  `json:"auth_time,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Verifier checks Firebase ID tokens. It never mints tokens.
type Verifier struct {
	keys      *KeyCache
	projectID string
	issuer    string
	now       func() time.Time
}

func NewVerifier(keys *KeyCache, projectID string) *Verifier {
	return &Verifier{
		keys:      keys,
		projectID: projectID,
		issuer:    "https://securetoken.google.com/" + projectID,
		now:       time.Now,
	}
}

// Verify validates the value of an Authorization header.
func (v *Verifier) Verify(ctx context.Context, authorization string) (Identity, error) {
	if strings.TrimSpace(authorization) == "" {
		return Identity{}, &VerifyError{Reason: Missing}
	}

	scheme, raw, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	raw = strings.TrimSpace(raw)
	if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
		return Identity{}, &VerifyError{Reason: Malformed, Err: errors.New("expected Bearer scheme")}
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		if upstreamFailure(err) {
			return Identity{}, err
		}
		return Identity{}, classify(err)
	}

	if claims.Subject == "" || len(claims.Subject) > 128 {
		return Identity{}, &VerifyError{Reason: Malformed, Err: errors.New("invalid subject")}
	}

	return Identity{UserID: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// upstreamFailure reports whether verification could not run because the
// signing keys were unreachable. The token itself was not judged.
func upstreamFailure(err error) bool {
	if _, ok := apperr.As(err); ok {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// classify applies a fixed precedence when several checks fail at once.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &VerifyError{Reason: Malformed, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		// Includes kids missing from the key set.
		return &VerifyError{Reason: SignatureInvalid, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &VerifyError{Reason: Expired, Err: err}
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return &VerifyError{Reason: IssuerUnknown, Err: err}
	default:
		return &VerifyError{Reason: Malformed, Err: err}
	}
}
