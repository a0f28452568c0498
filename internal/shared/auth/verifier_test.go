package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"moneymind/internal/shared/apperr"
	"moneymind/internal/shared/auth/authtest"
)

const testProject = "moneymind-test"

func newTestVerifier(t *testing.T) (*Verifier, *authtest.Issuer) {
	t.Helper()
	issuer := authtest.NewIssuer(t, testProject)
	return NewVerifier(NewKeyCache(issuer), testProject), issuer
}

func TestVerifier_Valid(t *testing.T) {
	v, issuer := newTestVerifier(t)
	token := issuer.Token(t, "uid-42", time.Hour)

	id, err := v.Verify(context.Background(), "Bearer "+token)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if id.UserID != "uid-42" {
		t.Errorf("UserID = %q, want uid-42", id.UserID)
	}
	if time.Until(id.ExpiresAt) < 59*time.Minute {
		t.Errorf("ExpiresAt = %v, want about an hour from now", id.ExpiresAt)
	}
}

func TestVerifier_Failures(t *testing.T) {
	v, issuer := newTestVerifier(t)
	other := authtest.NewIssuer(t, testProject)
	now := time.Now()

	tests := []struct {
		name   string
		header func() string
		want   Reason
		kind   apperr.Kind
	}{
		{
			name:   "missing header",
			header: func() string { return "" },
			want:   Missing,
			kind:   apperr.AuthMissing,
		},
		{
			name:   "wrong scheme",
			header: func() string { return "Basic dXNlcjpwYXNz" },
			want:   Malformed,
			kind:   apperr.AuthInvalid,
		},
		{
			name:   "garbage token",
			header: func() string { return "Bearer not-a-jwt" },
			want:   Malformed,
			kind:   apperr.AuthInvalid,
		},
		{
			name:   "expired",
			header: func() string { return "Bearer " + issuer.Token(t, "uid", -time.Minute) },
			want:   Expired,
			kind:   apperr.AuthExpired,
		},
		{
			name:   "signed by another key",
			header: func() string { return "Bearer " + other.Token(t, "uid", time.Hour) },
			want:   SignatureInvalid,
			kind:   apperr.AuthInvalid,
		},
		{
			name: "wrong issuer",
			header: func() string {
				return "Bearer " + issuer.Sign(t, jwt.MapClaims{
					"iss": "https://securetoken.google.com/someone-else",
					"aud": testProject,
					"sub": "uid",
					"iat": now.Add(-time.Minute).Unix(),
					"exp": now.Add(time.Hour).Unix(),
				})
			},
			want: IssuerUnknown,
			kind: apperr.AuthInvalid,
		},
		{
			name: "wrong audience",
			header: func() string {
				return "Bearer " + issuer.Sign(t, jwt.MapClaims{
					"iss": "https://securetoken.google.com/" + testProject,
					"aud": "someone-else",
					"sub": "uid",
					"iat": now.Add(-time.Minute).Unix(),
					"exp": now.Add(time.Hour).Unix(),
				})
			},
			want: IssuerUnknown,
			kind: apperr.AuthInvalid,
		},
		{
			name: "expired beats wrong issuer",
			header: func() string {
				return "Bearer " + issuer.Sign(t, jwt.MapClaims{
					"iss": "https://accounts.example.com",
					"aud": testProject,
					"sub": "uid",
					"iat": now.Add(-2 * time.Hour).Unix(),
					"exp": now.Add(-time.Hour).Unix(),
				})
			},
			want: Expired,
			kind: apperr.AuthExpired,
		},
		{
			name: "empty subject",
			header: func() string {
				return "Bearer " + issuer.Sign(t, jwt.MapClaims{
					"iss": "https://securetoken.google.com/" + testProject,
					"aud": testProject,
					"sub": "",
					"iat": now.Add(-time.Minute).Unix(),
					"exp": now.Add(time.Hour).Unix(),
				})
			},
			want: Malformed,
			kind: apperr.AuthInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.header())
			var verr *VerifyError
			if !errors.As(err, &verr) {
				t.Fatalf("Verify() error = %v, want *VerifyError", err)
			}
			if verr.Reason != tt.want {
				t.Errorf("Reason = %s, want %s (err: %v)", verr.Reason, tt.want, err)
			}
			if verr.Kind() != tt.kind {
				t.Errorf("Kind() = %s, want %s", verr.Kind(), tt.kind)
			}
		})
	}
}

func TestVerifier_KeyFetchFailure(t *testing.T) {
	issuer := authtest.NewIssuer(t, testProject)
	keys := &mockKeySource{FetchKeysFunc: func(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
		return nil, 0, errors.New("connection refused")
	}}
	v := NewVerifier(NewKeyCache(keys), testProject)

	_, err := v.Verify(context.Background(), "Bearer "+issuer.Token(t, "uid", time.Hour))

	var ve *VerifyError
	if errors.As(err, &ve) {
		t.Fatalf("Verify() error = %v, want an upstream failure, not a token verdict", err)
	}
	if !apperr.IsKind(err, apperr.UpstreamUnavailable) {
		t.Errorf("Verify() kind = %s, want UpstreamUnavailable", apperr.KindOf(err))
	}
}

func TestVerifier_RejectsHMAC(t *testing.T) {
	v, _ := newTestVerifier(t)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "https://securetoken.google.com/" + testProject,
		"aud": testProject,
		"sub": "uid",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = authtest.KeyID
	signed, err := tok.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = v.Verify(context.Background(), "Bearer "+signed)
	var verr *VerifyError
	if !errors.As(err, &verr) || verr.Reason != SignatureInvalid {
		t.Errorf("Verify() error = %v, want SignatureInvalid", err)
	}
}

func TestVerifyError_Message(t *testing.T) {
	err := &VerifyError{Reason: Expired, Err: errors.New("boom")}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("Error() = %q", err.Error())
	}
}
