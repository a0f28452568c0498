// Package authtest signs Firebase-shaped ID tokens with a throwaway RSA key
// for tests.
package authtest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const KeyID = "test-kid"

// Issuer holds a signing key and serves it as a key source.
type Issuer struct {
	ProjectID string
	Key       *rsa.PrivateKey

	fetches atomic.Int32
}

func NewIssuer(t testing.TB, projectID string) *Issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return &Issuer{ProjectID: projectID, Key: key}
}

// FetchKeys implements auth.KeySource.
func (i *Issuer) FetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	i.fetches.Add(1)
	return map[string]*rsa.PublicKey{KeyID: &i.Key.PublicKey}, time.Hour, nil
}

// Fetches reports how many times the key set was requested.
func (i *Issuer) Fetches() int {
	return int(i.fetches.Load())
}

// Token returns a token for uid expiring after ttl (negative for expired).
func (i *Issuer) Token(t testing.TB, uid string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	return i.Sign(t, jwt.MapClaims{
		"iss":       "https://securetoken.google.com/" + i.ProjectID,
		"aud":       i.ProjectID,
		"sub":       uid,
		"iat":       now.Add(-time.Minute).Unix(),
		"auth_time": now.Add(-time.Minute).Unix(),
		"exp":       now.Add(ttl).Unix(),
	})
}

// Sign signs arbitrary claims with the issuer key under KeyID.
func (i *Issuer) Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = KeyID
	signed, err := tok.SignedString(i.Key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
