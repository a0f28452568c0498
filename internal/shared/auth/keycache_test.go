package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"moneymind/internal/shared/apperr"
)

type mockKeySource struct {
	FetchKeysFunc func(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error)
	calls         atomic.Int32
}

func (m *mockKeySource) FetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	m.calls.Add(1)
	return m.FetchKeysFunc(ctx)
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestKeyCache_CachesWithinTTL(t *testing.T) {
	key := generateKey(t)
	src := &mockKeySource{FetchKeysFunc: func(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
		return map[string]*rsa.PublicKey{"a": &key.PublicKey}, 10 * time.Minute, nil
	}}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cache := NewKeyCache(src)
	cache.now = clock.Now

	for i := 0; i < 3; i++ {
		if _, err := cache.Key(context.Background(), "a"); err != nil {
			t.Fatalf("Key() failed: %v", err)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}

	clock.Advance(11 * time.Minute)
	if _, err := cache.Key(context.Background(), "a"); err != nil {
		t.Fatalf("Key() after expiry failed: %v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("fetches after expiry = %d, want 2", got)
	}
}

func TestKeyCache_TTLCappedAtOneHour(t *testing.T) {
	key := generateKey(t)
	src := &mockKeySource{FetchKeysFunc: func(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
		return map[string]*rsa.PublicKey{"a": &key.PublicKey}, 6 * time.Hour, nil
	}}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cache := NewKeyCache(src)
	cache.now = clock.Now

	cache.Key(context.Background(), "a")
	clock.Advance(MaxKeyTTL + time.Second)
	cache.Key(context.Background(), "a")

	if got := src.calls.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2 (ttl must be capped)", got)
	}
}

func TestKeyCache_ConcurrentMissFetchesOnce(t *testing.T) {
	key := generateKey(t)
	release := make(chan struct{})
	src := &mockKeySource{FetchKeysFunc: func(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
		<-release
		return map[string]*rsa.PublicKey{"a": &key.PublicKey}, time.Hour, nil
	}}
	cache := NewKeyCache(src)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Key(context.Background(), "a")
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Key() failed: %v", err)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestKeyCache_UnknownKidRefetchIsRateLimited(t *testing.T) {
	key := generateKey(t)
	src := &mockKeySource{FetchKeysFunc: func(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
		return map[string]*rsa.PublicKey{"a": &key.PublicKey}, time.Hour, nil
	}}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cache := NewKeyCache(src)
	cache.now = clock.Now

	cache.Key(context.Background(), "a")

	if _, err := cache.Key(context.Background(), "b"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Key(b) error = %v, want ErrUnknownKey", err)
	}
	if _, err := cache.Key(context.Background(), "b"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Key(b) error = %v, want ErrUnknownKey", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2 (one forced refetch)", got)
	}

	clock.Advance(2 * time.Minute)
	cache.Key(context.Background(), "b")
	if got := src.calls.Load(); got != 3 {
		t.Errorf("fetches after cooldown = %d, want 3", got)
	}
}

func TestKeyCache_FetchError(t *testing.T) {
	src := &mockKeySource{FetchKeysFunc: func(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
		return nil, 0, errors.New("network down")
	}}
	cache := NewKeyCache(src)

	_, err := cache.Key(context.Background(), "a")
	if !apperr.IsKind(err, apperr.UpstreamUnavailable) {
		t.Errorf("Key() error = %v, want UpstreamUnavailable", err)
	}
	if e, ok := apperr.As(err); !ok || e.Upstream != apperr.UpstreamIdentity {
		t.Errorf("Key() error = %v, want identity upstream", err)
	}
}

func selfSignedPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken.system.gserviceaccount.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func TestHTTPKeySource_FetchKeys(t *testing.T) {
	key := generateKey(t)
	certs := map[string]string{"kid-1": selfSignedPEM(t, key)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=19800, must-revalidate, no-transform")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(certs)
	}))
	defer srv.Close()

	keys, ttl, err := NewHTTPKeySource(srv.URL).FetchKeys(context.Background())
	if err != nil {
		t.Fatalf("FetchKeys() failed: %v", err)
	}
	if ttl != 19800*time.Second {
		t.Errorf("ttl = %v, want 5h30m", ttl)
	}
	got, ok := keys["kid-1"]
	if !ok {
		t.Fatal("kid-1 missing")
	}
	if got.N.Cmp(key.PublicKey.N) != 0 {
		t.Error("parsed key does not match")
	}
}

func TestHTTPKeySource_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, _, err := NewHTTPKeySource(srv.URL).FetchKeys(context.Background()); err == nil {
		t.Error("FetchKeys() expected error on 500")
	}
}

func TestMaxAge(t *testing.T) {
	tests := map[string]time.Duration{
		"public, max-age=3600": time.Hour,
		"no-cache":             0,
		"":                     0,
		"max-age=abc":          0,
		"private, max-age=60":  time.Minute,
	}
	for header, want := range tests {
		if got := maxAge(header); got != want {
			t.Errorf("maxAge(%q) = %v, want %v", header, got, want)
		}
	}
}
