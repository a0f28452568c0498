package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"moneymind/internal/shared/apperr"
)

// FirebaseCertsURL publishes the x509 certificates that sign Firebase ID tokens.
const FirebaseCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const (
	// MaxKeyTTL caps how long a fetched key set is trusted.
	MaxKeyTTL = time.Hour
	// unknownKidCooldown limits refetches triggered by a kid not in the set.
	unknownKidCooldown = time.Minute
	fetchTimeout       = 10 * time.Second
)

var ErrUnknownKey = errors.New("signing key not found")

// KeySource fetches the identity provider's current signing keys and how
// long they may be cached.
type KeySource interface {
	FetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error)
}

// HTTPKeySource reads a kid -> PEM certificate document.
type HTTPKeySource struct {
	URL    string
	Client *http.Client
}

func NewHTTPKeySource(url string) *HTTPKeySource {
	return &HTTPKeySource{
		URL:    url,
		Client: &http.Client{Timeout: fetchTimeout},
	}
}

func (s *HTTPKeySource) FetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build key request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch signing keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("key endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode signing keys: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemData := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemData))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse key %q: %w", kid, err)
		}
		keys[kid] = key
	}
	if len(keys) == 0 {
		return nil, 0, errors.New("key endpoint returned no keys")
	}

	return keys, maxAge(resp.Header.Get("Cache-Control")), nil
}

// maxAge extracts max-age from a Cache-Control header, 0 if absent.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		if v, ok := strings.CutPrefix(directive, "max-age="); ok {
			secs, err := strconv.Atoi(v)
			if err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return 0
}

// KeyCache is a single-entry, time-bounded cache of the provider's key set.
// The first request to see an expired entry refreshes it; concurrent
// requests wait on that refresh instead of fetching on their own.
type KeyCache struct {
	source KeySource
	now    func() time.Time

	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	expiresAt  time.Time
	lastForced time.Time

	group singleflight.Group
}

func NewKeyCache(source KeySource) *KeyCache {
	return &KeyCache{source: source, now: time.Now}
}

// Key returns the public key for kid, fetching the key set if the cached one
// is missing or stale. A failed fetch is an UpstreamUnavailable error.
func (c *KeyCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	keys, fresh := c.keys, c.now().Before(c.expiresAt)
	c.mu.RUnlock()

	if fresh {
		if key, ok := keys[kid]; ok {
			return key, nil
		}
		// Keys rotate ahead of expiry; allow a bounded number of early refetches.
		if !c.claimForcedRefresh() {
			return nil, ErrUnknownKey
		}
	}

	keys, err := c.refresh(ctx)
	if err != nil {
		return nil, err
	}
	if key, ok := keys[kid]; ok {
		return key, nil
	}
	return nil, ErrUnknownKey
}

func (c *KeyCache) claimForcedRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.lastForced) < unknownKidCooldown {
		return false
	}
	c.lastForced = now
	return true
}

func (c *KeyCache) refresh(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	ch := c.group.DoChan("keys", func() (any, error) {
		// The fetch outlives any single waiter's cancellation.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		keys, ttl, err := c.source.FetchKeys(fetchCtx)
		if err != nil {
			return nil, apperr.Unavailable(apperr.UpstreamIdentity, err)
		}
		if ttl <= 0 || ttl > MaxKeyTTL {
			ttl = MaxKeyTTL
		}

		c.mu.Lock()
		c.keys = keys
		c.expiresAt = c.now().Add(ttl)
		c.mu.Unlock()
		return keys, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]*rsa.PublicKey), nil
	}
}
