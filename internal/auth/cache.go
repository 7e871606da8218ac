package auth

import (
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/blake2b"

	"github.com/headercal/headercal-server/internal/metrics"
)

// Verifier checks identity tokens.
type Verifier interface {
	Verify(token string) (*IdentityClaims, error)
}

// CachedVerifier memoizes successful verifications so that reconnecting
// clients skip decryption. Entries never outlive their token.
type CachedVerifier struct {
	tokens Verifier
	cache  *cache.Cache
	ttl    time.Duration
}

// NewCachedVerifier wraps tokens with a cache holding entries for ttl.
func NewCachedVerifier(tokens Verifier, ttl time.Duration) *CachedVerifier {
	return &CachedVerifier{
		tokens: tokens,
		cache:  cache.New(ttl, 2*ttl),
		ttl:    ttl,
	}
}

// Verify returns the claims of a valid token.
func (v *CachedVerifier) Verify(token string) (*IdentityClaims, error) {
	key := cacheKey(token)

	if cached, found := v.cache.Get(key); found {
		claims := cached.(*IdentityClaims)
		if time.Now().Before(claims.Expiration) {
			metrics.TokenCacheLookups.WithLabelValues("hit").Inc()
			return claims, nil
		}
		v.cache.Delete(key)
	}
	metrics.TokenCacheLookups.WithLabelValues("miss").Inc()

	claims, err := v.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	ttl := min(v.ttl, time.Until(claims.Expiration))
	if ttl > 0 {
		v.cache.Set(key, claims, ttl)
	}
	return claims, nil
}

// Len returns the number of cached entries.
func (v *CachedVerifier) Len() int {
	return v.cache.ItemCount()
}

func cacheKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return string(sum[:])
}
