package auth

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenService(t *testing.T, d time.Duration) *TokenService {
	t.Helper()
	key, err := LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	ts, err := NewTokenService(hex.EncodeToString(key), d)
	require.NoError(t, err)
	return ts
}

func TestDeriveCredential(t *testing.T) {
	a := DeriveCredential("iss", "subject")
	assert.Len(t, a, CredentialLength)
	assert.True(t, ValidCredential(a))
	assert.Equal(t, a, DeriveCredential("iss", "subject"))
	assert.NotEqual(t, a, DeriveCredential("iss", "other"))
	// The separator keeps issuer and subject from running together.
	assert.NotEqual(t, DeriveCredential("ab", "c"), DeriveCredential("a", "bc"))

	assert.False(t, ValidCredential("short"))
	assert.False(t, ValidCredential(string(make([]byte, CredentialLength))))
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	ts := newTokenService(t, time.Hour)

	issued, err := ts.IssueIdentity()
	require.NoError(t, err)
	assert.True(t, ValidCredential(issued.Credential))
	assert.WithinDuration(t, time.Now().Add(time.Hour), issued.ExpiresAt, time.Minute)

	claims, err := ts.Verify(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.Credential, claims.Credential)
	assert.Equal(t, tokenIssuer, claims.Issuer)

	refreshed, err := ts.Refresh(claims)
	require.NoError(t, err)
	assert.Equal(t, issued.Credential, refreshed.Credential)
	assert.NotEqual(t, issued.Token, refreshed.Token)

	other, err := ts.IssueIdentity()
	require.NoError(t, err)
	assert.NotEqual(t, issued.Credential, other.Credential)
}

func TestTokenService_RejectsBadTokens(t *testing.T) {
	ts := newTokenService(t, time.Hour)

	_, err := ts.Verify("v4.local.garbage")
	assert.Error(t, err)

	issued, err := ts.IssueIdentity()
	require.NoError(t, err)

	foreign := newTokenService(t, time.Hour)
	_, err = foreign.Verify(issued.Token)
	assert.Error(t, err, "token from another key")

	expired := newTokenService(t, -time.Minute)
	old, err := expired.IssueIdentity()
	require.NoError(t, err)
	_, err = expired.Verify(old.Token)
	assert.Error(t, err)
}

func TestNewTokenService_KeyLength(t *testing.T) {
	_, err := NewTokenService("abcd", time.Hour)
	assert.Error(t, err)
}

func TestLoadOrGenerateKey_Persists(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	second, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.key"), []byte("nothex"), 0o600))
	_, err = LoadOrGenerateKey(dir)
	assert.Error(t, err)
}

type countingVerifier struct {
	calls  int
	claims *IdentityClaims
	err    error
}

func (c *countingVerifier) Verify(string) (*IdentityClaims, error) {
	c.calls++
	return c.claims, c.err
}

func TestCachedVerifier(t *testing.T) {
	inner := &countingVerifier{claims: &IdentityClaims{
		Credential: "c",
		Expiration: time.Now().Add(time.Hour),
	}}
	v := NewCachedVerifier(inner, time.Minute)

	for range 3 {
		claims, err := v.Verify("token")
		require.NoError(t, err)
		assert.Equal(t, "c", claims.Credential)
	}
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, v.Len())

	_, err := v.Verify("other")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedVerifier_DoesNotCacheFailures(t *testing.T) {
	inner := &countingVerifier{err: errors.New("bad token")}
	v := NewCachedVerifier(inner, time.Minute)

	_, err := v.Verify("token")
	require.Error(t, err)
	_, err = v.Verify("token")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, v.Len())
}

func TestCachedVerifier_SkipsExpiredClaims(t *testing.T) {
	inner := &countingVerifier{claims: &IdentityClaims{Expiration: time.Now().Add(-time.Second)}}
	v := NewCachedVerifier(inner, time.Minute)

	_, err := v.Verify("token")
	require.NoError(t, err)
	assert.Zero(t, v.Len())
}
