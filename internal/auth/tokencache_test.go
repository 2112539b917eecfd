package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tphakala/avatar-gateway/internal/conf"
	"github.com/tphakala/avatar-gateway/internal/session"
)

func TestScopeKeyCanonical(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ScopeKey([]string{"User.Read"}), ScopeKey([]string{"user.read"}))
	assert.Equal(t, ScopeKey([]string{"b", "a"}), ScopeKey([]string{"a", "b"}))
	assert.Equal(t, "a b", ScopeKey([]string{" b ", "a", ""}))
	assert.NotEqual(t, ScopeKey([]string{"a"}), ScopeKey([]string{"a", "b"}))
}

func TestLoadCacheEmptySession(t *testing.T) {
	t.Parallel()

	cache := LoadCache(&session.Data{}, nil)
	require.NotNil(t, cache)
	_, ok := cache.FirstAccount()
	assert.False(t, ok)
}

func TestLoadCacheMalformedBlobDegrades(t *testing.T) {
	t.Parallel()

	sess := &session.Data{TokenCache: "{definitely not json"}
	cache := LoadCache(sess, nil)
	require.NotNil(t, cache)
	_, ok := cache.FirstAccount()
	assert.False(t, ok, "malformed blob must behave like no cache at all")
	assert.Nil(t, cache.Token(conf.BasicScopes))
}

func TestCacheSaveOnlyWhenDirty(t *testing.T) {
	t.Parallel()

	sess := &session.Data{}
	cache := LoadCache(sess, nil)

	// Untouched cache must not write a blob.
	require.NoError(t, cache.Save(sess))
	assert.Empty(t, sess.TokenCache)

	cache.PutAccount(Account{HomeID: "oid-1", Username: "user@example.com"})
	cache.PutToken([]string{"User.Read"}, &oauth2.Token{
		AccessToken: "at",
		Expiry:      time.Now().Add(time.Hour),
	})
	require.NoError(t, cache.Save(sess))
	require.NotEmpty(t, sess.TokenCache)

	// Round-trip through the session blob.
	reloaded := LoadCache(sess, nil)
	account, ok := reloaded.FirstAccount()
	require.True(t, ok)
	assert.Equal(t, "oid-1", account.HomeID)
	tok := reloaded.Token([]string{"user.read"})
	require.NotNil(t, tok)
	assert.Equal(t, "at", tok.AccessToken)

	// Saving again without mutation leaves the blob unchanged.
	blob := sess.TokenCache
	require.NoError(t, reloaded.Save(sess))
	assert.Equal(t, blob, sess.TokenCache)
}

func TestCachePutAccountDeduplicates(t *testing.T) {
	t.Parallel()

	cache := LoadCache(&session.Data{}, nil)
	cache.PutAccount(Account{HomeID: "x", Username: "a"})
	cache.PutAccount(Account{HomeID: "x", Username: "a"})
	assert.Len(t, cache.Accounts, 1)
}
