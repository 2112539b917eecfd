// Package auth implements the OAuth2 authorization-code flow against the
// identity provider, silent token refresh backed by a per-session token
// cache, and the per-request authorization decision used by protected routes.
package auth

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/oauth2"

	"github.com/tphakala/avatar-gateway/internal/errors"
	"github.com/tphakala/avatar-gateway/internal/session"
)

// Account identifies a signed-in account inside the token cache.
type Account struct {
	HomeID   string `json:"home_id"`
	Username string `json:"username"`
}

// Cache is the client-side token cache serialized into the session record.
// Tokens are keyed by canonical scope key so independent scope sets refresh
// independently. The dirty flag tracks mutation since load so Save can skip
// rewriting the session blob when nothing changed.
type Cache struct {
	Accounts []Account                `json:"accounts,omitempty"`
	Tokens   map[string]*oauth2.Token `json:"tokens,omitempty"`

	dirty bool
}

// ScopeKey returns the canonical cache key for a scope set: lowercased,
// sorted, space-joined. Order and case of the caller's scope list must not
// produce distinct cache entries.
func ScopeKey(scopes []string) string {
	normalized := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			normalized = append(normalized, s)
		}
	}
	sort.Strings(normalized)
	return strings.Join(normalized, " ")
}

// LoadCache deserializes the session's token-cache blob. A missing blob
// yields an empty cache. A malformed blob is logged and degrades to an
// empty cache, never an error; the next save overwrites it.
func LoadCache(sess *session.Data, log *slog.Logger) *Cache {
	cache := &Cache{Tokens: make(map[string]*oauth2.Token)}
	if sess == nil || sess.TokenCache == "" {
		return cache
	}
	if err := json.Unmarshal([]byte(sess.TokenCache), cache); err != nil {
		if log != nil {
			log.Warn("Discarding malformed token cache", "error", err)
		}
		return &Cache{Tokens: make(map[string]*oauth2.Token)}
	}
	if cache.Tokens == nil {
		cache.Tokens = make(map[string]*oauth2.Token)
	}
	return cache
}

// Save serializes the cache back into the session only if it was mutated
// since load.
func (c *Cache) Save(sess *session.Data) error {
	if !c.dirty {
		return nil
	}
	blob, err := json.Marshal(c)
	if err != nil {
		return errors.New(err).
			Component("auth").
			Category(errors.CategoryTokenRefresh).
			Context("operation", "serialize-token-cache").
			Build()
	}
	sess.TokenCache = string(blob)
	c.dirty = false
	return nil
}

// PutAccount records an account in the cache, once.
func (c *Cache) PutAccount(account Account) {
	for _, existing := range c.Accounts {
		if existing.HomeID == account.HomeID {
			return
		}
	}
	c.Accounts = append(c.Accounts, account)
	c.dirty = true
}

// FirstAccount returns the first cached account. The gateway assumes a
// single account per session.
func (c *Cache) FirstAccount() (Account, bool) {
	if len(c.Accounts) == 0 {
		return Account{}, false
	}
	return c.Accounts[0], true
}

// PutToken stores a token under the canonical key for the scope set.
func (c *Cache) PutToken(scopes []string, tok *oauth2.Token) {
	c.Tokens[ScopeKey(scopes)] = tok
	c.dirty = true
}

// Token returns the cached token for the scope set, or nil.
func (c *Cache) Token(scopes []string) *oauth2.Token {
	return c.Tokens[ScopeKey(scopes)]
}
