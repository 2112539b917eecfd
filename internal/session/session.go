// Package session implements file backed session persistence. Each session is
// identified by an opaque random token and stored as one JSON file in a
// configured directory; the on-disk record is the sole source of truth for
// authentication state, nothing is cached in memory across requests.
//
// There is no per-session locking: concurrent requests carrying the same
// session identifier race on the write and the last writer wins. This is an
// accepted constraint of the single-user-per-session design. Session files are
// retained indefinitely; only the cookie max age limits client side use.
package session

import (
	"github.com/labstack/echo/v4"
)

// ContextKey is the echo context key under which the middleware stores the
// session record for the duration of a request.
const ContextKey = "session"

// User is the minimal identity stored in the session after a successful login.
type User struct {
	OID               string `json:"oid"`
	PreferredUsername string `json:"preferred_username"`
}

// Data is the persisted per-session record. Every field is optional and
// present only once set; the zero value is a valid empty session.
type Data struct {
	// State holds the anti-CSRF nonce for an in-flight authorization request.
	State string `json:"state,omitempty"`
	// User is set by the auth flow on successful callback.
	User *User `json:"user,omitempty"`
	// TokenCache is the serialized token cache blob, opaque at this layer.
	TokenCache string `json:"token_cache,omitempty"`
	// GraphAccessToken is the last bearer token acquired for the basic scope set.
	GraphAccessToken string `json:"graph_access_token,omitempty"`
	// OtherAccessToken is the last bearer token acquired for the secondary scope set.
	OtherAccessToken string `json:"other_access_token,omitempty"`
	// RefreshToken is the refresh token returned by the code exchange.
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Clear removes every field from the record. The backing file keeps existing
// but becomes an empty record on the next persist.
func (d *Data) Clear() {
	*d = Data{}
}

// IsEmpty reports whether no field of the record is set.
func (d *Data) IsEmpty() bool {
	return d.State == "" && d.User == nil && d.TokenCache == "" &&
		d.GraphAccessToken == "" && d.OtherAccessToken == "" && d.RefreshToken == ""
}

// FromContext returns the session record attached to the request by the
// middleware. It returns an empty record if the middleware did not run, so
// handlers never need a nil check.
func FromContext(c echo.Context) *Data {
	if d, ok := c.Get(ContextKey).(*Data); ok && d != nil {
		return d
	}
	return &Data{}
}
