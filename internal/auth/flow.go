package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"

	"github.com/tphakala/avatar-gateway/internal/conf"
	"github.com/tphakala/avatar-gateway/internal/errors"
	"github.com/tphakala/avatar-gateway/internal/logging"
	"github.com/tphakala/avatar-gateway/internal/session"
)

// ErrNoCachedAccount is returned by AcquireTokenSilent when the session
// carries no account or refresh token to refresh from. The caller must
// treat it as "sign in again", not as a provider outage.
var ErrNoCachedAccount = errors.NewStd("auth: no cached account in session")

// ProviderError carries an error reported by the identity provider's token
// endpoint, as opposed to a transport failure reaching it.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("identity provider error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("identity provider error %s", e.Code)
}

// Flow drives the authorization-code flow: login redirect, callback code
// exchange, logout, and silent token acquisition for protected routes.
type Flow struct {
	settings     *conf.AuthSettings
	clientSecret string
	log          *slog.Logger

	// HTTPClient overrides the client used for the token endpoint.
	// Tests point it at a mock transport; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// NewFlow builds the auth flow from validated settings. The client secret
// is resolved by the caller at startup.
func NewFlow(settings *conf.AuthSettings, clientSecret string) *Flow {
	return &Flow{
		settings:     settings,
		clientSecret: clientSecret,
		log:          logging.ForService("auth"),
	}
}

// authority returns the provider base URL without a trailing slash.
func (f *Flow) authority() string {
	return strings.TrimRight(f.settings.Authority, "/")
}

// redirectURI returns the registered redirect URI. An explicit setting wins;
// otherwise it is derived from the inbound request so the registration
// matches whatever host the client reached.
func (f *Flow) redirectURI(c echo.Context) string {
	if f.settings.RedirectURI != "" {
		return f.settings.RedirectURI
	}
	return c.Scheme() + "://" + c.Request().Host + f.settings.RedirectPath
}

// config builds the oauth2 configuration for one scope set. The v2.0
// endpoint layout matches Microsoft identity platform authorities.
func (f *Flow) config(scopes []string, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.settings.ClientID,
		ClientSecret: f.clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  f.authority() + "/oauth2/v2.0/authorize",
			TokenURL: f.authority() + "/oauth2/v2.0/token",
		},
		RedirectURL: redirectURI,
		Scopes:      scopes,
	}
}

// tokenContext wires the test HTTP client into the oauth2 package when set.
func (f *Flow) tokenContext(ctx context.Context) context.Context {
	if f.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, f.HTTPClient)
	}
	return ctx
}

// HandleLogin starts the authorization-code flow. With auth disabled the
// route degrades to a redirect home.
func (f *Flow) HandleLogin(c echo.Context) error {
	if !f.settings.Enabled {
		return c.Redirect(http.StatusSeeOther, "/")
	}

	sess := session.FromContext(c)
	state := uuid.NewString()
	sess.State = state

	authURL := f.config(conf.BasicScopes, f.redirectURI(c)).AuthCodeURL(state)
	f.log.Debug("Redirecting to identity provider", "state", state)
	return c.Redirect(http.StatusSeeOther, authURL)
}

// HandleCallback completes the flow at the registered redirect path.
// Guard order matters: disabled auth and an already signed-in session
// short-circuit before any state or code validation, a state mismatch
// rejects before any provider contact, and no user entry is ever created
// on a rejected callback.
func (f *Flow) HandleCallback(c echo.Context) error {
	if !f.settings.Enabled {
		return c.Redirect(http.StatusSeeOther, "/")
	}

	sess := session.FromContext(c)
	if sess.User != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}

	if c.QueryParam("state") != sess.State {
		f.log.Warn("State mismatch in auth callback")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "state mismatch"})
	}

	if errParam := c.QueryParam("error"); errParam != "" {
		description := c.QueryParam("error_description")
		if description == "" {
			description = errParam
		}
		f.log.Warn("Identity provider returned error", "error", errParam)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": description})
	}

	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing authorization code"})
	}

	cfg := f.config(conf.BasicScopes, f.redirectURI(c))
	tok, err := cfg.Exchange(f.tokenContext(c.Request().Context()), code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			f.log.Warn("Code exchange rejected by provider", "error", retrieveErr.ErrorCode)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": providerErrorMessage(retrieveErr)})
		}
		f.log.Error("Code exchange failed", "error", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "token exchange failed"})
	}

	oid, username := identityClaims(tok, f.log)
	sess.User = &session.User{OID: oid, PreferredUsername: username}
	sess.GraphAccessToken = tok.AccessToken
	sess.RefreshToken = tok.RefreshToken

	cache := LoadCache(sess, f.log)
	cache.PutAccount(Account{HomeID: oid, Username: username})
	cache.PutToken(conf.BasicScopes, tok)
	if err := cache.Save(sess); err != nil {
		f.log.Error("Failed to persist token cache", "error", err)
	}

	sess.State = ""
	f.log.Info("User signed in", "oid", oid, "username", username)
	return c.Redirect(http.StatusSeeOther, "/")
}

// HandleLogout clears the whole session and hands the browser to the
// provider's logout endpoint so the provider-side session ends too. The
// redirect happens even with auth disabled, mirroring /login's counterpart
// so a stale provider session can always be ended.
func (f *Flow) HandleLogout(c echo.Context) error {
	sess := session.FromContext(c)
	sess.Clear()

	logoutURL := f.authority() + "/oauth2/v2.0/logout?post_logout_redirect_uri=" +
		url.QueryEscape(f.redirectURI(c))
	return c.Redirect(http.StatusSeeOther, logoutURL)
}

// AcquireTokenSilent returns a currently valid access token for the scope
// set, refreshing against the provider only when the cached token is
// missing or expired. Failure modes are distinguishable by the caller:
// ErrNoCachedAccount when the session has nothing to refresh from, a
// *ProviderError when the token endpoint rejected the refresh, and a
// wrapped transport error otherwise. On success any cache mutation is
// written back into the session.
func (f *Flow) AcquireTokenSilent(ctx context.Context, sess *session.Data, scopes []string) (string, error) {
	cache := LoadCache(sess, f.log)
	if _, ok := cache.FirstAccount(); !ok {
		return "", ErrNoCachedAccount
	}

	seed := cache.Token(scopes)
	if seed != nil && seed.Valid() {
		return seed.AccessToken, nil
	}

	refreshToken := sess.RefreshToken
	if seed != nil && seed.RefreshToken != "" {
		refreshToken = seed.RefreshToken
	}
	if refreshToken == "" {
		return "", ErrNoCachedAccount
	}

	tok, err := f.refreshGrant(ctx, scopes, refreshToken)
	if err != nil {
		return "", err
	}

	cache.PutToken(scopes, tok)
	if err := cache.Save(sess); err != nil {
		f.log.Error("Failed to persist token cache after refresh", "error", err)
	}
	if tok.RefreshToken != "" {
		sess.RefreshToken = tok.RefreshToken
	}
	return tok.AccessToken, nil
}

// refreshGrant redeems a refresh token for the given scope set at the
// provider's token endpoint. The request is built by hand because x/oauth2
// omits the scope parameter on the refresh grant, and the token returned
// must be scoped to the set that was asked for, not to whatever the
// refresh token was originally issued against.
func (f *Flow) refreshGrant(ctx context.Context, scopes []string, refreshToken string) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {f.settings.ClientID},
		"client_secret": {f.clientSecret},
		"scope":         {strings.Join(scopes, " ")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.authority()+"/oauth2/v2.0/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.New(err).
			Component("auth").
			Category(errors.CategoryTokenRefresh).
			Build()
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("auth").
			Category(errors.CategoryTokenRefresh).
			Context("scope_key", ScopeKey(scopes)).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.log.Debug("Failed to close token response", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.New(err).
			Component("auth").
			Category(errors.CategoryTokenRefresh).
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		var payload struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		_ = json.Unmarshal(body, &payload)
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return nil, &ProviderError{Code: payload.Error, Description: payload.Description}
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, errors.New(err).
			Component("auth").
			Category(errors.CategoryTokenRefresh).
			Build()
	}
	if tr.AccessToken == "" {
		return nil, errors.Newf("token response carried no access token").
			Component("auth").
			Category(errors.CategoryTokenRefresh).
			Build()
	}

	tok := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// providerErrorMessage prefers the human-readable description when the
// provider sent one.
func providerErrorMessage(retrieveErr *oauth2.RetrieveError) string {
	if retrieveErr.ErrorDescription != "" {
		return retrieveErr.ErrorDescription
	}
	if retrieveErr.ErrorCode != "" {
		return retrieveErr.ErrorCode
	}
	return "authorization failed"
}

// identityClaims extracts the minimal identity from the id_token without
// signature verification; the token arrived over the provider's TLS back
// channel during code exchange, not from the client.
func identityClaims(tok *oauth2.Token, log *slog.Logger) (oid, username string) {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		log.Warn("Token response carried no id_token")
		return "", ""
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		log.Warn("Failed to parse id_token claims", "error", err)
		return "", ""
	}

	if v, ok := claims["oid"].(string); ok {
		oid = v
	}
	if v, ok := claims["preferred_username"].(string); ok && v != "" {
		username = v
	} else if v, ok := claims["upn"].(string); ok {
		username = v
	}
	return oid, username
}
