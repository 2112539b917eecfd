package auth

import (
	"context"
	"log/slog"

	"github.com/tphakala/avatar-gateway/internal/conf"
	"github.com/tphakala/avatar-gateway/internal/logging"
	"github.com/tphakala/avatar-gateway/internal/observability/metrics"
	"github.com/tphakala/avatar-gateway/internal/session"
)

// Decision is the per-request authorization result. It is derived fresh on
// every protected call and never persisted.
type Decision struct {
	Authorized    bool
	PrincipalID   string
	PrincipalName string
	GroupNames    []string
	AccessToken   string
}

// Authorizer derives a Decision from the session, refreshing tokens as
// needed. Refresh failures fall back to the last token cached in the
// session and group lookup is best-effort, so a signed-in user is never
// rejected by a transient provider problem.
type Authorizer struct {
	settings *conf.AuthSettings
	flow     *Flow
	groups   *GroupClient
	log      *slog.Logger
	metrics  *metrics.AuthMetrics
}

// SetMetrics attaches auth metrics to the authorizer and its group client.
// Safe to leave unset.
func (a *Authorizer) SetMetrics(am *metrics.AuthMetrics) {
	a.metrics = am
	if a.groups != nil {
		a.groups.SetMetrics(am)
	}
}

// NewAuthorizer builds the authorization check from the flow and group
// client sharing the same provider settings.
func NewAuthorizer(settings *conf.AuthSettings, flow *Flow, groups *GroupClient) *Authorizer {
	return &Authorizer{
		settings: settings,
		flow:     flow,
		groups:   groups,
		log:      logging.ForService("auth"),
	}
}

// Check returns the authorization decision for the current session. With
// auth disabled every caller is a synthetic anonymous principal. The
// session may be mutated: refreshed tokens are written back so the next
// request starts from the newest state.
func (a *Authorizer) Check(ctx context.Context, sess *session.Data) Decision {
	if !a.settings.Enabled {
		a.recordDecision("anonymous")
		return Decision{
			Authorized:    true,
			PrincipalID:   "no-auth",
			PrincipalName: "anonymous",
			GroupNames:    []string{},
		}
	}

	if sess == nil || sess.User == nil {
		a.log.Info("Unauthorized request, no signed-in user in session")
		a.recordDecision("unauthorized")
		return Decision{GroupNames: []string{}}
	}

	decision := Decision{
		Authorized:    true,
		PrincipalID:   sess.User.OID,
		PrincipalName: sess.User.PreferredUsername,
		GroupNames:    []string{},
	}

	graphToken := a.refreshOrFallback(ctx, sess, conf.BasicScopes, "basic", sess.GraphAccessToken)
	if graphToken != "" {
		sess.GraphAccessToken = graphToken
	}
	decision.AccessToken = graphToken

	if extraScopes := conf.ParseCommaList(a.settings.ExtraScopes); len(extraScopes) > 0 {
		otherToken := a.refreshOrFallback(ctx, sess, extraScopes, "extra", sess.OtherAccessToken)
		if otherToken != "" {
			sess.OtherAccessToken = otherToken
			decision.AccessToken = otherToken
		}
	}

	if graphToken != "" {
		decision.GroupNames = a.groups.MemberOf(ctx, graphToken)
	}

	a.recordDecision("authorized")
	return decision
}

// refreshOrFallback attempts a silent refresh for the scope set and falls
// back to the session's last cached token on any failure.
func (a *Authorizer) refreshOrFallback(ctx context.Context, sess *session.Data, scopes []string, scopeLabel, cached string) string {
	token, err := a.flow.AcquireTokenSilent(ctx, sess, scopes)
	if err != nil {
		a.log.Warn("Silent token refresh failed, using cached token",
			"scope_key", ScopeKey(scopes),
			"cached_token_present", cached != "",
			"error", err)
		a.recordRefresh(scopeLabel, metrics.LabelError)
		return cached
	}
	a.recordRefresh(scopeLabel, metrics.LabelSuccess)
	return token
}

func (a *Authorizer) recordDecision(result string) {
	if a.metrics != nil {
		a.metrics.RecordAuthDecision(result)
	}
}

func (a *Authorizer) recordRefresh(scope, status string) {
	if a.metrics != nil {
		a.metrics.RecordTokenRefresh(scope, status)
	}
}
