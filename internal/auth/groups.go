package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tphakala/avatar-gateway/internal/logging"
	"github.com/tphakala/avatar-gateway/internal/observability/metrics"
)

// missingGroupName substitutes for directory objects that carry no display
// name, so group counts stay stable for the caller.
const missingGroupName = "missing-group"

// GroupClient resolves the caller's directory group memberships from the
// Microsoft Graph memberOf endpoint. Lookups are best-effort: every failure
// degrades to an empty list and is logged, never surfaced.
type GroupClient struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
	metrics *metrics.AuthMetrics
}

// SetMetrics attaches auth metrics to the client. Safe to leave unset.
func (g *GroupClient) SetMetrics(am *metrics.AuthMetrics) {
	g.metrics = am
}

func (g *GroupClient) recordLookup(status string) {
	if g.metrics != nil {
		g.metrics.RecordGroupLookup(status)
	}
}

// NewGroupClient builds a client for the given Graph base URL
// (e.g. https://graph.microsoft.com).
func NewGroupClient(graphURL string) *GroupClient {
	return &GroupClient{
		baseURL: strings.TrimRight(graphURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     logging.ForService("auth"),
	}
}

type memberOfResponse struct {
	Value []struct {
		DisplayName *string `json:"displayName"`
	} `json:"value"`
}

// MemberOf returns the display names of the caller's groups, or an empty
// list on any failure.
func (g *GroupClient) MemberOf(ctx context.Context, accessToken string) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1.0/me/memberOf", http.NoBody)
	if err != nil {
		g.log.Warn("Failed to build group lookup request", "error", err)
		g.recordLookup(metrics.LabelError)
		return []string{}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("Group lookup failed", "error", err)
		g.recordLookup(metrics.LabelError)
		return []string{}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.log.Debug("Failed to close group lookup response", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		g.log.Warn("Group lookup returned non-OK status", "status", resp.StatusCode)
		g.recordLookup(metrics.LabelError)
		return []string{}
	}

	var body memberOfResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		g.log.Warn("Failed to decode group lookup response", "error", err)
		g.recordLookup(metrics.LabelError)
		return []string{}
	}

	names := make([]string, 0, len(body.Value))
	for _, entry := range body.Value {
		if entry.DisplayName != nil {
			names = append(names, *entry.DisplayName)
		} else {
			names = append(names, missingGroupName)
		}
	}
	g.recordLookup(metrics.LabelSuccess)
	return names
}
