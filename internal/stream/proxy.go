// Package stream relays orchestrator event streams to clients, keeping
// idle connections alive with SSE comment heartbeats.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/avatar-gateway/internal/auth"
	"github.com/tphakala/avatar-gateway/internal/conf"
	"github.com/tphakala/avatar-gateway/internal/logging"
	"github.com/tphakala/avatar-gateway/internal/observability/metrics"
)

// functionKeyHeader authenticates the gateway to the orchestrator.
const functionKeyHeader = "x-functions-key"

// heartbeatFrame is an SSE comment-only frame; clients ignore it, but
// intermediaries see traffic on the connection.
const heartbeatFrame = ":\n\n"

// maxLineSize bounds a single upstream line. Orchestrator answers arrive
// as JSON lines well under this.
const maxLineSize = 1024 * 1024

// SpeakRequest is the client's question for the orchestrator.
type SpeakRequest struct {
	SpokenText     string `json:"spokenText"`
	ConversationID string `json:"conversation_id"`
}

// orchestratorPayload is the request body forwarded downstream. Identity
// fields come from the per-request authorization decision.
type orchestratorPayload struct {
	ConversationID      string   `json:"conversation_id"`
	Question            string   `json:"question"`
	TextOnly            bool     `json:"text_only"`
	ClientPrincipalID   string   `json:"client_principal_id"`
	ClientPrincipalName string   `json:"client_principal_name"`
	ClientGroupNames    []string `json:"client_group_names"`
	AccessToken         string   `json:"access_token,omitempty"`
}

// Proxy forwards questions to the orchestrator and relays its line stream
// back as server-sent events. The outbound call carries no client timeout;
// only cancellation of the inbound request tears it down.
type Proxy struct {
	settings    *conf.OrchestratorSettings
	functionKey string
	client      *http.Client
	log         *slog.Logger
	metrics     *metrics.StreamMetrics
}

// NewProxy builds the streaming proxy. The function key is resolved by the
// caller at startup.
func NewProxy(settings *conf.OrchestratorSettings, functionKey string) *Proxy {
	return &Proxy{
		settings:    settings,
		functionKey: functionKey,
		// Timeout must stay zero, orchestrator answers can take minutes.
		client: &http.Client{Timeout: 0},
		log:    logging.ForService("stream"),
	}
}

// SetMetrics attaches stream metrics to the proxy. Safe to leave unset.
func (p *Proxy) SetMetrics(sm *metrics.StreamMetrics) {
	p.metrics = sm
}

// Relay posts the question to the orchestrator and streams the response
// line by line to the client as text/event-stream. When the upstream stays
// silent longer than the configured heartbeat interval, a comment frame is
// written so intermediaries do not drop the idle connection; this repeats
// for as long as the silence lasts. Client disconnect cancels the upstream
// request through the inbound request context.
func (p *Proxy) Relay(c echo.Context, req *SpeakRequest, decision auth.Decision) error {
	start := time.Now()
	if p.metrics != nil {
		p.metrics.StreamStarted()
		defer p.metrics.StreamEnded()
	}

	payload := orchestratorPayload{
		ConversationID:      req.ConversationID,
		Question:            req.SpokenText,
		TextOnly:            true,
		ClientPrincipalID:   decision.PrincipalID,
		ClientPrincipalName: decision.PrincipalName,
		ClientGroupNames:    decision.GroupNames,
		AccessToken:         decision.AccessToken,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode orchestrator request").SetInternal(err)
	}

	ctx := c.Request().Context()
	upstreamReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.URL, bytes.NewReader(body))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build orchestrator request").SetInternal(err)
	}
	upstreamReq.Header.Set("Content-Type", "application/json")
	upstreamReq.Header.Set(functionKeyHeader, p.functionKey)

	p.log.Info("Forwarding question to orchestrator",
		"conversation_id", req.ConversationID,
		"principal_id", decision.PrincipalID)

	resp, err := p.client.Do(upstreamReq)
	if err != nil {
		p.recordRequest("error", start)
		p.log.Error("Orchestrator request failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "orchestrator unreachable").SetInternal(err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			p.log.Debug("Failed to close orchestrator response", "error", err)
		}
	}()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if resp.StatusCode != http.StatusOK {
		p.recordRequest("upstream_error", start)
		p.log.Warn("Orchestrator returned non-OK status", "status", resp.StatusCode)
		fmt.Fprintf(w, "Error: %d", resp.StatusCode)
		w.Flush()
		return nil
	}

	// The pump goroutine owns the body reader; closing the body on return
	// unblocks a Scan in flight so the goroutine always exits.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			p.log.Warn("Orchestrator stream read failed", "error", err)
		}
	}()

	interval := p.settings.HeartbeatInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				p.recordRequest("success", start)
				p.log.Debug("Orchestrator stream ended",
					"conversation_id", req.ConversationID,
					"duration", time.Since(start))
				return nil
			}
			fmt.Fprintf(w, "%s\n", line)
			w.Flush()
			if p.metrics != nil {
				p.metrics.RecordLine()
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(interval)

		case <-timer.C:
			fmt.Fprint(w, heartbeatFrame)
			w.Flush()
			if p.metrics != nil {
				p.metrics.RecordHeartbeat()
			}
			timer.Reset(interval)

		case <-ctx.Done():
			p.recordRequest("cancelled", start)
			p.log.Debug("Client disconnected, cancelling orchestrator stream",
				"conversation_id", req.ConversationID)
			return nil
		}
	}
}

func (p *Proxy) recordRequest(status string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordStreamRequest(status, time.Since(start).Seconds())
	}
}
