package httpcontroller

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/avatar-gateway/internal/conf"
	"github.com/tphakala/avatar-gateway/internal/session"
)

// countingOrchestrator is a fake downstream endpoint that counts calls and
// emits a fixed pair of lines.
func countingOrchestrator(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprintln(w, `{"answer":"streamed"}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testSettings(t *testing.T, orchestratorURL string) *conf.Settings {
	t.Helper()

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>shell</html>"), 0o644))

	settings := &conf.Settings{}
	settings.WebServer.Port = "0"
	settings.WebServer.StaticDir = staticDir
	settings.Session = conf.SessionSettings{
		Dir:        t.TempDir(),
		CookieName: "session",
		MaxAge:     24 * time.Hour,
	}
	settings.Auth = conf.AuthSettings{
		Enabled:      false,
		ClientID:     "client-id",
		Authority:    "https://login.example.com/tenant",
		RedirectPath: "/getAToken",
		GraphURL:     "https://graph.example.com",
	}
	settings.Speech = conf.SpeechSettings{
		Region:             "eastus2",
		SupportedLanguages: "en-US,de-DE,zh-CN,nl-NL",
	}
	settings.Orchestrator = conf.OrchestratorSettings{
		URL:               orchestratorURL,
		HeartbeatInterval: 15 * time.Second,
	}
	return settings
}

func newTestServer(t *testing.T, settings *conf.Settings, secrets *Secrets) *Server {
	t.Helper()
	if secrets == nil {
		secrets = &Secrets{FunctionKey: "fk"}
	}
	s, err := New(settings, secrets)
	require.NoError(t, err)
	return s
}

func TestSpeakMissingTextRejectedBeforeOutboundCall(t *testing.T) {
	t.Parallel()

	orch, calls := countingOrchestrator(t)
	s := newTestServer(t, testSettings(t, orch.URL), nil)

	for _, body := range []string{`{}`, `{"spokenText":""}`, `{"spokenText":"   "}`} {
		req := httptest.NewRequest(http.MethodPost, "/speak", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	assert.Zero(t, calls.Load(), "validation failures must not reach the orchestrator")
}

func TestSpeakUnauthorizedIsChatShaped(t *testing.T) {
	t.Parallel()

	orch, calls := countingOrchestrator(t)
	settings := testSettings(t, orch.URL)
	settings.Auth.Enabled = true
	s := newTestServer(t, settings, &Secrets{FunctionKey: "fk", OAuthClientSecret: "cs"})

	req := httptest.NewRequest(http.MethodPost, "/speak",
		strings.NewReader(`{"spokenText":"hello","conversation_id":"conv-5"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"answer"`)
	assert.Contains(t, rec.Body.String(), `"conv-5"`)
	assert.Zero(t, calls.Load())
}

func TestSpeakStreamsWhenAuthDisabled(t *testing.T) {
	t.Parallel()

	orch, calls := countingOrchestrator(t)
	s := newTestServer(t, testSettings(t, orch.URL), nil)

	req := httptest.NewRequest(http.MethodPost, "/speak", strings.NewReader(`{"spokenText":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `{"answer":"streamed"}`)
	assert.Equal(t, int64(1), calls.Load())
}

func TestIndexRedirectsToLoginWhenUnauthenticated(t *testing.T) {
	t.Parallel()

	orch, _ := countingOrchestrator(t)
	settings := testSettings(t, orch.URL)
	settings.Auth.Enabled = true
	s := newTestServer(t, settings, &Secrets{FunctionKey: "fk", OAuthClientSecret: "cs"})

	for _, path := range []string{"/", "/favicon.ico"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		rec := httptest.NewRecorder()
		s.Echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}
}

func TestIndexServedWhenAuthDisabled(t *testing.T) {
	t.Parallel()

	orch, _ := countingOrchestrator(t)
	s := newTestServer(t, testSettings(t, orch.URL), nil)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shell")
}

func TestLogoutClearsSessionRecord(t *testing.T) {
	t.Parallel()

	orch, _ := countingOrchestrator(t)
	s := newTestServer(t, testSettings(t, orch.URL), nil)

	id, err := session.NewID()
	require.NoError(t, err)
	require.NoError(t, s.Store.Save(id, &session.Data{
		User:             &session.User{OID: "oid"},
		GraphAccessToken: "token",
		RefreshToken:     "refresh",
		TokenCache:       "blob",
	}))

	req := httptest.NewRequest(http.MethodGet, "/logout", http.NoBody)
	req.AddCookie(&http.Cookie{Name: "session", Value: id})
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, s.Store.Load(id).IsEmpty(), "logout leaves an empty record behind")
}

func TestGetSpeechRegion(t *testing.T) {
	t.Parallel()

	orch, _ := countingOrchestrator(t)
	s := newTestServer(t, testSettings(t, orch.URL), nil)

	req := httptest.NewRequest(http.MethodGet, "/get-speech-region", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"speech_region":"eastus2"}`, rec.Body.String())
}

func TestGetSupportedLanguages(t *testing.T) {
	t.Parallel()

	orch, _ := countingOrchestrator(t)
	s := newTestServer(t, testSettings(t, orch.URL), nil)

	req := httptest.NewRequest(http.MethodGet, "/get-supported-languages", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"supported_languages":["en-US","de-DE","zh-CN","nl-NL"]}`, rec.Body.String())
}

func TestGetSpeechTokenMissingKey(t *testing.T) {
	t.Parallel()

	orch, _ := countingOrchestrator(t)
	s := newTestServer(t, testSettings(t, orch.URL), &Secrets{FunctionKey: "fk"})

	for _, path := range []string{"/get-speech-token", "/get-ice-server-token"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		rec := httptest.NewRecorder()
		s.Echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestGetSpeechToken(t *testing.T) {
	t.Parallel()

	orch, _ := countingOrchestrator(t)
	s := newTestServer(t, testSettings(t, orch.URL), &Secrets{FunctionKey: "fk", SpeechAPIKey: "speech-key"})

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost,
		"https://eastus2.api.cognitive.microsoft.com/sts/v1.0/issueToken",
		httpmock.NewStringResponder(http.StatusOK, "issued-token"))
	s.Speech.SetTransport(transport)

	req := httptest.NewRequest(http.MethodGet, "/get-speech-token", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token":"issued-token"}`, rec.Body.String())
}

func TestGetSpeechTokenMirrorsUpstreamStatus(t *testing.T) {
	t.Parallel()

	orch, _ := countingOrchestrator(t)
	s := newTestServer(t, testSettings(t, orch.URL), &Secrets{FunctionKey: "fk", SpeechAPIKey: "speech-key"})

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost,
		"https://eastus2.api.cognitive.microsoft.com/sts/v1.0/issueToken",
		httpmock.NewStringResponder(http.StatusUnauthorized, "bad key"))
	s.Speech.SetTransport(transport)

	req := httptest.NewRequest(http.MethodGet, "/get-speech-token", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	orch, _ := countingOrchestrator(t)
	s := newTestServer(t, testSettings(t, orch.URL), nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "session_loads_total")
}

func TestEveryRequestGetsSessionCookie(t *testing.T) {
	t.Parallel()

	orch, _ := countingOrchestrator(t)
	s := newTestServer(t, testSettings(t, orch.URL), nil)

	req := httptest.NewRequest(http.MethodGet, "/get-speech-region", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			found = true
			assert.True(t, session.ValidID(c.Value))
		}
	}
	assert.True(t, found, "middleware attaches a session cookie on first contact")
}
