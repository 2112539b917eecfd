package httpcontroller

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/avatar-gateway/internal/errors"
	"github.com/tphakala/avatar-gateway/internal/session"
	"github.com/tphakala/avatar-gateway/internal/speech"
	"github.com/tphakala/avatar-gateway/internal/stream"
)

// unauthorizedAnswer is the chat-shaped body returned to unauthorized
// /speak callers so the client UI renders it as an assistant message
// instead of a raw error.
type unauthorizedAnswer struct {
	Answer         string `json:"answer"`
	Thoughts       string `json:"thoughts"`
	ConversationID string `json:"conversation_id"`
}

// requireSignIn gates page routes: with auth enabled and no signed-in
// user, the browser goes to /login instead of the asset.
func (s *Server) requireSignIn(c echo.Context) bool {
	if !s.Settings.Auth.Enabled {
		return false
	}
	sess := session.FromContext(c)
	return sess == nil || sess.User == nil
}

func (s *Server) handleIndex(c echo.Context) error {
	if s.requireSignIn(c) {
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	return c.File(filepath.Join(s.Settings.WebServer.StaticDir, "index.html"))
}

func (s *Server) handleFavicon(c echo.Context) error {
	if s.requireSignIn(c) {
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	return c.File(filepath.Join(s.Settings.WebServer.StaticDir, "image", "favicon.ico"))
}

// handleSpeak validates the question, derives the authorization decision
// and hands the connection to the streaming proxy. Validation happens
// before any outbound call; an unauthorized caller gets a chat-shaped 401.
func (s *Server) handleSpeak(c echo.Context) error {
	var req stream.SpeakRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.SpokenText) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing spokenText in request."})
	}

	decision := s.Authorizer.Check(c.Request().Context(), session.FromContext(c))
	if !decision.Authorized {
		return c.JSON(http.StatusUnauthorized, unauthorizedAnswer{
			Answer:         "You are not authorized to access this service. Please contact your administrator.",
			Thoughts:       "User not authorized.",
			ConversationID: req.ConversationID,
		})
	}

	return s.Stream.Relay(c, &req, decision)
}

func (s *Server) handleSpeechToken(c echo.Context) error {
	if !s.Speech.HasKey() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing speech subscription key."})
	}

	token, err := s.Speech.IssueToken(c.Request().Context())
	if err != nil {
		return speechError(c, err, "Failed to get speech token.")
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleIceServerToken(c echo.Context) error {
	if !s.Speech.HasKey() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing speech subscription key."})
	}

	body, err := s.Speech.RelayToken(c.Request().Context())
	if err != nil {
		return speechError(c, err, "Failed to get ICE server token.")
	}
	return c.JSONBlob(http.StatusOK, body)
}

func (s *Server) handleSpeechRegion(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"speech_region": s.Settings.Speech.Region})
}

func (s *Server) handleSupportedLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{
		"supported_languages": s.Settings.Speech.LanguageList(),
	})
}

// speechError mirrors a speech service status to the client, or 502 when
// the service was unreachable.
func speechError(c echo.Context, err error, detail string) error {
	var statusErr *speech.StatusError
	if errors.As(err, &statusErr) {
		return c.JSON(statusErr.StatusCode, map[string]string{"error": detail})
	}
	return c.JSON(http.StatusBadGateway, map[string]string{"error": detail})
}
