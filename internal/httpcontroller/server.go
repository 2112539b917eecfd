// Package httpcontroller wires the gateway's HTTP surface: session
// middleware, auth flow routes, the streaming proxy, and the speech token
// endpoints.
package httpcontroller

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/avatar-gateway/internal/auth"
	"github.com/tphakala/avatar-gateway/internal/conf"
	"github.com/tphakala/avatar-gateway/internal/logging"
	"github.com/tphakala/avatar-gateway/internal/observability"
	"github.com/tphakala/avatar-gateway/internal/session"
	"github.com/tphakala/avatar-gateway/internal/speech"
	"github.com/tphakala/avatar-gateway/internal/stream"
)

// Secrets carries the deployment secrets resolved at startup. Components
// receive plain strings; resolution and validation happen before the
// server is built.
type Secrets struct {
	OAuthClientSecret string
	SpeechAPIKey      string
	FunctionKey       string
}

// Server encapsulates the Echo server and the gateway components.
type Server struct {
	Echo       *echo.Echo
	Settings   *conf.Settings
	Store      *session.Store
	SessionMW  *session.Middleware
	Flow       *auth.Flow
	Authorizer *auth.Authorizer
	Speech     *speech.Client
	Stream     *stream.Proxy
	Metrics    *observability.Metrics

	webLogger      *slog.Logger
	closeWebLogger func() error
}

// New builds the server and all gateway components from validated settings
// and resolved secrets.
func New(settings *conf.Settings, secrets *Secrets) (*Server, error) {
	store, err := session.NewStore(settings.Session.Dir)
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	store.SetMetrics(metrics.Session)

	sessionMW := session.NewMiddleware(store, &settings.Session)
	sessionMW.SetMetrics(metrics.Session)

	flow := auth.NewFlow(&settings.Auth, secrets.OAuthClientSecret)
	groups := auth.NewGroupClient(settings.Auth.GraphURL)
	authorizer := auth.NewAuthorizer(&settings.Auth, flow, groups)
	authorizer.SetMetrics(metrics.Auth)

	proxy := stream.NewProxy(&settings.Orchestrator, secrets.FunctionKey)
	proxy.SetMetrics(metrics.Stream)

	s := &Server{
		Echo:       echo.New(),
		Settings:   settings,
		Store:      store,
		SessionMW:  sessionMW,
		Flow:       flow,
		Authorizer: authorizer,
		Speech:     speech.NewClient(&settings.Speech, secrets.SpeechAPIKey),
		Stream:     proxy,
		Metrics:    metrics,
	}
	s.webLogger, s.closeWebLogger = newWebLogger(settings)

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()

	s.configureMiddleware()
	s.initRoutes()
	return s, nil
}

// configureMiddleware sets up middleware for the server. Gzip skips the
// streaming endpoint so heartbeat frames are not buffered by compression.
func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     6,
		MinLength: 2048,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/speak"
		},
	}))
	s.setupRequestLogger()
	s.Echo.Use(s.SessionMW.Handler())
}

// Start begins listening and serving HTTP requests. It blocks until the
// server stops.
func (s *Server) Start() error {
	s.webLogger.Info("HTTP server starting", "port", s.Settings.WebServer.Port)
	return s.Echo.Start(":" + s.Settings.WebServer.Port)
}

// Shutdown stops the server gracefully and closes the web log file.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	if s.closeWebLogger != nil {
		if closeErr := s.closeWebLogger(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// newWebLogger returns the logger for the HTTP layer. When file logging is
// enabled the requests go to a rotated log file; otherwise they share the
// process-wide structured output.
func newWebLogger(settings *conf.Settings) (*slog.Logger, func() error) {
	fallback := logging.ForService("web")
	if !settings.WebServer.Log.Enabled || settings.WebServer.Log.Path == "" {
		return fallback, nil
	}

	level := slog.LevelInfo
	if settings.Debug || settings.WebServer.Debug {
		level = slog.LevelDebug
	}

	fileLogger, closeFunc, err := logging.NewFileLogger(settings.WebServer.Log.Path, "web", level)
	if err != nil {
		fallback.Warn("Failed to open web log file, using standard output",
			"path", settings.WebServer.Log.Path, "error", err)
		return fallback, nil
	}
	return fileLogger, closeFunc
}
