package httpcontroller

import (
	"github.com/labstack/echo/v4"
)

// initRoutes registers the gateway's HTTP routes.
func (s *Server) initRoutes() {
	e := s.Echo

	// Application shell, gated on authentication
	e.GET("/", s.handleIndex)
	e.GET("/favicon.ico", s.handleFavicon)
	e.Static("/static", s.Settings.WebServer.StaticDir)

	// Auth flow
	e.GET("/login", s.Flow.HandleLogin)
	e.GET(s.Settings.Auth.RedirectPath, s.Flow.HandleCallback)
	e.GET("/logout", s.Flow.HandleLogout)

	// Streaming proxy
	e.POST("/speak", s.handleSpeak)

	// Speech service proxies
	e.GET("/get-speech-token", s.handleSpeechToken)
	e.GET("/get-ice-server-token", s.handleIceServerToken)
	e.GET("/get-speech-region", s.handleSpeechRegion)
	e.GET("/get-supported-languages", s.handleSupportedLanguages)

	// Prometheus scrape endpoint
	e.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
}
