package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/avatar-gateway/internal/conf"
	"github.com/tphakala/avatar-gateway/internal/logging"
	"github.com/tphakala/avatar-gateway/internal/observability/metrics"
)

// Middleware loads the session record before each request and persists it
// after the handler completes, whether or not the handler returned an error.
type Middleware struct {
	store      *Store
	cookieName string
	maxAge     time.Duration
	log        *slog.Logger
	metrics    *metrics.SessionMetrics
}

// SetMetrics attaches session metrics to the middleware. Safe to leave
// unset.
func (m *Middleware) SetMetrics(sm *metrics.SessionMetrics) {
	m.metrics = sm
}

// NewMiddleware creates the session middleware around store using the
// configured cookie settings.
func NewMiddleware(store *Store, settings *conf.SessionSettings) *Middleware {
	return &Middleware{
		store:      store,
		cookieName: settings.CookieName,
		maxAge:     settings.MaxAge,
		log:        logging.ForService("session"),
	}
}

// Handler returns the echo middleware function. For every request it resolves
// the session identifier from the named cookie, loads the record (empty when
// the cookie is absent or the record does not exist), runs the handler, then
// persists the record. When no identifier existed at request start a fresh one
// is minted and attached as an HTTP-only SameSite=Lax cookie before the
// handler runs, so streaming handlers that flush headers early still carry it.
func (m *Middleware) Handler() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := m.resolveID(c)
			minted := false
			if id == "" {
				newID, err := NewID()
				if err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "session initialization failed").SetInternal(err)
				}
				id = newID
				minted = true
				c.SetCookie(m.buildCookie(id))
				if m.metrics != nil {
					m.metrics.RecordSessionCreated()
				}
			}

			data := m.store.Load(id)
			c.Set(ContextKey, data)

			handlerErr := next(c)

			// The persist must happen even when the handler failed; the
			// record may have been mutated before the failure.
			if err := m.store.Save(id, data); err != nil {
				m.log.Error("Failed to persist session", "session_id", id, "minted", minted, "error", err)
				if handlerErr == nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "session persistence failed").SetInternal(err)
				}
			}

			return handlerErr
		}
	}
}

// resolveID extracts a store minted session identifier from the request
// cookie, or "" when absent or malformed.
func (m *Middleware) resolveID(c echo.Context) string {
	cookie, err := c.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	if !ValidID(cookie.Value) {
		m.log.Debug("Ignoring malformed session cookie", "cookie", m.cookieName)
		return ""
	}
	return cookie.Value
}

func (m *Middleware) buildCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
