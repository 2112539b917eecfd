package httpcontroller

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// setupRequestLogger configures the HTTP request logging middleware
func (s *Server) setupRequestLogger() {
	httpLogger := s.webLogger.With("subsystem", "request")

	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:          true,
		LogStatus:       true,
		LogLatency:      true,
		LogRemoteIP:     true,
		LogMethod:       true,
		LogError:        true,
		LogResponseSize: true,
		LogUserAgent:    true,
		HandleError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			// Determine which log level to use based on status code
			var logMethod func(string, ...any)
			statusCode := v.Status

			switch {
			case statusCode >= 500:
				logMethod = httpLogger.Error
			case statusCode >= 400:
				logMethod = httpLogger.Warn
			default:
				logMethod = httpLogger.Info
			}

			latencyMs := float64(v.Latency) / float64(time.Millisecond)
			message := fmt.Sprintf("%s %s %d", v.Method, v.URI, statusCode)

			fields := []any{
				"remote_ip", v.RemoteIP,
				"method", v.Method,
				"uri", v.URI,
				"status", statusCode,
				"latency_ms", latencyMs,
			}

			if v.ResponseSize > 0 {
				fields = append(fields, "resp_size", v.ResponseSize)
			}

			if v.Error != nil {
				fields = append(fields, "error", v.Error.Error())
			}

			if statusCode >= 400 && v.UserAgent != "" {
				fields = append(fields, "user_agent", v.UserAgent)
			}

			logMethod(message, fields...)
			return nil
		},
	}))
}
