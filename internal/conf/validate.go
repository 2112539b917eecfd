// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSessionSettings(&settings.Session); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateAuthSettings(&settings.Auth); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOrchestratorSettings(&settings.Orchestrator); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateWebServerSettings validates the web server specific settings
func validateWebServerSettings(settings *WebServerSettings) error {
	var errs []string

	if settings.Port == "" {
		errs = append(errs, "web server port must not be empty")
	} else if port, err := strconv.Atoi(settings.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid web server port: %s", settings.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// validateSessionSettings validates the session persistence settings
func validateSessionSettings(settings *SessionSettings) error {
	var errs []string

	if settings.Dir == "" {
		errs = append(errs, "session directory must not be empty")
	}
	if settings.CookieName == "" {
		errs = append(errs, "session cookie name must not be empty")
	}
	if settings.MaxAge <= 0 {
		errs = append(errs, "session max age must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// validateAuthSettings validates the identity provider settings. Most fields
// are only mandatory when authentication is enabled.
func validateAuthSettings(settings *AuthSettings) error {
	var errs []string

	if settings.Enabled {
		if settings.ClientID == "" {
			errs = append(errs, "auth.clientid is required when authentication is enabled")
		}
		if settings.Authority == "" {
			errs = append(errs, "auth.authority is required when authentication is enabled")
		} else if u, err := url.Parse(settings.Authority); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid auth.authority URL: %s", settings.Authority))
		}
		if settings.GraphURL != "" {
			if u, err := url.Parse(settings.GraphURL); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, fmt.Sprintf("invalid auth.graphurl URL: %s", settings.GraphURL))
			}
		}
	}

	if settings.RedirectPath == "" {
		errs = append(errs, "auth.redirectpath must not be empty")
	} else if !strings.HasPrefix(settings.RedirectPath, "/") {
		errs = append(errs, fmt.Sprintf("auth.redirectpath must start with /: %s", settings.RedirectPath))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// validateOrchestratorSettings validates the downstream orchestrator settings
func validateOrchestratorSettings(settings *OrchestratorSettings) error {
	var errs []string

	if settings.URL == "" {
		errs = append(errs, "orchestrator.url must not be empty")
	} else if u, err := url.Parse(settings.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("invalid orchestrator.url: %s", settings.URL))
	}

	if settings.HeartbeatInterval <= 0 {
		errs = append(errs, "orchestrator.heartbeatinterval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// ParseCommaList splits a comma separated configuration value into a slice,
// trimming whitespace and dropping empty entries.
func ParseCommaList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
