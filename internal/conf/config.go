// config.go: settings struct and loading for the avatar gateway. The settings
// are built once at startup and injected into every component; request
// handling code never reads viper or the environment directly.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig contains settings for the rotated web log file.
type LogConfig struct {
	Enabled bool   // true to enable web request logging to file
	Path    string // path to the log file
}

// WebServerSettings contains settings for the HTTP server.
type WebServerSettings struct {
	Debug     bool      // true to enable debug logging for the web server
	Port      string    // port to listen on
	StaticDir string    // directory holding the application shell and assets
	Log       LogConfig // web server log settings
}

// SessionSettings contains settings for file backed session persistence.
type SessionSettings struct {
	Dir        string        // directory holding one JSON file per session
	CookieName string        // name of the session identifier cookie
	MaxAge     time.Duration // cookie max age
}

// AuthSettings contains settings for the identity provider integration.
type AuthSettings struct {
	Enabled          bool   // false runs the gateway in single tenant no-auth mode
	ClientID         string // OAuth2 client id registered with the provider
	ClientSecret     string // confidential client secret, resolved from the secret store
	ClientSecretFile string // optional file source for the client secret
	Authority        string // provider authority base URL, e.g. https://login.microsoftonline.com/<tenant>
	RedirectPath     string // path of the registered redirect URI, e.g. /getAToken
	RedirectURI      string // full registered redirect URI
	ExtraScopes      string // comma separated secondary scope set, may be empty
	GraphURL         string // base URL of the provider graph API used for group lookup
}

// SpeechSettings contains settings for the speech service proxies.
type SpeechSettings struct {
	Region             string // speech service region, e.g. eastus2
	APIKey             string // subscription key, resolved from the secret store
	APIKeyFile         string // optional file source for the subscription key
	TokenEndpoint      string // override for the token issuance endpoint, defaults from Region
	RelayEndpoint      string // override for the ICE relay token endpoint, defaults from Region
	SupportedLanguages string // comma separated language list
}

// OrchestratorSettings contains settings for the downstream streaming orchestrator.
type OrchestratorSettings struct {
	URL               string        // streaming endpoint URL
	FunctionKey       string        // function level shared secret, resolved from the secret store
	FunctionKeyFile   string        // optional file source for the function key
	HeartbeatInterval time.Duration // idle interval after which an SSE comment heartbeat is emitted
}

// Settings contains all runtime settings for the gateway.
type Settings struct {
	Debug bool // true to enable debug log level

	Main struct {
		Name string    // name of the gateway node
		Log  LogConfig // main log settings
	}

	WebServer    WebServerSettings
	Session      SessionSettings
	Auth         AuthSettings
	Speech       SpeechSettings
	Orchestrator OrchestratorSettings
}

// SpeechTokenEndpoint returns the speech token issuance URL, deriving it from
// the configured region when no override is set.
func (s *SpeechSettings) SpeechTokenEndpoint() string {
	if s.TokenEndpoint != "" {
		return s.TokenEndpoint
	}
	return fmt.Sprintf("https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken", s.Region)
}

// SpeechRelayEndpoint returns the ICE relay token URL, deriving it from the
// configured region when no override is set.
func (s *SpeechSettings) SpeechRelayEndpoint() string {
	if s.RelayEndpoint != "" {
		return s.RelayEndpoint
	}
	return fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/avatar/relay/token/v1", s.Region)
}

// LanguageList returns the configured supported languages as a list.
func (s *SpeechSettings) LanguageList() []string {
	return ParseCommaList(s.SupportedLanguages)
}

// Load reads the configuration file and environment variables into a new
// Settings instance. The instance is injected into every component; there
// is no global accessor.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Defaults are defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml.
// The working directory is searched first, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	if workDir, err := os.Getwd(); err == nil {
		configPaths = append(configPaths, workDir)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		if len(configPaths) == 0 {
			return nil, fmt.Errorf("error resolving user config directory: %w", err)
		}
		return configPaths, nil
	}
	configPaths = append(configPaths, filepath.Join(configDir, "avatar-gateway"))

	return configPaths, nil
}
