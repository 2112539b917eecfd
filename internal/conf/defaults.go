// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// BasicScopes is the minimal scope set used for login and basic token refresh.
var BasicScopes = []string{"User.Read"}

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "avatar-gateway")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/gateway.log")

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.port", "8000")
	viper.SetDefault("webserver.staticdir", "static")
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "logs/web.log")

	viper.SetDefault("session.dir", "sessions")
	viper.SetDefault("session.cookiename", "session_id")
	viper.SetDefault("session.maxage", 24*time.Hour)

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.clientid", "")
	viper.SetDefault("auth.authority", "https://login.microsoftonline.com/common")
	viper.SetDefault("auth.redirectpath", "/getAToken")
	viper.SetDefault("auth.redirecturi", "")
	viper.SetDefault("auth.extrascopes", "")
	viper.SetDefault("auth.graphurl", "https://graph.microsoft.com")

	viper.SetDefault("speech.region", "eastus2")
	viper.SetDefault("speech.supportedlanguages", "en-US,de-DE,zh-CN,nl-NL")

	viper.SetDefault("orchestrator.url", "http://localhost:7071/api/orcstream")
	viper.SetDefault("orchestrator.heartbeatinterval", 15*time.Second)
}
