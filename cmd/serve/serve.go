// Package serve implements the command that runs the gateway HTTP server.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/avatar-gateway/internal/conf"
	"github.com/tphakala/avatar-gateway/internal/httpcontroller"
	"github.com/tphakala/avatar-gateway/internal/logging"
	"github.com/tphakala/avatar-gateway/internal/secrets"
)

// shutdownTimeout bounds graceful shutdown after SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

// Command creates a new command to start the gateway server.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		Long:  "Serve the avatar web application: session-backed sign-in, speech token proxies and the orchestrator streaming proxy.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")
	cmd.Flags().StringVar(&settings.WebServer.StaticDir, "staticdir", viper.GetString("webserver.staticdir"), "Directory holding the application shell")
	cmd.Flags().StringVar(&settings.Session.Dir, "sessiondir", viper.GetString("session.dir"), "Directory for session record files")
	cmd.Flags().BoolVar(&settings.Auth.Enabled, "auth", viper.GetBool("auth.enabled"), "Require sign-in through the identity provider")
	cmd.Flags().StringVar(&settings.Orchestrator.URL, "orchestrator", viper.GetString("orchestrator.url"), "URL of the streaming orchestrator endpoint")
	cmd.Flags().StringVar(&settings.Speech.Region, "speechregion", viper.GetString("speech.region"), "Azure speech service region")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

func run(settings *conf.Settings) error {
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)
	log := logging.ForService("main")
	if settings.Main.Log.Enabled && settings.Main.Log.Path != "" {
		fileLog, closeLog, err := logging.NewFileLogger(settings.Main.Log.Path, "main", level)
		if err != nil {
			log.Warn("Failed to open main log file, using standard output",
				"path", settings.Main.Log.Path, "error", err)
		} else {
			log = fileLog
			defer func() {
				if err := closeLog(); err != nil {
					fmt.Fprintf(os.Stderr, "error closing log file: %v\n", err)
				}
			}()
		}
	}

	if err := conf.ValidateSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	resolved, err := resolveSecrets(settings)
	if err != nil {
		// Startup secrets are mandatory; the process must not come up
		// half-configured.
		logging.Fatal("Failed to resolve startup secrets", "error", err)
	}

	server, err := httpcontroller.New(settings, resolved)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received, stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// resolveSecrets loads the deployment secrets at startup. The orchestrator
// function key is always required; the OAuth client secret only when auth
// is enabled. The speech key may be absent, its routes reject per call.
func resolveSecrets(settings *conf.Settings) (*httpcontroller.Secrets, error) {
	resolved := &httpcontroller.Secrets{}

	functionKey, err := secrets.MustResolve("orchestrator function key",
		settings.Orchestrator.FunctionKeyFile, settings.Orchestrator.FunctionKey)
	if err != nil {
		return nil, err
	}
	resolved.FunctionKey = functionKey

	if settings.Auth.Enabled {
		clientSecret, err := secrets.MustResolve("oauth client secret",
			settings.Auth.ClientSecretFile, settings.Auth.ClientSecret)
		if err != nil {
			return nil, err
		}
		resolved.OAuthClientSecret = clientSecret
	}

	speechKey, err := secrets.Resolve(settings.Speech.APIKeyFile, settings.Speech.APIKey)
	if err != nil {
		return nil, err
	}
	resolved.SpeechAPIKey = speechKey

	return resolved, nil
}
