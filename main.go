package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/tphakala/avatar-gateway/cmd"
	"github.com/tphakala/avatar-gateway/internal/conf"
)

func main() {
	// A .env file is optional; deployments usually inject real environment
	// variables instead.
	_ = godotenv.Load()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
