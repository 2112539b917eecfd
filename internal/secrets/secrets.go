// Package secrets resolves deployment credentials at process start with
// support for environment variables and file based secrets (Docker/Kubernetes
// secrets).
//
// Security Design:
//   - Never logs secret values
//   - Supports multiple secret sources for flexibility
//   - Validates file permissions for security
//   - Clear error messages without exposing secrets
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// maxSecretFileSize limits secret file reads to prevent memory issues.
	// Secrets are small (tokens, keys), not large files.
	maxSecretFileSize = 64 * 1024 // 64 KB
)

// ExpandString resolves a string that may contain environment variable references.
// Supports syntax: ${VAR} or ${VAR:-default}
//
// Examples:
//   - "literal" -> "literal"
//   - "${TOKEN}" -> value of TOKEN env var
//   - "${TOKEN:-default}" -> value of TOKEN or "default" if not set
//
// Returns the expanded string or an error if required variables are missing.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missingVars []string

	expanded := os.Expand(s, func(key string) string {
		varName := key
		defaultValue := ""
		fallbackProvided := false

		if idx := strings.Index(key, ":-"); idx != -1 {
			varName = key[:idx]
			defaultValue = key[idx+2:]
			fallbackProvided = true
		}

		value := os.Getenv(varName)
		if value == "" {
			if fallbackProvided {
				return defaultValue
			}
			missingVars = append(missingVars, varName)
			return ""
		}
		return value
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missingVars, ", "))
	}

	return expanded, nil
}

// ReadFile reads a secret from a file path. Commonly used for Docker secrets
// (/run/secrets/*) or Kubernetes mounted secrets.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("secret file path is empty")
	}

	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret file not found: %s", cleanPath)
		}
		return "", fmt.Errorf("failed to stat secret file %s: %w", cleanPath, err)
	}

	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", cleanPath)
	}

	if info.Size() > maxSecretFileSize {
		return "", fmt.Errorf("secret file too large (max %d bytes): %s", maxSecretFileSize, cleanPath)
	}

	// Warn about permissive permissions (group/other can read)
	perm := info.Mode().Perm()
	if perm&0o077 != 0 {
		fmt.Fprintf(os.Stderr, "WARNING: secret file has group/other permissions (perms: %04o): %s\n", perm, cleanPath)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", cleanPath, err)
	}

	// Trim only trailing newlines, secrets often carry one
	secret := strings.TrimRight(string(data), "\r\n")

	if secret == "" {
		return "", fmt.Errorf("secret file is empty: %s", cleanPath)
	}

	return secret, nil
}

// Resolve determines the actual secret value from multiple possible sources.
// Precedence (highest to lowest):
//  1. filePath (if provided and readable)
//  2. value with environment variable expansion
//  3. literal value
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		secret, err := ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from file: %w", err)
		}
		return secret, nil
	}

	if value != "" {
		expanded, err := ExpandString(value)
		if err != nil {
			return "", err
		}
		return expanded, nil
	}

	return "", nil
}

// MustResolve is like Resolve but returns an error if no secret is provided.
// Use this for secrets the gateway cannot start without.
func MustResolve(fieldName, filePath, value string) (string, error) {
	secret, err := Resolve(filePath, value)
	if err != nil {
		return "", err
	}

	if secret == "" {
		return "", fmt.Errorf("%s is required but not provided", fieldName)
	}

	return secret, nil
}
