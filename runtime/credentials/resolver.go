package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoAPIKey is returned when no source in the resolution chain yields a key.
var ErrNoAPIKey = errors.New("no API key configured")

// DefaultEnvVars are consulted, in order, when no explicit source is set.
var DefaultEnvVars = []string{"OPENAI_API_KEY", "OPENAI_TOKEN"}

// ResolverConfig lists the places an issuer's upstream API key may come from.
type ResolverConfig struct {
	// APIKey is an explicit key value.
	APIKey string

	// KeyFile is a file holding the key.
	KeyFile string

	// KeyEnv names an environment variable holding the key.
	KeyEnv string

	// ConfigDir is the base directory for resolving a relative KeyFile.
	ConfigDir string
}

// Resolve resolves the upstream key according to the chain:
// 1. APIKey (explicit value)
// 2. KeyFile (read from file)
// 3. KeyEnv (read from environment variable)
// 4. DefaultEnvVars
func Resolve(cfg ResolverConfig) (*APIKeyCredential, error) {
	key, err := findAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrNoAPIKey
	}
	return NewAPIKeyCredential(key), nil
}

func findAPIKey(cfg ResolverConfig) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}

	if cfg.KeyFile != "" {
		key, err := readCredentialFile(cfg.KeyFile, cfg.ConfigDir)
		if err != nil {
			return "", fmt.Errorf("failed to read credential file: %w", err)
		}
		return key, nil
	}

	if cfg.KeyEnv != "" {
		if key := os.Getenv(cfg.KeyEnv); key != "" {
			return key, nil
		}
	}

	for _, envVar := range DefaultEnvVars {
		if key := os.Getenv(envVar); key != "" {
			return key, nil
		}
	}
	return "", nil
}

func readCredentialFile(path, configDir string) (string, error) {
	if !filepath.IsAbs(path) && configDir != "" {
		path = filepath.Join(configDir, path)
	}

	//nolint:gosec // G304: File path is from trusted configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// MustResolve resolves the key and panics on error.
// Use this only in initialization code where errors are unrecoverable.
func MustResolve(cfg ResolverConfig) *APIKeyCredential {
	cred, err := Resolve(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve credentials: %v", err))
	}
	return cred
}
