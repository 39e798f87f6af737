package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultAPIBaseURL = "http://localhost:8000"

	configCodeMissingAPIBaseURL   = "config.missing_api_base_url"
	configCodeCredentialStorePath = "config.credential_store_path"
	configCodeUninitializedApp    = "config.uninitialized_application"
)

// CLIConfig is the resolved command-line configuration.
type CLIConfig struct {
	APIBaseURL      string
	APIPrefix       string
	CredentialStore string
	LogLevel        string
	LogFile         string
	NoColor         bool
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadCLIConfig reads settings from flags and TAXPILOT_* environment variables.
func LoadCLIConfig(settings *viper.Viper) (CLIConfig, error) {
	apiBaseURL := strings.TrimSpace(settings.GetString("api_base_url"))
	if apiBaseURL == "" {
		return CLIConfig{}, configError(configCodeMissingAPIBaseURL, "api_base_url must be provided")
	}

	credentialStore := strings.TrimSpace(settings.GetString("credential_store"))
	if credentialStore == "" {
		defaultStore, err := defaultCredentialStoreURL()
		if err != nil {
			return CLIConfig{}, configError(configCodeCredentialStorePath, err.Error())
		}
		credentialStore = defaultStore
	}

	return CLIConfig{
		APIBaseURL:      apiBaseURL,
		APIPrefix:       settings.GetString("api_prefix"),
		CredentialStore: credentialStore,
		LogLevel:        settings.GetString("log_level"),
		LogFile:         settings.GetString("log_file"),
		NoColor:         settings.GetBool("no_color"),
	}, nil
}

func defaultCredentialStoreURL() (string, error) {
	configDirectory, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return "file://" + filepath.ToSlash(filepath.Join(configDirectory, "taxpilot", "credentials.json")), nil
}
