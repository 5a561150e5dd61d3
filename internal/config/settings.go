package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// GitSettings configuration for remote synchronization
type GitSettings struct {
	// Token is the access token embedded into remote URLs. May be empty;
	// push/pull report a configuration error when it is missing.
	Token    string        `mapstructure:"token"`
	BotName  string        `mapstructure:"bot_name"`
	BotEmail string        `mapstructure:"bot_email"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SearchSettings configuration for full-text indexing
type SearchSettings struct {
	Enabled bool `mapstructure:"enabled"`
}

// Settings application settings
type Settings struct {
	Host    string         `mapstructure:"host"`
	Port    int            `mapstructure:"port"`
	DataDir string         `mapstructure:"data_dir"`
	APIKeys []string       `mapstructure:"api_keys"`
	Git     GitSettings    `mapstructure:"git"`
	Search  SearchSettings `mapstructure:"search"`
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("git.bot_name", "docforest-bot")
	v.SetDefault("git.bot_email", "bot@docforest.local")
	v.SetDefault("git.timeout", 2*time.Minute)
	v.SetDefault("search.enabled", true)

	// Environment variables
	v.SetEnvPrefix("DOCFOREST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	_ = v.BindEnv("api_keys", "DOCFOREST_API_KEYS")
	_ = v.BindEnv("git.token", "DOCFOREST_GIT_TOKEN")
	_ = v.BindEnv("git.bot_name", "DOCFOREST_GIT_BOT_NAME")
	_ = v.BindEnv("git.bot_email", "DOCFOREST_GIT_BOT_EMAIL")
	_ = v.BindEnv("git.timeout", "DOCFOREST_GIT_TIMEOUT")
	_ = v.BindEnv("search.enabled", "DOCFOREST_SEARCH_ENABLED")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("host", flags.Lookup("host"))
		_ = v.BindPFlag("port", flags.Lookup("port"))
		_ = v.BindPFlag("data_dir", flags.Lookup("data-dir"))
		_ = v.BindPFlag("api_keys", flags.Lookup("api-keys"))
		_ = v.BindPFlag("git.token", flags.Lookup("git-token"))
		_ = v.BindPFlag("git.bot_name", flags.Lookup("git-bot-name"))
		_ = v.BindPFlag("git.bot_email", flags.Lookup("git-bot-email"))
		_ = v.BindPFlag("git.timeout", flags.Lookup("git-timeout"))
		_ = v.BindPFlag("search.enabled", flags.Lookup("search-enabled"))
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv("DOCFOREST_API_KEYS")
	if apiKeysEnv != "" {
		if len(settings.APIKeys) == 0 || (len(settings.APIKeys) == 1 && strings.Contains(settings.APIKeys[0], ",")) {
			settings.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}
	for i := range settings.APIKeys {
		settings.APIKeys[i] = strings.TrimSpace(settings.APIKeys[i])
	}
	settings.APIKeys = filterEmptyStrings(settings.APIKeys)

	settings.DataDir = expandHomeDir(settings.DataDir)

	return &settings, nil
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// defaultDataDir returns the default base directory for the store and indexes
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docforest"
	}
	return filepath.Join(home, ".docforest")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// ValidateSettings checks for missing or inconsistent configuration.
func ValidateSettings(s *Settings) error {
	if s.Port <= 0 || s.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if s.DataDir == "" {
		return errors.New("data-dir cannot be empty")
	}
	if s.Git.Timeout <= 0 {
		return errors.New("git-timeout must be positive")
	}
	if s.Git.BotName == "" || s.Git.BotEmail == "" {
		return errors.New("git-bot-name and git-bot-email cannot be empty")
	}
	return nil
}
