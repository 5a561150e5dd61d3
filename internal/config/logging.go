package config

import (
	"context"
	"log/slog"
)

// Log logs the resolved settings in a granular way, masking the token
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: host", "value", s.Host)
	logger.InfoContext(ctx, "Config: port", "value", s.Port)
	logger.InfoContext(ctx, "Config: data_dir", "value", s.DataDir)
	logger.InfoContext(ctx, "Config: api_keys", "count", len(s.APIKeys))
	logger.InfoContext(ctx, "Config: git.token", "configured", s.Git.Token != "")
	logger.InfoContext(ctx, "Config: git.bot_name", "value", s.Git.BotName)
	logger.InfoContext(ctx, "Config: git.timeout", "value", s.Git.Timeout)
	logger.InfoContext(ctx, "Config: search.enabled", "value", s.Search.Enabled)
}

// SettingsLogValue returns a slog.Value for Settings with the token masked
func SettingsLogValue(s Settings) slog.Value {
	token := ""
	if s.Git.Token != "" {
		token = "****"
	}
	return slog.GroupValue(
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.String("data_dir", s.DataDir),
		slog.String("git_token", token),
		slog.String("git_bot_name", s.Git.BotName),
		slog.Bool("search_enabled", s.Search.Enabled),
	)
}
