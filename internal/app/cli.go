package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("host", "H", "", "Host to bind the HTTP server to")
	flags.IntP("port", "p", 0, "Port to bind the HTTP server to")
	flags.StringP("data-dir", "d", "", "Base directory for the store and search indexes")
	flags.StringSliceP("api-keys", "k", nil, "API keys for the HTTP API (comma-separated)")
	flags.String("git-token", "", "Access token for remote git synchronization")
	flags.String("git-bot-name", "", "Committer name for sync commits")
	flags.String("git-bot-email", "", "Committer email for sync commits")
	flags.Duration("git-timeout", 0, "Timeout for a single push or pull")
	flags.Bool("search-enabled", true, "Enable full-text search indexing")
}
