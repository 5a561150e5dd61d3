package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/docforest/docforest/internal/config"
	"github.com/docforest/docforest/internal/gitsync"
	"github.com/docforest/docforest/internal/search"
	"github.com/docforest/docforest/internal/store"
	"github.com/docforest/docforest/internal/tree"
)

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings  func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings func(*config.Settings) error
	StartServer   func(*gin.Engine, *config.Settings) error
	CreateServer  func(*config.Settings) (*gin.Engine, func(), error)
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:  config.LoadSettingsWithFlags,
		ValidSettings: config.ValidateSettings,
		StartServer:   StartServer,
		CreateServer:  CreateServer,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr to avoid buffering issues
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting docforest server", "version", version)
	config.Log(settings)

	engine, cleanup, err := params.CreateServer(settings)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	errc := make(chan error, 1)
	go func() {
		errc <- params.StartServer(engine, settings)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errc:
		return err
	}
}

// CreateServer opens the store, builds the services and returns the
// configured gin engine plus a cleanup function closing the store.
func CreateServer(settings *config.Settings) (*gin.Engine, func(), error) {
	if err := os.MkdirAll(settings.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := store.Open(store.Options{Dir: filepath.Join(settings.DataDir, "store")})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
	}

	treeSvc := tree.NewService(db)
	syncer := gitsync.NewSyncer(treeSvc, gitsync.NewGitClient(), gitsync.Options{
		Token:    settings.Git.Token,
		BotName:  settings.Git.BotName,
		BotEmail: settings.Git.BotEmail,
	})

	var indexer *search.Indexer
	if settings.Search.Enabled {
		indexer = search.NewIndexer(settings.DataDir, treeSvc)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := NewRouter(ServerDeps{
		Tree:       treeSvc,
		Syncer:     syncer,
		Indexer:    indexer,
		APIKeys:    settings.APIKeys,
		GitTimeout: settings.Git.Timeout,
	})

	return engine, cleanup, nil
}
