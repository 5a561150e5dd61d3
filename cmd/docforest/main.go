package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/docforest/docforest/internal/app"
	"github.com/docforest/docforest/internal/config"
	"github.com/docforest/docforest/internal/store"
	"github.com/docforest/docforest/internal/tree"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "docforest"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Branchable document tree server",
		Long:    "docforest serves branchable document trees over HTTP and synchronizes them with external git remotes",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Flags(), version)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	app.RegisterFlags(rootCmd.Flags())
	rootCmd.AddCommand(newMigrateOrderCmd())
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

func runWithFlags(flags *pflag.FlagSet, version string) error {
	return app.RunWithDeps(context.Background(), app.DefaultRunParams(), flags, version)
}

// newMigrateOrderCmd backfills sibling order positions for repositories
// created before explicit ordering existed.
func newMigrateOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate-order [rpid...]",
		Short: "Backfill sibling order for existing repositories",
		Long:  "Assigns sequential order positions to documents and blocks that predate explicit ordering. With no arguments, migrates every repository.",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettingsWithFlags(cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}

			db, err := store.Open(store.Options{Dir: filepath.Join(settings.DataDir, "store")})
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer func() { _ = db.Close() }()

			svc := tree.NewService(db)

			var rpids []int
			if len(args) == 0 {
				repos, err := svc.ListRepositories()
				if err != nil {
					return err
				}
				for _, r := range repos {
					rpids = append(rpids, r.ID)
				}
			} else {
				for _, arg := range args {
					rpid, err := strconv.Atoi(arg)
					if err != nil {
						return fmt.Errorf("invalid repository id %q", arg)
					}
					rpids = append(rpids, rpid)
				}
			}

			for _, rpid := range rpids {
				changed, err := svc.BackfillOrder(rpid)
				if err != nil {
					return fmt.Errorf("migration failed for repository %d: %w", rpid, err)
				}
				cmd.Printf("repository %d: %d records updated\n", rpid, changed)
			}
			return nil
		},
	}

	cmd.Flags().StringP("data-dir", "d", "", "Base directory for the store and search indexes")
	return cmd
}
