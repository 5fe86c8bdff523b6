package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/database"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/geocoding"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/pipeline"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/streets"
)

var (
	useOverpass bool
	outerLink   bool
	streetsFile string
)

var streetsCmd = &cobra.Command{
	Use:   "streets <funda.csv> <reference.json>",
	Short: "Score the listings and select the streets most like the reference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := config.LoadReference(args[1])
		if err != nil {
			return err
		}
		p, cleanup, err := newPipeline(cmd.Context(), useOverpass)
		if err != nil {
			return err
		}
		defer cleanup()

		return emit("streets", p.Streets(cmd.Context(), args[0], ref))
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <rtf-dir|file.rtf>...",
	Short: "Parse Realworks RTF exports into property records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var names []string
		if streetsFile != "" {
			var err error
			if names, err = pipeline.LoadBestStreets(streetsFile); err != nil {
				return fmt.Errorf("failed to load streets: %w", err)
			}
		}
		p, cleanup, err := newPipeline(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer cleanup()

		return emit("parse", p.Parse(args, names))
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <funda.csv> <realworks.csv> <reference.json>",
	Short: "Link listings to Realworks records and rank the comparables",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := config.LoadReference(args[2])
		if err != nil {
			return err
		}
		p, cleanup, err := newPipeline(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer cleanup()

		return emit("merge", p.Merge(cmd.Context(), args[0], args[1], ref))
	},
}

var rankCmd = &cobra.Command{
	Use:   "rank <merged.csv> <reference.json>",
	Short: "Rank an existing merged file again",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := config.LoadReference(args[1])
		if err != nil {
			return err
		}
		p, cleanup, err := newPipeline(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer cleanup()

		return emit("rank", p.Rank(cmd.Context(), args[0], ref))
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <top15.csv> [reference.json]",
	Short: "Render the shortlist as a spreadsheet and PDF",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ref *models.ReferenceProperty
		if len(args) == 2 {
			var err error
			if ref, err = config.LoadReference(args[1]); err != nil {
				return err
			}
		}
		p, cleanup, err := newPipeline(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer cleanup()

		return emit("report", p.Report(args[0], ref))
	},
}

var runCmd = &cobra.Command{
	Use:   "run <funda.csv> <rtf-dir> <reference.json>",
	Short: "Run all stages in sequence",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := config.LoadReference(args[2])
		if err != nil {
			return err
		}
		p, cleanup, err := newPipeline(cmd.Context(), useOverpass)
		if err != nil {
			return err
		}
		defer cleanup()

		return emit("run", p.Run(cmd.Context(), args[0], args[1], ref))
	},
}

// newPipeline wires the optional collaborators the configuration asks for.
func newPipeline(ctx context.Context, overpass bool) (*pipeline.Pipeline, func(), error) {
	if outerLink {
		cfg.Linker.Outer = true
	}

	var deps pipeline.Dependencies
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if overpass || cfg.Overpass.Enabled {
		cache, closeCache, err := newStreetCache(ctx)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, closeCache)

		client := streets.NewClient(streets.ClientOptionsFromConfig(cfg), logger)
		deps.Streets = streets.NewProvider(client, cache, streets.ProviderOptionsFromConfig(cfg), logger)
	}

	if cfg.Geocoding.Enabled {
		deps.Geocoder = geocoding.NewGeocoder(logger, geocoding.OptionsFromConfig(cfg))
	}

	if cfg.DatabasePath != "" {
		db, err := openDatabase()
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		deps.Recorder = pipeline.NewRunStore(db, cfg, logger)
	}

	return pipeline.New(cfg, deps, logger), cleanup, nil
}

// newStreetCache prefers redis when configured and falls back to files.
func newStreetCache(ctx context.Context) (streets.Cache, func(), error) {
	if cfg.Overpass.RedisURL != "" {
		cache, err := streets.NewRedisCache(ctx, cfg.Overpass.RedisURL, cfg.Overpass.CacheTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to street cache: %w", err)
		}
		return cache, func() { cache.Close() }, nil
	}

	cache, err := streets.NewFileCache(cfg.Overpass.CacheDir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open street cache: %w", err)
	}
	return cache, func() {}, nil
}

func openDatabase() (*database.Database, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Infof("Using database at: %s", cfg.DatabasePath)
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return db, nil
}

func init() {
	streetsCmd.Flags().BoolVar(&useOverpass, "overpass", false, "compare street geometry through the Overpass API")
	runCmd.Flags().BoolVar(&useOverpass, "overpass", false, "compare street geometry through the Overpass API")
	mergeCmd.Flags().BoolVar(&outerLink, "outer", false, "keep unmatched records of both sources")
	runCmd.Flags().BoolVar(&outerLink, "outer", false, "keep unmatched records of both sources")
	parseCmd.Flags().StringVar(&streetsFile, "streets", "", "best_streets.json from the streets stage; keeps only records on those streets")

	rootCmd.AddCommand(streetsCmd, parseCmd, mergeCmd, rankCmd, reportCmd, runCmd)
}
