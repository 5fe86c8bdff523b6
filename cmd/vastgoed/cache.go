package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

type CacheResult struct {
	models.Result
	Removed int `json:"removed"`
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the street geometry cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached Overpass response",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, closeCache, err := newStreetCache(cmd.Context())
		if err != nil {
			return err
		}
		defer closeCache()

		removed, err := cache.Clear(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to clear street cache: %w", err)
		}
		logger.WithField("removed", removed).Info("Cleared street cache")

		return respond(CacheResult{
			Result:  models.Success(fmt.Sprintf("Removed %d cached responses", removed)),
			Removed: removed,
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
