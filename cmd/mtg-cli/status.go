package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine status and cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd)
			if err != nil {
				return err
			}

			fmt.Println("MTG Card App Status")
			fmt.Println(strings.Repeat("=", 40))

			fmt.Println("\nConfiguration:")
			fmt.Printf("  Catalog:   %s\n", cfg.DBPath)
			fmt.Printf("  Embedding: %s\n", cfg.EmbedBackend)
			fmt.Printf("  Gemini:    %s\n", keyStatus(cfg.GeminiAPIKey))

			fmt.Println("\nConnecting to storage...")
			ctx := context.Background()
			app, err := BuildApp(ctx, cfg)
			if err != nil {
				fmt.Printf("  Status:    FAILED (%s)\n", err)
				return nil // report status, don't fail the command
			}
			defer app.Close()
			fmt.Println("  Status:    CONNECTED")

			stats, err := app.Engine.Stats(ctx)
			if err != nil {
				fmt.Printf("\nStats: error (%s)\n", err)
				return nil
			}

			fmt.Printf("\nCatalog:\n")
			fmt.Printf("  Cards:     %d\n", stats.CatalogCards)
			fmt.Printf("  Vectors:   %d\n", app.Vectors.Count())

			fmt.Println("\nCaches (hits / misses / hit rate):")
			fmt.Printf("  %-10s %d / %d / %.2f\n", "query:", stats.QueryCache.Hits, stats.QueryCache.Misses, stats.QueryCache.HitRate)
			fmt.Printf("  %-10s %d / %d / %.2f\n", "suggest:", stats.SuggestCache.Hits, stats.SuggestCache.Misses, stats.SuggestCache.HitRate)
			fmt.Printf("  %-10s %d / %d / %.2f\n", "pool:", stats.PoolCache.Hits, stats.PoolCache.Misses, stats.PoolCache.HitRate)
			fmt.Printf("  %-10s %d / %d / %.2f\n", "pair:", stats.PairCache.Hits, stats.PairCache.Misses, stats.PairCache.HitRate)

			return nil
		},
	}
	return cmd
}

func keyStatus(key string) string {
	if key == "" {
		return "not set"
	}
	if len(key) > 12 {
		return key[:4] + "..." + key[len(key)-4:] + " (set)"
	}
	return "****** (set)"
}
