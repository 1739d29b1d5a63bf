package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/cache"
	"github.com/topherhaynie/mtg-card-app-sub001/internal/web"
)

func serveCmd() *cobra.Command {
	var (
		addr     string
		cacheTTL time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve the suggestion engine over HTTP.

Endpoints:
  POST /api/ask        free-text card questions
  POST /api/suggest    deck-context suggestions and combos
  GET  /api/card/:id   card lookup by ID or name
  GET  /api/combos/:id combos for a focal card
  GET  /api/combos     recorded combos under a price ceiling
  GET  /healthz        liveness
  GET  /metrics        prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := context.Background()
			app, err := BuildApp(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to build engine: %w", err)
			}
			defer app.Close()

			var respCache *cache.ResponseCache
			if cfg.RedisAddr != "" {
				client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
				respCache = cache.NewResponseCache(client, "mtg:ask", cacheTTL)
				if err := respCache.Ping(ctx); err != nil {
					app.Logger.Warn("redis unreachable, serving without response cache",
						zap.String("addr", cfg.RedisAddr), zap.Error(err))
					respCache = nil
				}
			}

			if !cmd.Flags().Changed("addr") && cfg.ListenAddr != "" {
				addr = cfg.ListenAddr
			}
			server := web.NewServer(app.Engine, app.Logger, respCache)
			return server.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&cacheTTL, "cache-ttl", 5*time.Minute, "redis response cache TTL")

	return cmd
}
