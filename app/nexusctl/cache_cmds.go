package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yoockh/nexusbot/config"
	"github.com/yoockh/nexusbot/internal/cache"
)

// newInvalidateBotCmd drops cached profiles so an edited bot shows up before its TTL.
func newInvalidateBotCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate-bot <bot-id>...",
		Short: "Evict bot profiles from the Redis cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			rdb, err := config.NewRedis(cfg.RedisTarget())
			if err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			defer rdb.Close()

			keys := make([]string, 0, len(args))
			for _, id := range args {
				keys = append(keys, cache.BotKey(id))
			}
			if err := cache.NewRedisCache(rdb).Del(cmd.Context(), keys...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "evicted %d bot profile(s)\n", len(keys))
			return nil
		},
	}
}
